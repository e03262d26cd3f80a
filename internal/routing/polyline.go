package routing

import (
	"math"
	"strings"

	"vroomgo/internal/model"
)

// EncodePolyline renders locs in the encoded polyline format (precision 5,
// latitude first) used by OSRM and ORS geometries.
func EncodePolyline(locs []model.Coordinates) string {
	var sb strings.Builder
	var plat, plon int64
	for _, c := range locs {
		lat := int64(math.Round(c.Lat * 1e5))
		lon := int64(math.Round(c.Lon * 1e5))
		encodeValue(&sb, lat-plat)
		encodeValue(&sb, lon-plon)
		plat, plon = lat, lon
	}
	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		sb.WriteByte(byte(0x20|u&0x1f) + 63)
		u >>= 5
	}
	sb.WriteByte(byte(u) + 63)
}
