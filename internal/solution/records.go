package solution

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// MissingInt marks an absent integer column in a Record. Absent float
// columns hold NaN.
const MissingInt = math.MinInt64

// RecordSize is the packed size of one Record in bytes.
const RecordSize = 137

// Record is the fixed-layout projection of one step. Strings are
// NUL-padded; Description is truncated to fit.
type Record struct {
	VehicleID     int64
	Type          [9]byte
	Arrival       int64
	Duration      int64
	Setup         int64
	Service       int64
	WaitingTime   int64
	Distance      int64
	Longitude     float64
	Latitude      float64
	LocationIndex int64
	ID            int64
	Description   [40]byte
}

func (r Record) TypeString() string        { return cstring(r.Type[:]) }
func (r Record) DescriptionString() string { return cstring(r.Description[:]) }
func (r Record) HasID() bool               { return r.ID != MissingInt }
func (r Record) HasLocation() bool         { return r.LocationIndex != MissingInt }
func (r Record) HasCoordinates() bool      { return !math.IsNaN(r.Longitude) && !math.IsNaN(r.Latitude) }

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func newRecord(vehicle uint64, s Step) Record {
	r := Record{
		VehicleID:     int64(vehicle),
		Arrival:       s.Arrival,
		Duration:      s.Duration,
		Setup:         s.Setup,
		Service:       s.Service,
		WaitingTime:   s.WaitingTime,
		Distance:      s.Distance,
		Longitude:     math.NaN(),
		Latitude:      math.NaN(),
		LocationIndex: MissingInt,
		ID:            MissingInt,
	}
	copy(r.Type[:], s.Label())
	copy(r.Description[:], s.Description)
	if s.HasID() {
		r.ID = int64(s.ID)
	}
	if l := s.Location; l != nil {
		if l.HasIndex {
			r.LocationIndex = int64(l.Index)
		}
		if l.Coords != nil {
			r.Longitude, r.Latitude = l.Coords.Lon, l.Coords.Lat
		}
	}
	return r
}

// Records returns one Record per step, routes in order.
func (s *Solution) Records() []Record {
	n := 0
	for _, r := range s.Routes {
		n += len(r.Steps)
	}
	out := make([]Record, 0, n)
	for _, r := range s.Routes {
		for _, st := range r.Steps {
			out = append(out, newRecord(r.Vehicle, st))
		}
	}
	return out
}

// WriteRecords writes Records to w as packed little-endian rows of
// RecordSize bytes.
func (s *Solution) WriteRecords(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, s.Records())
}

// ReadRecords decodes a stream written by WriteRecords.
func ReadRecords(r io.Reader) ([]Record, error) {
	var out []Record
	for {
		var rec Record
		err := binary.Read(r, binary.LittleEndian, &rec)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
