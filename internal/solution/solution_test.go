package solution

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vroomgo/internal/buffer"
	"vroomgo/internal/model"
	"vroomgo/internal/violation"
	"vroomgo/internal/vrperr"
)

func sample() *Solution {
	depot := model.At(0, 2.35, 48.85)
	job := model.AtIndex(1)
	var late violation.Violations
	late.Add(violation.Delay, 12)
	s := &Solution{
		Routes: []Route{{
			Vehicle: 7,
			Steps: []Step{
				{Type: Start, Location: &depot, Load: buffer.Amount{5}},
				{Type: Job, JobKind: model.Single, ID: 42, Location: &job, Arrival: 10, Duration: 10, Service: 3, Load: buffer.Amount{0}, Description: strings.Repeat("x", 60), Violations: late},
				{Type: Break, ID: 9, Arrival: 13, Duration: 10, Service: 5, Load: buffer.Amount{0}},
				{Type: End, Location: &depot, Arrival: 28, Duration: 20, Load: buffer.Amount{0}},
			},
			Cost:       20,
			Service:    8,
			Duration:   20,
			Delivery:   buffer.Amount{5},
			Pickup:     buffer.Amount{0},
			Profile:    "car",
			Violations: late,
			Geometry:   "_p~iF~ps|U",
		}},
		Unassigned: []Unassigned{{ID: 43, Kind: model.Pickup, Location: model.AtIndex(2)}},
	}
	s.Summarize(1)
	return s
}

func TestSummarize(t *testing.T) {
	s := sample()
	require.Equal(t, int64(20), s.Summary.Cost)
	require.Equal(t, 1, s.Summary.Routes)
	require.Equal(t, 1, s.Summary.Unassigned)
	require.Equal(t, buffer.Amount{5}, s.Summary.Delivery)
	require.Equal(t, int64(12), s.Summary.Violations.Delay)
}

func TestRecordLayout(t *testing.T) {
	require.Equal(t, RecordSize, binary.Size(Record{}))

	s := sample()
	recs := s.Records()
	require.Len(t, recs, 4)

	start := recs[0]
	require.Equal(t, "start", start.TypeString())
	require.False(t, start.HasID())
	require.Equal(t, int64(MissingInt), start.ID)
	require.Equal(t, int64(0), start.LocationIndex)
	require.Equal(t, 2.35, start.Longitude)

	job := recs[1]
	require.Equal(t, "job", job.TypeString())
	require.Equal(t, int64(42), job.ID)
	require.Equal(t, int64(7), job.VehicleID)
	require.False(t, job.HasCoordinates())
	require.True(t, math.IsNaN(job.Latitude))
	require.Equal(t, strings.Repeat("x", 40), job.DescriptionString())

	brk := recs[2]
	require.Equal(t, "break", brk.TypeString())
	require.Equal(t, int64(9), brk.ID)
	require.False(t, brk.HasLocation())

	require.False(t, recs[3].HasID())
}

func TestWriteRecords(t *testing.T) {
	s := sample()
	var buf bytes.Buffer
	require.NoError(t, s.WriteRecords(&buf))
	require.Equal(t, 4*RecordSize, buf.Len())

	back, err := ReadRecords(&buf)
	require.NoError(t, err)
	require.Len(t, back, 4)
	require.Equal(t, "end", back[3].TypeString())
	require.Equal(t, int64(28), back[3].Arrival)

	var empty bytes.Buffer
	require.NoError(t, (&Solution{}).WriteRecords(&empty))
	require.Zero(t, empty.Len())
}

func TestWriteJSONGeometryFlag(t *testing.T) {
	s := sample()
	var without, with bytes.Buffer
	require.NoError(t, s.WriteJSON(&without, JSONOptions{}))
	require.NoError(t, s.WriteJSON(&with, JSONOptions{Geometry: true}))
	require.NotContains(t, without.String(), "geometry")
	require.Contains(t, with.String(), `"geometry":"_p~iF~ps|U"`)
	require.Equal(t, "_p~iF~ps|U", s.Routes[0].Geometry)
}

func TestJSONSchema(t *testing.T) {
	s := sample()
	var buf bytes.Buffer
	require.NoError(t, s.WriteJSON(&buf, JSONOptions{}))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.EqualValues(t, 0, doc["code"])
	require.Contains(t, doc, "summary")
	summary := doc["summary"].(map[string]any)
	require.Contains(t, summary, "computing_times")
	require.Contains(t, summary, "waiting_time")

	route := doc["routes"].([]any)[0].(map[string]any)
	steps := route["steps"].([]any)
	start := steps[0].(map[string]any)
	require.Equal(t, "start", start["type"])
	require.NotContains(t, start, "id")
	require.Equal(t, []any{2.35, 48.85}, start["location"])
	job := steps[1].(map[string]any)
	require.EqualValues(t, 42, job["id"])
	require.Equal(t, []any{map[string]any{"cause": "delay", "duration": float64(12)}}, job["violations"])

	un := doc["unassigned"].([]any)[0].(map[string]any)
	require.Equal(t, "pickup", un["type"])
	require.EqualValues(t, 2, un["location_index"])
}

func TestJSONRoundTrip(t *testing.T) {
	s := sample()
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var back Solution
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, s.Summary.Cost, back.Summary.Cost)
	require.Len(t, back.Routes, 1)
	steps := back.Routes[0].Steps
	require.Equal(t, Job, steps[1].Type)
	require.Equal(t, model.Single, steps[1].JobKind)
	require.Equal(t, uint64(42), steps[1].ID)
	require.Nil(t, steps[2].Location)
	recs := back.Records()
	require.Len(t, recs, 4)
	require.Equal(t, s.Records()[1].ID, recs[1].ID)
	require.Equal(t, s.Records()[0].Longitude, recs[0].Longitude)
}

func TestFailurePayload(t *testing.T) {
	err := vrperr.Routingf("osrm unreachable")
	s := FromError(err)
	require.Equal(t, 3, s.Code)

	b, jerr := json.Marshal(s)
	require.NoError(t, jerr)
	require.JSONEq(t, `{"code":3,"error":"osrm unreachable"}`, string(b))

	var back Solution
	require.NoError(t, json.Unmarshal(b, &back))
	require.True(t, errors.Is(back.Err(), vrperr.ErrRouting))
	require.Empty(t, back.Routes)

	require.NoError(t, sample().Err())
	require.Equal(t, 1, FromError(errors.New("boom")).Code)
}

func TestStepLabelUnknown(t *testing.T) {
	var st Step
	require.Error(t, json.Unmarshal([]byte(`{"type":"teleport"}`), &st))
}
