package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Field identifies one optional numeric channel of a Sample.
type Field uint8

// Telemetry channels. Angles are degrees, speeds knots, ot seconds.
const (
	FieldOT          Field = iota // elapsed race time
	FieldLat                      // latitude
	FieldLon                      // longitude
	FieldHdg                      // heading
	FieldCOG                      // course over ground
	FieldSOG                      // speed over ground
	FieldSpeed                    // boat speed through water
	FieldAWA                      // apparent wind angle
	FieldAWS                      // apparent wind speed
	FieldTWS                      // true wind speed
	FieldTWA                      // true wind angle
	FieldTWD                      // true wind direction
	FieldVMG                      // velocity made good
	FieldROT                      // rate of turn
	FieldTargetSpeed              // polar target speed
	FieldTargetAngle              // polar target angle
	numFields
)

var fieldNames = [numFields]string{
	FieldOT:          "ot",
	FieldLat:         "lat",
	FieldLon:         "lon",
	FieldHdg:         "hdg",
	FieldCOG:         "cog",
	FieldSOG:         "sog",
	FieldSpeed:       "speed",
	FieldAWA:         "awa",
	FieldAWS:         "aws",
	FieldTWS:         "tws",
	FieldTWA:         "twa",
	FieldTWD:         "twd",
	FieldVMG:         "vmg",
	FieldROT:         "rot",
	FieldTargetSpeed: "targetSpeed",
	FieldTargetAngle: "targetAngle",
}

// String returns the wire name of the field ("twa", "targetSpeed", ...).
func (f Field) String() string {
	if f >= numFields {
		return fmt.Sprintf("field(%d)", uint8(f))
	}
	return fieldNames[f]
}

// ParseField resolves a wire name to its Field.
func ParseField(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// Fields returns every known field in declaration order.
func Fields() []Field {
	fs := make([]Field, numFields)
	for i := range fs {
		fs[i] = Field(i)
	}
	return fs
}

// Sample is one timestamped telemetry record with a sparse set of channels.
// A channel that was never set is absent, which is different from zero.
// Samples are values; With returns a modified copy and leaves the receiver alone.
type Sample struct {
	T       time.Time
	values  [numFields]float64
	present uint32
}

// NewSample creates a sample at t with no channels set.
func NewSample(t time.Time) Sample {
	return Sample{T: t}
}

// With returns a copy of s with field f set to v.
func (s Sample) With(f Field, v float64) Sample {
	if f >= numFields {
		return s
	}
	s.values[f] = v
	s.present |= 1 << f
	return s
}

// Without returns a copy of s with field f removed.
func (s Sample) Without(f Field) Sample {
	if f >= numFields {
		return s
	}
	s.values[f] = 0
	s.present &^= 1 << f
	return s
}

// Has reports whether field f is present.
func (s Sample) Has(f Field) bool {
	return f < numFields && s.present&(1<<f) != 0
}

// Get returns the value of f and whether it is present.
func (s Sample) Get(f Field) (float64, bool) {
	if !s.Has(f) {
		return 0, false
	}
	return s.values[f], true
}

// Value returns the value of f, or NaN when absent.
func (s Sample) Value(f Field) float64 {
	if !s.Has(f) {
		return math.NaN()
	}
	return s.values[f]
}

// Present returns the fields set on s in declaration order.
func (s Sample) Present() []Field {
	var fs []Field
	for i := Field(0); i < numFields; i++ {
		if s.Has(i) {
			fs = append(fs, i)
		}
	}
	return fs
}

// MarshalJSON writes t as RFC3339 and only the present channels.
func (s Sample) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Present())+1)
	m["t"] = s.T.UTC().Format(time.RFC3339Nano)
	for _, f := range s.Present() {
		m[f.String()] = s.values[f]
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts t as an RFC3339 string or epoch milliseconds.
// Unknown keys and null values are ignored.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tRaw, ok := raw["t"]
	if !ok {
		return fmt.Errorf("sample is missing t")
	}
	t, err := parseJSONTime(tRaw)
	if err != nil {
		return fmt.Errorf("invalid t: %w", err)
	}

	out := NewSample(t)
	for key, val := range raw {
		f, ok := ParseField(key)
		if !ok {
			continue
		}
		var v *float64
		if err := json.Unmarshal(val, &v); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if v != nil {
			out = out.With(f, *v)
		}
	}
	*s = out
	return nil
}

func parseJSONTime(raw json.RawMessage) (time.Time, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return ParseTime(str)
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(ms)).UTC(), nil
}

// ParseTime parses RFC3339 timestamps or integer epoch milliseconds.
func ParseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
