package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/hex20/telemetry-health/pkg/types"
)

// epochMillisCutoff separates epoch seconds from epoch milliseconds. Values
// above it are milliseconds (1e11 seconds is the year 5138).
const epochMillisCutoff = 1e11

// maxDecodeErrors caps how many rejection errors DecodeResult keeps.
const maxDecodeErrors = 10

// DecodeResult is the outcome of decoding one batch.
type DecodeResult struct {
	// Readings holds the accepted readings in payload order.
	Readings []types.Reading

	// Rejected counts readings dropped as malformed.
	Rejected int

	// Errors holds the first few rejection reasons, each a
	// *MalformedReadingError.
	Errors []error
}

// MalformedReadingError describes one reading rejected during decode.
type MalformedReadingError struct {
	// Index is the position of the reading in the payload array.
	Index int
	// Field is the offending wire field.
	Field  string
	Reason string
}

func (e *MalformedReadingError) Error() string {
	return fmt.Sprintf("reading %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// required lists the wire fields a reading cannot do without.
var required = []string{"id", "timestamp", "battery_v", "temp", "solar_i", "cpu"}

// DecodeReadings decodes a JSON array of readings. Only a payload that is not
// a JSON array fails the whole batch; individual bad readings are rejected
// and counted. A reading whose id repeats an earlier accepted one is rejected;
// the first occurrence wins.
func DecodeReadings(data []byte) (DecodeResult, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return DecodeResult{}, fmt.Errorf("%w: decode readings: %v", ErrIngestion, err)
	}

	res := DecodeResult{Readings: make([]types.Reading, 0, len(raw))}
	seen := make(map[int64]struct{}, len(raw))
	for i, msg := range raw {
		r, err := decodeReading(i, msg)
		if err == nil {
			if _, dup := seen[r.ID]; dup {
				err = &MalformedReadingError{Index: i, Field: "id", Reason: fmt.Sprintf("duplicate id %d", r.ID)}
			}
		}
		if err != nil {
			res.Rejected++
			if len(res.Errors) < maxDecodeErrors {
				res.Errors = append(res.Errors, err)
			}
			continue
		}
		seen[r.ID] = struct{}{}
		res.Readings = append(res.Readings, r)
	}
	return res, nil
}

func decodeReading(idx int, msg json.RawMessage) (types.Reading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return types.Reading{}, &MalformedReadingError{Index: idx, Field: "", Reason: "not an object"}
	}
	bad := func(field, reason string) error {
		return &MalformedReadingError{Index: idx, Field: field, Reason: reason}
	}

	for _, f := range required {
		if v, ok := fields[f]; !ok || isNull(v) {
			return types.Reading{}, bad(f, "missing")
		}
	}

	var r types.Reading

	id, err := number(fields["id"])
	if err != nil {
		return types.Reading{}, bad("id", err.Error())
	}
	if id != math.Trunc(id) {
		return types.Reading{}, bad("id", "not an integer")
	}
	r.ID = int64(id)

	if r.Timestamp, err = timestamp(fields["timestamp"]); err != nil {
		return types.Reading{}, bad("timestamp", err.Error())
	}

	for _, nf := range []struct {
		name string
		dst  *float64
	}{
		{"battery_v", &r.BatteryV},
		{"temp", &r.Temp},
		{"solar_i", &r.SolarI},
		{"cpu", &r.CPU},
	} {
		if *nf.dst, err = number(fields[nf.name]); err != nil {
			return types.Reading{}, bad(nf.name, err.Error())
		}
	}

	if v, ok := fields["comm"]; ok && !isNull(v) {
		c, err := number(v)
		if err != nil {
			return types.Reading{}, bad("comm", err.Error())
		}
		if c != math.Trunc(c) {
			return types.Reading{}, bad("comm", "not an integer")
		}
		switch types.CommStatus(c) {
		case types.CommNominal, types.CommDegraded, types.CommLost:
			r.Comm = types.CommStatus(c)
		default:
			return types.Reading{}, bad("comm", fmt.Sprintf("unknown status %v", c))
		}
	}

	if v, ok := fields["iso_score"]; ok && !isNull(v) {
		if r.IsoScore, err = number(v); err != nil {
			return types.Reading{}, bad("iso_score", err.Error())
		}
	}

	for _, ff := range []struct {
		name string
		dst  *bool
	}{
		{"iso_flag", &r.IsoFlag},
		{"lr_batt_flag", &r.LRBattFlag},
		{"rule_flag", &r.RuleFlag},
	} {
		if *ff.dst, err = flag(fields[ff.name]); err != nil {
			return types.Reading{}, bad(ff.name, err.Error())
		}
	}

	return r.Normalize(), nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// number decodes a finite JSON number.
func number(v json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return f, nil
}

// flag decodes true/false or 0/1. Absent or null is false.
func flag(v json.RawMessage) (bool, error) {
	if len(v) == 0 || isNull(v) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return b, nil
	}
	f, err := number(v)
	if err != nil {
		return false, fmt.Errorf("not a flag")
	}
	switch f {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("flag out of range: %v", f)
}

// timestamp decodes an RFC 3339 string, a numeric string or a Unix epoch
// number in seconds or milliseconds.
func timestamp(v json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparsable timestamp %q", s)
		}
		return fromEpoch(f)
	}
	f, err := number(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable timestamp")
	}
	return fromEpoch(f)
}

func fromEpoch(f float64) (time.Time, error) {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("timestamp out of range")
	}
	if f > epochMillisCutoff {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
