package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hex20/telemetry-health/pkg/types"
)

func TestDecodeReadings_FullReading(t *testing.T) {
	payload := `[{"id":7,"timestamp":"2026-03-01T12:00:00Z","battery_v":3.81,"temp":24.5,
		"solar_i":0.31,"cpu":22,"comm":1,"iso_flag":true,"iso_score":0.412,
		"lr_batt_flag":false,"rule_flag":false,"combined_flag":true}]`

	res, err := DecodeReadings([]byte(payload))
	require.NoError(t, err)
	require.Len(t, res.Readings, 1)
	assert.Zero(t, res.Rejected)

	r := res.Readings[0]
	assert.Equal(t, int64(7), r.ID)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), r.Timestamp)
	assert.Equal(t, 3.81, r.BatteryV)
	assert.Equal(t, 24.5, r.Temp)
	assert.Equal(t, 0.31, r.SolarI)
	assert.Equal(t, 22.0, r.CPU)
	assert.Equal(t, types.CommDegraded, r.Comm)
	assert.True(t, r.IsoFlag)
	assert.Equal(t, 0.412, r.IsoScore)
	assert.True(t, r.CombinedFlag)
}

func TestDecodeReadings_IntegerFlagsAndEpochMillis(t *testing.T) {
	// Shape produced by the simulator: 0/1 flags, epoch ms, no rule flags.
	payload := `[{"id":3,"timestamp":1767225600000,"battery_v":3.9,"temp":25,"solar_i":0.2,
		"cpu":20,"comm":0,"iso_flag":1,"iso_score":0.05,"combined_flag":1}]`

	res, err := DecodeReadings([]byte(payload))
	require.NoError(t, err)
	require.Len(t, res.Readings, 1)

	r := res.Readings[0]
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), r.Timestamp)
	assert.True(t, r.IsoFlag)
	assert.False(t, r.LRBattFlag, "absent flag decodes as false")
	assert.False(t, r.RuleFlag, "absent flag decodes as false")
	assert.True(t, r.CombinedFlag)
}

func TestDecodeReadings_EpochSeconds(t *testing.T) {
	res, err := DecodeReadings([]byte(`[{"id":1,"timestamp":1767225600.5,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20}]`))
	require.NoError(t, err)
	require.Len(t, res.Readings, 1)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 500_000_000, time.UTC), res.Readings[0].Timestamp)
	assert.Equal(t, types.CommNominal, res.Readings[0].Comm, "absent comm is nominal")
}

func TestDecodeReadings_CombinedFlagRecomputed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"claimed without cause", `[{"id":1,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"combined_flag":true}]`, false},
		{"rule flag without combined", `[{"id":1,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"rule_flag":true}]`, true},
		{"lr flag", `[{"id":1,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"lr_batt_flag":1}]`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := DecodeReadings([]byte(tc.payload))
			require.NoError(t, err)
			require.Len(t, res.Readings, 1)
			assert.Equal(t, tc.want, res.Readings[0].CombinedFlag)
		})
	}
}

func TestDecodeReadings_RejectsMalformed(t *testing.T) {
	payload := `[
		{"id":1,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20},
		{"id":2,"timestamp":0,"temp":25,"solar_i":0.2,"cpu":20},
		{"id":3,"timestamp":"yesterday","battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20},
		{"id":4,"timestamp":0,"battery_v":"low","temp":25,"solar_i":0.2,"cpu":20},
		{"id":5,"timestamp":0,"battery_v":3.9,"temp":null,"solar_i":0.2,"cpu":20},
		{"id":6,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"comm":7},
		{"id":7,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"iso_flag":2},
		"not an object",
		{"id":9,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20},
		{"id":10,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"comm":2.9},
		{"id":11,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"comm":1.5}
	]`

	res, err := DecodeReadings([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 9, res.Rejected)
	require.Len(t, res.Readings, 2)
	assert.Equal(t, int64(1), res.Readings[0].ID)
	assert.Equal(t, int64(9), res.Readings[1].ID)

	require.NotEmpty(t, res.Errors)
	var mre *MalformedReadingError
	require.True(t, errors.As(res.Errors[0], &mre))
	assert.Equal(t, 1, mre.Index)
	assert.Equal(t, "battery_v", mre.Field)
}

func TestDecodeReadings_FractionalCommRejected(t *testing.T) {
	for _, comm := range []string{"2.9", "1.5", "0.1"} {
		t.Run(comm, func(t *testing.T) {
			payload := `[{"id":1,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20,"comm":` + comm + `}]`
			res, err := DecodeReadings([]byte(payload))
			require.NoError(t, err)
			assert.Empty(t, res.Readings)
			assert.Equal(t, 1, res.Rejected)

			var mre *MalformedReadingError
			require.True(t, errors.As(res.Errors[0], &mre))
			assert.Equal(t, "comm", mre.Field)
			assert.Equal(t, "not an integer", mre.Reason)
		})
	}
}

func TestDecodeReadings_DuplicateIDFirstWins(t *testing.T) {
	payload := `[
		{"id":4,"timestamp":0,"battery_v":3.9,"temp":25,"solar_i":0.2,"cpu":20},
		{"id":5,"timestamp":0,"battery_v":3.8,"temp":25,"solar_i":0.2,"cpu":20},
		{"id":4,"timestamp":0,"battery_v":3.0,"temp":25,"solar_i":0.2,"cpu":20}
	]`
	res, err := DecodeReadings([]byte(payload))
	require.NoError(t, err)
	require.Len(t, res.Readings, 2)
	assert.Equal(t, 3.9, res.Readings[0].BatteryV)
	assert.Equal(t, int64(5), res.Readings[1].ID)
	assert.Equal(t, 1, res.Rejected)

	var mre *MalformedReadingError
	require.True(t, errors.As(res.Errors[0], &mre))
	assert.Equal(t, 2, mre.Index)
	assert.Equal(t, "id", mre.Field)
}

func TestDecodeReadings_NotAnArray(t *testing.T) {
	_, err := DecodeReadings([]byte(`{"readings":[]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIngestion)
}

func TestDecodeReadings_Empty(t *testing.T) {
	res, err := DecodeReadings([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, res.Readings)
	assert.Empty(t, res.Readings)
}
