package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "09:30", want: 570},
		{in: "18:00:00", want: 1080},
		{in: "24:00", want: MinutesInDay},
		{in: "24:30", wantErr: true},
		{in: "9:30", wantErr: true},
		{in: "12:61", wantErr: true},
		{in: "10:00:15", wantErr: true},
		{in: "noon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeKeyRoundTrip(t *testing.T) {
	for _, m := range []int{0, 30, 570, 1410} {
		got, err := ParseTimeKey(TimeKey(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestOverlapsHalfOpen(t *testing.T) {
	day := time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	assert.True(t, Overlaps(at(9), at(11), at(10), at(12)))
	assert.False(t, Overlaps(at(9), at(10), at(10), at(11)), "touching ranges do not overlap")
	assert.True(t, Overlaps(at(9), at(12), at(10), at(11)))
}

func TestAtHandlesLocation(t *testing.T) {
	loc := time.FixedZone("CET", 60*60)

	date, err := ParseDate("2026-03-14", loc)
	require.NoError(t, err)

	got := At(date, 17*60+30)
	assert.Equal(t, "2026-03-14T17:30:00+01:00", got.Format(time.RFC3339))
	assert.Equal(t, 17*60+30, MinutesOfDay(got, loc))
}
