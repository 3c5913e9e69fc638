package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "00:00", want: 0},
		{in: "08:30", want: 8*60 + 30},
		{in: "23:59:00", want: 23*60 + 59},
		{in: " 7:05 ", want: 7*60 + 5},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:00:30", wantErr: true},
		{in: "noon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "07:05", Clock(7*60+5).String())
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		every   int
		want    Trigger
		wantErr bool
	}{
		{
			name:  "equal bounds fire once a day",
			start: "23:30", end: "23:30", every: 15,
			want: Trigger{Kind: Daily, Start: 23*60 + 30, End: 23*60 + 30},
		},
		{
			name:  "equal bounds ignore a zero interval",
			start: "06:00", end: "06:00", every: 0,
			want: Trigger{Kind: Daily, Start: 6 * 60, End: 6 * 60},
		},
		{
			name:  "window",
			start: "08:00", end: "17:00", every: 30,
			want: Trigger{Kind: Recurring, Start: 8 * 60, End: 17 * 60, Every: 30},
		},
		{name: "crosses midnight", start: "22:00", end: "02:00", every: 30, wantErr: true},
		{name: "no interval", start: "08:00", end: "09:00", every: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseWindow(tt.start, tt.end, tt.every)
			require.NoError(t, err)
			got, err := Plan(w)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrigger_Times(t *testing.T) {
	tr := Trigger{Kind: Recurring, Start: 8 * 60, End: 17 * 60, Every: 30}
	times := tr.Times()
	require.Len(t, times, 19)
	assert.Equal(t, "08:00", times[0].String())
	assert.Equal(t, "08:30", times[1].String())
	assert.Equal(t, "17:00", times[18].String())

	// the end bound is kept only when it lands on the interval
	tr = Trigger{Kind: Recurring, Start: 8 * 60, End: 9*60 + 10, Every: 20}
	assert.Equal(t, []Clock{480, 500, 520, 540}, tr.Times())
}

func TestTrigger_Next(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	at := func(day, h, m int) time.Time { return time.Date(2024, 3, day, h, m, 0, 0, loc) }

	window := Trigger{Kind: Recurring, Start: 8 * 60, End: 17 * 60, Every: 30}
	daily := DailyAt(23*60 + 30)

	tests := []struct {
		name string
		tr   Trigger
		now  time.Time
		want time.Time
	}{
		{"before window", window, at(10, 6, 0), at(10, 8, 0)},
		{"exactly on a firing", window, at(10, 8, 0), at(10, 8, 30)},
		{"between firings", window, at(10, 12, 10), at(10, 12, 30)},
		{"last firing is the end bound", window, at(10, 16, 45), at(10, 17, 0)},
		{"after window rolls to tomorrow", window, at(10, 17, 0), at(11, 8, 0)},
		{"daily later today", daily, at(10, 9, 0), at(10, 23, 30)},
		{"daily after time", daily, at(10, 23, 31), at(11, 23, 30)},
		{"month end", daily, time.Date(2024, 3, 31, 23, 45, 0, 0, loc), time.Date(2024, 4, 1, 23, 30, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.tr.Next(tt.now)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.Equal(t, loc, got.Location())
		})
	}
}

func TestTrigger_String(t *testing.T) {
	assert.Equal(t, "daily at 00:00", DailyAt(0).String())
	assert.Equal(t, "every 30m from 08:00 to 17:00",
		Trigger{Kind: Recurring, Start: 8 * 60, End: 17 * 60, Every: 30}.String())
}
