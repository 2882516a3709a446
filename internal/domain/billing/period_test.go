package billing

import (
	"testing"
	"time"
)

func TestMonthStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid month",
			in:   time.Date(2025, time.June, 15, 10, 30, 45, 99, time.UTC),
			want: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "already at month start",
			in:   time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "last instant of month",
			in:   time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC),
			want: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MonthStart(tt.in); !got.Equal(tt.want) {
				t.Errorf("MonthStart(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMonthKey(t *testing.T) {
	in := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	if got := MonthKey(in); got != "2025-06" {
		t.Errorf("MonthKey() = %q, want 2025-06", got)
	}
}

func TestLastMonths(t *testing.T) {
	now := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	p := LastMonths(now, 6)

	wantStart := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	if !p.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", p.Start, wantStart)
	}
	if !p.End.Equal(now) {
		t.Errorf("end = %v, want %v", p.End, now)
	}
}

func TestLastCalendarMonth(t *testing.T) {
	now := time.Date(2025, time.January, 20, 8, 0, 0, 0, time.UTC)
	p := LastCalendarMonth(now)

	wantStart := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !p.Start.Equal(wantStart) || !p.End.Equal(wantEnd) {
		t.Errorf("period = %v, want [%v, %v)", p, wantStart, wantEnd)
	}
}
