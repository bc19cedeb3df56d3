package estimate

import (
	"testing"
	"time"
)

// 2024-01-01 is a Monday, which makes the offsets below easy to read.
func localTS(day, hour int) int64 {
	return time.Date(2024, time.January, day, hour, 0, 0, 0, time.Local).Unix()
}

func TestDelivery(t *testing.T) {
	tests := []struct {
		name     string
		ts       int64
		expected string
	}{
		{
			name:     "monday morning ships next day",
			ts:       localTS(1, 10), // Mon 10:00, lead 1, 0+1 <= 4
			expected: "2024-01-02",
		},
		{
			name:     "monday afternoon takes two days",
			ts:       localTS(1, 16), // Mon 16:00, lead 2, 0+2 <= 4
			expected: "2024-01-03",
		},
		{
			name:     "cutoff hour counts as afternoon",
			ts:       localTS(1, 15), // exactly 15:00 is not "before 15"
			expected: "2024-01-03",
		},
		{
			name:     "thursday afternoon skips the weekend",
			ts:       localTS(4, 16), // Thu 16:00, lead 2, 3+2 > 4 -> +2
			expected: "2024-01-08", // following Monday
		},
		{
			name:     "friday morning skips the weekend",
			ts:       localTS(5, 9), // Fri 09:00, lead 1, 4+1 > 4 -> +2
			expected: "2024-01-08",
		},
		{
			name:     "friday afternoon lands tuesday",
			ts:       localTS(5, 17), // Fri 17:00, lead 2, 4+2 > 4 -> +2
			expected: "2024-01-09",
		},
		{
			name:     "saturday order gets the weekend shift",
			ts:       localTS(6, 11), // Sat 11:00, lead 1, 5+1 > 4 -> +2
			expected: "2024-01-09",
		},
		{
			name:     "sunday order gets the weekend shift",
			ts:       localTS(7, 20), // Sun 20:00, lead 2, 6+2 > 4 -> +2
			expected: "2024-01-11",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delivery(tt.ts)
			if got != tt.expected {
				t.Errorf("Delivery(%d) = %q, want %q", tt.ts, got, tt.expected)
			}
		})
	}
}

func TestDeliveryIsDeterministic(t *testing.T) {
	ts := localTS(3, 12)
	first := Delivery(ts)
	for i := 0; i < 10; i++ {
		if got := Delivery(ts); got != first {
			t.Fatalf("Delivery(%d) changed between calls: %q then %q", ts, first, got)
		}
	}
}

func TestMondayIndex(t *testing.T) {
	tests := []struct {
		weekday  time.Weekday
		expected int
	}{
		{time.Monday, 0},
		{time.Tuesday, 1},
		{time.Wednesday, 2},
		{time.Thursday, 3},
		{time.Friday, 4},
		{time.Saturday, 5},
		{time.Sunday, 6},
	}

	for _, tt := range tests {
		if got := mondayIndex(tt.weekday); got != tt.expected {
			t.Errorf("mondayIndex(%v) = %d, want %d", tt.weekday, got, tt.expected)
		}
	}
}
