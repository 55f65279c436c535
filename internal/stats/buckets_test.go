package stats

import (
	"testing"
	"time"
)

func TestDailyKeys_CountAndOrder(t *testing.T) {
	anchor := time.Date(2024, 3, 10, 15, 30, 0, 0, time.Local)

	keys := DailyKeys(anchor, 7)
	if len(keys) != 7 {
		t.Fatalf("DailyKeys returned %d keys, want 7", len(keys))
	}
	if keys[0] != "2024-03-04" {
		t.Errorf("oldest key = %s, want 2024-03-04", keys[0])
	}
	if keys[6] != "2024-03-10" {
		t.Errorf("newest key = %s, want 2024-03-10", keys[6])
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			t.Errorf("keys not strictly ascending: %s before %s", keys[i-1], keys[i])
		}
	}
}

func TestDailyKeys_CrossesMonthBoundary(t *testing.T) {
	anchor := time.Date(2024, 3, 2, 0, 0, 0, 0, time.Local)
	keys := DailyKeys(anchor, 7)
	if keys[0] != "2024-02-25" {
		t.Errorf("oldest key = %s, want 2024-02-25", keys[0])
	}
}

func TestMonthlyKeys_CountAndOrder(t *testing.T) {
	anchor := time.Date(2024, 6, 15, 0, 0, 0, 0, time.Local)

	keys := MonthlyKeys(anchor, 12)
	if len(keys) != 12 {
		t.Fatalf("MonthlyKeys returned %d keys, want 12", len(keys))
	}
	if keys[0] != "2023-07" {
		t.Errorf("oldest key = %s, want 2023-07", keys[0])
	}
	if keys[11] != "2024-06" {
		t.Errorf("newest key = %s, want 2024-06", keys[11])
	}
}

func TestMonthlyKeys_YearBoundaryNormalization(t *testing.T) {
	anchor := time.Date(2024, 1, 31, 0, 0, 0, 0, time.Local)
	keys := MonthlyKeys(anchor, 3)
	want := []string{"2023-11", "2023-12", "2024-01"}
	for i, key := range keys {
		if key != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, key, want[i])
		}
	}
}

func TestDayKey_UsesLocalCalendarDay(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	if got := DayKey(ts); got != "2024-05-01" {
		t.Errorf("DayKey = %s, want 2024-05-01", got)
	}
	if got := MonthKey(ts); got != "2024-05" {
		t.Errorf("MonthKey = %s, want 2024-05", got)
	}
}
