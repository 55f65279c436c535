package stats

import "time"

const (
	dayKeyFormat   = "2006-01-02"
	monthKeyFormat = "2006-01"
)

// DayKey returns the local calendar-day bucket key for t.
func DayKey(t time.Time) string {
	return t.Local().Format(dayKeyFormat)
}

// MonthKey returns the local calendar-month bucket key for t.
func MonthKey(t time.Time) string {
	return t.Local().Format(monthKeyFormat)
}

// DailyKeys returns the trailing window of day keys ending at anchor,
// oldest first. The result always has exactly `days` entries.
func DailyKeys(anchor time.Time, days int) []string {
	anchor = anchor.Local()
	keys := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		keys = append(keys, anchor.AddDate(0, 0, -i).Format(dayKeyFormat))
	}
	return keys
}

// MonthlyKeys returns the trailing window of month keys ending at anchor's
// month, oldest first. The result always has exactly `months` entries.
func MonthlyKeys(anchor time.Time, months int) []string {
	anchor = anchor.Local()
	keys := make([]string, 0, months)
	for i := months - 1; i >= 0; i-- {
		month := time.Date(anchor.Year(), anchor.Month()-time.Month(i), 1, 0, 0, 0, 0, time.Local)
		keys = append(keys, month.Format(monthKeyFormat))
	}
	return keys
}

// keyIndex builds a key -> position lookup so record assignment stays O(1)
// per record rather than scanning buckets.
func keyIndex(keys []string) map[string]int {
	index := make(map[string]int, len(keys))
	for i, key := range keys {
		index[key] = i
	}
	return index
}
