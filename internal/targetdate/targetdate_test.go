package targetdate_test

import (
	"testing"
	"time"

	"courier/internal/targetdate"
	"courier/internal/warehouse"
)

func TestResolve(t *testing.T) {
	rule := warehouse.Rule{Code: "7210", DaysOffset: 1, FridayOffset: 3}

	tests := []struct {
		name  string
		today time.Time
		want  string
	}{
		{"monday", date(2025, time.August, 11, 9), "20250812"},
		{"thursday", date(2025, time.August, 14, 23), "20250815"},
		{"friday override", date(2025, time.August, 15, 16), "20250818"},
		{"month boundary", date(2025, time.July, 31, 8), "20250801"},
		{"year boundary friday", date(2027, time.December, 31, 8), "20280103"},
		{"weekend uses regular offset", date(2025, time.August, 16, 8), "20250817"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := targetdate.Stamp(targetdate.Resolve(rule, tc.today))
			if got != tc.want {
				t.Fatalf("Resolve(%s) = %s, want %s", tc.today.Format(time.DateOnly), got, tc.want)
			}
		})
	}
}

func TestResolveFridayIsNotRegularOffset(t *testing.T) {
	rule := warehouse.Rule{DaysOffset: 1, FridayOffset: 3}
	friday := date(2025, time.August, 15, 10)

	got := targetdate.Resolve(rule, friday)
	if !got.Equal(date(2025, time.August, 18, 0)) {
		t.Fatalf("expected today+3, got %s", got)
	}
	if got.Equal(date(2025, time.August, 16, 0)) {
		t.Fatal("Friday must not use days_offset")
	}
}

func TestResolveNegativeAndZeroOffsets(t *testing.T) {
	today := date(2025, time.March, 1, 12)
	if got := targetdate.Stamp(targetdate.Resolve(warehouse.Rule{DaysOffset: -1, FridayOffset: -1}, today)); got != "20250228" {
		t.Fatalf("unexpected negative offset result: %s", got)
	}
	if got := targetdate.Stamp(targetdate.Resolve(warehouse.Rule{}, today)); got != "20250301" {
		t.Fatalf("unexpected zero offset result: %s", got)
	}
}

func TestResolveAcrossDSTKeepsCalendarDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	today := time.Date(2025, time.March, 29, 23, 30, 0, 0, loc)
	got := targetdate.Resolve(warehouse.Rule{DaysOffset: 1, FridayOffset: 1}, today)
	if targetdate.Stamp(got) != "20250330" {
		t.Fatalf("unexpected date across DST: %s", got)
	}
}

func TestIsWeekend(t *testing.T) {
	for day := 11; day <= 17; day++ {
		current := date(2025, time.August, day, 12)
		want := current.Weekday() == time.Saturday || current.Weekday() == time.Sunday
		if got := targetdate.IsWeekend(current); got != want {
			t.Fatalf("IsWeekend(%s) = %v, want %v", current.Weekday(), got, want)
		}
	}
}

func TestOffset(t *testing.T) {
	rule := warehouse.Rule{DaysOffset: 2, FridayOffset: 4}
	if targetdate.Offset(rule, time.Friday) != 4 {
		t.Fatal("expected friday offset")
	}
	if targetdate.Offset(rule, time.Monday) != 2 {
		t.Fatal("expected regular offset")
	}
}

func date(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}
