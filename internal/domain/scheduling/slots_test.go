package scheduling

import (
	"testing"

	"github.com/medagenda/medagenda/internal/platform/apperr"
)

func TestCanonicalSlots(t *testing.T) {
	slots := CanonicalSlots()

	if len(slots) != 19 {
		t.Fatalf("expected 19 canonical slots, got %d", len(slots))
	}
	if slots[0] != "08:00" {
		t.Errorf("expected first slot 08:00, got %s", slots[0])
	}
	if slots[1] != "08:30" {
		t.Errorf("expected second slot 08:30, got %s", slots[1])
	}
	if slots[17] != "16:30" {
		t.Errorf("expected penultimate slot 16:30, got %s", slots[17])
	}
	if slots[18] != "17:00" {
		t.Errorf("expected last slot 17:00, got %s", slots[18])
	}
}

func TestValidateTimeWindow(t *testing.T) {
	cases := []struct {
		value   string
		wantErr bool
	}{
		{"08:00", false},
		{"12:15", false},
		{"16:30", false},
		{"17:00", false},
		{"07:59", true},
		{"17:01", true},
		{"17:30", true},
		{"00:00", true},
		{"23:59", true},
		{"8:00", true},
		{"25:00", true},
		{"10:60", true},
		{"10h30", true},
		{"", true},
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			err := validateTimeWindow(tc.value)
			if tc.wantErr {
				if !apperr.IsValidation(err) {
					t.Errorf("expected validation error for %q, got %v", tc.value, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error for %q: %v", tc.value, err)
			}
		})
	}
}

func TestParseClockTime(t *testing.T) {
	minutes, err := parseClockTime("09:30")
	if err != nil {
		t.Fatalf("parseClockTime() error: %v", err)
	}
	if minutes != 9*60+30 {
		t.Errorf("expected 570 minutes, got %d", minutes)
	}
}
