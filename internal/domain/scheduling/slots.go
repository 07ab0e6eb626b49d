package scheduling

import (
	"fmt"
	"regexp"

	"github.com/medagenda/medagenda/internal/platform/apperr"
)

// Clinic working hours. Appointments must fall within [08:00, 17:00] with
// 17:00 itself as the last admissible time.
const (
	openingMinutes = 8 * 60
	closingMinutes = 17 * 60

	slotInterval = 30 // minutes
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// parseClockTime parses "HH:MM" into minutes since midnight.
func parseClockTime(value string) (int, error) {
	if !clockPattern.MatchString(value) {
		return 0, apperr.Validationf("time must be in HH:MM format, got %q", value)
	}
	var hours, minutes int
	fmt.Sscanf(value, "%d:%d", &hours, &minutes)
	return hours*60 + minutes, nil
}

// validateTimeWindow checks that value is a well-formed time of day inside
// the clinic's working hours.
func validateTimeWindow(value string) error {
	minutes, err := parseClockTime(value)
	if err != nil {
		return err
	}
	if minutes < openingMinutes || minutes > closingMinutes {
		return apperr.Validationf("time %s is outside working hours (08:00 to 17:00)", value)
	}
	return nil
}

// CanonicalSlots returns the bookable slot sequence for any day: every 30
// minutes from 08:00 through 16:30, plus the terminal 17:00 slot.
func CanonicalSlots() []string {
	var slots []string
	for m := openingMinutes; m < closingMinutes; m += slotInterval {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return append(slots, fmt.Sprintf("%02d:00", closingMinutes/60))
}
