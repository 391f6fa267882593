// Package reminder parses medication reminder schedules and fires due
// reminders.
package reminder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pillid/pkg/domain"
)

var ErrNoSchedule = errors.New("reminder schedule required")

// ParseSchedule parses a five-field cron expression evaluated in the
// frequency's time zone (UTC when unset).
func ParseSchedule(freq domain.ReminderFrequency) (cron.Schedule, error) {
	spec := strings.TrimSpace(freq.Schedule)
	if spec == "" {
		return nil, ErrNoSchedule
	}
	if strings.HasPrefix(spec, "TZ=") || strings.HasPrefix(spec, "CRON_TZ=") {
		return nil, errors.New("set the time zone with the timezone field")
	}
	if tz := strings.TrimSpace(freq.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		spec = "CRON_TZ=" + tz + " " + spec
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", freq.Schedule, err)
	}
	return sched, nil
}

// NextRun returns the first fire time strictly after after.
func NextRun(freq domain.ReminderFrequency, after time.Time) (time.Time, error) {
	sched, err := ParseSchedule(freq)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// firedBetween reports whether sched fires in (from, to].
func firedBetween(sched cron.Schedule, from, to time.Time) (time.Time, bool) {
	next := sched.Next(from)
	if next.IsZero() || next.After(to) {
		return time.Time{}, false
	}
	return next, true
}
