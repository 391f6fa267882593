package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"pillid/pkg/domain"
)

func TestNextRun(t *testing.T) {
	after := time.Date(2026, 4, 1, 7, 30, 0, 0, time.UTC)
	next, err := NextRun(domain.ReminderFrequency{Schedule: "0 8 * * *"}, after)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if want := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunHonorsTimezone(t *testing.T) {
	after := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	next, err := NextRun(domain.ReminderFrequency{Schedule: "0 8 * * *", Timezone: "America/New_York"}, after)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if want := time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next.UTC(), want)
	}
}

func TestParseScheduleRejects(t *testing.T) {
	cases := []domain.ReminderFrequency{
		{},
		{Schedule: "every morning"},
		{Schedule: "0 8 * * *", Timezone: "Mars/Olympus"},
		{Schedule: "CRON_TZ=UTC 0 8 * * *"},
	}
	for _, tc := range cases {
		if _, err := ParseSchedule(tc); err == nil {
			t.Fatalf("expected %+v to be rejected", tc)
		}
	}
	if _, err := ParseSchedule(domain.ReminderFrequency{}); !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("expected ErrNoSchedule, got %v", err)
	}
}

type staticLister []domain.SavedMedication

func (l staticLister) ListReminders() ([]domain.SavedMedication, error) { return l, nil }

type recordingNotifier struct {
	got []Due
}

func (n *recordingNotifier) Notify(_ context.Context, due Due) error {
	n.got = append(n.got, due)
	return nil
}

func TestSchedulerTickFiresWithinWindow(t *testing.T) {
	items := staticLister{
		{ID: "due", ReminderEnabled: true, ReminderFrequency: &domain.ReminderFrequency{Schedule: "0 8 * * *"}},
		{ID: "later", ReminderEnabled: true, ReminderFrequency: &domain.ReminderFrequency{Schedule: "0 9 * * *"}},
		{ID: "disabled", ReminderEnabled: false, ReminderFrequency: &domain.ReminderFrequency{Schedule: "0 8 * * *"}},
		{ID: "broken", ReminderEnabled: true, ReminderFrequency: &domain.ReminderFrequency{Schedule: "nope"}},
		{ID: "unset", ReminderEnabled: true},
	}
	n := &recordingNotifier{}
	s := NewScheduler(items, n)

	clock := time.Date(2026, 4, 1, 7, 59, 30, 0, time.UTC)
	s.now = func() time.Time { return clock }
	s.last = clock.Add(-time.Minute)
	if sent := s.Tick(context.Background()); sent != 0 {
		t.Fatalf("expected nothing before 08:00, sent %d", sent)
	}

	clock = clock.Add(time.Minute)
	if sent := s.Tick(context.Background()); sent != 1 {
		t.Fatalf("expected one reminder, sent %d", sent)
	}
	if n.got[0].Saved.ID != "due" || n.got[0].At.Hour() != 8 {
		t.Fatalf("unexpected due reminder %+v", n.got[0])
	}

	clock = clock.Add(time.Minute)
	if sent := s.Tick(context.Background()); sent != 0 {
		t.Fatalf("reminder must not fire twice, sent %d", sent)
	}
}

func TestLogNotifier(t *testing.T) {
	err := LogNotifier{}.Notify(context.Background(), Due{
		Saved: domain.SavedMedication{ID: "s1", Medication: &domain.Medication{Name: "Lipitor"}},
		At:    time.Now(),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
}
