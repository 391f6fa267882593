package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pillid/pkg/domain"
)

// Due is one reminder that fired.
type Due struct {
	Saved domain.SavedMedication
	At    time.Time
}

// Notifier delivers due reminders.
type Notifier interface {
	Notify(ctx context.Context, due Due) error
}

// Lister lists saved medications that have reminders enabled.
type Lister interface {
	ListReminders() ([]domain.SavedMedication, error)
}

// LogNotifier writes each due reminder to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, due Due) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := ""
	if due.Saved.Medication != nil {
		name = due.Saved.Medication.Name
	}
	logger.Info("medication_reminder_due",
		"user_id", due.Saved.UserID,
		"saved_id", due.Saved.ID,
		"medication_id", due.Saved.MedicationID,
		"medication", name,
		"at", due.At,
	)
	return nil
}

// Scheduler checks reminders on a fixed tick and notifies those whose
// schedule fired since the previous tick.
type Scheduler struct {
	lister   Lister
	notifier Notifier
	spec     string
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
	cron *cron.Cron
}

// NewScheduler builds a scheduler ticking every minute.
func NewScheduler(lister Lister, notifier Notifier) *Scheduler {
	return &Scheduler{
		lister:   lister,
		notifier: notifier,
		spec:     "@every 1m",
		now:      time.Now,
	}
}

// Start begins ticking in the background.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	s.last = s.now()
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { s.Tick(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts ticking and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Tick notifies every reminder that fired in (last tick, now] and returns
// how many were sent.
func (s *Scheduler) Tick(ctx context.Context) int {
	s.mu.Lock()
	from := s.last
	to := s.now()
	s.last = to
	s.mu.Unlock()
	if from.IsZero() {
		from = to.Add(-time.Minute)
	}

	items, err := s.lister.ListReminders()
	if err != nil {
		slog.Error("list reminders failed", "err", err)
		return 0
	}
	sent := 0
	for _, item := range items {
		if !item.ReminderEnabled || item.ReminderFrequency == nil {
			continue
		}
		sched, err := ParseSchedule(*item.ReminderFrequency)
		if err != nil {
			slog.Warn("skip reminder with bad schedule", "saved_id", item.ID, "err", err)
			continue
		}
		at, ok := firedBetween(sched, from, to)
		if !ok {
			continue
		}
		if err := s.notifier.Notify(ctx, Due{Saved: item, At: at}); err != nil {
			slog.Error("reminder notify failed", "saved_id", item.ID, "err", err)
			continue
		}
		sent++
	}
	return sent
}
