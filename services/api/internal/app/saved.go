package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pillid/internal/util"
	"pillid/pkg/domain"
	"pillid/pkg/reminder"
)

const maxNotesLen = 2000

// SaveInput adds a medication to the user's list.
type SaveInput struct {
	MedicationID      string                    `json:"medicationId"`
	Notes             string                    `json:"notes"`
	ReminderEnabled   bool                      `json:"reminderEnabled"`
	ReminderFrequency *domain.ReminderFrequency `json:"reminderFrequency"`
}

// SavedItem is a saved medication with its next reminder, if enabled.
type SavedItem struct {
	domain.SavedMedication
	NextReminder *time.Time `json:"nextReminder,omitempty"`
}

// SaveMedication adds a catalog medication to the user's saved list.
func (a *App) SaveMedication(user domain.User, in SaveInput) (SavedItem, error) {
	in.MedicationID = strings.TrimSpace(in.MedicationID)
	if in.MedicationID == "" {
		return SavedItem{}, invalid("medicationId is required")
	}
	if len(in.Notes) > maxNotesLen {
		return SavedItem{}, invalid("notes are too long")
	}
	med, err := a.GetMedication(in.MedicationID)
	if err != nil {
		return SavedItem{}, err
	}
	saved := domain.SavedMedication{
		ID:                util.NewID(),
		UserID:            user.ID,
		MedicationID:      med.ID,
		Notes:             strings.TrimSpace(in.Notes),
		ReminderEnabled:   in.ReminderEnabled,
		ReminderFrequency: in.ReminderFrequency,
		CreatedAt:         a.now(),
	}
	item, err := a.savedItem(saved)
	if err != nil {
		return SavedItem{}, invalid(err.Error())
	}
	if err := a.store.SaveMedication(saved); err != nil {
		return SavedItem{}, fmt.Errorf("save medication: %w", err)
	}
	item.Medication = &med
	return item, nil
}

// ListSaved returns the user's saved medications, newest first.
func (a *App) ListSaved(ctx context.Context, user domain.User) ([]SavedItem, error) {
	saved, err := a.store.ListSavedByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	items := make([]SavedItem, 0, len(saved))
	for _, s := range saved {
		item, err := a.savedItem(s)
		if err != nil {
			loggerFrom(ctx).Warn("stored reminder schedule no longer parses", "saved_id", s.ID, "err", err)
			item = SavedItem{SavedMedication: s}
		}
		items = append(items, item)
	}
	return items, nil
}

// RemoveSaved deletes one of the user's saved entries.
func (a *App) RemoveSaved(user domain.User, id string) error {
	saved, ok, err := a.store.GetSaved(id)
	if err != nil {
		return fmt.Errorf("get saved: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if saved.UserID != user.ID {
		return ErrForbidden
	}
	if err := a.store.RemoveSaved(id); err != nil {
		return fmt.Errorf("remove saved: %w", err)
	}
	return nil
}

func (a *App) savedItem(s domain.SavedMedication) (SavedItem, error) {
	item := SavedItem{SavedMedication: s}
	if !s.ReminderEnabled {
		return item, nil
	}
	if s.ReminderFrequency == nil {
		return item, reminder.ErrNoSchedule
	}
	next, err := reminder.NextRun(*s.ReminderFrequency, a.now())
	if err != nil {
		return item, err
	}
	item.NextReminder = &next
	return item, nil
}
