package store

import (
	"errors"
	"time"

	"pillid/pkg/domain"
)

// ErrNotFound is returned by updates of rows that do not exist.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps list queries when the caller passes no limit.
const DefaultListLimit = 50

// Store defines persistence for users, profiles, medications, scans and saved
// items. Reference columns are plain ids; no cross-table constraint is
// enforced here.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// profiles
	SaveProfile(domain.UserProfile) error
	GetProfileByUser(userID string) (domain.UserProfile, bool, error)

	// medications
	CreateMedication(domain.Medication) error
	UpdateMedication(domain.Medication) error
	GetMedication(id string) (domain.Medication, bool, error)
	SearchMedications(filter domain.MedicationFilter, limit int) ([]domain.Medication, error)
	DeleteMedication(id string) error

	// scans
	RecordScan(domain.ScanHistoryEntry) error
	ListScansByUser(userID string, limit int) ([]domain.ScanHistoryEntry, error)

	// saved medications
	SaveMedication(domain.SavedMedication) error
	GetSaved(id string) (domain.SavedMedication, bool, error)
	ListSavedByUser(userID string) ([]domain.SavedMedication, error)
	ListReminders() ([]domain.SavedMedication, error)
	RemoveSaved(id string) error
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// SessionInspector is an optional capability that exposes token metadata.
type SessionInspector interface {
	Session(token string) (domain.Session, error)
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user up to a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
