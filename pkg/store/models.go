package store

import (
	"time"

	"gorm.io/datatypes"

	"pillid/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type UserProfileModel struct {
	ID                   string `gorm:"primaryKey"`
	UserID               string `gorm:"uniqueIndex;not null"`
	FirstName            string
	LastName             string
	PhoneNumber          string
	Email                string
	IsHealthcareProvider bool           `gorm:"not null;default:false"`
	Preferences          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt            time.Time      `gorm:"not null"`
	UpdatedAt            time.Time
}

func (UserProfileModel) TableName() string { return "user_profiles" }

type MedicationModel struct {
	ID                string `gorm:"primaryKey"`
	Name              string `gorm:"not null;index"`
	NDC               string `gorm:"column:ndc;index"`
	GTIN              string `gorm:"column:gtin;index"`
	Imprint           string `gorm:"index"`
	Shape             string
	Color             string
	Size              *float64
	Manufacturer      string
	ActiveIngredients datatypes.JSONType[[]domain.Ingredient] `gorm:"type:jsonb"`
	Dosage            string                                  `gorm:"type:text"`
	Route             string
	Packaging         string
	ImageKey          string
	Verified          bool      `gorm:"not null;default:false"`
	UserID            string    `gorm:"index"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time
}

func (MedicationModel) TableName() string { return "medications" }

type ScanHistoryModel struct {
	ID           string         `gorm:"primaryKey"`
	UserID       string         `gorm:"not null;index"`
	ScanType     string         `gorm:"not null"`
	ScanData     datatypes.JSON `gorm:"type:jsonb;not null"`
	Result       datatypes.JSON `gorm:"type:jsonb"`
	IsSuccessful bool           `gorm:"not null"`
	MedicationID *string        `gorm:"index"`
	CreatedAt    time.Time      `gorm:"not null;index"`
}

func (ScanHistoryModel) TableName() string { return "scan_history" }

type SavedMedicationModel struct {
	ID                string `gorm:"primaryKey"`
	UserID            string `gorm:"not null;index"`
	MedicationID      string `gorm:"not null;index"`
	Notes             string `gorm:"type:text"`
	ReminderEnabled   bool   `gorm:"not null;default:false;index"`
	ReminderFrequency datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"not null"`
}

func (SavedMedicationModel) TableName() string { return "saved_medications" }
