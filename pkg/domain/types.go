package domain

import (
	"encoding/json"
	"time"
)

type ScanType string

const (
	ScanBarcode ScanType = "barcode"
	ScanPill    ScanType = "pill"
	ScanImprint ScanType = "imprint"
)

// ParseScanType maps a raw string onto a known scan type.
func ParseScanType(raw string) (ScanType, bool) {
	switch ScanType(raw) {
	case ScanBarcode, ScanPill, ScanImprint:
		return ScanType(raw), true
	default:
		return "", false
	}
}

type MatchConfidence string

const (
	ConfidenceHigh MatchConfidence = "High"
	ConfidenceLow  MatchConfidence = "Low"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session describes a verified access token.
type Session struct {
	UserID    string    `json:"userId"`
	TokenID   string    `json:"tokenId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UserProfile struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"userId"`
	FirstName            string          `json:"firstName,omitempty"`
	LastName             string          `json:"lastName,omitempty"`
	PhoneNumber          string          `json:"phoneNumber,omitempty"`
	Email                string          `json:"email,omitempty"`
	IsHealthcareProvider bool            `json:"isHealthcareProvider"`
	Preferences          json.RawMessage `json:"preferences,omitempty"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

type Ingredient struct {
	Name     string `json:"name"`
	Strength string `json:"strength"`
}

type Medication struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	NDC               string       `json:"ndc,omitempty"`
	GTIN              string       `json:"gtin,omitempty"`
	Imprint           string       `json:"imprint,omitempty"`
	Shape             string       `json:"shape,omitempty"`
	Color             string       `json:"color,omitempty"`
	Size              *float64     `json:"size,omitempty"`
	Manufacturer      string       `json:"manufacturer,omitempty"`
	ActiveIngredients []Ingredient `json:"activeIngredients,omitempty"`
	Dosage            string       `json:"dosage,omitempty"`
	Route             string       `json:"route,omitempty"`
	Packaging         string       `json:"packaging,omitempty"`
	ImageKey          string       `json:"imageKey,omitempty"`
	Verified          bool         `json:"verified"`
	UserID            string       `json:"userId,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// MedicationFilter selects medications; empty fields are ignored.
// Name and Imprint match as case-insensitive substrings, the rest exactly.
type MedicationFilter struct {
	Name    string
	NDC     string
	GTIN    string
	Imprint string
	Shape   string
	Color   string
}

// MedicationInfo is a normalized drug label record.
type MedicationInfo struct {
	Name              string          `json:"name"`
	GenericName       string          `json:"genericName,omitempty"`
	BrandName         string          `json:"brandName,omitempty"`
	NDC               string          `json:"ndc,omitempty"`
	RxCUI             string          `json:"rxcui,omitempty"`
	SPLID             string          `json:"splId,omitempty"`
	ApplicationNumber string          `json:"applicationNumber,omitempty"`
	ActiveIngredients []Ingredient    `json:"activeIngredients,omitempty"`
	Dosage            string          `json:"dosage,omitempty"`
	DosageForm        string          `json:"dosageForm,omitempty"`
	Route             string          `json:"route,omitempty"`
	Manufacturer      string          `json:"manufacturer,omitempty"`
	Description       string          `json:"description,omitempty"`
	Indications       string          `json:"indications,omitempty"`
	Warnings          string          `json:"warnings,omitempty"`
	DrugInteractions  string          `json:"drugInteractions,omitempty"`
	Pregnancy         string          `json:"pregnancy,omitempty"`
	Storage           string          `json:"storage,omitempty"`
	PackageLabel      string          `json:"packageLabel,omitempty"`
	Imprint           string          `json:"imprint,omitempty"`
	MatchConfidence   MatchConfidence `json:"matchConfidence"`
}

// IngredientNames returns just the ingredient names.
func (m MedicationInfo) IngredientNames() []string {
	out := make([]string, 0, len(m.ActiveIngredients))
	for _, ing := range m.ActiveIngredients {
		out = append(out, ing.Name)
	}
	return out
}

type ScanHistoryEntry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	ScanType     ScanType        `json:"scanType"`
	ScanData     json.RawMessage `json:"scanData"`
	Result       json.RawMessage `json:"result,omitempty"`
	IsSuccessful bool            `json:"isSuccessful"`
	MedicationID string          `json:"medicationId,omitempty"`
	Medication   *Medication     `json:"medication,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ReminderFrequency is the stored reminder configuration.
type ReminderFrequency struct {
	Schedule string `json:"schedule"`
	Timezone string `json:"timezone,omitempty"`
}

type SavedMedication struct {
	ID                string             `json:"id"`
	UserID            string             `json:"userId"`
	MedicationID      string             `json:"medicationId"`
	Notes             string             `json:"notes,omitempty"`
	ReminderEnabled   bool               `json:"reminderEnabled"`
	ReminderFrequency *ReminderFrequency `json:"reminderFrequency,omitempty"`
	Medication        *Medication        `json:"medication,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}
