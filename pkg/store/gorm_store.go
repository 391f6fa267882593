package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"pillid/pkg/domain"
)

const migrateLockID int64 = 51207731

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&UserProfileModel{},
			&MedicationModel{},
			&ScanHistoryModel{},
			&SavedMedicationModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveProfile inserts or replaces the profile of a user.
func (s *GormStore) SaveProfile(p domain.UserProfile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "last_name", "phone_number", "email",
			"is_healthcare_provider", "preferences", "updated_at",
		}),
	}).Create(&model).Error
}

func (s *GormStore) GetProfileByUser(userID string) (domain.UserProfile, bool, error) {
	var model UserProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserProfile{}, false, nil
		}
		return domain.UserProfile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// CreateMedication inserts a medication. Medications are never deduplicated.
func (s *GormStore) CreateMedication(m domain.Medication) error {
	model := medicationToModel(m)
	return s.db.Create(&model).Error
}

// UpdateMedication overwrites every mutable column of an existing row.
func (s *GormStore) UpdateMedication(m domain.Medication) error {
	model := medicationToModel(m)
	res := s.db.Model(&MedicationModel{}).Where("id = ?", m.ID).Select(
		"name", "ndc", "gtin", "imprint", "shape", "color", "size", "manufacturer",
		"active_ingredients", "dosage", "route", "packaging", "image_key", "verified", "updated_at",
	).Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetMedication(id string) (domain.Medication, bool, error) {
	var model MedicationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Medication{}, false, nil
		}
		return domain.Medication{}, false, err
	}
	return medicationFromModel(model), true, nil
}

// SearchMedications filters medications. Name and imprint match as
// case-insensitive substrings, the other fields exactly.
func (s *GormStore) SearchMedications(f domain.MedicationFilter, limit int) ([]domain.Medication, error) {
	tx := s.db.Model(&MedicationModel{})
	if v := strings.TrimSpace(f.Name); v != "" {
		tx = tx.Where("LOWER(name) LIKE ?", likePattern(v))
	}
	if v := strings.TrimSpace(f.Imprint); v != "" {
		tx = tx.Where("LOWER(imprint) LIKE ?", likePattern(v))
	}
	if v := strings.TrimSpace(f.NDC); v != "" {
		tx = tx.Where("ndc = ?", v)
	}
	if v := strings.TrimSpace(f.GTIN); v != "" {
		tx = tx.Where("gtin = ?", v)
	}
	if v := strings.TrimSpace(f.Shape); v != "" {
		tx = tx.Where("shape = ?", v)
	}
	if v := strings.TrimSpace(f.Color); v != "" {
		tx = tx.Where("color = ?", v)
	}
	var models []MedicationModel
	if err := tx.Order("created_at DESC").Limit(normalizeLimit(limit)).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Medication, 0, len(models))
	for _, m := range models {
		out = append(out, medicationFromModel(m))
	}
	return out, nil
}

func likePattern(v string) string {
	v = strings.ToLower(v)
	v = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
	return "%" + v + "%"
}

// DeleteMedication removes a medication and the saved rows that point to it.
// Scan rows keep their dangling reference.
func (s *GormStore) DeleteMedication(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SavedMedicationModel{}, "medication_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&MedicationModel{}, "id = ?", id).Error
	})
}

// RecordScan inserts one scan history row.
func (s *GormStore) RecordScan(e domain.ScanHistoryEntry) error {
	model := scanToModel(e)
	return s.db.Create(&model).Error
}

// ListScansByUser returns the newest scans first with linked medications.
func (s *GormStore) ListScansByUser(userID string, limit int) ([]domain.ScanHistoryEntry, error) {
	var models []ScanHistoryModel
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(normalizeLimit(limit)).
		Find(&models).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		if m.MedicationID != nil {
			ids = append(ids, *m.MedicationID)
		}
	}
	meds, err := s.medicationsByID(ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ScanHistoryEntry, 0, len(models))
	for _, m := range models {
		entry := scanFromModel(m)
		if med, ok := meds[entry.MedicationID]; ok {
			entry.Medication = &med
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *GormStore) medicationsByID(ids []string) (map[string]domain.Medication, error) {
	out := make(map[string]domain.Medication, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []MedicationModel
	if err := s.db.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.ID] = medicationFromModel(m)
	}
	return out, nil
}

// SaveMedication inserts or replaces a saved row.
func (s *GormStore) SaveMedication(sm domain.SavedMedication) error {
	model, err := savedToModel(sm)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notes", "reminder_enabled", "reminder_frequency"}),
	}).Create(&model).Error
}

func (s *GormStore) GetSaved(id string) (domain.SavedMedication, bool, error) {
	var model SavedMedicationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SavedMedication{}, false, nil
		}
		return domain.SavedMedication{}, false, err
	}
	return savedFromModel(model), true, nil
}

// ListSavedByUser returns saved rows newest first with medications attached.
func (s *GormStore) ListSavedByUser(userID string) ([]domain.SavedMedication, error) {
	return s.listSaved("user_id = ?", userID)
}

// ListReminders returns every saved row with reminders enabled.
func (s *GormStore) ListReminders() ([]domain.SavedMedication, error) {
	return s.listSaved("reminder_enabled = ?", true)
}

func (s *GormStore) listSaved(query string, args ...any) ([]domain.SavedMedication, error) {
	var models []SavedMedicationModel
	if err := s.db.Where(query, args...).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.MedicationID)
	}
	meds, err := s.medicationsByID(ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SavedMedication, 0, len(models))
	for _, m := range models {
		saved := savedFromModel(m)
		if med, ok := meds[saved.MedicationID]; ok {
			saved.Medication = &med
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *GormStore) RemoveSaved(id string) error {
	return s.db.Delete(&SavedMedicationModel{}, "id = ?", id).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func profileToModel(p domain.UserProfile) UserProfileModel {
	return UserProfileModel{
		ID:                   p.ID,
		UserID:               p.UserID,
		FirstName:            p.FirstName,
		LastName:             p.LastName,
		PhoneNumber:          p.PhoneNumber,
		Email:                p.Email,
		IsHealthcareProvider: p.IsHealthcareProvider,
		Preferences:          jsonColumn(p.Preferences),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func profileFromModel(m UserProfileModel) domain.UserProfile {
	return domain.UserProfile{
		ID:                   m.ID,
		UserID:               m.UserID,
		FirstName:            m.FirstName,
		LastName:             m.LastName,
		PhoneNumber:          m.PhoneNumber,
		Email:                m.Email,
		IsHealthcareProvider: m.IsHealthcareProvider,
		Preferences:          rawJSON(m.Preferences),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func medicationToModel(m domain.Medication) MedicationModel {
	return MedicationModel{
		ID:                m.ID,
		Name:              m.Name,
		NDC:               m.NDC,
		GTIN:              m.GTIN,
		Imprint:           m.Imprint,
		Shape:             m.Shape,
		Color:             m.Color,
		Size:              m.Size,
		Manufacturer:      m.Manufacturer,
		ActiveIngredients: datatypes.NewJSONType(m.ActiveIngredients),
		Dosage:            m.Dosage,
		Route:             m.Route,
		Packaging:         m.Packaging,
		ImageKey:          m.ImageKey,
		Verified:          m.Verified,
		UserID:            m.UserID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func medicationFromModel(m MedicationModel) domain.Medication {
	return domain.Medication{
		ID:                m.ID,
		Name:              m.Name,
		NDC:               m.NDC,
		GTIN:              m.GTIN,
		Imprint:           m.Imprint,
		Shape:             m.Shape,
		Color:             m.Color,
		Size:              m.Size,
		Manufacturer:      m.Manufacturer,
		ActiveIngredients: m.ActiveIngredients.Data(),
		Dosage:            m.Dosage,
		Route:             m.Route,
		Packaging:         m.Packaging,
		ImageKey:          m.ImageKey,
		Verified:          m.Verified,
		UserID:            m.UserID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func scanToModel(e domain.ScanHistoryEntry) ScanHistoryModel {
	var medID *string
	if v := strings.TrimSpace(e.MedicationID); v != "" {
		medID = &v
	}
	data := jsonColumn(e.ScanData)
	if data == nil {
		data = datatypes.JSON("{}")
	}
	return ScanHistoryModel{
		ID:           e.ID,
		UserID:       e.UserID,
		ScanType:     string(e.ScanType),
		ScanData:     data,
		Result:       jsonColumn(e.Result),
		IsSuccessful: e.IsSuccessful,
		MedicationID: medID,
		CreatedAt:    e.CreatedAt,
	}
}

func scanFromModel(m ScanHistoryModel) domain.ScanHistoryEntry {
	medID := ""
	if m.MedicationID != nil {
		medID = *m.MedicationID
	}
	return domain.ScanHistoryEntry{
		ID:           m.ID,
		UserID:       m.UserID,
		ScanType:     domain.ScanType(m.ScanType),
		ScanData:     rawJSON(m.ScanData),
		Result:       rawJSON(m.Result),
		IsSuccessful: m.IsSuccessful,
		MedicationID: medID,
		CreatedAt:    m.CreatedAt,
	}
}

func savedToModel(sm domain.SavedMedication) (SavedMedicationModel, error) {
	var freq datatypes.JSON
	if sm.ReminderFrequency != nil {
		raw, err := json.Marshal(sm.ReminderFrequency)
		if err != nil {
			return SavedMedicationModel{}, fmt.Errorf("encode reminder frequency: %w", err)
		}
		freq = raw
	}
	return SavedMedicationModel{
		ID:                sm.ID,
		UserID:            sm.UserID,
		MedicationID:      sm.MedicationID,
		Notes:             sm.Notes,
		ReminderEnabled:   sm.ReminderEnabled,
		ReminderFrequency: freq,
		CreatedAt:         sm.CreatedAt,
	}, nil
}

func savedFromModel(m SavedMedicationModel) domain.SavedMedication {
	var freq *domain.ReminderFrequency
	if len(m.ReminderFrequency) > 0 && string(m.ReminderFrequency) != "null" {
		var f domain.ReminderFrequency
		if err := json.Unmarshal(m.ReminderFrequency, &f); err == nil {
			freq = &f
		}
	}
	return domain.SavedMedication{
		ID:                m.ID,
		UserID:            m.UserID,
		MedicationID:      m.MedicationID,
		Notes:             m.Notes,
		ReminderEnabled:   m.ReminderEnabled,
		ReminderFrequency: freq,
		CreatedAt:         m.CreatedAt,
	}
}

func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func rawJSON(col datatypes.JSON) json.RawMessage {
	if len(col) == 0 {
		return nil
	}
	return json.RawMessage(col)
}
