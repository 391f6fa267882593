package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pillid/internal/util"
	"pillid/pkg/domain"
	"pillid/pkg/store"
)

// MedicationInput is the user editable part of a medication. On update nil
// fields are left as they are.
type MedicationInput struct {
	Name              *string              `json:"name"`
	NDC               *string              `json:"ndc"`
	GTIN              *string              `json:"gtin"`
	Imprint           *string              `json:"imprint"`
	Shape             *string              `json:"shape"`
	Color             *string              `json:"color"`
	Size              *float64             `json:"size"`
	Manufacturer      *string              `json:"manufacturer"`
	ActiveIngredients *[]domain.Ingredient `json:"activeIngredients"`
	Dosage            *string              `json:"dosage"`
	Route             *string              `json:"route"`
	Packaging         *string              `json:"packaging"`
}

func (in MedicationInput) apply(med *domain.Medication) error {
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{in.Name, &med.Name},
		{in.NDC, &med.NDC},
		{in.GTIN, &med.GTIN},
		{in.Imprint, &med.Imprint},
		{in.Shape, &med.Shape},
		{in.Color, &med.Color},
		{in.Manufacturer, &med.Manufacturer},
		{in.Dosage, &med.Dosage},
		{in.Route, &med.Route},
		{in.Packaging, &med.Packaging},
	} {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
	if in.Size != nil {
		if *in.Size <= 0 {
			return invalid("size must be positive")
		}
		size := *in.Size
		med.Size = &size
	}
	if in.ActiveIngredients != nil {
		med.ActiveIngredients = append([]domain.Ingredient(nil), (*in.ActiveIngredients)...)
	}
	if med.Name == "" {
		return invalid("name is required")
	}
	return nil
}

// GetMedication returns one medication from the shared catalog.
func (a *App) GetMedication(id string) (domain.Medication, error) {
	med, ok, err := a.store.GetMedication(id)
	if err != nil {
		return domain.Medication{}, fmt.Errorf("get medication: %w", err)
	}
	if !ok {
		return domain.Medication{}, ErrNotFound
	}
	return med, nil
}

// SearchMedications filters the catalog.
func (a *App) SearchMedications(filter domain.MedicationFilter, limit int) ([]domain.Medication, error) {
	meds, err := a.store.SearchMedications(filter, limit)
	if err != nil {
		return nil, fmt.Errorf("search medications: %w", err)
	}
	return meds, nil
}

// CreateMedication adds a user entered, unverified medication.
func (a *App) CreateMedication(user domain.User, in MedicationInput) (domain.Medication, error) {
	now := a.now()
	med := domain.Medication{
		ID:        util.NewID(),
		UserID:    user.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(&med); err != nil {
		return domain.Medication{}, err
	}
	if err := a.store.CreateMedication(med); err != nil {
		return domain.Medication{}, fmt.Errorf("create medication: %w", err)
	}
	return med, nil
}

// UpdateMedication edits a medication the user owns.
func (a *App) UpdateMedication(user domain.User, id string, in MedicationInput) (domain.Medication, error) {
	med, err := a.ownedMedication(user, id)
	if err != nil {
		return domain.Medication{}, err
	}
	if err := in.apply(&med); err != nil {
		return domain.Medication{}, err
	}
	med.UpdatedAt = a.now()
	if err := a.store.UpdateMedication(med); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Medication{}, ErrNotFound
		}
		return domain.Medication{}, fmt.Errorf("update medication: %w", err)
	}
	return med, nil
}

// DeleteMedication removes a medication the user owns together with its
// stored image.
func (a *App) DeleteMedication(ctx context.Context, user domain.User, id string) error {
	med, err := a.ownedMedication(user, id)
	if err != nil {
		return err
	}
	if err := a.store.DeleteMedication(id); err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	if med.ImageKey != "" && a.objects != nil {
		if err := a.objects.Delete(ctx, med.ImageKey); err != nil {
			loggerFrom(ctx).Warn("delete medication image failed", "medication_id", id, "err", err)
		}
	}
	return nil
}

// MedicationImageURL returns a short lived URL for the medication's image
// and when it stops working.
func (a *App) MedicationImageURL(ctx context.Context, id string) (string, time.Time, error) {
	med, err := a.GetMedication(id)
	if err != nil {
		return "", time.Time{}, err
	}
	if med.ImageKey == "" || a.objects == nil {
		return "", time.Time{}, ErrNoImage
	}
	expires := a.now().Add(a.imageURLTTL)
	url, err := a.objects.PresignGet(ctx, med.ImageKey, a.imageURLTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign image: %w", err)
	}
	return url, expires, nil
}

func (a *App) ownedMedication(user domain.User, id string) (domain.Medication, error) {
	med, err := a.GetMedication(id)
	if err != nil {
		return domain.Medication{}, err
	}
	if med.UserID != user.ID {
		return domain.Medication{}, ErrForbidden
	}
	return med, nil
}
