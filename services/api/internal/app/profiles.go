package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pillid/internal/util"
	"pillid/pkg/domain"
)

const maxProfileField = 100

// ProfilePatch carries the profile fields a user may change. Nil fields are
// left as they are.
type ProfilePatch struct {
	FirstName            *string         `json:"firstName"`
	LastName             *string         `json:"lastName"`
	PhoneNumber          *string         `json:"phoneNumber"`
	IsHealthcareProvider *bool           `json:"isHealthcareProvider"`
	Preferences          json.RawMessage `json:"preferences"`
}

// GetProfile returns the user's profile, creating an empty one for users
// that predate profiles.
func (a *App) GetProfile(user domain.User) (domain.UserProfile, error) {
	profile, ok, err := a.store.GetProfileByUser(user.ID)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	if ok {
		return profile, nil
	}
	now := a.now()
	profile = domain.UserProfile{
		ID:        util.NewID(),
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile applies patch to the user's profile.
func (a *App) UpdateProfile(user domain.User, patch ProfilePatch) (domain.UserProfile, error) {
	profile, err := a.GetProfile(user)
	if err != nil {
		return domain.UserProfile{}, err
	}
	for _, f := range []struct {
		name string
		src  *string
		dst  *string
	}{
		{"firstName", patch.FirstName, &profile.FirstName},
		{"lastName", patch.LastName, &profile.LastName},
		{"phoneNumber", patch.PhoneNumber, &profile.PhoneNumber},
	} {
		if f.src == nil {
			continue
		}
		v := strings.TrimSpace(*f.src)
		if len(v) > maxProfileField {
			return domain.UserProfile{}, invalid(fmt.Sprintf("%s is too long", f.name))
		}
		*f.dst = v
	}
	if patch.IsHealthcareProvider != nil {
		profile.IsHealthcareProvider = *patch.IsHealthcareProvider
	}
	if len(patch.Preferences) > 0 {
		prefs := bytes.TrimSpace(patch.Preferences)
		if bytes.Equal(prefs, []byte("null")) {
			profile.Preferences = nil
		} else {
			var obj map[string]any
			if err := json.Unmarshal(prefs, &obj); err != nil {
				return domain.UserProfile{}, invalid("preferences must be a JSON object")
			}
			profile.Preferences = prefs
		}
	}
	profile.UpdatedAt = a.now()
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}
