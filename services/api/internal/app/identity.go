package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pillid/internal/util"
	"pillid/pkg/auth"
	"pillid/pkg/domain"
	"pillid/pkg/store"
)

func loggerFrom(ctx context.Context) *slog.Logger {
	return util.LoggerFromContext(ctx)
}

// SignUp registers a user, creates an empty profile and opens a session.
func (a *App) SignUp(ctx context.Context, email, password string) (domain.User, string, error) {
	email, err := auth.NormalizeEmail(email)
	if err != nil {
		return domain.User{}, "", invalid("a valid email is required")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", invalid(err.Error())
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		securityEvent(ctx, "signup", "rejected", "reason", "email_exists")
		return domain.User{}, "", ErrEmailExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	now := a.now()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	profile := domain.UserProfile{
		ID:        util.NewID(),
		UserID:    user.ID,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.User{}, "", fmt.Errorf("save profile: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	securityEvent(ctx, "signup", "success", "user_id", user.ID)
	return user, token, nil
}

// Login checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email, err := auth.NormalizeEmail(email)
	if err != nil {
		securityEvent(ctx, "login", "rejected", "reason", "bad_email")
		return domain.User{}, "", ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		securityEvent(ctx, "login", "rejected", "reason", "invalid_credentials")
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	securityEvent(ctx, "login", "success", "user_id", user.ID)
	return user, token, nil
}

// Logout revokes the session token.
func (a *App) Logout(ctx context.Context, token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		securityEvent(ctx, "logout", "failed", "err", err)
		return fmt.Errorf("revoke session: %w", err)
	}
	securityEvent(ctx, "logout", "success")
	return nil
}

// LogoutEverywhere revokes every session of userID issued up to now,
// including token.
func (a *App) LogoutEverywhere(ctx context.Context, userID, token string) error {
	revoker, ok := a.sessions.(store.UserSessionRevoker)
	if !ok {
		return errors.New("session store cannot revoke user sessions")
	}
	if err := revoker.RevokeUserSessions(userID, time.Now().UTC()); err != nil {
		securityEvent(ctx, "logout_all", "failed", "user_id", userID, "err", err)
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	if err := a.sessions.DeleteSession(token); err != nil {
		loggerFrom(ctx).Warn("revoke current session failed", "err", err)
	}
	securityEvent(ctx, "logout_all", "success", "user_id", userID)
	return nil
}

// CurrentUser resolves a session token to its user.
func (a *App) CurrentUser(token string) (domain.User, error) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, ErrUnauthorized
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// CurrentSession describes the token itself.
func (a *App) CurrentSession(token string) (domain.Session, error) {
	inspector, ok := a.sessions.(store.SessionInspector)
	if !ok {
		uid, found, err := a.sessions.GetUserIDByToken(token)
		if err != nil || !found {
			return domain.Session{}, ErrUnauthorized
		}
		return domain.Session{UserID: uid}, nil
	}
	sess, err := inspector.Session(token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return sess, nil
}
