package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pillid/pkg/fda"
	"pillid/pkg/result"
	"pillid/pkg/scan"
	"pillid/pkg/storage"
	"pillid/pkg/store"
)

// Lookup is the drug label search surface the API exposes.
type Lookup interface {
	scan.Lookup
	SearchByActiveIngredient(ctx context.Context, ingredient string, limit int) result.Result[[]fda.Label]
	GetByManufacturer(ctx context.Context, manufacturer string, limit int) result.Result[[]fda.Label]
	GetByApplicationNumber(ctx context.Context, number string) result.Result[fda.Label]
}

// Config holds the collaborators the application is built from.
type Config struct {
	Store       store.Store
	Sessions    store.SessionStore
	Lookup      Lookup
	Vision      scan.Vision
	Objects     storage.ObjectStore
	ImageURLTTL time.Duration
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store       store.Store
	sessions    store.SessionStore
	lookup      Lookup
	scanner     *scan.Scanner
	objects     storage.ObjectStore
	imageURLTTL time.Duration
	now         func() time.Time
}

func New(cfg Config) (*App, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("app: store required")
	case cfg.Sessions == nil:
		return nil, errors.New("app: session store required")
	case cfg.Lookup == nil:
		return nil, errors.New("app: lookup client required")
	case cfg.Vision == nil:
		return nil, errors.New("app: vision client required")
	}
	if cfg.ImageURLTTL <= 0 {
		cfg.ImageURLTTL = 15 * time.Minute
	}
	return &App{
		store:       cfg.Store,
		sessions:    cfg.Sessions,
		lookup:      cfg.Lookup,
		scanner:     scan.NewScanner(cfg.Vision, cfg.Lookup, cfg.Store, cfg.Objects),
		objects:     cfg.Objects,
		imageURLTTL: cfg.ImageURLTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Store exposes the persistence layer to background workers.
func (a *App) Store() store.Store {
	return a.store
}

func securityEvent(ctx context.Context, event, outcome string, attrs ...any) {
	args := append([]any{"event", event, "outcome", outcome}, attrs...)
	level := slog.LevelInfo
	if outcome != "success" {
		level = slog.LevelWarn
	}
	loggerFrom(ctx).Log(ctx, level, "security_event", args...)
}
