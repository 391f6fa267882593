package app

import (
	"context"
	"errors"
	"fmt"

	"pillid/pkg/domain"
	"pillid/pkg/scan"
)

// Scan runs one identification attempt for the user.
func (a *App) Scan(ctx context.Context, user domain.User, req scan.Request) (scan.Outcome, error) {
	out, err := a.scanner.Scan(ctx, user.ID, req)
	if err != nil {
		switch {
		case errors.Is(err, scan.ErrEmptyInput), errors.Is(err, scan.ErrInvalidImage), errors.Is(err, scan.ErrUnknownType):
			return scan.Outcome{}, invalid(err.Error())
		}
		return scan.Outcome{}, fmt.Errorf("scan: %w", err)
	}
	return out, nil
}

// ListScans returns the user's scan history, newest first.
func (a *App) ListScans(user domain.User, limit int) ([]domain.ScanHistoryEntry, error) {
	scans, err := a.store.ListScansByUser(user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scans, nil
}
