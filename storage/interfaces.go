package storage

import "willhaben-monitor/models"

// CursorStore is the interface any cursor persistence backend must satisfy.
type CursorStore interface {
	// Load returns the stored cursor, or (nil, nil) on first run.
	Load() (*models.Cursor, error)
	// Save durably replaces the stored cursor.
	Save(cursor *models.Cursor) error
}
