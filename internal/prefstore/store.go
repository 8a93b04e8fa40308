// Package prefstore persists per-user grid preferences: column visibility
// and page size.
package prefstore

import (
	"context"
	"fmt"

	"github.com/pitabwire/gridcore/model"
)

// Store persists PersistedState records by caller-supplied key.
type Store interface {
	// Load returns the record for key. found is false when none exists.
	Load(ctx context.Context, key string) (state model.PersistedState, found bool, err error)
	// Save replaces the record for key.
	Save(ctx context.Context, key string, state model.PersistedState) error
	// Delete removes the record for key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// FormatKey builds the storage key for a grid and user.
func FormatKey(gridID, subject string) string {
	if subject == "" {
		return gridID
	}
	return fmt.Sprintf("%s:%s", gridID, subject)
}

func cloneState(s model.PersistedState) model.PersistedState {
	out := model.PersistedState{PageSize: s.PageSize}
	if s.ColumnVisibility != nil {
		out.ColumnVisibility = make(map[string]bool, len(s.ColumnVisibility))
		for k, v := range s.ColumnVisibility {
			out.ColumnVisibility[k] = v
		}
	}
	return out
}
