package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/model"
)

const maxPreferencesBody = 64 << 10

func handleGetPreferences(store prefstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := GridFrom(r.Context())
		key := prefstore.FormatKey(def.ID, chi.URLParam(r, "key"))

		ctx, span := observability.StartSpan(r.Context(), "grid.preferences.load",
			observability.AttrGridID.String(def.ID),
			observability.AttrPreferenceKey.String(key),
		)
		defer span.End()

		st, ok, err := store.Load(ctx, key)
		observability.EndSpanWithError(span, err)
		if err != nil {
			observability.RequestLogger(ctx, logger).Warn("preference load failed",
				zap.String("key", key), zap.Error(err))
			WriteError(w, model.NewBackendUnavailableError())
			return
		}
		if !ok {
			WriteNotFound(w, fmt.Sprintf("no preferences stored for %q", chi.URLParam(r, "key")))
			return
		}
		WriteJSON(w, http.StatusOK, st)
	}
}

func handlePutPreferences(cfg config.GridConfig, store prefstore.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := GridFrom(r.Context())
		key := prefstore.FormatKey(def.ID, chi.URLParam(r, "key"))

		var st model.PersistedState
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreferencesBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&st); err != nil {
			WriteBadRequest(w, "invalid preferences body")
			return
		}
		if details := validatePreferences(st, def, cfg); len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		ctx, span := observability.StartSpan(r.Context(), "grid.preferences.save",
			observability.AttrGridID.String(def.ID),
			observability.AttrPreferenceKey.String(key),
		)
		defer span.End()

		err := store.Save(ctx, key, st)
		observability.EndSpanWithError(span, err)
		if err != nil {
			observability.RequestLogger(ctx, logger).Warn("preference save failed",
				zap.String("key", key), zap.Error(err))
			WriteError(w, model.NewBackendUnavailableError())
			return
		}
		WriteJSON(w, http.StatusOK, st)
	}
}

// validatePreferences checks that every visibility entry names a column of
// the grid, that at least one column stays visible, and that the page size
// is allowed.
func validatePreferences(st model.PersistedState, def model.GridDefinition, cfg config.GridConfig) []model.FieldError {
	var details []model.FieldError

	hidden := 0
	for id, visible := range st.ColumnVisibility {
		col, ok := def.Column(id)
		if !ok {
			details = append(details, model.FieldError{
				Field:   "columnVisibility." + id,
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("unknown column %q", id),
			})
			continue
		}
		if !visible {
			hidden++
			if !col.CanHide() {
				details = append(details, model.FieldError{
					Field:   "columnVisibility." + id,
					Code:    "NOT_HIDEABLE",
					Message: fmt.Sprintf("column %q cannot be hidden", id),
				})
			}
		}
	}
	if len(def.Columns) > 0 && hidden == len(def.Columns) {
		details = append(details, model.FieldError{
			Field:   "columnVisibility",
			Code:    "INVALID",
			Message: "at least one column must stay visible",
		})
	}

	switch {
	case st.PageSize < 0 || (cfg.MaxPageSize > 0 && st.PageSize > cfg.MaxPageSize):
		details = append(details, model.FieldError{
			Field:   "pageSize",
			Code:    "RANGE",
			Message: fmt.Sprintf("pageSize must be between 0 and %d", cfg.MaxPageSize),
		})
	case st.PageSize > 0 && len(def.PageSizeOptions) > 0 && !slices.Contains(def.PageSizeOptions, st.PageSize):
		details = append(details, model.FieldError{
			Field:   "pageSize",
			Code:    "INVALID_ENUM",
			Message: fmt.Sprintf("pageSize must be one of %v", def.PageSizeOptions),
		})
	}

	slices.SortFunc(details, func(a, b model.FieldError) int {
		return strings.Compare(a.Field, b.Field)
	})
	return details
}
