package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/model"
)

const maxSearchBody = 1 << 20

func handleSearch(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := GridFrom(r.Context())
		src, ok := deps.Sources(def.ID)
		if !ok {
			WriteError(w, model.NewMisconfiguredError(fmt.Sprintf("grid %q has no data source", def.ID)))
			return
		}

		var req model.SearchRequest
		if r.ContentLength != 0 {
			dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody))
			if err := dec.Decode(&req); err != nil {
				WriteBadRequest(w, "invalid search request body")
				return
			}
		}
		if details := normalizeSearch(&req, def, deps.Config.Grid); len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		ctx, span := observability.StartSpan(r.Context(), "grid.search",
			observability.AttrGridID.String(def.ID),
			observability.AttrPageIndex.Int(req.Page-1),
			observability.AttrPageSize.Int(req.PageSize),
		)
		defer span.End()

		if deps.Metrics != nil {
			deps.Metrics.FetchStarted(def.ID)
		}
		start := time.Now()
		res, err := src.Fetch(ctx, req)
		if deps.Metrics != nil {
			deps.Metrics.FetchFinished(def.ID, outcomeOf(ctx, err), time.Since(start))
		}
		observability.EndSpanWithError(span, err)

		if err != nil {
			observability.RequestLogger(ctx, deps.Logger).Warn("search failed", zap.Error(err))
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

// normalizeSearch fills request defaults from the definition and checks
// the paging bounds.
func normalizeSearch(req *model.SearchRequest, def model.GridDefinition, cfg config.GridConfig) []model.FieldError {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = pageSizeFor(def, cfg)
	}
	if len(req.Sorting) == 0 {
		req.Sorting = def.DefaultSorting()
	}
	if req.FacetColumns == nil {
		req.FacetColumns = model.FacetedColumnIDs(def.Columns)
	}
	if req.ColumnFilters == nil {
		req.ColumnFilters = []model.ColumnFilter{}
	}

	var details []model.FieldError
	if req.Page < 1 {
		details = append(details, model.FieldError{
			Field:   "page",
			Code:    "RANGE",
			Message: "page must be at least 1",
		})
	}
	if req.PageSize < 1 || (cfg.MaxPageSize > 0 && req.PageSize > cfg.MaxPageSize) {
		details = append(details, model.FieldError{
			Field:   "pageSize",
			Code:    "RANGE",
			Message: fmt.Sprintf("pageSize must be between 1 and %d", cfg.MaxPageSize),
		})
	}
	return details
}

func outcomeOf(ctx context.Context, err error) fetch.Outcome {
	switch {
	case err == nil:
		return fetch.OutcomeSuccess
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return fetch.OutcomeCancelled
	default:
		return fetch.OutcomeError
	}
}
