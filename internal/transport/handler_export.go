package transport

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/grid"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/model"
)

// handleExport restores a grid from the URL state in the query, then runs
// an export of the requested scope and streams the file back. Export
// parameters are format, scope, filename, timestamp, columns, selected
// (row ids for the selected scope) and view (a stored preference key whose
// column visibility applies).
func handleExport(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := GridFrom(r.Context())
		src, ok := deps.Sources(def.ID)
		if !ok {
			WriteError(w, model.NewMisconfiguredError(fmt.Sprintf("grid %q has no data source", def.ID)))
			return
		}

		q := r.URL.Query()
		cfg, err := exportConfigFrom(q.Get, def, deps.Config.Export.IncludeTimestamp)
		if err != nil {
			WriteError(w, err)
			return
		}
		writer, err := deps.Exports.Writer(cfg.Format)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return
		}

		logger := observability.RequestLogger(r.Context(), deps.Logger)
		ctx, span := observability.StartSpan(r.Context(), "grid.export.request",
			observability.AttrGridID.String(def.ID),
			observability.AttrExportFormat.String(string(cfg.Format)),
			observability.AttrExportScope.String(string(cfg.Scope)),
		)
		defer span.End()

		limit := def.MaxExportRows
		if limit <= 0 {
			limit = deps.Config.Export.MaxRows
		}

		limiter := newRowLimiter(src, limit)
		opts := grid.Options[datasource.Row]{
			Name:      def.ID,
			Fetcher:   limiter,
			RowID:     rowIDFor(def),
			Columns:   def.Columns,
			Cell:      func(row datasource.Row, id string) any { return row[id] },
			PageSize:  pageSizeFor(def, deps.Config.Grid),
			Sorting:   def.DefaultSorting(),
			Navigator: discardNavigator{},
			URL:       q,
			Debounce:  -1,
			Logger:    logger,
			Notifier:  logNotifier{logger: logger},
			Export: export.PipelineOptions{
				Registry: deps.Exports,
				Logger:   logger,
			},
		}
		if deps.Metrics != nil {
			opts.FetchObserver = deps.Metrics
			opts.Export.Observer = deps.Metrics
		}
		if view := q.Get("view"); view != "" && deps.Preferences != nil {
			st, found, err := deps.Preferences.Load(ctx, prefstore.FormatKey(def.ID, view))
			if err != nil {
				logger.Warn("loading export view failed", zap.String("view", view), zap.Error(err))
			} else if found {
				opts.ColumnVisibility = st.ColumnVisibility
				if st.PageSize > 0 {
					opts.PageSize = st.PageSize
				}
			}
		}

		g, err := grid.New(opts)
		if err != nil {
			WriteError(w, err)
			return
		}
		defer g.Close()

		g.Wait()
		if snap := g.Snapshot(); snap.Err != nil {
			observability.EndSpanWithError(span, snap.Err)
			WriteError(w, snap.Err)
			return
		}
		if cfg.Scope == model.ScopeSelectedRows {
			for _, id := range splitList(q.Get("selected")) {
				g.ToggleRow(id)
			}
		}

		sink := &export.BufferSink{}
		res := g.Export(ctx, cfg, export.Options[datasource.Row]{
			Sink:       sink,
			DateLayout: deps.Config.Export.DateLayout,
		})
		if !res.Success {
			err := model.NewExportFailedError(res.Error)
			observability.EndSpanWithError(span, err)
			WriteError(w, err)
			return
		}

		w.Header().Set("Content-Type", writer.ContentType())
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
		w.Header().Set("X-Export-Row-Count", strconv.Itoa(res.RowCount))
		if truncated, total := limiter.Truncated(); truncated {
			logger.Warn("export truncated", zap.Int("limit", limit), zap.Int("matched", total))
			w.Header().Set("X-Export-Truncated", "true")
			w.Header().Set("X-Export-Total-Rows", strconv.Itoa(total))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(sink.Bytes()); err != nil {
			logger.Warn("export response write failed", zap.Error(err))
		}
	}
}

// exportConfigFrom reads the export parameters. Format defaults to csv,
// scope to filtered rows and filename to the grid id.
func exportConfigFrom(get func(string) string, def model.GridDefinition, includeTimestamp bool) (model.ExportConfig, error) {
	cfg := model.ExportConfig{
		Format:           model.ExportFormat(strings.ToLower(get("format"))),
		Scope:            model.ExportScope(strings.ToLower(get("scope"))),
		Filename:         get("filename"),
		Columns:          splitList(get("columns")),
		IncludeTimestamp: includeTimestamp,
	}
	if cfg.Format == "" {
		cfg.Format = model.FormatCSV
	}
	if cfg.Scope == "" {
		cfg.Scope = model.ScopeFilteredRows
	}
	if cfg.Filename == "" {
		cfg.Filename = def.ID
	}
	if ts := get("timestamp"); ts != "" {
		v, err := strconv.ParseBool(ts)
		if err != nil {
			return cfg, model.NewBadRequestError(fmt.Sprintf("invalid timestamp flag %q", ts))
		}
		cfg.IncludeTimestamp = v
	}

	switch cfg.Scope {
	case model.ScopeCurrentPage, model.ScopeAllPages, model.ScopeFilteredRows, model.ScopeSelectedRows:
	default:
		return cfg, model.NewBadRequestError(fmt.Sprintf("unknown export scope %q", cfg.Scope))
	}
	if !def.AllowsExport(cfg.Format) {
		return cfg, model.NewBadRequestError(fmt.Sprintf("export format %q is not enabled for grid %q", cfg.Format, def.ID))
	}
	for _, id := range cfg.Columns {
		if _, ok := def.Column(id); !ok {
			return cfg, model.NewBadRequestError(fmt.Sprintf("unknown export column %q", id))
		}
	}
	return cfg, nil
}

// rowLimiter caps the page size of every request at limit rows and
// remembers whether a capped request left matching rows behind.
type rowLimiter struct {
	src   fetch.Fetcher[datasource.Row]
	limit int

	mu        sync.Mutex
	truncated bool
	total     int
}

func newRowLimiter(src fetch.Fetcher[datasource.Row], limit int) *rowLimiter {
	return &rowLimiter{src: src, limit: limit}
}

func (l *rowLimiter) Fetch(ctx context.Context, req model.SearchRequest) (model.PagedResult[datasource.Row], error) {
	capped := l.limit > 0 && req.PageSize > l.limit
	if capped {
		req.PageSize = l.limit
	}
	res, err := l.src.Fetch(ctx, req)
	if err == nil && capped && res.Total > len(res.Data) {
		l.mu.Lock()
		l.truncated = true
		l.total = max(l.total, res.Total)
		l.mu.Unlock()
	}
	return res, err
}

// Truncated reports whether a capped fetch returned fewer rows than
// matched, and the largest total seen.
func (l *rowLimiter) Truncated() (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.truncated, l.total
}

// rowIDFor reads the key of a row. Sources always return the key under
// the key column name.
func rowIDFor(def model.GridDefinition) func(datasource.Row) string {
	return func(row datasource.Row) string {
		return fmt.Sprint(row[def.KeyColumn])
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// discardNavigator lets a server-side grid decode URL state without a
// browser to push updates to.
type discardNavigator struct{}

func (discardNavigator) Replace(url.Values) {}

// logNotifier routes grid notifications to the request logger.
type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) Success(message string) {
	n.logger.Info(message)
}

func (n logNotifier) Error(message string, err error) {
	n.logger.Warn(message, zap.Error(err))
}

var _ model.Notifier = logNotifier{}
