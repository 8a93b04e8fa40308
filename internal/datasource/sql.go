package datasource

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pitabwire/gridcore/internal/filter"
	"github.com/pitabwire/gridcore/model"
)

// Row is a result row keyed by column id.
type Row = map[string]any

// Querier is the subset of pgxpool.Pool used by SQLSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// SQLSource answers search requests for one grid definition from a
// PostgreSQL table. Only columns declared in the definition can be
// selected, filtered, sorted or faceted.
type SQLSource struct {
	def     model.GridDefinition
	db      Querier
	builder squirrel.StatementBuilderType
	columns map[string]string
	now     func() time.Time
	breaker *Breaker
}

// NewSQLSource creates a source for def backed by db.
func NewSQLSource(def model.GridDefinition, db Querier) *SQLSource {
	cols := make(map[string]string, len(def.Columns))
	for _, c := range def.Columns {
		cols[c.ID] = c.SourceColumn()
	}
	return &SQLSource{
		def:     def,
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns: cols,
		now:     time.Now,
	}
}

// WithBreaker guards the source with b: fetches fail fast with
// BACKEND_UNAVAILABLE while it is open, and database errors count as
// failures. Rejected requests and cancellations are not recorded.
func (s *SQLSource) WithBreaker(b *Breaker) *SQLSource {
	s.breaker = b
	return s
}

// Fetch counts, pages and facets the rows matching req.
func (s *SQLSource) Fetch(ctx context.Context, req model.SearchRequest) (model.PagedResult[Row], error) {
	if s.breaker == nil {
		return s.fetch(ctx, req)
	}
	if err := s.breaker.Allow(); err != nil {
		return model.PagedResult[Row]{}, model.NewBackendUnavailableError()
	}

	res, err := s.fetch(ctx, req)
	var env *model.ErrorEnvelope
	switch {
	case err == nil:
		s.breaker.Success()
	case errors.As(err, &env), errors.Is(err, context.Canceled):
	default:
		s.breaker.Failure()
	}
	return res, err
}

func (s *SQLSource) fetch(ctx context.Context, req model.SearchRequest) (model.PagedResult[Row], error) {
	var zero model.PagedResult[Row]

	where, err := s.where(req, "")
	if err != nil {
		return zero, err
	}

	countSQL, countArgs, err := s.countQuery(where).ToSql()
	if err != nil {
		return zero, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return zero, fmt.Errorf("count: %w", err)
	}

	q, err := s.selectQuery(req, where)
	if err != nil {
		return zero, err
	}
	query, args, err := q.ToSql()
	if err != nil {
		return zero, fmt.Errorf("build query: %w", err)
	}
	var rows []Row
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return zero, fmt.Errorf("select: %w", err)
	}
	for _, r := range rows {
		normalizeRow(r)
	}

	size := req.PageSize
	if size <= 0 {
		size = total
	}
	res := model.NewPagedResult(rows, max(req.Page, 1), size, total)

	if len(req.FacetColumns) > 0 {
		res.Facets = make(map[string]model.Facet, len(req.FacetColumns))
		for _, col := range req.FacetColumns {
			f, err := s.facet(ctx, req, col)
			if err != nil {
				return zero, err
			}
			res.Facets[col] = f
		}
	}
	return res, nil
}

func (s *SQLSource) countQuery(where squirrel.And) squirrel.SelectBuilder {
	return withWhere(s.builder.Select("COUNT(*)").From(quoteIdent(s.def.Table)), where)
}

func withWhere(q squirrel.SelectBuilder, where squirrel.And) squirrel.SelectBuilder {
	if len(where) == 0 {
		return q
	}
	return q.Where(where)
}

func (s *SQLSource) selectQuery(req model.SearchRequest, where squirrel.And) (squirrel.SelectBuilder, error) {
	cols := make([]string, 0, len(s.def.Columns)+1)
	for _, c := range s.def.Columns {
		cols = append(cols, quoteIdent(c.SourceColumn())+" AS "+quoteIdent(c.ID))
	}
	if s.def.KeyColumn != "" {
		if _, declared := s.columns[s.def.KeyColumn]; !declared {
			cols = append(cols, quoteIdent(s.def.KeyColumn))
		}
	}
	q := withWhere(s.builder.Select(cols...).From(quoteIdent(s.def.Table)), where)

	sorting := req.Sorting
	if len(sorting) == 0 {
		sorting = s.def.DefaultSorting()
	}
	for _, sort := range sorting {
		col, err := s.column(sort.ColumnID)
		if err != nil {
			return q, err
		}
		dir := "ASC"
		if sort.Direction == model.SortDesc {
			dir = "DESC"
		}
		q = q.OrderBy(col + " " + dir)
	}
	if s.def.KeyColumn != "" {
		q = q.OrderBy(quoteIdent(s.def.KeyColumn))
	}

	if req.PageSize > 0 {
		q = q.Limit(uint64(req.PageSize))
		if off := req.Offset(); off > 0 {
			q = q.Offset(uint64(off))
		}
	}
	return q, nil
}

// facet counts the values of col under every filter except col's own facet
// selection.
func (s *SQLSource) facet(ctx context.Context, req model.SearchRequest, id string) (model.Facet, error) {
	col, err := s.column(id)
	if err != nil {
		return model.Facet{}, err
	}
	where, err := s.where(req, id)
	if err != nil {
		return model.Facet{}, err
	}
	query, args, err := withWhere(s.builder.
		Select(col+"::text AS value", "COUNT(*) AS count").
		From(quoteIdent(s.def.Table)), where).
		Where(col + " IS NOT NULL").
		GroupBy(col).
		OrderBy("count DESC", "value").
		ToSql()
	if err != nil {
		return model.Facet{}, fmt.Errorf("build facet %s: %w", id, err)
	}

	var values []model.FacetValue
	if err := pgxscan.Select(ctx, s.db, &values, query, args...); err != nil {
		return model.Facet{}, fmt.Errorf("facet %s: %w", id, err)
	}
	if def, ok := s.def.Column(id); ok && len(def.Options) > 0 {
		for i := range values {
			for _, o := range def.Options {
				if o.Value == values[i].Value {
					values[i].Label = o.Label
					break
				}
			}
		}
	}
	if values == nil {
		values = []model.FacetValue{}
	}
	return model.Facet{ColumnID: id, Values: values, TotalValues: len(values)}, nil
}

// where builds the WHERE conjunction for req, leaving out the facet filter
// on skipFacet.
func (s *SQLSource) where(req model.SearchRequest, skipFacet string) (squirrel.And, error) {
	where := squirrel.And{}

	if search := strings.TrimSpace(req.GlobalSearch); search != "" {
		searchCols := s.def.SearchColumns
		if len(searchCols) == 0 {
			searchCols = model.ColumnIDs(s.def.Columns)
		}
		pattern := "%" + escapeLike(search) + "%"
		or := squirrel.Or{}
		for _, id := range searchCols {
			col, err := s.column(id)
			if err != nil {
				return nil, err
			}
			or = append(or, squirrel.ILike{col + "::text": pattern})
		}
		where = append(where, or)
	}

	state := filter.FromRequest(req.ColumnFilters, nil)
	ids := make([]string, 0, len(state))
	for id := range state {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		f := state[id]
		if !filter.HasValue(f) {
			continue
		}
		col, err := s.column(id)
		if err != nil {
			return nil, err
		}
		if cond := s.condition(col, f); cond != nil {
			where = append(where, cond)
		}
	}

	facetIDs := make([]string, 0, len(req.FacetFilters))
	for id := range req.FacetFilters {
		facetIDs = append(facetIDs, id)
	}
	slices.Sort(facetIDs)
	for _, id := range facetIDs {
		values := req.FacetFilters[id]
		if id == skipFacet || len(values) == 0 {
			continue
		}
		col, err := s.column(id)
		if err != nil {
			return nil, err
		}
		where = append(where, squirrel.Eq{col + "::text": values})
	}
	return where, nil
}

func (s *SQLSource) column(id string) (string, error) {
	col, ok := s.columns[id]
	if !ok {
		return "", model.NewBadRequestError(fmt.Sprintf("unknown column %q", id))
	}
	return quoteIdent(col), nil
}

// condition translates one filter on the quoted column col.
func (s *SQLSource) condition(col string, f model.FilterValue) squirrel.Sqlizer {
	switch f.FilterOperator() {
	case model.OpIsEmpty:
		return squirrel.Expr("(" + col + " IS NULL OR " + col + "::text = '')")
	case model.OpIsNotEmpty:
		return squirrel.Expr("(" + col + " IS NOT NULL AND " + col + "::text <> '')")
	}

	switch v := f.(type) {
	case model.TextFilter:
		return textCondition(col, v)
	case model.NumberFilter:
		return numberCondition(col, v)
	case model.DateFilter:
		return s.dateCondition(col, v)
	case model.SelectFilter:
		if v.Operator == model.OpIsNoneOf {
			return squirrel.NotEq{col + "::text": v.Values}
		}
		return squirrel.Eq{col + "::text": v.Values}
	case model.BooleanFilter:
		switch v.Value {
		case model.BoolTrue:
			return squirrel.Eq{col: true}
		case model.BoolFalse:
			return squirrel.Eq{col: false}
		}
	case model.RangeFilter:
		and := squirrel.And{}
		if v.Min.Valid {
			and = append(and, squirrel.GtOrEq{col: v.Min.Decimal.String()})
		}
		if v.Max.Valid {
			and = append(and, squirrel.LtOrEq{col: v.Max.Decimal.String()})
		}
		return and
	}
	return nil
}

func textCondition(col string, f model.TextFilter) squirrel.Sqlizer {
	text := col + "::text"
	pattern := escapeLike(f.Value)
	switch f.Operator {
	case model.OpNotContains:
		return squirrel.NotILike{text: "%" + pattern + "%"}
	case model.OpEquals:
		return squirrel.Expr("LOWER("+text+") = LOWER(?)", f.Value)
	case model.OpNotEquals:
		return squirrel.Expr("LOWER("+text+") <> LOWER(?)", f.Value)
	case model.OpStartsWith:
		return squirrel.ILike{text: pattern + "%"}
	case model.OpEndsWith:
		return squirrel.ILike{text: "%" + pattern}
	default:
		return squirrel.ILike{text: "%" + pattern + "%"}
	}
}

func numberCondition(col string, f model.NumberFilter) squirrel.Sqlizer {
	n := f.Value.Decimal.String()
	switch f.Operator {
	case model.OpNotEquals:
		return squirrel.NotEq{col: n}
	case model.OpGreaterThan:
		return squirrel.Gt{col: n}
	case model.OpGreaterThanOrEqual:
		return squirrel.GtOrEq{col: n}
	case model.OpLessThan:
		return squirrel.Lt{col: n}
	case model.OpLessThanOrEqual:
		return squirrel.LtOrEq{col: n}
	case model.OpBetween:
		lo, hi := f.Value.Decimal, f.ValueTo.Decimal
		if hi.LessThan(lo) {
			lo, hi = hi, lo
		}
		return squirrel.And{
			squirrel.GtOrEq{col: lo.String()},
			squirrel.LtOrEq{col: hi.String()},
		}
	default:
		return squirrel.Eq{col: n}
	}
}

func (s *SQLSource) dateCondition(col string, f model.DateFilter) squirrel.Sqlizer {
	now := s.now()
	if from, to, ok := filter.RelativeDateRange(f.Operator, now); ok {
		return dayBounds(col, from, to)
	}
	loc := now.Location()
	from, to := filter.DayRange(*f.Value, loc)
	switch f.Operator {
	case model.OpBefore:
		return squirrel.Lt{col: from}
	case model.OpAfter:
		return squirrel.GtOrEq{col: to}
	case model.OpBetween:
		endFrom, endTo := filter.DayRange(*f.ValueTo, loc)
		if endFrom.Before(from) {
			from, endTo = endFrom, to
		}
		return dayBounds(col, from, endTo)
	default:
		return dayBounds(col, from, to)
	}
}

func dayBounds(col string, from, to time.Time) squirrel.Sqlizer {
	return squirrel.And{squirrel.GtOrEq{col: from}, squirrel.Lt{col: to}}
}

// quoteIdent quotes a PostgreSQL identifier. Dotted names are quoted per
// part.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// normalizeRow converts NUMERIC cells into decimals so they sort, match
// and format like in-memory numbers.
func normalizeRow(r Row) {
	for k, v := range r {
		n, ok := v.(pgtype.Numeric)
		if !ok {
			continue
		}
		if !n.Valid {
			r[k] = nil
			continue
		}
		raw, err := n.Value()
		if err != nil {
			continue
		}
		if str, ok := raw.(string); ok {
			if d, err := decimal.NewFromString(str); err == nil {
				r[k] = d
			}
		}
	}
}
