// Package urlstate maps grid pagination, sorting, search and filters to
// and from URL query parameters.
package urlstate

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pitabwire/gridcore/internal/filter"
	"github.com/pitabwire/gridcore/model"
)

// Fields selects which parts of the state are synchronized.
type Fields uint8

// Synchronizable fields.
const (
	FieldPagination Fields = 1 << iota
	FieldSorting
	FieldSearch
	FieldFilters

	AllFields = FieldPagination | FieldSorting | FieldSearch | FieldFilters
)

// Has reports whether f includes field.
func (f Fields) Has(field Fields) bool { return f&field != 0 }

// Options configures the parameter mapping.
type Options struct {
	// Prefix is prepended to every key, for pages with several grids.
	Prefix string
	// Fields defaults to AllFields when zero.
	Fields          Fields
	DefaultPageSize int
}

func (o Options) fields() Fields {
	if o.Fields == 0 {
		return AllFields
	}
	return o.Fields
}

func (o Options) key(name string) string { return o.Prefix + name }

// Parameter names before prefixing.
const (
	KeyPage     = "page"
	KeyPageSize = "pageSize"
	KeySort     = "sort"
	KeySearch   = "search"
	KeyFilter   = "filter"
)

// State is the URL-visible part of a grid's state. PageIndex is zero-based.
type State struct {
	PageIndex    int
	PageSize     int
	Sorting      []model.SortSpec
	GlobalSearch string
	Filters      model.ColumnFilterState
}

// Encode renders st as query parameters. Default values are left out: the
// first page, the default page size, empty sorting, search and filters.
func Encode(st State, opts Options) url.Values {
	v := url.Values{}
	f := opts.fields()

	if f.Has(FieldPagination) {
		if st.PageIndex > 0 {
			v.Set(opts.key(KeyPage), strconv.Itoa(st.PageIndex+1))
		}
		if st.PageSize > 0 && st.PageSize != opts.DefaultPageSize {
			v.Set(opts.key(KeyPageSize), strconv.Itoa(st.PageSize))
		}
	}
	if f.Has(FieldSorting) && len(st.Sorting) > 0 {
		v.Set(opts.key(KeySort), EncodeSorting(st.Sorting))
	}
	if f.Has(FieldSearch) && strings.TrimSpace(st.GlobalSearch) != "" {
		v.Set(opts.key(KeySearch), st.GlobalSearch)
	}
	if f.Has(FieldFilters) {
		if s := EncodeFilters(st.Filters); s != "" {
			v.Set(opts.key(KeyFilter), s)
		}
	}
	return v
}

// Decode reads the synchronized fields from v. Missing or invalid values
// decode to their defaults.
func Decode(v url.Values, opts Options) State {
	st := State{PageSize: opts.DefaultPageSize}
	f := opts.fields()

	if f.Has(FieldPagination) {
		if page, err := strconv.Atoi(v.Get(opts.key(KeyPage))); err == nil && page > 1 {
			st.PageIndex = page - 1
		}
		if size, err := strconv.Atoi(v.Get(opts.key(KeyPageSize))); err == nil && size > 0 {
			st.PageSize = size
		}
	}
	if f.Has(FieldSorting) {
		st.Sorting = DecodeSorting(v.Get(opts.key(KeySort)))
	}
	if f.Has(FieldSearch) {
		st.GlobalSearch = v.Get(opts.key(KeySearch))
	}
	if f.Has(FieldFilters) {
		st.Filters = DecodeFilters(v.Get(opts.key(KeyFilter)))
	}
	return st
}

// Merge replaces the synchronized keys of current with those of st,
// keeping every other parameter.
func Merge(current url.Values, st State, opts Options) url.Values {
	out := url.Values{}
	for k, vals := range current {
		out[k] = append([]string(nil), vals...)
	}
	f := opts.fields()
	if f.Has(FieldPagination) {
		out.Del(opts.key(KeyPage))
		out.Del(opts.key(KeyPageSize))
	}
	if f.Has(FieldSorting) {
		out.Del(opts.key(KeySort))
	}
	if f.Has(FieldSearch) {
		out.Del(opts.key(KeySearch))
	}
	if f.Has(FieldFilters) {
		out.Del(opts.key(KeyFilter))
	}
	for k, vals := range Encode(st, opts) {
		out[k] = vals
	}
	return out
}

// EncodeSorting renders "columnId:asc,columnId:desc".
func EncodeSorting(sorting []model.SortSpec) string {
	parts := make([]string, 0, len(sorting))
	for _, s := range sorting {
		dir := s.Direction
		if dir != model.SortDesc {
			dir = model.SortAsc
		}
		parts = append(parts, s.ColumnID+":"+string(dir))
	}
	return strings.Join(parts, ",")
}

// DecodeSorting parses the EncodeSorting form. A missing or unknown
// direction is ascending.
func DecodeSorting(s string) []model.SortSpec {
	if s == "" {
		return nil
	}
	var out []model.SortSpec
	for _, part := range strings.Split(s, ",") {
		id, dir, _ := strings.Cut(part, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		d := model.SortAsc
		if strings.EqualFold(strings.TrimSpace(dir), string(model.SortDesc)) {
			d = model.SortDesc
		}
		out = append(out, model.SortSpec{ColumnID: id, Direction: d})
	}
	return out
}

// EncodeFilters renders the active filters as "columnId:value|..." where
// value is the URL-escaped compact JSON of the wire filter. Columns are
// sorted by id.
func EncodeFilters(state model.ColumnFilterState) string {
	active := filter.Active(state)
	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		data, err := filter.Encode(id, active[id])
		if err != nil {
			continue
		}
		parts = append(parts, id+":"+url.QueryEscape(data))
	}
	return strings.Join(parts, "|")
}

// DecodeFilters parses the EncodeFilters form. A value that is not a JSON
// filter object is read as a text contains filter.
func DecodeFilters(s string) model.ColumnFilterState {
	if s == "" {
		return nil
	}
	out := model.ColumnFilterState{}
	for _, part := range strings.Split(s, "|") {
		id, raw, ok := strings.Cut(part, ":")
		if !ok || id == "" {
			continue
		}
		value, err := url.QueryUnescape(raw)
		if err != nil {
			value = raw
		}
		out[id] = decodeFilterValue(id, value)
	}
	return out
}

func decodeFilterValue(id, value string) model.FilterValue {
	if strings.HasPrefix(strings.TrimSpace(value), "{") {
		if cf, err := filter.Decode(value); err == nil {
			cf.ColumnID = id
			return filter.Deserialize(cf)
		}
	}
	var s string
	if err := json.Unmarshal([]byte(value), &s); err == nil {
		value = s
	}
	return model.TextFilter{Operator: model.OpContains, Value: value}
}

// Navigator replaces the current query string without adding a history
// entry.
type Navigator interface {
	Replace(values url.Values)
}

// Synchronizer pushes state changes to a Navigator, skipping updates that
// would not change the URL.
type Synchronizer struct {
	opts Options
	nav  Navigator

	mu      sync.Mutex
	current url.Values
	last    string
}

// NewSynchronizer creates a Synchronizer starting from the current query.
func NewSynchronizer(nav Navigator, current url.Values, opts Options) *Synchronizer {
	if current == nil {
		current = url.Values{}
	}
	return &Synchronizer{opts: opts, nav: nav, current: current, last: current.Encode()}
}

// Initial decodes the state carried by the starting query.
func (s *Synchronizer) Initial() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Decode(s.current, s.opts)
}

// Sync writes st into the query and calls the Navigator if it changed.
// It reports whether navigation happened.
func (s *Synchronizer) Sync(st State) bool {
	s.mu.Lock()
	next := Merge(s.current, st, s.opts)
	enc := next.Encode()
	if enc == s.last {
		s.mu.Unlock()
		return false
	}
	s.current = next
	s.last = enc
	s.mu.Unlock()

	if s.nav != nil {
		s.nav.Replace(next)
	}
	return true
}
