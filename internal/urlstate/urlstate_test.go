package urlstate

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/model"
)

func TestEncode_omitsDefaults(t *testing.T) {
	v := Encode(State{PageIndex: 0, PageSize: 25}, Options{DefaultPageSize: 25})
	assert.Empty(t, v)
}

func TestEncode_pageIsOneBased(t *testing.T) {
	v := Encode(State{PageIndex: 2, PageSize: 50}, Options{DefaultPageSize: 25})
	assert.Equal(t, "3", v.Get("page"))
	assert.Equal(t, "50", v.Get("pageSize"))
}

func TestEncodeDecode_roundTrip(t *testing.T) {
	opts := Options{Prefix: "orders_", DefaultPageSize: 10}
	in := State{
		PageIndex:    4,
		PageSize:     100,
		Sorting:      []model.SortSpec{{ColumnID: "created", Direction: model.SortDesc}, {ColumnID: "name", Direction: model.SortAsc}},
		GlobalSearch: "acme corp",
		Filters: model.ColumnFilterState{
			"status": model.SelectFilter{Operator: model.OpIsAnyOf, Values: []string{"paid", "open|pending"}},
			"name":   model.TextFilter{Operator: model.OpStartsWith, Value: "a:b"},
			"empty":  model.TextFilter{Operator: model.OpContains},
		},
	}
	v := Encode(in, opts)
	assert.Equal(t, "created:desc,name:asc", v.Get("orders_sort"))
	assert.Empty(t, v.Get("sort"))

	// Through a real query string.
	parsed, err := url.ParseQuery(v.Encode())
	require.NoError(t, err)
	out := Decode(parsed, opts)

	assert.Equal(t, 4, out.PageIndex)
	assert.Equal(t, 100, out.PageSize)
	assert.Equal(t, in.Sorting, out.Sorting)
	assert.Equal(t, "acme corp", out.GlobalSearch)
	require.Len(t, out.Filters, 2)
	assert.Equal(t, in.Filters["status"], out.Filters["status"])
	assert.Equal(t, in.Filters["name"], out.Filters["name"])
}

func TestDecode_bareStringIsTextContains(t *testing.T) {
	st := Decode(url.Values{"filter": {"name:acme|city:" + url.QueryEscape("New York")}}, Options{})
	assert.Equal(t, model.TextFilter{Operator: model.OpContains, Value: "acme"}, st.Filters["name"])
	assert.Equal(t, model.TextFilter{Operator: model.OpContains, Value: "New York"}, st.Filters["city"])
}

func TestDecode_invalidValuesUseDefaults(t *testing.T) {
	st := Decode(url.Values{
		"page":     {"zero"},
		"pageSize": {"-5"},
		"sort":     {"name:sideways,,:desc"},
	}, Options{DefaultPageSize: 20})
	assert.Equal(t, 0, st.PageIndex)
	assert.Equal(t, 20, st.PageSize)
	assert.Equal(t, []model.SortSpec{{ColumnID: "name", Direction: model.SortAsc}}, st.Sorting)
}

func TestFields_subset(t *testing.T) {
	opts := Options{Fields: FieldSorting}
	v := Encode(State{PageIndex: 3, Sorting: []model.SortSpec{{ColumnID: "a", Direction: model.SortAsc}}, GlobalSearch: "x"}, opts)
	assert.Equal(t, url.Values{"sort": {"a:asc"}}, v)

	st := Decode(url.Values{"page": {"4"}, "search": {"x"}, "sort": {"a:desc"}}, opts)
	assert.Zero(t, st.PageIndex)
	assert.Empty(t, st.GlobalSearch)
	assert.Len(t, st.Sorting, 1)
}

func TestMerge_keepsForeignParams(t *testing.T) {
	current := url.Values{"tab": {"orders"}, "page": {"7"}, "search": {"old"}}
	got := Merge(current, State{GlobalSearch: "new"}, Options{})
	assert.Equal(t, url.Values{"tab": {"orders"}, "search": {"new"}}, got)
	assert.Equal(t, "7", current.Get("page"), "input must not be modified")
}

type recordingNavigator struct{ calls []url.Values }

func (n *recordingNavigator) Replace(v url.Values) { n.calls = append(n.calls, v) }

func TestSynchronizer(t *testing.T) {
	nav := &recordingNavigator{}
	s := NewSynchronizer(nav, url.Values{"page": {"2"}, "tab": {"x"}}, Options{DefaultPageSize: 10})

	initial := s.Initial()
	assert.Equal(t, 1, initial.PageIndex)

	assert.False(t, s.Sync(State{PageIndex: 1, PageSize: 10}), "unchanged state should not navigate")
	assert.True(t, s.Sync(State{PageIndex: 0, PageSize: 10}))
	require.Len(t, nav.calls, 1)
	assert.Equal(t, url.Values{"tab": {"x"}}, nav.calls[0])
}
