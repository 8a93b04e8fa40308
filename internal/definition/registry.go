package definition

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pitabwire/gridcore/model"
)

// snapshot is never mutated after it is published.
type snapshot struct {
	domains  map[string]model.DefinitionFile
	grids    map[string]model.GridDefinition
	sorted   []model.GridDefinition
	checksum string
}

// Registry holds the loaded definitions. Reads are lock-free; Replace
// publishes a new snapshot atomically.
type Registry struct {
	snap atomic.Pointer[snapshot]
}

// NewRegistry creates a Registry from the given definitions.
func NewRegistry(defs []model.DefinitionFile) *Registry {
	r := &Registry{}
	r.Replace(defs)
	return r
}

// Replace atomically swaps the registry contents with a new snapshot built
// from the given definitions.
func (r *Registry) Replace(defs []model.DefinitionFile) {
	s := &snapshot{
		domains: make(map[string]model.DefinitionFile, len(defs)),
		grids:   make(map[string]model.GridDefinition),
	}

	sums := make([]string, 0, len(defs))
	for _, def := range defs {
		s.domains[def.Domain] = def
		sums = append(sums, def.Checksum)
		for _, g := range def.Grids {
			s.grids[g.ID] = g
		}
	}

	s.sorted = make([]model.GridDefinition, 0, len(s.grids))
	for _, g := range s.grids {
		s.sorted = append(s.sorted, g)
	}
	sort.Slice(s.sorted, func(i, j int) bool { return s.sorted[i].ID < s.sorted[j].ID })

	// The combined checksum is independent of load order.
	sort.Strings(sums)
	s.checksum = fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(sums, ":"))))

	r.snap.Store(s)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}

// GetDomain returns the definition file of the given domain.
func (r *Registry) GetDomain(domain string) (model.DefinitionFile, bool) {
	d, ok := r.current().domains[domain]
	return d, ok
}

// GetGrid returns the grid definition with the given ID.
func (r *Registry) GetGrid(gridID string) (model.GridDefinition, bool) {
	g, ok := r.current().grids[gridID]
	return g, ok
}

// AllGrids returns all grid definitions sorted by ID. The slice is a copy.
func (r *Registry) AllGrids() []model.GridDefinition {
	return slices.Clone(r.current().sorted)
}

// Checksum returns the combined checksum of all loaded definitions.
func (r *Registry) Checksum() string {
	return r.current().checksum
}
