package catalog

import "go-emtrack/types"

// CategoriesFor lists category names at a location, empty when the location
// is unknown.
func CategoriesFor(cat types.Catalog, location string) []string {
	loc, ok := cat.Location(location)
	if !ok {
		return []string{}
	}
	names := make([]string, 0, len(loc.Categories))
	for _, c := range loc.Categories {
		names = append(names, c.Name)
	}
	return names
}

// SourcesFor lists sources for a category at a location. Duplicate names are
// kept as distinct options.
func SourcesFor(cat types.Catalog, location, category string) []types.SourceEntry {
	loc, ok := cat.Location(location)
	if !ok {
		return []types.SourceEntry{}
	}
	c, ok := loc.Category(category)
	if !ok {
		return []types.SourceEntry{}
	}
	out := make([]types.SourceEntry, len(c.Sources))
	copy(out, c.Sources)
	return out
}

// FindSource returns the first source with the given name.
func FindSource(cat types.Catalog, location, category, name string) (types.SourceEntry, bool) {
	for _, s := range SourcesFor(cat, location, category) {
		if s.Name == name {
			return s, true
		}
	}
	return types.SourceEntry{}, false
}

// ResolveActive picks the active location after the catalog changed. A
// current name that is still present is kept. Otherwise the first location
// (or none) is used, and a DriftError is returned if a name had been set.
func ResolveActive(cat types.Catalog, current string) (string, *types.DriftError) {
	if current != "" && cat.Has(current) {
		return current, nil
	}
	fallback := ""
	if !cat.Empty() {
		fallback = cat.Locations[0].Name
	}
	if current != "" {
		return fallback, &types.DriftError{Kind: "location", Name: current, Fallback: fallback}
	}
	return fallback, nil
}

// Selector binds a catalog to one location. The fulfillment engine uses it to
// resolve category and source selections.
type Selector struct {
	Catalog  types.Catalog
	Location string
}

func (s Selector) Categories() []string {
	return CategoriesFor(s.Catalog, s.Location)
}

func (s Selector) Sources(category string) []types.SourceEntry {
	return SourcesFor(s.Catalog, s.Location, category)
}

func (s Selector) Lookup(category, name string) (types.SourceEntry, bool) {
	return FindSource(s.Catalog, s.Location, category, name)
}
