package types

// SourceEntry is one selectable supply source within a category.
type SourceEntry struct {
	Name       string  `json:"name" firestore:"name"`
	DistanceKm float64 `json:"distanceKm" firestore:"distanceKm"`
}

type CategorySet struct {
	Name    string        `json:"name"`
	Sources []SourceEntry `json:"sources"`
}

// LocationSet groups the categories available at one named location.
// Categories keep the order in which they first appeared in the import.
type LocationSet struct {
	Name       string        `json:"name"`
	Categories []CategorySet `json:"categories"`
}

// Category looks up a category by exact name.
func (l LocationSet) Category(name string) (CategorySet, bool) {
	for _, c := range l.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategorySet{}, false
}

// Catalog is the full result of one tabular import. An import replaces it
// wholesale; catalogs are never merged.
type Catalog struct {
	Locations []LocationSet `json:"locations"`
}

func (c Catalog) Location(name string) (LocationSet, bool) {
	for _, l := range c.Locations {
		if l.Name == name {
			return l, true
		}
	}
	return LocationSet{}, false
}

func (c Catalog) Has(name string) bool {
	_, ok := c.Location(name)
	return ok
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c.Locations))
	for _, l := range c.Locations {
		names = append(names, l.Name)
	}
	return names
}

func (c Catalog) Empty() bool {
	return len(c.Locations) == 0
}

// SourceCount is the number of source rows across all locations.
func (c Catalog) SourceCount() int {
	n := 0
	for _, l := range c.Locations {
		for _, cat := range l.Categories {
			n += len(cat.Sources)
		}
	}
	return n
}
