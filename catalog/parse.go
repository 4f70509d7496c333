package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go-emtrack/types"
)

const (
	unknownLocation     = "Unknown"
	unspecifiedCategory = "Unspecified"
)

// Header aliases, preferred name first. Headers are compared after
// normalizeHeader, so "Location Name", "location_name" and "LOCATIONNAME" all match.
var (
	locationAliases = []string{"locationname", "location", "site"}
	categoryAliases = []string{"category", "type"}
	entryAliases    = []string{"entryname", "name"}
	distanceAliases = []string{"km", "distance", "distancekm"}
)

var distancePattern = regexp.MustCompile(`-?(\d+(\.\d+)?|\.\d+)`)

type columns struct {
	location, category, entry, distance int
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\uFEFF", "")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

// resolveColumns matches header names against the aliases and falls back to
// positional columns 0-3 for anything it cannot find.
func resolveColumns(header []string) columns {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	pick := func(aliases []string, fallback int) int {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				return i
			}
		}
		return fallback
	}
	return columns{
		location: pick(locationAliases, 0),
		category: pick(categoryAliases, 1),
		entry:    pick(entryAliases, 2),
		distance: pick(distanceAliases, 3),
	}
}

// ParseDistance strips everything but digits, dots and minus signs and reads
// the first number left. Unparseable or negative values become 0.
func ParseDistance(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	m := distancePattern.FindString(b.String())
	if m == "" {
		return 0
	}
	km, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
		return 0
	}
	return km
}

// builder keeps locations and categories in first-seen order.
type builder struct {
	catalog   types.Catalog
	locations map[string]int
	cats      map[string]map[string]int
}

func newBuilder() *builder {
	return &builder{
		locations: make(map[string]int),
		cats:      make(map[string]map[string]int),
	}
}

func (b *builder) add(location, category string, entry types.SourceEntry) {
	li, ok := b.locations[location]
	if !ok {
		li = len(b.catalog.Locations)
		b.locations[location] = li
		b.cats[location] = make(map[string]int)
		b.catalog.Locations = append(b.catalog.Locations, types.LocationSet{Name: location})
	}
	loc := &b.catalog.Locations[li]
	ci, ok := b.cats[location][category]
	if !ok {
		ci = len(loc.Categories)
		b.cats[location][category] = ci
		loc.Categories = append(loc.Categories, types.CategorySet{Name: category})
	}
	loc.Categories[ci].Sources = append(loc.Categories[ci].Sources, entry)
}

// Parse reads a delimited resource table with a header row. Rows are read one
// at a time, so memory use follows the size of the resulting catalog rather
// than the input. Rows without an entry name are dropped.
func Parse(r io.Reader) (types.Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return types.Catalog{}, nil
	}
	if err != nil {
		return types.Catalog{}, fmt.Errorf("read header: %w", err)
	}
	cols := resolveColumns(header)

	b := newBuilder()
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Catalog{}, fmt.Errorf("read row: %w", err)
		}
		field := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		entry := field(cols.entry)
		if entry == "" {
			continue
		}
		location := field(cols.location)
		if location == "" {
			location = unknownLocation
		}
		category := field(cols.category)
		if category == "" {
			category = unspecifiedCategory
		}
		b.add(location, category, types.SourceEntry{
			Name:       entry,
			DistanceKm: ParseDistance(field(cols.distance)),
		})
	}
	return b.catalog, nil
}

func ParseString(text string) (types.Catalog, error) {
	return Parse(strings.NewReader(text))
}
