// Package zone loads the taxi zone reference dataset and indexes it by
// location identifier.
package zone

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Zone is one row of the zone reference dataset.
type Zone struct {
	LocationID  int64
	Borough     string
	Zone        string
	ServiceZone string
}

// CatalogLoadError reports that the reference dataset could not be read.
// It is fatal for a run.
type CatalogLoadError struct {
	Path string
	Err  error
}

func (e *CatalogLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("zone catalog: %v", e.Err)
	}
	return fmt.Sprintf("zone catalog %s: %v", e.Path, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// Catalog is a read-only index of zones. Build it with Load, LoadFile or New;
// nothing mutates it afterwards.
type Catalog struct {
	byID  map[int64]Zone
	order []int64
}

// New builds a catalog from zones already in memory. Identifiers must be
// positive and unique.
func New(zones []Zone) (*Catalog, error) {
	c := &Catalog{
		byID:  make(map[int64]Zone, len(zones)),
		order: make([]int64, 0, len(zones)),
	}
	for _, z := range zones {
		if err := c.add(z); err != nil {
			return nil, &CatalogLoadError{Err: err}
		}
	}
	return c, nil
}

// LoadFile opens path and reads it with Load.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &CatalogLoadError{Path: path, Err: err}
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		var cle *CatalogLoadError
		if errors.As(err, &cle) {
			cle.Path = path
		}
		return nil, err
	}
	return c, nil
}

// Load reads a CSV with the columns LocationID, Borough, Zone and
// service_zone. Columns are matched by header name, case-insensitively.
func Load(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &CatalogLoadError{Err: errors.New("empty dataset")}
		}
		return nil, &CatalogLoadError{Err: err}
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), col) {
				return i
			}
		}
		return -1
	}
	idCol, boroughCol, zoneCol, serviceCol := idx("LocationID"), idx("Borough"), idx("Zone"), idx("service_zone")
	if idCol < 0 {
		return nil, &CatalogLoadError{Err: errors.New("missing LocationID column")}
	}

	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	c := &Catalog{byID: make(map[int64]Zone)}
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &CatalogLoadError{Err: err}
		}
		id, err := strconv.ParseInt(field(row, idCol), 10, 64)
		if err != nil {
			return nil, &CatalogLoadError{Err: fmt.Errorf("line %d: invalid LocationID %q", line, field(row, idCol))}
		}
		z := Zone{
			LocationID:  id,
			Borough:     field(row, boroughCol),
			Zone:        field(row, zoneCol),
			ServiceZone: field(row, serviceCol),
		}
		if err := c.add(z); err != nil {
			return nil, &CatalogLoadError{Err: fmt.Errorf("line %d: %w", line, err)}
		}
	}
	return c, nil
}

func (c *Catalog) add(z Zone) error {
	if z.LocationID <= 0 {
		return fmt.Errorf("LocationID %d is not positive", z.LocationID)
	}
	if _, dup := c.byID[z.LocationID]; dup {
		return fmt.Errorf("duplicate LocationID %d", z.LocationID)
	}
	c.byID[z.LocationID] = z
	c.order = append(c.order, z.LocationID)
	return nil
}

// Lookup returns the zone with the given identifier.
func (c *Catalog) Lookup(id int64) (Zone, bool) {
	z, ok := c.byID[id]
	return z, ok
}

// Contains reports whether id is a known zone. The loader uses it to find
// zones committed to the store that the catalog does not describe.
func (c *Catalog) Contains(id int64) bool {
	_, ok := c.byID[id]
	return ok
}

// Len returns the number of zones.
func (c *Catalog) Len() int { return len(c.byID) }

// All returns every zone in ascending identifier order. The slice is a copy.
func (c *Catalog) All() []Zone {
	ids := make([]int64, len(c.order))
	copy(ids, c.order)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	zones := make([]Zone, 0, len(ids))
	for _, id := range ids {
		zones = append(zones, c.byID[id])
	}
	return zones
}
