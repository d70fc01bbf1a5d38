package mappers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jorgesolerrr/umet-reports/internal/domain"
	"github.com/jorgesolerrr/umet-reports/internal/providers/moodle"
)

// CategoryReader is the part of the LMS API needed to resolve category paths.
type CategoryReader interface {
	CategoryInfo(ctx context.Context, categoryID int) (moodle.Category, error)
}

// CategoryCache memoizes category lookups. Safe for concurrent use; a nil
// cache disables caching.
type CategoryCache struct {
	mu    sync.Mutex
	items map[int]moodle.Category
}

func NewCategoryCache() *CategoryCache {
	return &CategoryCache{items: map[int]moodle.Category{}}
}

func (c *CategoryCache) get(id int) (moodle.Category, bool) {
	if c == nil {
		return moodle.Category{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cat, ok := c.items[id]
	return cat, ok
}

func (c *CategoryCache) put(cat moodle.Category) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items[cat.ID] = cat
	c.mu.Unlock()
}

func lookupCategory(ctx context.Context, api CategoryReader, cache *CategoryCache, id int) (moodle.Category, error) {
	if cat, ok := cache.get(id); ok {
		return cat, nil
	}
	cat, err := api.CategoryInfo(ctx, id)
	if err != nil {
		return moodle.Category{}, err
	}
	cache.put(cat)
	return cat, nil
}

// CategoryPath resolves the leaf category to its id path ("/1/7/42") and the
// ordered names root -> leaf, one lookup per path segment.
func CategoryPath(ctx context.Context, api CategoryReader, cache *CategoryCache, categoryID int) (string, []string, error) {
	leaf, err := lookupCategory(ctx, api, cache, categoryID)
	if err != nil {
		return "", nil, err
	}
	idPath := leaf.Path
	if idPath == "" {
		idPath = "/" + strconv.Itoa(leaf.ID)
	}

	var names []string
	for _, seg := range strings.Split(strings.Trim(idPath, "/"), "/") {
		if seg == "" {
			continue
		}
		id, err := strconv.Atoi(seg)
		if err != nil {
			return "", nil, fmt.Errorf("category %d: bad path segment %q", categoryID, seg)
		}
		if id == leaf.ID {
			names = append(names, strings.TrimSpace(leaf.Name))
			continue
		}
		cat, err := lookupCategory(ctx, api, cache, id)
		if err != nil {
			return "", nil, fmt.Errorf("category %d: resolve segment %d: %w", categoryID, id, err)
		}
		names = append(names, strings.TrimSpace(cat.Name))
	}
	return idPath, names, nil
}

/* -------- Layouts -------- */

// Dimension names used by the report layouts.
const (
	DimPlatform = "PLATAFORMA"
	DimPeriod   = "PERIODO"
	DimFaculty  = "FACULTAD"
	DimCareer   = "CARRERA"
	DimYear     = "AÑO"
	DimGroup    = "GRUPO"
	DimApproval = "TIPO APROBACION"
)

// NotAvailable fills dimensions the category path is too short to provide.
const NotAvailable = "N/A"

// LayoutDimension binds a dimension name to a 1-based category path position.
type LayoutDimension struct {
	Name     string `yaml:"name"`
	Position int    `yaml:"position"`
}

// Layout says which category path segment feeds each report dimension.
type Layout struct {
	Name       string            `yaml:"name"`
	Dimensions []LayoutDimension `yaml:"dimensions"`
}

var (
	GradoLayout = Layout{Name: "grado", Dimensions: []LayoutDimension{
		{DimPlatform, 1}, {DimPeriod, 2}, {DimFaculty, 3}, {DimCareer, 4}, {DimApproval, 5},
	}}
	PosgradoLayout = Layout{Name: "posgrado", Dimensions: []LayoutDimension{
		{DimPlatform, 1}, {DimFaculty, 2}, {DimYear, 3}, {DimCareer, 4}, {DimGroup, 5}, {DimApproval, 6},
	}}
)

// LayoutByName returns a built-in layout.
func LayoutByName(name string) (Layout, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", GradoLayout.Name:
		return GradoLayout, true
	case PosgradoLayout.Name:
		return PosgradoLayout, true
	}
	return Layout{}, false
}

// Names returns the dimension names in column order.
func (l Layout) Names() []string {
	out := make([]string, len(l.Dimensions))
	for i, d := range l.Dimensions {
		out[i] = d.Name
	}
	return out
}

// Extract maps path names to dimensions. complete is false when at least one
// position fell outside the path; those dimensions get NotAvailable.
func (l Layout) Extract(path []string) (dims []domain.Dimension, complete bool) {
	complete = true
	dims = make([]domain.Dimension, 0, len(l.Dimensions))
	for _, d := range l.Dimensions {
		v := NotAvailable
		if d.Position >= 1 && d.Position <= len(path) && path[d.Position-1] != "" {
			v = path[d.Position-1]
		} else {
			complete = false
		}
		dims = append(dims, domain.Dimension{Name: d.Name, Value: v})
	}
	return dims, complete
}
