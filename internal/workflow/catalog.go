package workflow

import (
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/richmond-dms/docflow/internal/apperr"
)

var ErrUnknownWorkflow = apperr.Coded(apperr.KindValidation, "UNKNOWN_WORKFLOW", "unknown workflow definition")

// Catalog holds every registered workflow definition keyed by its ID.
type Catalog struct {
	byID      map[string]*Registry
	ids       []string
	defaultID string
}

// NewCatalog registers regs. defaultID must name one of them.
func NewCatalog(defaultID string, regs ...*Registry) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Registry, len(regs)), defaultID: defaultID}
	for _, r := range regs {
		if err := c.register(r); err != nil {
			return nil, err
		}
	}
	if _, ok := c.byID[defaultID]; !ok {
		return nil, fmt.Errorf("default workflow %q is not registered", defaultID)
	}
	return c, nil
}

func (c *Catalog) register(r *Registry) error {
	if _, dup := c.byID[r.ID()]; dup {
		return fmt.Errorf("workflow %q is already registered", r.ID())
	}
	c.byID[r.ID()] = r
	c.ids = append(c.ids, r.ID())
	slices.Sort(c.ids)
	return nil
}

// Get resolves id, falling back to the default workflow when id is empty.
func (c *Catalog) Get(id string) (*Registry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = c.defaultID
	}
	r, ok := c.byID[id]
	if !ok {
		return nil, ErrUnknownWorkflow.WithDetails(map[string]any{"workflowId": id, "available": c.IDs()})
	}
	return r, nil
}

func (c *Catalog) Default() *Registry { return c.byID[c.defaultID] }

func (c *Catalog) IDs() []string { return slices.Clone(c.ids) }

func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, 0, len(c.ids))
	for _, id := range c.ids {
		defs = append(defs, c.byID[id].Definition())
	}
	return defs
}

var builtin = sync.OnceValues(func() (*Catalog, error) {
	names, err := fs.Glob(definitions, "definitions/*.yaml")
	if err != nil {
		return nil, err
	}
	regs := make([]*Registry, 0, len(names))
	for _, name := range names {
		raw, err := definitions.ReadFile(name)
		if err != nil {
			return nil, err
		}
		r, err := Load(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		regs = append(regs, r)
	}
	return NewCatalog(DefaultID, regs...)
})

// Builtin returns the catalog of embedded workflow definitions.
func Builtin() *Catalog {
	c, err := builtin()
	if err != nil {
		panic(err)
	}
	return c
}
