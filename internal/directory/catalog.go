package directory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/hackgods/carebook-scheduling/internal/appointment"
)

// Catalog is an in-memory provider and appointment type directory.
// It is read-only after construction.
type Catalog struct {
	providers []appointment.Provider
	types     []appointment.AppointmentType
}

// NewCatalog copies providers and types. A provider with no
// AppointmentTypes is assumed to offer every type.
func NewCatalog(providers []appointment.Provider, types []appointment.AppointmentType) *Catalog {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name
	}
	slices.Sort(names)

	c := &Catalog{
		providers: slices.Clone(providers),
		types:     slices.Clone(types),
	}
	for i := range c.providers {
		if len(c.providers[i].AppointmentTypes) == 0 {
			c.providers[i].AppointmentTypes = slices.Clone(names)
		}
	}
	return c
}

// DefaultCatalog holds the reference providers and appointment types with
// ids assigned in order from 1.
func DefaultCatalog() *Catalog {
	providers := ReferenceProviders()
	for i := range providers {
		providers[i].ID = int64(i + 1)
	}
	types := ReferenceAppointmentTypes()
	for i := range types {
		types[i].ID = int64(i + 1)
	}
	return NewCatalog(providers, types)
}

func (c *Catalog) Provider(_ context.Context, id int64) (*appointment.Provider, error) {
	for _, p := range c.providers {
		if p.ID == id {
			p.AppointmentTypes = slices.Clone(p.AppointmentTypes)
			return &p, nil
		}
	}
	return nil, appointment.ErrProviderNotFound
}

func (c *Catalog) AppointmentType(_ context.Context, id int64) (*appointment.AppointmentType, error) {
	for _, t := range c.types {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, appointment.ErrAppointmentTypeNotFound
}

// Search matches q case-insensitively against name, specialty and location,
// and specialty exactly. Results are ordered by rating, best first.
func (c *Catalog) Search(_ context.Context, q, specialty string) ([]appointment.Provider, error) {
	q = strings.ToLower(strings.TrimSpace(q))

	var out []appointment.Provider
	for _, p := range c.providers {
		if specialty != "" && p.Specialty != specialty {
			continue
		}
		if q != "" && !matchesQuery(p, q) {
			continue
		}
		p.AppointmentTypes = slices.Clone(p.AppointmentTypes)
		out = append(out, p)
	}

	slices.SortStableFunc(out, func(a, b appointment.Provider) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	return out, nil
}

func matchesQuery(p appointment.Provider, q string) bool {
	for _, field := range []string{p.FirstName, p.LastName, p.Specialty, p.Location} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (c *Catalog) Specialties(_ context.Context) ([]string, error) {
	var out []string
	for _, p := range c.providers {
		out = append(out, p.Specialty)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// AppointmentTypes lists every type ordered by name.
func (c *Catalog) AppointmentTypes(_ context.Context) ([]appointment.AppointmentType, error) {
	out := slices.Clone(c.types)
	slices.SortFunc(out, func(a, b appointment.AppointmentType) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (c *Catalog) ProviderIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, len(c.providers))
	for i, p := range c.providers {
		ids[i] = p.ID
	}
	slices.Sort(ids)
	return ids, nil
}
