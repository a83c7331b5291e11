package models

import (
	"encoding/json"
	"fmt"
	"strings"

	dErrors "dealerhub/pkg/domain-errors"
)

// Plan is a purchasable subscription tier.
type Plan struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	CreditAllotment   int    `json:"credits"`
	MonthlyPriceMinor int64  `json:"monthly_price_minor"`
	YearlyPriceMinor  int64  `json:"yearly_price_minor"`
}

// Catalog is the immutable set of plans offered.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// DefaultCatalog returns the built-in plans. Prices are in paise.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Plan{
		{ID: "basic", Name: "Basic", CreditAllotment: 5, MonthlyPriceMinor: 49900, YearlyPriceMinor: 499900},
		{ID: "standard", Name: "Standard", CreditAllotment: 15, MonthlyPriceMinor: 129900, YearlyPriceMinor: 1299900},
		{ID: "premium", Name: "Premium", CreditAllotment: 40, MonthlyPriceMinor: 299900, YearlyPriceMinor: 2999900},
	})
	return c
}

// NewCatalog validates and indexes plans. IDs are case-insensitive.
func NewCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		p.ID = strings.ToLower(strings.TrimSpace(p.ID))
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("plan requires id and name")
		}
		if p.CreditAllotment <= 0 {
			return nil, fmt.Errorf("plan %s: credits must be positive", p.ID)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan %s: duplicate id", p.ID)
		}
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// ParseCatalog reads a JSON array of plans; empty input yields DefaultCatalog.
func ParseCatalog(raw string) (*Catalog, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultCatalog(), nil
	}
	var plans []Plan
	if err := json.Unmarshal([]byte(raw), &plans); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	return NewCatalog(plans)
}

// Lookup returns the plan for id or a validation error.
func (c *Catalog) Lookup(planID string) (Plan, error) {
	p, ok := c.plans[strings.ToLower(strings.TrimSpace(planID))]
	if !ok {
		return Plan{}, dErrors.New(dErrors.CodeValidation, "unknown plan")
	}
	return p, nil
}

// List returns plans in declaration order.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id])
	}
	return out
}
