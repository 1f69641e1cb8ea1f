// Package enrich holds the optional external lookups the normalizer uses
// to validate a new hospital before creating it in the catalog. Each
// client is independently optional; the normalizer degrades to alias and
// fuzzy matching when they are absent.
package enrich

import (
	"context"
)

// Candidate is one facility returned by an external registry.
type Candidate struct {
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	City    string  `json:"city,omitempty"`
	State   string  `json:"state,omitempty"`
	Score   float64 `json:"score"`
}

// Client looks a facility up in one external registry.
type Client interface {
	// Lookup returns the best candidate for the name, a not_found error
	// on a miss, or a transient_external error on timeout and 5xx.
	Lookup(ctx context.Context, name, city, state string) (*Candidate, error)

	// Name identifies the registry in logs.
	Name() string
}

// Hints turns a candidate into the hint map stored on a created entity.
func (c *Candidate) Hints() map[string]string {
	hints := make(map[string]string)
	if c.Address != "" {
		hints["address"] = c.Address
	}
	if c.City != "" {
		hints["city"] = c.City
	}
	if c.State != "" {
		hints["state"] = c.State
	}
	return hints
}
