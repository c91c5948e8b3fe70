// Package connectors defines how external platforms supply catalog records.
package connectors

import (
	"context"
	"encoding/json"
	"iter"
	"sort"
	"strconv"
)

// Record is one resource as supplied by a platform: its identifier on that platform and a
// create payload for the catalog resource the connector feeds. Related holds records of
// other resources keyed by the relationship field of Payload they fill; they are stored
// first and the field is set to their identifiers.
type Record struct {
	Identifier string
	Payload    json.RawMessage
	Related    map[string][]Record
}

// Connector retrieves records of one resource type from one platform.
type Connector interface {
	// Platform is the registered platform name stamped on every ingested record.
	Platform() string
	// Resource is the catalog resource name the records are created as.
	Resource() string
	// Retrieve returns a single record. An unknown identifier is an error.
	Retrieve(ctx context.Context, identifier string) (Record, error)
	// Fetch lazily yields the records whose numeric identifier lies in [from, to); a nil bound
	// is open. A yielded error concerns that record only and iteration continues.
	Fetch(ctx context.Context, from, to *int) iter.Seq2[Record, error]
}

// Key identifies a connector in a Registry.
type Key struct {
	Platform string
	Resource string
}

func KeyOf(c Connector) Key {
	return Key{Platform: c.Platform(), Resource: c.Resource()}
}

// Registry holds the configured connectors.
type Registry struct {
	connectors map[Key]Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[Key]Connector)}
	for _, c := range connectors {
		r.Add(c)
	}
	return r
}

// Add registers c, replacing any connector with the same platform and resource.
func (r *Registry) Add(c Connector) {
	r.connectors[KeyOf(c)] = c
}

func (r *Registry) Get(platform, resource string) (Connector, bool) {
	c, ok := r.connectors[Key{Platform: platform, Resource: resource}]
	return c, ok
}

// All returns the connectors ordered by platform, then resource.
func (r *Registry) All() []Connector {
	out := make([]Connector, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := KeyOf(out[i]), KeyOf(out[j])
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		return a.Resource < b.Resource
	})
	return out
}

func (r *Registry) Len() int {
	return len(r.connectors)
}

// InRange reports whether identifier is numeric and lies in [from, to).
func InRange(identifier string, from, to *int) bool {
	n, err := strconv.Atoi(identifier)
	if err != nil {
		return false
	}
	if from != nil && n < *from {
		return false
	}
	if to != nil && n >= *to {
		return false
	}
	return true
}

// SortIdentifiers orders identifiers numerically.
func SortIdentifiers(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
}
