// Package catalog declares how catalog resources relate to each other and derives their
// external create/read contracts from that declaration.
package catalog

import (
	"fmt"
	"sort"
)

// AssetTable is the shared supertype table of every AI resource. Relationships that point at
// "any AI asset" link to this table; its rows carry the concrete kind in their type column.
const AssetTable = "ai_asset"

// Arity tells whether a relationship holds at most one related row or a set of them.
type Arity int

const (
	Single Arity = iota
	List
)

// Serializer selects how related rows are rendered in the read shape.
type Serializer int

const (
	ByIdentifier Serializer = iota
	ByName
	Nested
)

// Deserializer selects how values submitted in the create shape are resolved.
type Deserializer int

const (
	DeserializeNone Deserializer = iota
	FindByIdentifier
	FindByName
)

// OnDelete is the policy applied to associations when one of their endpoints is deleted.
type OnDelete int

const (
	// Cascade removes link rows (or nulls a single reference) together with the endpoint.
	Cascade OnDelete = iota
	// Restrict blocks the deletion of either endpoint while the association exists.
	Restrict
)

func (p OnDelete) String() string {
	if p == Restrict {
		return "restrict"
	}
	return "cascade"
}

// RelationshipSpec describes one relationship field of a resource.
type RelationshipSpec struct {
	Field           string
	Arity           Arity
	Target          string
	Serializer      Serializer
	Deserializer    Deserializer
	IncludeInCreate bool
	// Column is the foreign key column on the owner table of a Single relationship.
	Column string
	// LinkPrefix disambiguates several list relationships between the same two tables.
	LinkPrefix string
	// Inverse views a link table from its target side: the owner is stored in the link's
	// target column. Used for the two directions of a self link (has_part / is_part_of).
	Inverse     bool
	OnDelete    OnDelete
	Description string
}

// Default is the value rendered when nothing is stored for the relationship.
func (s RelationshipSpec) Default() any {
	if s.Arity == List {
		switch s.Serializer {
		case ByName:
			return []string{}
		default:
			return []uint{}
		}
	}
	return nil
}

// RelationshipSet is a reusable group of relationships that descriptors can extend, the way
// every AI resource shares the relationships declared for AI resources in general.
type RelationshipSet struct {
	Name          string
	Extends       *RelationshipSet
	Relationships []RelationshipSpec
}

// Descriptor declares a resource type once: its names, its table and its relationships.
type Descriptor struct {
	Name          string
	Plural        string
	Table         string
	Asset         bool
	Extends       *RelationshipSet
	Relationships []RelationshipSpec
}

// NamedRelation is an enum-like lookup table keyed by a unique name.
type NamedRelation struct {
	Table string
	// Open vocabularies create unknown names on write, closed ones reject them.
	Open bool
	Seed []string
}

// Reference is a relationship seen from its target: Owner declares Spec pointing at a table.
type Reference struct {
	Owner *Descriptor
	Spec  RelationshipSpec
}

// Registry holds every resource descriptor and named relation of the catalog. It is built
// once at startup and must not be modified after Validate.
type Registry struct {
	descriptors []*Descriptor
	byName      map[string]*Descriptor
	byTable     map[string]*Descriptor
	named       map[string]NamedRelation
	resolved    map[string][]RelationshipSpec
	links       []LinkTable
}

func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*Descriptor),
		byTable:  make(map[string]*Descriptor),
		named:    make(map[string]NamedRelation),
		resolved: make(map[string][]RelationshipSpec),
	}
}

// Register adds a resource descriptor and resolves its inherited relationships.
func (r *Registry) Register(d *Descriptor) error {
	if d.Name == "" || d.Table == "" || d.Plural == "" {
		return fmt.Errorf("descriptor %q: name, plural and table are required", d.Name)
	}
	if _, ok := r.byName[d.Name]; ok {
		return fmt.Errorf("descriptor %q registered twice", d.Name)
	}
	if _, ok := r.byTable[d.Table]; ok || d.Table == AssetTable {
		return fmt.Errorf("descriptor %q: table %q already in use", d.Name, d.Table)
	}
	if _, ok := r.named[d.Table]; ok {
		return fmt.Errorf("descriptor %q: table %q already in use", d.Name, d.Table)
	}

	r.descriptors = append(r.descriptors, d)
	r.byName[d.Name] = d
	r.byTable[d.Table] = d
	r.resolved[d.Name] = resolve(d)
	return nil
}

// RegisterNamed adds an enum-like lookup table.
func (r *Registry) RegisterNamed(n NamedRelation) error {
	if n.Table == "" {
		return fmt.Errorf("named relation without table")
	}
	if _, ok := r.named[n.Table]; ok {
		return fmt.Errorf("named relation %q registered twice", n.Table)
	}
	if _, ok := r.byTable[n.Table]; ok || n.Table == AssetTable {
		return fmt.Errorf("named relation %q: table already in use", n.Table)
	}
	r.named[n.Table] = n
	return nil
}

// resolve flattens the relationship chain root first; later declarations override earlier
// ones with the same field name while keeping the original position.
func resolve(d *Descriptor) []RelationshipSpec {
	var chain []*RelationshipSet
	for set := d.Extends; set != nil; set = set.Extends {
		chain = append([]*RelationshipSet{set}, chain...)
	}

	var out []RelationshipSpec
	position := make(map[string]int)
	add := func(spec RelationshipSpec) {
		if i, ok := position[spec.Field]; ok {
			out[i] = spec
			return
		}
		position[spec.Field] = len(out)
		out = append(out, spec)
	}
	for _, set := range chain {
		for _, spec := range set.Relationships {
			add(spec)
		}
	}
	for _, spec := range d.Relationships {
		add(spec)
	}
	return out
}

// Validate checks every relationship against the registered tables and derives the link
// tables. It must be called once after all registrations.
func (r *Registry) Validate() error {
	links := make(map[string]LinkTable)
	var names []string

	for _, d := range r.descriptors {
		for _, spec := range r.resolved[d.Name] {
			if err := r.validateSpec(d, spec); err != nil {
				return fmt.Errorf("%s.%s: %w", d.Name, spec.Field, err)
			}
			if spec.Arity != List {
				continue
			}
			link := LinkFor(d, spec)
			if existing, ok := links[link.Name]; ok {
				if existing != link {
					return fmt.Errorf("%s.%s: link table %s declared with conflicting columns or policy", d.Name, spec.Field, link.Name)
				}
				continue
			}
			links[link.Name] = link
			names = append(names, link.Name)
		}
	}

	sort.Strings(names)
	r.links = r.links[:0]
	for _, name := range names {
		r.links = append(r.links, links[name])
	}
	return nil
}

func (r *Registry) validateSpec(d *Descriptor, spec RelationshipSpec) error {
	if spec.Field == "" {
		return fmt.Errorf("relationship without field name")
	}

	_, isNamed := r.named[spec.Target]
	_, isResource := r.byTable[spec.Target]
	isAsset := spec.Target == AssetTable
	if !isNamed && !isResource && !isAsset {
		return fmt.Errorf("unknown target table %q", spec.Target)
	}

	switch spec.Arity {
	case Single:
		if spec.Column == "" {
			return fmt.Errorf("single relationship requires a column")
		}
		if spec.Inverse || spec.LinkPrefix != "" {
			return fmt.Errorf("single relationship cannot use link options")
		}
		if isAsset {
			return fmt.Errorf("single relationship cannot target %s", AssetTable)
		}
	case List:
		if spec.Column != "" {
			return fmt.Errorf("list relationship cannot declare a column")
		}
		if spec.Inverse && isNamed {
			return fmt.Errorf("relationship to a named relation cannot be inverse")
		}
	default:
		return fmt.Errorf("unknown arity %d", spec.Arity)
	}

	if (spec.Serializer == ByName) != isNamed {
		return fmt.Errorf("name serializer is required exactly for named relations")
	}
	if spec.Serializer == Nested && !isResource {
		return fmt.Errorf("nested serializer requires a resource target")
	}

	switch spec.Deserializer {
	case DeserializeNone:
		if spec.IncludeInCreate {
			return fmt.Errorf("relationship without deserializer cannot be part of the create shape")
		}
	case FindByIdentifier:
		if isNamed {
			return fmt.Errorf("named relations are resolved by name")
		}
	case FindByName:
		if !isNamed {
			return fmt.Errorf("only named relations can be resolved by name")
		}
	default:
		return fmt.Errorf("unknown deserializer %d", spec.Deserializer)
	}
	return nil
}

// Descriptor returns the descriptor registered under name.
func (r *Registry) Descriptor(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// ByTable returns the descriptor owning table.
func (r *Registry) ByTable(table string) (*Descriptor, bool) {
	d, ok := r.byTable[table]
	return d, ok
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	return append([]*Descriptor(nil), r.descriptors...)
}

func (r *Registry) Named(table string) (NamedRelation, bool) {
	n, ok := r.named[table]
	return n, ok
}

// NamedRelations returns every named relation ordered by table name.
func (r *Registry) NamedRelations() []NamedRelation {
	out := make([]NamedRelation, 0, len(r.named))
	for _, n := range r.named {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// RelationshipsOf answers which relationship fields a resource has, including inherited ones.
func (r *Registry) RelationshipsOf(name string) map[string]RelationshipSpec {
	out := make(map[string]RelationshipSpec)
	for _, spec := range r.resolved[name] {
		out[spec.Field] = spec
	}
	return out
}

// Ordered returns the relationships of a resource in declaration order, inherited first.
func (r *Registry) Ordered(name string) []RelationshipSpec {
	return append([]RelationshipSpec(nil), r.resolved[name]...)
}

// Links returns every link table derived by Validate, ordered by name.
func (r *Registry) Links() []LinkTable {
	return append([]LinkTable(nil), r.links...)
}

// SingleReferencesTo lists the single relationships whose column points at table.
func (r *Registry) SingleReferencesTo(table string) []Reference {
	var out []Reference
	for _, d := range r.descriptors {
		for _, spec := range r.resolved[d.Name] {
			if spec.Arity == Single && spec.Target == table {
				out = append(out, Reference{Owner: d, Spec: spec})
			}
		}
	}
	return out
}
