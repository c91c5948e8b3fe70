package catalog

import (
	"encoding/json"
	"fmt"
)

// Value is what the repository loaded for one relationship of one row.
type Value struct {
	IDs     []uint
	Names   []string
	Objects []json.RawMessage
}

// Loaded maps relationship fields to their loaded values.
type Loaded map[string]Value

// ReadSchema is the read contract of a resource type.
type ReadSchema[T any] struct {
	descriptor    *Descriptor
	relationships []RelationshipSpec
	fields        []FieldSpec
}

// DeriveRead builds the read contract of T: every plain field, the required identifier and
// every relationship rendered by its serializer.
func DeriveRead[T any](registry *Registry, name string) (*ReadSchema[T], error) {
	d, ok := registry.Descriptor(name)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	plain, _, err := plainFieldsOf[T]()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	s := &ReadSchema[T]{descriptor: d, relationships: registry.Ordered(name)}
	s.fields = append(s.fields, FieldSpec{Name: IdentifierField, Type: "integer", Required: true})
	if d.Asset {
		s.fields = append(s.fields, FieldSpec{Name: AssetIdentifierField, Type: "integer", Required: true})
	}
	for _, f := range plain {
		s.fields = append(s.fields, FieldSpec{Name: f.name, Type: typeName(f.typ), Required: f.required})
	}
	for _, spec := range s.relationships {
		s.fields = append(s.fields, FieldSpec{
			Name:         spec.Field,
			Type:         readTypeName(spec),
			Required:     spec.Arity == List,
			Relationship: true,
			Description:  spec.Description,
		})
	}
	return s, nil
}

func (s *ReadSchema[T]) Descriptor() *Descriptor {
	return s.descriptor
}

func (s *ReadSchema[T]) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

// Render builds the read shape of one row. Every relationship is present: an absent single
// relationship renders as null and an absent list as an empty list. When nested is false,
// nested relationships render as identifiers.
func (s *ReadSchema[T]) Render(row T, identifier, assetIdentifier uint, loaded Loaded, nested bool) *Read[T] {
	rels := make(map[string]any, len(s.relationships))
	for _, spec := range s.relationships {
		rels[spec.Field] = renderValue(spec, loaded[spec.Field], nested)
	}
	return &Read[T]{
		Identifier:        identifier,
		AIAssetIdentifier: assetIdentifier,
		Row:               row,
		Relationships:     rels,
		asset:             s.descriptor.Asset,
	}
}

func renderValue(spec RelationshipSpec, v Value, nested bool) any {
	serializer := spec.Serializer
	if serializer == Nested && !nested {
		serializer = ByIdentifier
	}

	switch serializer {
	case ByName:
		if spec.Arity == Single {
			if len(v.Names) == 0 {
				return nil
			}
			return v.Names[0]
		}
		if v.Names == nil {
			return []string{}
		}
		return v.Names
	case Nested:
		if spec.Arity == Single {
			if len(v.Objects) == 0 {
				return nil
			}
			return v.Objects[0]
		}
		if v.Objects == nil {
			return []json.RawMessage{}
		}
		return v.Objects
	default:
		if spec.Arity == Single {
			if len(v.IDs) == 0 {
				return nil
			}
			return v.IDs[0]
		}
		if v.IDs == nil {
			return []uint{}
		}
		return v.IDs
	}
}

func readTypeName(spec RelationshipSpec) string {
	var base string
	switch spec.Serializer {
	case ByName:
		base = "name"
	case Nested:
		base = "object"
	default:
		base = "identifier"
	}
	if spec.Arity == List {
		return base + "[]"
	}
	return base
}

// Read is the read shape of one resource row: the identifier, the plain fields of Row and one
// member per relationship, marshalled as a single flat object.
type Read[T any] struct {
	Identifier        uint
	AIAssetIdentifier uint
	Row               T
	Relationships     map[string]any
	asset             bool
}

func (r Read[T]) MarshalJSON() ([]byte, error) {
	plain, err := json.Marshal(r.Row)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage)
	if err := json.Unmarshal(plain, &out); err != nil {
		return nil, fmt.Errorf("row of %T must marshal to an object: %w", r.Row, err)
	}

	for field, value := range r.Relationships {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("relationship %s: %w", field, err)
		}
		out[field] = encoded
	}

	id, _ := json.Marshal(r.Identifier)
	out[IdentifierField] = id
	if r.asset {
		assetID, _ := json.Marshal(r.AIAssetIdentifier)
		out[AssetIdentifierField] = assetID
	}
	return json.Marshal(out)
}
