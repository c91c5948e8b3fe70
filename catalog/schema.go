package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rpupo63/metadata-catalog/errs"
)

const (
	IdentifierField      = "identifier"
	AssetIdentifierField = "ai_asset_identifier"
)

// FieldSpec is one member of a derived create or read contract.
type FieldSpec struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Required     bool   `json:"required"`
	Relationship bool   `json:"relationship,omitempty"`
	Description  string `json:"description,omitempty"`
}

// SchemaTyper lets a field type name itself in derived contracts.
type SchemaTyper interface {
	SchemaType() string
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	typerType = reflect.TypeOf((*SchemaTyper)(nil)).Elem()
)

type plainField struct {
	name     string
	index    []int
	required bool
	typ      reflect.Type
}

// Ref is a relationship value of the create shape: bare identifiers or names, never objects.
type Ref struct {
	IDs   []uint
	Names []string
}

func (r Ref) Empty() bool {
	return len(r.IDs) == 0 && len(r.Names) == 0
}

// Create is a decoded create payload: the plain fields of T and one Ref per relationship
// included in the create shape. Omitted relationships hold an empty Ref.
type Create[T any] struct {
	Row  T
	Refs map[string]Ref
}

// CreateSchema is the write contract of a resource type.
type CreateSchema[T any] struct {
	descriptor    *Descriptor
	plain         []plainField
	embedded      map[string]bool
	relationships []RelationshipSpec
	fields        []FieldSpec
	validate      *validator.Validate
}

// DeriveCreate builds the create contract of T from the relationships registered for name.
// It runs once at startup.
func DeriveCreate[T any](registry *Registry, name string) (*CreateSchema[T], error) {
	d, ok := registry.Descriptor(name)
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	plain, embedded, err := plainFieldsOf[T]()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	s := &CreateSchema[T]{
		descriptor: d,
		plain:      plain,
		embedded:   embedded,
		validate:   newValidator(),
	}
	for _, f := range plain {
		s.fields = append(s.fields, FieldSpec{Name: f.name, Type: typeName(f.typ), Required: f.required})
	}

	taken := make(map[string]bool, len(plain))
	for _, f := range plain {
		taken[f.name] = true
	}
	for _, spec := range registry.Ordered(name) {
		if taken[spec.Field] {
			return nil, fmt.Errorf("%s: relationship %q collides with a plain field", name, spec.Field)
		}
		if !spec.IncludeInCreate {
			continue
		}
		s.relationships = append(s.relationships, spec)
		s.fields = append(s.fields, FieldSpec{
			Name:         spec.Field,
			Type:         createTypeName(spec),
			Relationship: true,
			Description:  spec.Description,
		})
	}
	return s, nil
}

func (s *CreateSchema[T]) Descriptor() *Descriptor {
	return s.descriptor
}

// Fields returns the create contract: every plain field except the identifier and the
// relationships included in create, narrowed to identifiers or names.
func (s *CreateSchema[T]) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

// Decode validates and coerces a JSON create payload. Omitted optional fields keep their zero
// default; a required field that is omitted or null is a validation error.
func (s *CreateSchema[T]) Decode(body []byte) (*Create[T], error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.NewMalformedPayloadError(s.descriptor.Name, err)
	}
	if raw == nil {
		return nil, errs.NewMalformedPayloadError(s.descriptor.Name, errors.New("expected a JSON object"))
	}

	out := &Create[T]{Refs: make(map[string]Ref, len(s.relationships))}
	rv := reflect.ValueOf(&out.Row).Elem()
	for _, f := range s.plain {
		value, present := raw[f.name]
		if f.required {
			if !present {
				return nil, errs.NewMissingRequiredFieldError(f.name)
			}
			if isNull(value) {
				return nil, errs.NewNullFieldError(f.name)
			}
		}
		if !present {
			continue
		}
		target := rv.FieldByIndex(f.index)
		if err := json.Unmarshal(value, target.Addr().Interface()); err != nil {
			return nil, errs.NewInvalidFieldError(f.name, unmarshalReason(err))
		}
	}

	if err := s.validate.Struct(&out.Row); err != nil {
		return nil, s.validationError(err)
	}

	for _, spec := range s.relationships {
		ref, err := decodeRef(spec, raw[spec.Field])
		if err != nil {
			return nil, err
		}
		out.Refs[spec.Field] = ref
	}
	return out, nil
}

func (s *CreateSchema[T]) validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.NewInvalidFieldError("body", err.Error())
	}
	fe := verrs[0]

	segments := strings.Split(fe.Namespace(), ".")
	path := make([]string, 0, len(segments))
	for _, segment := range segments[1:] {
		if s.embedded[segment] {
			continue
		}
		path = append(path, segment)
	}
	field := strings.Join(path, ".")

	switch fe.Tag() {
	case "required":
		return errs.NewMissingRequiredFieldError(field)
	case "max":
		return errs.NewInvalidFieldError(field, fmt.Sprintf("ensure this value has at most %s characters", fe.Param()))
	case "min":
		return errs.NewInvalidFieldError(field, fmt.Sprintf("ensure this value has at least %s characters", fe.Param()))
	case "len":
		return errs.NewInvalidFieldError(field, fmt.Sprintf("ensure this value has exactly %s characters", fe.Param()))
	case "url":
		return errs.NewInvalidFieldError(field, "must be a valid URL")
	case "email":
		return errs.NewInvalidFieldError(field, "must be a valid email address")
	case "gte":
		return errs.NewInvalidFieldError(field, fmt.Sprintf("must be greater than or equal to %s", fe.Param()))
	default:
		return errs.NewInvalidFieldError(field, fmt.Sprintf("failed on the %q rule", fe.Tag()))
	}
}

// maxNameLength bounds the names of named relations, stored as varchar(256).
const maxNameLength = 256

func decodeRef(spec RelationshipSpec, raw json.RawMessage) (Ref, error) {
	if len(raw) == 0 || isNull(raw) {
		return Ref{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return Ref{}, errs.NewInvalidFieldError(spec.Field, unmarshalReason(err))
	}

	var items []any
	if spec.Arity == List {
		list, ok := value.([]any)
		if !ok {
			return Ref{}, errs.NewInvalidFieldError(spec.Field, "expected a list")
		}
		items = list
	} else {
		items = []any{value}
	}

	var ref Ref
	seenIDs := make(map[uint]bool)
	seenNames := make(map[string]bool)
	for i, item := range items {
		field := spec.Field
		if spec.Arity == List {
			field = fmt.Sprintf("%s[%d]", spec.Field, i)
		}
		if _, isObject := item.(map[string]any); isObject {
			return Ref{}, errs.NewInvalidFieldError(field, "nested objects are not accepted, submit an identifier or a name")
		}

		switch spec.Deserializer {
		case FindByIdentifier:
			id, ok := parseIdentifier(item)
			if !ok {
				return Ref{}, errs.NewInvalidFieldError(field, "expected a positive integer identifier")
			}
			if !seenIDs[id] {
				seenIDs[id] = true
				ref.IDs = append(ref.IDs, id)
			}
		case FindByName:
			name, ok := item.(string)
			if !ok || name == "" {
				return Ref{}, errs.NewInvalidFieldError(field, "expected a non-empty name")
			}
			if len(name) > maxNameLength {
				return Ref{}, errs.NewInvalidFieldError(field, fmt.Sprintf("ensure this value has at most %d characters", maxNameLength))
			}
			if !seenNames[name] {
				seenNames[name] = true
				ref.Names = append(ref.Names, name)
			}
		}
	}
	return ref, nil
}

func parseIdentifier(v any) (uint, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func plainFieldsOf[T any]() ([]plainField, map[string]bool, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("resource type %s is not a struct", t)
	}
	embedded := make(map[string]bool)
	fields, err := walkFields(t, nil, embedded)
	if err != nil {
		return nil, nil, err
	}
	return fields, embedded, nil
}

func walkFields(t reflect.Type, prefix []int, embedded map[string]bool) ([]plainField, error) {
	var out []plainField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}

		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			embedded[f.Type.Name()] = true
			nested, err := walkFields(f.Type, index, embedded)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if name == IdentifierField || name == AssetIdentifierField {
			return nil, fmt.Errorf("field %s must not be exposed as %q", f.Name, name)
		}
		out = append(out, plainField{
			name:     name,
			index:    index,
			required: hasRule(f.Tag.Get("validate"), "required"),
			typ:      f.Type,
		})
	}
	return out, nil
}

func hasRule(tag, rule string) bool {
	for _, r := range strings.Split(tag, ",") {
		if r == rule {
			return true
		}
	}
	return false
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(typerType) {
		return reflect.New(t).Interface().(SchemaTyper).SchemaType()
	}
	if t == timeType {
		return "datetime"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func createTypeName(spec RelationshipSpec) string {
	base := "identifier"
	if spec.Deserializer == FindByName {
		base = "name"
	}
	if spec.Arity == List {
		return base + "[]"
	}
	return base
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func unmarshalReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return err.Error()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
