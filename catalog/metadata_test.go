package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAIResource = &RelationshipSet{
	Name: "ai_resource",
	Relationships: []RelationshipSpec{
		{Field: "keyword", Arity: List, Target: "keyword", Serializer: ByName, Deserializer: FindByName, IncludeInCreate: true},
		{Field: "alternate_name", Arity: List, Target: "alternate_name", Serializer: ByName, Deserializer: FindByName, IncludeInCreate: true},
	},
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.RegisterNamed(NamedRelation{Table: "keyword", Open: true}))
	require.NoError(t, r.RegisterNamed(NamedRelation{Table: "alternate_name", Open: true}))
	require.NoError(t, r.RegisterNamed(NamedRelation{Table: "license", Seed: []string{"mit"}}))

	require.NoError(t, r.Register(&Descriptor{
		Name: "organisation", Plural: "organisations", Table: "organisation",
	}))
	require.NoError(t, r.Register(&Descriptor{
		Name: "thing", Plural: "things", Table: "thing", Asset: true,
		Extends: testAIResource,
		Relationships: []RelationshipSpec{
			{Field: "license", Arity: Single, Target: "license", Column: "license_identifier", Serializer: ByName, Deserializer: FindByName, IncludeInCreate: true},
			{Field: "funder", Arity: List, Target: "organisation", LinkPrefix: "funder", Deserializer: FindByIdentifier, IncludeInCreate: true},
			{Field: "owner", Arity: Single, Target: "organisation", Column: "owner_identifier", Serializer: Nested, Deserializer: FindByIdentifier, IncludeInCreate: true},
			{Field: "has_part", Arity: List, Target: "thing", Deserializer: FindByIdentifier, IncludeInCreate: true, OnDelete: Restrict},
			{Field: "is_part_of", Arity: List, Target: "thing", Inverse: true, Deserializer: FindByIdentifier, IncludeInCreate: true, OnDelete: Restrict},
			{Field: "produced", Arity: List, Target: AssetTable, Deserializer: FindByIdentifier, IncludeInCreate: true},
			{Field: "alternate_name", Arity: List, Target: "alternate_name", Serializer: ByName},
		},
	}))
	require.NoError(t, r.Validate())
	return r
}

func TestRegistry_InheritanceAndOverride(t *testing.T) {
	r := testRegistry(t)

	ordered := r.Ordered("thing")
	require.NotEmpty(t, ordered)
	assert.Equal(t, "keyword", ordered[0].Field)
	assert.Equal(t, "alternate_name", ordered[1].Field, "override keeps the inherited position")
	assert.False(t, ordered[1].IncludeInCreate, "override replaces the inherited declaration")

	rels := r.RelationshipsOf("thing")
	assert.Contains(t, rels, "keyword")
	assert.Contains(t, rels, "funder")
	assert.Len(t, rels, 8)

	assert.Empty(t, r.RelationshipsOf("organisation"))
	assert.Empty(t, r.RelationshipsOf("unknown"))
}

func TestRegistry_Links(t *testing.T) {
	r := testRegistry(t)

	var names []string
	for _, l := range r.Links() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{
		"funder_thing_organisation_link",
		"thing_ai_asset_link",
		"thing_alternate_name_link",
		"thing_keyword_link",
		"thing_thing_link",
	}, names, "has_part and is_part_of share one link table")

	self := Link("", "thing", "thing", Restrict)
	assert.Equal(t, "source_identifier", self.FromColumn)
	assert.Equal(t, "target_identifier", self.ToColumn)

	owner, target := self.Columns(true)
	assert.Equal(t, "target_identifier", owner)
	assert.Equal(t, "source_identifier", target)
}

func TestRegistry_SingleReferencesTo(t *testing.T) {
	r := testRegistry(t)

	refs := r.SingleReferencesTo("organisation")
	require.Len(t, refs, 1)
	assert.Equal(t, "thing", refs[0].Owner.Name)
	assert.Equal(t, "owner_identifier", refs[0].Spec.Column)
}

func TestRegistry_ValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		spec RelationshipSpec
	}{
		{"unknown target", RelationshipSpec{Field: "x", Arity: List, Target: "nowhere", Deserializer: FindByIdentifier}},
		{"single without column", RelationshipSpec{Field: "x", Arity: Single, Target: "organisation", Deserializer: FindByIdentifier}},
		{"list with column", RelationshipSpec{Field: "x", Arity: List, Target: "organisation", Column: "x_identifier", Deserializer: FindByIdentifier}},
		{"named relation by identifier", RelationshipSpec{Field: "x", Arity: List, Target: "keyword", Serializer: ByName, Deserializer: FindByIdentifier}},
		{"resource by name", RelationshipSpec{Field: "x", Arity: List, Target: "organisation", Serializer: ByName, Deserializer: FindByName}},
		{"create without deserializer", RelationshipSpec{Field: "x", Arity: List, Target: "organisation", IncludeInCreate: true}},
		{"nested named relation", RelationshipSpec{Field: "x", Arity: List, Target: "keyword", Serializer: Nested, Deserializer: FindByName}},
		{"single asset reference", RelationshipSpec{Field: "x", Arity: Single, Target: AssetTable, Column: "x_identifier", Deserializer: FindByIdentifier}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.RegisterNamed(NamedRelation{Table: "keyword", Open: true}))
			require.NoError(t, r.Register(&Descriptor{Name: "organisation", Plural: "organisations", Table: "organisation"}))
			require.NoError(t, r.Register(&Descriptor{
				Name: "broken", Plural: "brokens", Table: "broken",
				Relationships: []RelationshipSpec{tt.spec},
			}))
			assert.Error(t, r.Validate())
		})
	}
}

func TestRegistry_ConflictingLinkPolicies(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{
		Name: "node", Plural: "nodes", Table: "node",
		Relationships: []RelationshipSpec{
			{Field: "child", Arity: List, Target: "node", Deserializer: FindByIdentifier, OnDelete: Cascade},
			{Field: "parent", Arity: List, Target: "node", Inverse: true, Deserializer: FindByIdentifier, OnDelete: Restrict},
		},
	}))
	assert.Error(t, r.Validate())
}

func TestRegistry_RegisterTwice(t *testing.T) {
	r := NewRegistry()
	d := &Descriptor{Name: "organisation", Plural: "organisations", Table: "organisation"}
	require.NoError(t, r.Register(d))
	assert.Error(t, r.Register(d))
	assert.Error(t, r.RegisterNamed(NamedRelation{Table: "organisation"}))
	assert.Error(t, r.Register(&Descriptor{Name: "asset", Plural: "assets", Table: AssetTable}))
}

func TestRelationshipSpec_Default(t *testing.T) {
	assert.Nil(t, RelationshipSpec{Arity: Single}.Default())
	assert.Equal(t, []uint{}, RelationshipSpec{Arity: List}.Default())
	assert.Equal(t, []string{}, RelationshipSpec{Arity: List, Serializer: ByName}.Default())
}
