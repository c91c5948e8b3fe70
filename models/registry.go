package models

import (
	"fmt"

	"github.com/rpupo63/metadata-catalog/catalog"
)

// Names of every registered resource type.
const (
	OrganisationName          = "organisation"
	DatasetName               = "dataset"
	PublicationName           = "publication"
	ProjectName               = "project"
	EducationalResourceName   = "educational_resource"
	ComputationalResourceName = "computational_resource"
	NewsName                  = "news"
	EventName                 = "event"
	CodeArtifactName          = "code_artifact"
)

// Platforms seeded into the platform table.
var Platforms = []string{"aiod", "example", "zenodo", "openml", "huggingface"}

var namedRelations = []catalog.NamedRelation{
	{Table: "keyword", Open: true},
	{Table: "license", Seed: []string{
		"apache-2.0", "cc-by-4.0", "cc-by-nc-4.0", "cc-by-sa-4.0", "cc0-1.0", "gpl-3.0", "mit", "other",
	}},
	{Table: "language", Seed: []string{"de", "el", "en", "es", "fr", "it", "nl", "pt"}},
	{Table: "research_area", Open: true},
	{Table: "application_area", Open: true},
	{Table: "business_category", Open: true},
	{Table: "news_category", Open: true},
	{Table: "media", Open: true},
	{Table: "target_audience", Open: true},
}

func byName(field, table string) catalog.RelationshipSpec {
	return catalog.RelationshipSpec{
		Field:           field,
		Arity:           catalog.List,
		Target:          table,
		Serializer:      catalog.ByName,
		Deserializer:    catalog.FindByName,
		IncludeInCreate: true,
	}
}

func byIdentifier(field, table string) catalog.RelationshipSpec {
	return catalog.RelationshipSpec{
		Field:           field,
		Arity:           catalog.List,
		Target:          table,
		Deserializer:    catalog.FindByIdentifier,
		IncludeInCreate: true,
	}
}

func singleByName(field, table string) catalog.RelationshipSpec {
	return catalog.RelationshipSpec{
		Field:           field,
		Arity:           catalog.Single,
		Target:          table,
		Column:          field + "_identifier",
		Serializer:      catalog.ByName,
		Deserializer:    catalog.FindByName,
		IncludeInCreate: true,
	}
}

// AIResourceRelationships are shared by every AI asset.
var AIResourceRelationships = &catalog.RelationshipSet{
	Name: "ai_resource",
	Relationships: []catalog.RelationshipSpec{
		byName("keyword", "keyword"),
	},
}

func descriptors() []*catalog.Descriptor {
	hasPart := func(table string, policy catalog.OnDelete) []catalog.RelationshipSpec {
		part := byIdentifier("has_part", table)
		part.OnDelete = policy
		part.Description = "identifiers of the parts of this " + table
		whole := byIdentifier("is_part_of", table)
		whole.Inverse = true
		whole.OnDelete = policy
		whole.Description = "identifiers of the " + table + " resources this one is part of"
		return []catalog.RelationshipSpec{part, whole}
	}

	coordinator := byIdentifier("coordinator", OrganisationName)
	coordinator.Arity = catalog.Single
	coordinator.Column = "coordinator_identifier"

	funder := byIdentifier("funder", OrganisationName)
	funder.LinkPrefix = "funder"
	participant := byIdentifier("participant", OrganisationName)
	participant.LinkPrefix = "participant"

	produced := byIdentifier("produced", catalog.AssetTable)
	produced.LinkPrefix = "produced"
	produced.Description = "AI asset identifiers of the results of this project"
	used := byIdentifier("used", catalog.AssetTable)
	used.LinkPrefix = "used"

	organiser := byIdentifier("organiser", OrganisationName)
	organiser.Arity = catalog.Single
	organiser.Column = "organiser_identifier"
	organiser.Serializer = catalog.Nested

	subEvent := byIdentifier("sub_event", "event")
	superEvent := byIdentifier("super_event", "event")
	superEvent.Inverse = true

	relevant := byIdentifier("relevant_resource", catalog.AssetTable)
	relevant.LinkPrefix = "relevant"
	usedResource := byIdentifier("used_resource", catalog.AssetTable)
	usedResource.LinkPrefix = "used"

	contact := byIdentifier("contact", OrganisationName)
	contact.LinkPrefix = "contact"

	// publication.dataset is dataset.citation seen from the publication side.
	citedDataset := byIdentifier("dataset", DatasetName)
	citedDataset.Inverse = true
	citedDataset.Description = "identifiers of the datasets connected to this publication"

	return []*catalog.Descriptor{
		{
			Name: OrganisationName, Plural: "organisations", Table: "organisation",
			Relationships: []catalog.RelationshipSpec{
				byName("business_category", "business_category"),
				byName("keyword", "keyword"),
			},
		},
		{
			Name: PublicationName, Plural: "publications", Table: "publication", Asset: true,
			Extends: AIResourceRelationships,
			Relationships: []catalog.RelationshipSpec{
				singleByName("license", "license"),
				citedDataset,
			},
		},
		{
			Name: DatasetName, Plural: "datasets", Table: "dataset", Asset: true,
			Extends: AIResourceRelationships,
			Relationships: append([]catalog.RelationshipSpec{
				singleByName("license", "license"),
				byIdentifier("citation", "publication"),
			}, hasPart("dataset", catalog.Cascade)...),
		},
		{
			Name: ProjectName, Plural: "projects", Table: "project", Asset: true,
			Extends: AIResourceRelationships,
			Relationships: []catalog.RelationshipSpec{
				funder, participant, coordinator, produced, used,
			},
		},
		{
			Name: EducationalResourceName, Plural: "educational_resources", Table: "educational_resource", Asset: true,
			Extends: AIResourceRelationships,
			Relationships: []catalog.RelationshipSpec{
				byName("language", "language"),
				byName("target_audience", "target_audience"),
				byName("business_category", "business_category"),
			},
		},
		{
			Name: ComputationalResourceName, Plural: "computational_resources", Table: "computational_resource", Asset: true,
			Extends: AIResourceRelationships,
			Relationships: append(hasPart("computational_resource", catalog.Restrict),
				byName("research_area", "research_area"),
				byName("application_area", "application_area"),
				contact,
			),
		},
		{
			Name: NewsName, Plural: "news", Table: "news",
			Relationships: []catalog.RelationshipSpec{
				byName("news_category", "news_category"),
				byName("media", "media"),
				byName("keyword", "keyword"),
				byName("business_category", "business_category"),
			},
		},
		{
			Name: EventName, Plural: "events", Table: "event",
			Relationships: []catalog.RelationshipSpec{
				subEvent, superEvent,
				byName("research_area", "research_area"),
				byName("application_area", "application_area"),
				byName("business_category", "business_category"),
				organiser, relevant, usedResource,
			},
		},
		{
			Name: CodeArtifactName, Plural: "code_artifacts", Table: "code_artifact", Asset: true,
			Extends: AIResourceRelationships,
		},
	}
}

// NewRegistry builds the validated registry of every catalog resource.
func NewRegistry() (*catalog.Registry, error) {
	registry := catalog.NewRegistry()
	for _, n := range namedRelations {
		if err := registry.RegisterNamed(n); err != nil {
			return nil, err
		}
	}
	for _, d := range descriptors() {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resource registry: %w", err)
	}
	return registry, nil
}
