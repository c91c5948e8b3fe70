package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rpupo63/metadata-catalog/catalog"
	"github.com/rpupo63/metadata-catalog/errs"
	"github.com/rpupo63/metadata-catalog/models"
)

type Config struct {
	// MaxPageLimit caps the page size of list operations.
	MaxPageLimit int
	// NestingDepth is how many levels of nested relationships are embedded in a read.
	NestingDepth int
	// NamedCacheTTL is how long resolved names of lookup tables are cached.
	NamedCacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPageLimit <= 0 {
		c.MaxPageLimit = 1000
	}
	if c.NestingDepth < 0 {
		c.NestingDepth = 0
	}
	if c.NamedCacheTTL <= 0 {
		c.NamedCacheTTL = 10 * time.Minute
	}
	return c
}

// Database holds one Store per resource type, sharing a gorm connection, the link store and
// the named relation resolver.
type Database struct {
	db       *gorm.DB
	config   Config
	registry *catalog.Registry
	links    *LinkStore
	named    *NamedResolver

	stores   []Store
	byName   map[string]Store
	byPlural map[string]Store
	byTable  map[string]Store
}

// New initializes a Database with a repository for every resource in registry
func New(db *gorm.DB, registry *catalog.Registry, config Config) (*Database, error) {
	config = config.withDefaults()
	d := &Database{
		db:       db,
		config:   config,
		registry: registry,
		links:    NewLinkStore(registry),
		named:    NewNamedResolver(registry, config.NamedCacheTTL),
		byName:   make(map[string]Store),
		byPlural: make(map[string]Store),
		byTable:  make(map[string]Store),
	}

	constructors := []func() (Store, error){
		func() (Store, error) { return newRepository[models.Organisation](db, models.OrganisationName, d) },
		func() (Store, error) { return newRepository[models.Publication](db, models.PublicationName, d) },
		func() (Store, error) { return newRepository[models.Dataset](db, models.DatasetName, d) },
		func() (Store, error) { return newRepository[models.Project](db, models.ProjectName, d) },
		func() (Store, error) {
			return newRepository[models.EducationalResource](db, models.EducationalResourceName, d)
		},
		func() (Store, error) {
			return newRepository[models.ComputationalResource](db, models.ComputationalResourceName, d)
		},
		func() (Store, error) { return newRepository[models.News](db, models.NewsName, d) },
		func() (Store, error) { return newRepository[models.Event](db, models.EventName, d) },
		func() (Store, error) { return newRepository[models.CodeArtifact](db, models.CodeArtifactName, d) },
	}
	for _, construct := range constructors {
		store, err := construct()
		if err != nil {
			return nil, err
		}
		desc := store.Descriptor()
		d.stores = append(d.stores, store)
		d.byName[desc.Name] = store
		d.byPlural[desc.Plural] = store
		d.byTable[desc.Table] = store
	}

	for _, desc := range registry.Descriptors() {
		if _, ok := d.byName[desc.Name]; !ok {
			return nil, fmt.Errorf("no repository for resource %s", desc.Name)
		}
	}
	return d, nil
}

// Accessor methods

func (d *Database) DB() *gorm.DB {
	return d.db
}

func (d *Database) Registry() *catalog.Registry {
	return d.registry
}

func (d *Database) Named() *NamedResolver {
	return d.named
}

// Stores returns every store in registration order.
func (d *Database) Stores() []Store {
	return append([]Store(nil), d.stores...)
}

func (d *Database) Store(name string) (Store, bool) {
	s, ok := d.byName[name]
	return s, ok
}

func (d *Database) StoreByPlural(plural string) (Store, bool) {
	s, ok := d.byPlural[plural]
	return s, ok
}

func (d *Database) renderNested(tx *gorm.DB, table string, ids []uint, depth int) (map[uint]json.RawMessage, error) {
	store, ok := d.byTable[table]
	if !ok {
		return nil, fmt.Errorf("no repository for table %s", table)
	}
	return store.renderByIdentifier(tx, ids, depth)
}

// Platforms lists the registered platforms ordered by name.
func (d *Database) Platforms(ctx context.Context) ([]models.Platform, error) {
	var platforms []models.Platform
	if err := d.db.WithContext(ctx).Order("name").Find(&platforms).Error; err != nil {
		return nil, errs.NewDatabaseError("list", "platforms", err)
	}
	return platforms, nil
}

// Migrate creates every table, index and link table and seeds the platforms and closed
// vocabularies. It is idempotent.
func (d *Database) Migrate(ctx context.Context) error {
	db := d.db.WithContext(ctx)

	if err := db.AutoMigrate(&models.Platform{}, &models.AIAsset{}); err != nil {
		return fmt.Errorf("migrate platform and ai_asset: %w", err)
	}
	for _, name := range models.Platforms {
		platform := models.Platform{Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&platform).Error; err != nil {
			return fmt.Errorf("seed platform %s: %w", name, err)
		}
	}

	if err := d.named.Migrate(db); err != nil {
		return err
	}

	for _, model := range models.All() {
		table := model.TableName()
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
		unique := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s_same_platform_and_platform_identifier ON %s (platform, platform_identifier)",
			table, table,
		)
		if err := db.Exec(unique).Error; err != nil {
			return fmt.Errorf("index %s: %w", table, err)
		}
	}

	return d.links.Migrate(db)
}
