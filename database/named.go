package database

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rpupo63/metadata-catalog/catalog"
	"github.com/rpupo63/metadata-catalog/errs"
	"github.com/rpupo63/metadata-catalog/models"
)

// NamedResolver maps names of enum-like lookup tables to identifiers and back.
type NamedResolver struct {
	registry *catalog.Registry
	// ids caches table+name -> identifier of values committed before the lookup.
	ids *cache.Cache
}

func NewNamedResolver(registry *catalog.Registry, ttl time.Duration) *NamedResolver {
	return &NamedResolver{
		registry: registry,
		ids:      cache.New(ttl, 2*ttl),
	}
}

func cacheKey(table, name string) string {
	return table + "\x00" + name
}

// Migrate creates every lookup table and seeds the closed vocabularies.
func (r *NamedResolver) Migrate(tx *gorm.DB) error {
	for _, n := range r.registry.NamedRelations() {
		if err := tx.Table(n.Table).AutoMigrate(&models.NamedValue{}); err != nil {
			return fmt.Errorf("create named relation %s: %w", n.Table, err)
		}
		index := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_name_key ON %s (name)", n.Table, n.Table)
		if err := tx.Exec(index).Error; err != nil {
			return fmt.Errorf("index named relation %s: %w", n.Table, err)
		}
		for _, name := range n.Seed {
			value := models.NamedValue{Name: name}
			if err := tx.Table(n.Table).Clauses(clause.OnConflict{DoNothing: true}).Create(&value).Error; err != nil {
				return fmt.Errorf("seed %s: %w", n.Table, err)
			}
		}
	}
	return nil
}

// Resolve returns the identifiers of names in table, in input order. Unknown names are created
// for open vocabularies and reported as NotFound for closed ones.
func (r *NamedResolver) Resolve(tx *gorm.DB, field, table string, names []string) ([]uint, error) {
	if len(names) == 0 {
		return nil, nil
	}
	relation, ok := r.registry.Named(table)
	if !ok {
		return nil, fmt.Errorf("unknown named relation %s", table)
	}

	found := make(map[string]uint, len(names))
	var lookup []string
	for _, name := range names {
		if id, ok := r.ids.Get(cacheKey(table, name)); ok {
			found[name] = id.(uint)
			continue
		}
		lookup = append(lookup, name)
	}

	if len(lookup) > 0 {
		var rows []models.NamedValue
		if err := tx.Table(table).Where("name IN ?", lookup).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			found[row.Name] = row.Identifier
			r.ids.SetDefault(cacheKey(table, row.Name), row.Identifier)
		}
	}

	ids := make([]uint, 0, len(names))
	for _, name := range names {
		if id, ok := found[name]; ok {
			ids = append(ids, id)
			continue
		}
		if !relation.Open {
			return nil, errs.NewReferenceNotFound(field, table, name)
		}
		id, err := r.create(tx, table, name)
		if err != nil {
			return nil, err
		}
		found[name] = id
		ids = append(ids, id)
	}
	return ids, nil
}

// create inserts name, tolerating a concurrent insert of the same name. The identifier is not
// cached until the surrounding transaction has committed and a later lookup finds it.
func (r *NamedResolver) create(tx *gorm.DB, table, name string) (uint, error) {
	value := models.NamedValue{Name: name}
	if err := tx.Table(table).Clauses(clause.OnConflict{DoNothing: true}).Create(&value).Error; err != nil {
		return 0, err
	}
	if value.Identifier != 0 {
		return value.Identifier, nil
	}

	var existing models.NamedValue
	if err := tx.Table(table).Where("name = ?", name).First(&existing).Error; err != nil {
		return 0, err
	}
	return existing.Identifier, nil
}

// Names returns the name of every identifier found in table.
func (r *NamedResolver) Names(tx *gorm.DB, table string, ids []uint) (map[uint]string, error) {
	out := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.NamedValue
	if err := tx.Table(table).Where("identifier IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Identifier] = row.Name
	}
	return out, nil
}

// All lists the values of table ordered by name.
func (r *NamedResolver) All(tx *gorm.DB, table string) ([]string, error) {
	if _, ok := r.registry.Named(table); !ok {
		return nil, errs.NewNotFound(fmt.Sprintf("named relation %s", table))
	}
	var names []string
	if err := tx.Table(table).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}
