package database

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/rpupo63/metadata-catalog/catalog"
	"github.com/rpupo63/metadata-catalog/errs"
)

// LinkStore reads and writes the association rows of list relationships.
type LinkStore struct {
	registry *catalog.Registry
	// fields names the relationships stored in each link table, for error messages.
	fields map[string][]string
}

func NewLinkStore(registry *catalog.Registry) *LinkStore {
	fields := make(map[string][]string)
	for _, d := range registry.Descriptors() {
		for _, spec := range registry.Ordered(d.Name) {
			if spec.Arity != catalog.List {
				continue
			}
			name := catalog.LinkFor(d, spec).Name
			fields[name] = append(fields[name], d.Name+"."+spec.Field)
		}
	}
	return &LinkStore{registry: registry, fields: fields}
}

// Migrate creates every link table with its composite primary key and foreign keys.
func (s *LinkStore) Migrate(tx *gorm.DB) error {
	for _, link := range s.registry.Links() {
		if err := tx.Exec(linkDDL(link)).Error; err != nil {
			return fmt.Errorf("create link table %s: %w", link.Name, err)
		}
		index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_target ON %s (%s)", link.Name, link.Name, link.ToColumn)
		if err := tx.Exec(index).Error; err != nil {
			return fmt.Errorf("index link table %s: %w", link.Name, err)
		}
	}
	return nil
}

func linkDDL(link catalog.LinkTable) string {
	action := ""
	if link.OnDelete == catalog.Cascade {
		action = " ON DELETE CASCADE"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s BIGINT NOT NULL REFERENCES %s (identifier)%s,
	%s BIGINT NOT NULL REFERENCES %s (identifier)%s,
	PRIMARY KEY (%s, %s)
)`,
		link.Name,
		link.FromColumn, link.FromTable, action,
		link.ToColumn, link.ToTable, action,
		link.FromColumn, link.ToColumn,
	)
}

// Insert adds one link row per target.
func (s *LinkStore) Insert(tx *gorm.DB, link catalog.LinkTable, inverse bool, owner uint, targets []uint) error {
	if len(targets) == 0 {
		return nil
	}
	ownerColumn, targetColumn := link.Columns(inverse)
	rows := make([]map[string]any, 0, len(targets))
	for _, target := range targets {
		rows = append(rows, map[string]any{ownerColumn: owner, targetColumn: target})
	}
	return tx.Table(link.Name).Create(rows).Error
}

// Sync makes the targets of owner equal desired: removed members are deleted, added members
// inserted and unchanged members left alone.
func (s *LinkStore) Sync(tx *gorm.DB, link catalog.LinkTable, inverse bool, owner uint, desired []uint) error {
	current, err := s.Load(tx, link, inverse, []uint{owner})
	if err != nil {
		return err
	}

	keep := make(map[uint]bool, len(desired))
	for _, id := range desired {
		keep[id] = true
	}
	existing := make(map[uint]bool)
	var removed []uint
	for _, id := range current[owner] {
		existing[id] = true
		if !keep[id] {
			removed = append(removed, id)
		}
	}
	var added []uint
	for _, id := range desired {
		if !existing[id] {
			added = append(added, id)
		}
	}

	if len(removed) > 0 {
		ownerColumn, targetColumn := link.Columns(inverse)
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s IN ?", link.Name, ownerColumn, targetColumn)
		if err := tx.Exec(query, owner, removed).Error; err != nil {
			return err
		}
	}
	return s.Insert(tx, link, inverse, owner, added)
}

type linkPair struct {
	OwnerID  uint
	TargetID uint
}

// Load returns the targets of every owner, ordered by target identifier, in one query.
func (s *LinkStore) Load(tx *gorm.DB, link catalog.LinkTable, inverse bool, owners []uint) (map[uint][]uint, error) {
	out := make(map[uint][]uint, len(owners))
	if len(owners) == 0 {
		return out, nil
	}

	ownerColumn, targetColumn := link.Columns(inverse)
	var pairs []linkPair
	err := tx.Table(link.Name).
		Select(fmt.Sprintf("%s AS owner_id, %s AS target_id", ownerColumn, targetColumn)).
		Where(ownerColumn+" IN ?", owners).
		Order(ownerColumn).
		Order(targetColumn).
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		out[p.OwnerID] = append(out[p.OwnerID], p.TargetID)
	}
	return out, nil
}

// ReleaseOrBlock applies the delete policy of every association touching the row identifier
// of resource (and its AI asset row when assetIdentifier is set). Cascade associations are
// removed or nulled; any Restrict association still present blocks the deletion.
func (s *LinkStore) ReleaseOrBlock(tx *gorm.DB, resource *catalog.Descriptor, identifier, assetIdentifier uint) error {
	for _, link := range s.registry.Links() {
		for _, column := range s.columnsOf(link, resource.Table, assetIdentifier != 0) {
			key := identifier
			if column.table == catalog.AssetTable {
				key = assetIdentifier
			}

			if link.OnDelete == catalog.Restrict {
				var count int64
				if err := tx.Table(link.Name).Where(column.name+" = ?", key).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return errs.NewDependencyConflictError(resource.Name, identifier, s.describe(link))
				}
				continue
			}

			query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", link.Name, column.name)
			if err := tx.Exec(query, key).Error; err != nil {
				return err
			}
		}
	}

	for _, ref := range s.registry.SingleReferencesTo(resource.Table) {
		if ref.Spec.OnDelete == catalog.Restrict {
			var count int64
			if err := tx.Table(ref.Owner.Table).Where(ref.Spec.Column+" = ?", identifier).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return errs.NewDependencyConflictError(resource.Name, identifier, ref.Owner.Name+"."+ref.Spec.Field)
			}
			continue
		}

		query := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?", ref.Owner.Table, ref.Spec.Column, ref.Spec.Column)
		if err := tx.Exec(query, identifier).Error; err != nil {
			return err
		}
	}
	return nil
}

type linkColumn struct {
	table string
	name  string
}

// columnsOf returns the columns of link that reference table, or the AI asset table.
func (s *LinkStore) columnsOf(link catalog.LinkTable, table string, asset bool) []linkColumn {
	var out []linkColumn
	for _, side := range []linkColumn{{link.FromTable, link.FromColumn}, {link.ToTable, link.ToColumn}} {
		if side.table == table || (asset && side.table == catalog.AssetTable) {
			out = append(out, side)
		}
	}
	return out
}

func (s *LinkStore) describe(link catalog.LinkTable) string {
	fields := append([]string(nil), s.fields[link.Name]...)
	if len(fields) == 0 {
		return link.Name
	}
	sort.Strings(fields)
	return strings.Join(fields, ", ")
}
