package database

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/rpupo63/metadata-catalog/catalog"
	"github.com/rpupo63/metadata-catalog/errs"
	"github.com/rpupo63/metadata-catalog/models"
)

// Store is the type-erased view of a Repository used by the router and by ingestion.
type Store interface {
	Descriptor() *catalog.Descriptor
	CreateFields() []catalog.FieldSpec
	ReadFields() []catalog.FieldSpec

	CreateJSON(ctx context.Context, body []byte) (uint, error)
	Get(ctx context.Context, identifier uint) (json.Marshaler, error)
	Page(ctx context.Context, offset, limit int) ([]json.Marshaler, error)
	UpdateJSON(ctx context.Context, identifier uint, body []byte) (json.Marshaler, error)
	Delete(ctx context.Context, identifier uint) error
	FindByPlatform(ctx context.Context, platform, platformIdentifier string) (uint, bool, error)
	Count(ctx context.Context) (int64, error)

	renderByIdentifier(tx *gorm.DB, ids []uint, depth int) (map[uint]json.RawMessage, error)
}

// nestedRenderer renders rows of another table for nested relationships.
type nestedRenderer func(tx *gorm.DB, table string, ids []uint, depth int) (map[uint]json.RawMessage, error)

// Repository implements create, read, update and delete for one resource type.
type Repository[T any, P interface {
	*T
	models.Model
}] struct {
	db         *gorm.DB
	registry   *catalog.Registry
	descriptor *catalog.Descriptor
	create     *catalog.CreateSchema[T]
	read       *catalog.ReadSchema[T]
	links      *LinkStore
	named      *NamedResolver
	nested     nestedRenderer
	maxLimit   int
	maxDepth   int
}

func newRepository[T any, P interface {
	*T
	models.Model
}](db *gorm.DB, name string, shared *Database) (*Repository[T, P], error) {
	create, err := catalog.DeriveCreate[T](shared.registry, name)
	if err != nil {
		return nil, err
	}
	read, err := catalog.DeriveRead[T](shared.registry, name)
	if err != nil {
		return nil, err
	}
	return &Repository[T, P]{
		db:         db,
		registry:   shared.registry,
		descriptor: create.Descriptor(),
		create:     create,
		read:       read,
		links:      shared.links,
		named:      shared.named,
		nested:     shared.renderNested,
		maxLimit:   shared.config.MaxPageLimit,
		maxDepth:   shared.config.NestingDepth,
	}, nil
}

func (r *Repository[T, P]) Descriptor() *catalog.Descriptor {
	return r.descriptor
}

func (r *Repository[T, P]) CreateFields() []catalog.FieldSpec {
	return r.create.Fields()
}

func (r *Repository[T, P]) ReadFields() []catalog.FieldSpec {
	return r.read.Fields()
}

// CreateJSON decodes a create payload and stores it.
func (r *Repository[T, P]) CreateJSON(ctx context.Context, body []byte) (uint, error) {
	in, err := r.create.Decode(body)
	if err != nil {
		return 0, err
	}
	return r.Create(ctx, in)
}

// Create stores the row, its AI asset row and its relationships in one transaction and
// returns the new identifier.
func (r *Repository[T, P]) Create(ctx context.Context, in *catalog.Create[T]) (uint, error) {
	row := P(&in.Row)
	base := row.Base()
	base.Identifier = 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.checkPlatform(tx, base, 0); err != nil {
			return err
		}
		if asset, ok := any(row).(models.AssetModel); ok {
			supertype := models.AIAsset{Type: r.descriptor.Name}
			if err := tx.Create(&supertype).Error; err != nil {
				return errs.NewDatabaseError("create", "ai_asset", err)
			}
			asset.Asset().AIAssetIdentifier = supertype.Identifier
		}
		if err := tx.Omit(r.singleColumns()...).Create(row).Error; err != nil {
			return err
		}
		return r.writeRelationships(tx, row, in.Refs, false)
	})
	if err != nil {
		return 0, r.writeError(ctx, "create", base, err)
	}
	return base.Identifier, nil
}

// Retrieve returns the read shape of one row with its relationships.
func (r *Repository[T, P]) Retrieve(ctx context.Context, identifier uint) (*catalog.Read[T], error) {
	return r.retrieve(r.db.WithContext(ctx), identifier)
}

func (r *Repository[T, P]) retrieve(db *gorm.DB, identifier uint) (*catalog.Read[T], error) {
	row, err := r.find(db, identifier)
	if err != nil {
		return nil, err
	}
	reads, err := r.render(db, []T{*row}, 0)
	if err != nil {
		return nil, errs.NewDatabaseError("load relationships of", r.descriptor.Name, err)
	}
	return reads[0], nil
}

func (r *Repository[T, P]) Get(ctx context.Context, identifier uint) (json.Marshaler, error) {
	read, err := r.Retrieve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return read, nil
}

// List returns a page of rows ordered by identifier. The limit is clamped to the configured
// maximum page size.
func (r *Repository[T, P]) List(ctx context.Context, offset, limit int) ([]*catalog.Read[T], error) {
	if offset < 0 {
		return nil, errs.NewInvalidFieldError("offset", "must be greater than or equal to 0")
	}
	if limit < 0 {
		return nil, errs.NewInvalidFieldError("limit", "must be greater than or equal to 0")
	}
	if r.maxLimit > 0 && limit > r.maxLimit {
		limit = r.maxLimit
	}
	if limit == 0 {
		return []*catalog.Read[T]{}, nil
	}

	db := r.db.WithContext(ctx)
	var rows []T
	if err := db.Order("identifier").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, errs.NewDatabaseError("list", r.descriptor.Plural, err)
	}
	reads, err := r.render(db, rows, 0)
	if err != nil {
		return nil, errs.NewDatabaseError("load relationships of", r.descriptor.Plural, err)
	}
	return reads, nil
}

func (r *Repository[T, P]) Page(ctx context.Context, offset, limit int) ([]json.Marshaler, error) {
	reads, err := r.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	out := make([]json.Marshaler, len(reads))
	for i, read := range reads {
		out[i] = read
	}
	return out, nil
}

// UpdateJSON decodes a full create payload and replaces the stored row with it.
func (r *Repository[T, P]) UpdateJSON(ctx context.Context, identifier uint, body []byte) (json.Marshaler, error) {
	in, err := r.create.Decode(body)
	if err != nil {
		return nil, err
	}
	read, err := r.Update(ctx, identifier, in)
	if err != nil {
		return nil, err
	}
	return read, nil
}

// Update replaces every plain field and relationship of the row; omitted fields take their
// defaults. The identifier and the AI asset row are kept.
func (r *Repository[T, P]) Update(ctx context.Context, identifier uint, in *catalog.Create[T]) (*catalog.Read[T], error) {
	row := P(&in.Row)
	base := row.Base()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.find(tx, identifier)
		if err != nil {
			return err
		}
		base.Identifier = identifier
		if asset, ok := any(row).(models.AssetModel); ok {
			asset.Asset().AIAssetIdentifier = any(P(existing)).(models.AssetModel).Asset().AIAssetIdentifier
		}
		if err := r.checkPlatform(tx, base, identifier); err != nil {
			return err
		}
		if err := tx.Omit(r.singleColumns()...).Save(row).Error; err != nil {
			return err
		}
		return r.writeRelationships(tx, row, in.Refs, true)
	})
	if err != nil {
		return nil, r.writeError(ctx, "update", base, err)
	}
	// read back from the primary, a replica may lag behind the write
	return r.retrieve(r.db.WithContext(ctx).Clauses(dbresolver.Write).Session(&gorm.Session{}), identifier)
}

// Delete removes the row and its AI asset row. Cascade associations go with it; a Restrict
// association still in place makes it fail with a conflict.
func (r *Repository[T, P]) Delete(ctx context.Context, identifier uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.find(tx, identifier)
		if err != nil {
			return err
		}
		assetIdentifier := assetIdentifierOf(P(existing))

		if err := r.links.ReleaseOrBlock(tx, r.descriptor, identifier, assetIdentifier); err != nil {
			return errs.NewDatabaseError("delete", r.descriptor.Name, err)
		}
		if err := tx.Delete(P(existing)).Error; err != nil {
			return errs.NewDatabaseError("delete", r.descriptor.Name, err)
		}
		if assetIdentifier != 0 {
			if err := tx.Delete(&models.AIAsset{}, assetIdentifier).Error; err != nil {
				return errs.NewDatabaseError("delete", "ai_asset", err)
			}
		}
		return nil
	})
}

// FindByPlatform returns the identifier of the row registered by platform under
// platformIdentifier.
func (r *Repository[T, P]) FindByPlatform(ctx context.Context, platform, platformIdentifier string) (uint, bool, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(P(new(T))).
		Where("platform = ? AND platform_identifier = ?", platform, platformIdentifier).
		Limit(1).
		Pluck("identifier", &ids).Error
	if err != nil {
		return 0, false, errs.NewDatabaseError("find", r.descriptor.Name, err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (r *Repository[T, P]) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(P(new(T))).Count(&count).Error; err != nil {
		return 0, errs.NewDatabaseError("count", r.descriptor.Plural, err)
	}
	return count, nil
}

func (r *Repository[T, P]) find(tx *gorm.DB, identifier uint) (*T, error) {
	var row T
	err := tx.First(P(&row), identifier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewResourceNotFound(r.descriptor.Name, identifier)
	}
	if err != nil {
		return nil, errs.NewDatabaseError("find", r.descriptor.Name, err)
	}
	return &row, nil
}

// checkPlatform enforces that platform and platform_identifier are set together, that the
// platform is registered and that no other row (except self) uses the same pair.
func (r *Repository[T, P]) checkPlatform(tx *gorm.DB, base *models.Resource, self uint) error {
	if (base.Platform == nil) != (base.PlatformIdentifier == nil) {
		return errs.NewInvalidFieldError("platform_identifier", "platform and platform_identifier must either both be set or both be empty")
	}
	if base.Platform == nil {
		return nil
	}

	var platforms int64
	if err := tx.Model(&models.Platform{}).Where("name = ?", *base.Platform).Count(&platforms).Error; err != nil {
		return errs.NewDatabaseError("find", "platform", err)
	}
	if platforms == 0 {
		return errs.NewReferenceNotFound("platform", "platform", *base.Platform)
	}

	existing, found, err := r.samePlatform(tx, base, self)
	if err != nil {
		return err
	}
	if found {
		return errs.NewDuplicateResourceError(r.descriptor.Name, *base.Platform, *base.PlatformIdentifier, existing)
	}
	return nil
}

func (r *Repository[T, P]) samePlatform(tx *gorm.DB, base *models.Resource, self uint) (uint, bool, error) {
	var ids []uint
	err := tx.Model(P(new(T))).
		Where("platform = ? AND platform_identifier = ?", *base.Platform, *base.PlatformIdentifier).
		Where("identifier <> ?", self).
		Limit(1).
		Pluck("identifier", &ids).Error
	if err != nil {
		return 0, false, errs.NewDatabaseError("find", r.descriptor.Name, err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// writeError translates a failed, rolled back insert or update. A unique violation that
// slipped past the pre-check (a concurrent writer) is reported like the pre-check would have.
func (r *Repository[T, P]) writeError(ctx context.Context, operation string, base *models.Resource, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) && base.Platform != nil && base.PlatformIdentifier != nil {
		existing, found, lookupErr := r.samePlatform(r.db.WithContext(ctx), base, base.Identifier)
		if lookupErr == nil && found {
			return errs.NewDuplicateResourceError(r.descriptor.Name, *base.Platform, *base.PlatformIdentifier, existing)
		}
	}
	return errs.NewDatabaseError(operation, r.descriptor.Name, err)
}

func (r *Repository[T, P]) singleColumns() []string {
	var columns []string
	for _, spec := range r.registry.Ordered(r.descriptor.Name) {
		if spec.Arity == catalog.Single {
			columns = append(columns, spec.Column)
		}
	}
	return columns
}

// writeRelationships stores every relationship of the create shape. With replace set, link
// rows are synchronised instead of inserted and omitted relationships are cleared.
func (r *Repository[T, P]) writeRelationships(tx *gorm.DB, row P, refs map[string]catalog.Ref, replace bool) error {
	owner := row.Base().Identifier
	for _, spec := range r.registry.Ordered(r.descriptor.Name) {
		if !spec.IncludeInCreate {
			continue
		}
		ids, err := r.resolve(tx, spec, refs[spec.Field])
		if err != nil {
			return err
		}

		switch spec.Arity {
		case catalog.Single:
			if len(ids) == 0 && !replace {
				continue
			}
			var value any
			if len(ids) > 0 {
				value = ids[0]
			}
			if err := tx.Model(row).UpdateColumn(spec.Column, value).Error; err != nil {
				return errs.NewDatabaseError("store "+spec.Field+" of", r.descriptor.Name, err)
			}
		case catalog.List:
			link := catalog.LinkFor(r.descriptor, spec)
			if replace {
				err = r.links.Sync(tx, link, spec.Inverse, owner, ids)
			} else {
				err = r.links.Insert(tx, link, spec.Inverse, owner, ids)
			}
			if err != nil {
				return errs.NewDatabaseError("store "+spec.Field+" of", r.descriptor.Name, err)
			}
		}
	}
	return nil
}

// resolve turns a submitted reference into identifiers of the target table, failing with
// NotFound for identifiers or closed names that do not exist.
func (r *Repository[T, P]) resolve(tx *gorm.DB, spec catalog.RelationshipSpec, ref catalog.Ref) ([]uint, error) {
	switch spec.Deserializer {
	case catalog.FindByName:
		ids, err := r.named.Resolve(tx, spec.Field, spec.Target, ref.Names)
		if err != nil {
			return nil, errs.NewDatabaseError("resolve "+spec.Field+" of", r.descriptor.Name, err)
		}
		return ids, nil
	case catalog.FindByIdentifier:
		if len(ref.IDs) == 0 {
			return nil, nil
		}
		var found []uint
		if err := tx.Table(spec.Target).Where("identifier IN ?", ref.IDs).Pluck("identifier", &found).Error; err != nil {
			return nil, errs.NewDatabaseError("resolve "+spec.Field+" of", r.descriptor.Name, err)
		}
		exists := make(map[uint]bool, len(found))
		for _, id := range found {
			exists[id] = true
		}
		for _, id := range ref.IDs {
			if !exists[id] {
				return nil, errs.NewReferenceNotFound(spec.Field, spec.Target, strconv.FormatUint(uint64(id), 10))
			}
		}
		return ref.IDs, nil
	default:
		return nil, nil
	}
}

type singlePair struct {
	OwnerID  uint
	TargetID *uint
}

// render loads every relationship of rows in one query per relationship and builds their
// read shapes. Nested relationships embed their targets while depth is below the cap.
func (r *Repository[T, P]) render(tx *gorm.DB, rows []T, depth int) ([]*catalog.Read[T], error) {
	ids := make([]uint, len(rows))
	loaded := make([]catalog.Loaded, len(rows))
	for i := range rows {
		ids[i] = P(&rows[i]).Base().Identifier
		loaded[i] = make(catalog.Loaded)
	}
	nested := depth < r.maxDepth

	for _, spec := range r.registry.Ordered(r.descriptor.Name) {
		targets, err := r.targets(tx, spec, ids)
		if err != nil {
			return nil, err
		}

		var all []uint
		for _, t := range targets {
			all = append(all, t...)
		}

		switch {
		case spec.Serializer == catalog.ByName:
			names, err := r.named.Names(tx, spec.Target, all)
			if err != nil {
				return nil, err
			}
			for i, id := range ids {
				var value catalog.Value
				for _, target := range targets[id] {
					if name, ok := names[target]; ok {
						value.Names = append(value.Names, name)
					}
				}
				loaded[i][spec.Field] = value
			}
		case spec.Serializer == catalog.Nested && nested:
			objects, err := r.nested(tx, spec.Target, all, depth+1)
			if err != nil {
				return nil, err
			}
			for i, id := range ids {
				value := catalog.Value{IDs: targets[id]}
				for _, target := range targets[id] {
					if object, ok := objects[target]; ok {
						value.Objects = append(value.Objects, object)
					}
				}
				loaded[i][spec.Field] = value
			}
		default:
			for i, id := range ids {
				loaded[i][spec.Field] = catalog.Value{IDs: targets[id]}
			}
		}
	}

	out := make([]*catalog.Read[T], len(rows))
	for i := range rows {
		out[i] = r.read.Render(rows[i], ids[i], assetIdentifierOf(P(&rows[i])), loaded[i], nested)
	}
	return out, nil
}

// targets returns the related identifiers of every owner for one relationship.
func (r *Repository[T, P]) targets(tx *gorm.DB, spec catalog.RelationshipSpec, owners []uint) (map[uint][]uint, error) {
	if spec.Arity == catalog.List {
		return r.links.Load(tx, catalog.LinkFor(r.descriptor, spec), spec.Inverse, owners)
	}

	out := make(map[uint][]uint, len(owners))
	if len(owners) == 0 {
		return out, nil
	}
	var pairs []singlePair
	err := tx.Table(r.descriptor.Table).
		Select("identifier AS owner_id, "+spec.Column+" AS target_id").
		Where("identifier IN ?", owners).
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if p.TargetID != nil {
			out[p.OwnerID] = []uint{*p.TargetID}
		}
	}
	return out, nil
}

func (r *Repository[T, P]) renderByIdentifier(tx *gorm.DB, ids []uint, depth int) (map[uint]json.RawMessage, error) {
	out := make(map[uint]json.RawMessage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []T
	if err := tx.Where("identifier IN ?", ids).Order("identifier").Find(&rows).Error; err != nil {
		return nil, err
	}
	reads, err := r.render(tx, rows, depth)
	if err != nil {
		return nil, err
	}
	for _, read := range reads {
		encoded, err := json.Marshal(read)
		if err != nil {
			return nil, err
		}
		out[read.Identifier] = encoded
	}
	return out, nil
}

func assetIdentifierOf(row models.Model) uint {
	if asset, ok := row.(models.AssetModel); ok {
		return asset.Asset().AIAssetIdentifier
	}
	return 0
}
