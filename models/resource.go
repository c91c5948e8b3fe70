package models

// Model is implemented by every catalog resource row.
type Model interface {
	TableName() string
	Base() *Resource
}

// AssetModel is implemented by resources that are also AI assets.
type AssetModel interface {
	Model
	Asset() *AIResource
}

// Resource holds the columns shared by every catalog resource. platform and
// platform_identifier are either both set or both null.
type Resource struct {
	Identifier         uint    `json:"-" gorm:"column:identifier;primaryKey;autoIncrement"`
	Platform           *string `json:"platform" gorm:"column:platform;type:varchar(64);check:,(platform IS NULL) = (platform_identifier IS NULL)" validate:"omitempty,max=64"`
	PlatformIdentifier *string `json:"platform_identifier" gorm:"column:platform_identifier;type:varchar(256)" validate:"omitempty,max=256"`
}

func (r *Resource) Base() *Resource {
	return r
}

// AIResource is a Resource with a row in the shared ai_asset table.
type AIResource struct {
	Resource
	AIAssetIdentifier uint `json:"-" gorm:"column:ai_asset_identifier;not null;uniqueIndex"`
}

func (a *AIResource) Asset() *AIResource {
	return a
}

// AIAsset is the supertype row of every AI resource; Type names the concrete resource.
type AIAsset struct {
	Identifier uint   `json:"identifier" gorm:"column:identifier;primaryKey;autoIncrement"`
	Type       string `json:"type" gorm:"column:type;type:varchar(64);not null;index"`
}

func (AIAsset) TableName() string {
	return "ai_asset"
}

// Platform is a registered source of catalog metadata.
type Platform struct {
	Identifier uint   `json:"identifier" gorm:"column:identifier;primaryKey;autoIncrement"`
	Name       string `json:"name" gorm:"column:name;type:varchar(64);not null;uniqueIndex"`
}

func (Platform) TableName() string {
	return "platform"
}

// NamedValue is a row of an enum-like lookup table. It has no table of its own; callers pick
// the table with db.Table. The unique index on name is created per table by the migration.
type NamedValue struct {
	Identifier uint   `json:"identifier" gorm:"column:identifier;primaryKey;autoIncrement"`
	Name       string `json:"name" gorm:"column:name;type:varchar(256);not null"`
}
