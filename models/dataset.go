package models

import (
	"time"

	"gorm.io/datatypes"
)

// Distribution is a downloadable form of a dataset.
type Distribution struct {
	ContentURL     string  `json:"content_url" validate:"required,url,max=256"`
	ContentSizeKB  *int    `json:"content_size_kb" validate:"omitempty,gte=0"`
	EncodingFormat *string `json:"encoding_format" validate:"omitempty,max=256"`
	Name           *string `json:"name" validate:"omitempty,max=150"`
}

type Dataset struct {
	AIResource
	Name                string                            `json:"name" gorm:"column:name;type:varchar(256);not null" validate:"required,max=256"`
	Description         string                            `json:"description" gorm:"column:description;type:text;not null" validate:"required,max=5000"`
	SameAs              string                            `json:"same_as" gorm:"column:same_as;type:varchar(256);not null" validate:"required,url,max=256"`
	Version             *string                           `json:"version" gorm:"column:version;type:varchar(150)" validate:"omitempty,max=150"`
	ISSN                *string                           `json:"issn" gorm:"column:issn;type:varchar(8)" validate:"omitempty,len=8"`
	Size                *int                              `json:"size" gorm:"column:size" validate:"omitempty,gte=0"`
	IsAccessibleForFree *bool                             `json:"is_accessible_for_free" gorm:"column:is_accessible_for_free"`
	DatePublished       *time.Time                        `json:"date_published" gorm:"column:date_published"`
	Distribution        datatypes.JSONSlice[Distribution] `json:"distribution" gorm:"column:distribution;type:json" validate:"dive"`
	LicenseIdentifier   *uint                             `json:"-" gorm:"column:license_identifier;index"`
}

func (Dataset) TableName() string {
	return "dataset"
}
