package models

import "time"

type Publication struct {
	AIResource
	Title             string     `json:"title" gorm:"column:title;type:varchar(256);not null" validate:"required,max=256"`
	DOI               *string    `json:"doi" gorm:"column:doi;type:varchar(150)" validate:"omitempty,max=150"`
	Creators          *string    `json:"creators" gorm:"column:creators;type:varchar(450)" validate:"omitempty,max=450"`
	AccessRight       *string    `json:"access_right" gorm:"column:access_right;type:varchar(150)" validate:"omitempty,max=150"`
	URL               *string    `json:"url" gorm:"column:url;type:varchar(256)" validate:"omitempty,url,max=256"`
	DatePublished     *time.Time `json:"date_published" gorm:"column:date_published"`
	LicenseIdentifier *uint      `json:"-" gorm:"column:license_identifier;index"`
}

func (Publication) TableName() string {
	return "publication"
}
