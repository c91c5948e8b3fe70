package models

import (
	"time"

	"gorm.io/datatypes"
)

// Organisation is a legal entity: a company, a university or a funding body.
type Organisation struct {
	Resource
	Name        string                      `json:"name" gorm:"column:name;type:varchar(256);not null" validate:"required,max=256"`
	Description *string                     `json:"description" gorm:"column:description;type:text" validate:"omitempty,max=5000"`
	LegalName   *string                     `json:"legal_name" gorm:"column:legal_name;type:varchar(256)" validate:"omitempty,max=256"`
	SameAs      *string                     `json:"same_as" gorm:"column:same_as;type:varchar(256)" validate:"omitempty,url,max=256"`
	DateFounded *time.Time                  `json:"date_founded" gorm:"column:date_founded"`
	Email       datatypes.JSONSlice[string] `json:"email" gorm:"column:email;type:json" validate:"dive,email"`
}

func (Organisation) TableName() string {
	return "organisation"
}
