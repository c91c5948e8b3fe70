package models

import "time"

// Project represents a funded research project and the assets it produced or used.
type Project struct {
	AIResource
	Name                  string     `json:"name" gorm:"column:name;type:varchar(256);not null" validate:"required,max=256"`
	StartDate             *time.Time `json:"start_date" gorm:"column:start_date"`
	EndDate               *time.Time `json:"end_date" gorm:"column:end_date"`
	TotalCostEuro         *Amount    `json:"total_cost_euro" gorm:"column:total_cost_euro;type:numeric(12,2)"`
	CoordinatorIdentifier *uint      `json:"-" gorm:"column:coordinator_identifier;index"`
}

func (Project) TableName() string {
	return "project"
}
