package models

import "time"

type Event struct {
	Resource
	Name                string     `json:"name" gorm:"column:name;type:varchar(256);not null" validate:"required,max=256"`
	Description         string     `json:"description" gorm:"column:description;type:text;not null" validate:"required,max=5000"`
	RegistrationURL     string     `json:"registration_url" gorm:"column:registration_url;type:varchar(256);not null" validate:"required,url,max=256"`
	Location            string     `json:"location" gorm:"column:location;type:varchar(256);not null" validate:"required,max=256"`
	StartDate           *time.Time `json:"start_date" gorm:"column:start_date"`
	EndDate             *time.Time `json:"end_date" gorm:"column:end_date"`
	Status              *string    `json:"status" gorm:"column:status;type:varchar(64)" validate:"omitempty,max=64"`
	AttendanceMode      *string    `json:"attendance_mode" gorm:"column:attendance_mode;type:varchar(64)" validate:"omitempty,max=64"`
	OrganiserIdentifier *uint      `json:"-" gorm:"column:organiser_identifier;index"`
}

func (Event) TableName() string {
	return "event"
}
