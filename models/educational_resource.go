package models

type EducationalResource struct {
	AIResource
	Title               string  `json:"title" gorm:"column:title;type:varchar(256);not null" validate:"required,max=256"`
	Body                string  `json:"body" gorm:"column:body;type:text;not null" validate:"required,max=10000"`
	WebsiteURL          string  `json:"website_url" gorm:"column:website_url;type:varchar(256);not null" validate:"required,url,max=256"`
	EducationalLevel    *string `json:"educational_level" gorm:"column:educational_level;type:varchar(256)" validate:"omitempty,max=256"`
	Pace                *string `json:"pace" gorm:"column:pace;type:varchar(256)" validate:"omitempty,max=256"`
	TimeRequiredMinutes *int    `json:"time_required_minutes" gorm:"column:time_required_minutes" validate:"omitempty,gte=0"`
}

func (EducationalResource) TableName() string {
	return "educational_resource"
}
