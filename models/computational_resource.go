package models

type ComputationalResource struct {
	AIResource
	Name        string  `json:"name" gorm:"column:name;type:varchar(256);not null" validate:"required,max=256"`
	Description *string `json:"description" gorm:"column:description;type:text" validate:"omitempty,max=5000"`
	Type        *string `json:"type" gorm:"column:type;type:varchar(256)" validate:"omitempty,max=256"`
	Location    *string `json:"location" gorm:"column:location;type:varchar(256)" validate:"omitempty,max=256"`
	Validity    *int    `json:"validity" gorm:"column:validity" validate:"omitempty,gte=0"`
	Complexity  *string `json:"complexity" gorm:"column:complexity;type:varchar(256)" validate:"omitempty,max=256"`
}

func (ComputationalResource) TableName() string {
	return "computational_resource"
}
