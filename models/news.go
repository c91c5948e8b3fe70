package models

import "time"

type News struct {
	Resource
	Title               string     `json:"title" gorm:"column:title;type:varchar(500);not null" validate:"required,max=500"`
	Body                string     `json:"body" gorm:"column:body;type:text;not null" validate:"required,max=10000"`
	Section             string     `json:"section" gorm:"column:section;type:varchar(500);not null" validate:"required,max=500"`
	Headline            string     `json:"headline" gorm:"column:headline;type:varchar(500);not null" validate:"required,max=500"`
	WordCount           *int       `json:"word_count" gorm:"column:word_count;not null" validate:"required,gte=0"`
	DateModified        *time.Time `json:"date_modified" gorm:"column:date_modified"`
	Source              *string    `json:"source" gorm:"column:source;type:varchar(500)" validate:"omitempty,max=500"`
	AlternativeHeadline *string    `json:"alternative_headline" gorm:"column:alternative_headline;type:varchar(500)" validate:"omitempty,max=500"`
}

func (News) TableName() string {
	return "news"
}
