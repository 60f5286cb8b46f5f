package models

import (
	"time"

	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

// StatCategory is a persisted registry category.
type StatCategory struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	NameAr      *string   `db:"name_ar" json:"name_ar,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	SortOrder   int       `db:"sort_order" json:"order"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ToStats converts the row to the aggregation library type.
func (c StatCategory) ToStats() stats.Category {
	var desc, nameAr string
	if c.Description != nil {
		desc = *c.Description
	}
	if c.NameAr != nil {
		nameAr = *c.NameAr
	}
	return stats.Category{ID: c.ID, Name: c.Name, NameAr: nameAr, Description: desc, Order: c.SortOrder, IsActive: c.IsActive}
}

// StatTopic is a persisted registry topic.
type StatTopic struct {
	ID         string    `db:"id" json:"id"`
	CategoryID string    `db:"category_id" json:"category_id"`
	Name       string    `db:"name" json:"name"`
	NameAr     *string   `db:"name_ar" json:"name_ar,omitempty"`
	SortOrder  int       `db:"sort_order" json:"order"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ToStats converts the row to the aggregation library type.
func (t StatTopic) ToStats() stats.Topic {
	var nameAr string
	if t.NameAr != nil {
		nameAr = *t.NameAr
	}
	return stats.Topic{ID: t.ID, CategoryID: t.CategoryID, Name: t.Name, NameAr: nameAr, Order: t.SortOrder, IsActive: t.IsActive}
}

// TopicFilter narrows topic listings.
type TopicFilter struct {
	CategoryID      string
	IncludeInactive bool
}
