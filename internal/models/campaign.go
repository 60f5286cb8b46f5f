package models

import "time"

// CampaignStatus tracks a campaign from planning to completion.
type CampaignStatus string

const (
	CampaignPlanned   CampaignStatus = "planned"
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
)

var campaignStatusRank = map[CampaignStatus]int{
	CampaignPlanned:   0,
	CampaignActive:    1,
	CampaignCompleted: 2,
}

// Valid reports whether the status is known.
func (s CampaignStatus) Valid() bool {
	_, ok := campaignStatusRank[s]
	return ok
}

// Precedes reports whether next comes after s in the campaign lifecycle.
// Campaigns only move forward.
func (s CampaignStatus) Precedes(next CampaignStatus) bool {
	from, okFrom := campaignStatusRank[s]
	to, okTo := campaignStatusRank[next]
	return okFrom && okTo && to > from
}

// Campaign is a health-promotion campaign run by one health center.
type Campaign struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	StartDate      time.Time      `db:"start_date" json:"start_date"`
	EndDate        time.Time      `db:"end_date" json:"end_date"`
	HealthCenterID string         `db:"health_center_id" json:"health_center_id"`
	CenterName     string         `db:"center_name" json:"center_name"`
	TargetAudience string         `db:"target_audience" json:"target_audience"`
	Status         CampaignStatus `db:"status" json:"status"`
	CreatedBy      string         `db:"created_by" json:"created_by"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// CampaignFilter narrows campaign listings.
type CampaignFilter struct {
	HealthCenterID string
	Status         CampaignStatus
	Search         string
}

// CampaignStats counts campaigns per status.
type CampaignStats struct {
	Total     int `json:"total"`
	Planned   int `json:"planned"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// StatusCount is one row of a GROUP BY status query.
type StatusCount struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// ActivityType classifies what happened during a campaign activity.
type ActivityType string

const (
	ActivityAwarenessSession ActivityType = "awareness_session"
	ActivityHealthScreening  ActivityType = "health_screening"
	ActivityVaccination      ActivityType = "vaccination"
	ActivityOther            ActivityType = "other"
)

// Activity is one field event of a campaign.
type Activity struct {
	ID         string       `db:"id" json:"id"`
	CampaignID string       `db:"campaign_id" json:"campaign_id"`
	Type       ActivityType `db:"activity_type" json:"activity_type"`
	Date       time.Time    `db:"activity_date" json:"date"`
	Location   string       `db:"location" json:"location"`
	Attendees  int          `db:"attendees" json:"attendees"`
	Notes      *string      `db:"notes" json:"notes,omitempty"`
	CreatedBy  string       `db:"created_by" json:"created_by"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// ActivityStats summarises activities: how many, how many people they
// reached, and how many of each type.
type ActivityStats struct {
	Total          int            `json:"total"`
	TotalAttendees int64          `json:"total_attendees"`
	ByType         map[string]int `json:"by_type"`
}
