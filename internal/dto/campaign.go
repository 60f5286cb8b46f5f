package dto

// CampaignRequest creates a campaign. Dates use YYYY-MM-DD.
type CampaignRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	Description    string `json:"description" validate:"max=4000"`
	StartDate      string `json:"startDate" validate:"required"`
	EndDate        string `json:"endDate" validate:"required"`
	HealthCenterID string `json:"healthCenterId"`
	TargetAudience string `json:"targetAudience" validate:"max=200"`
}

// CampaignStatusRequest moves a campaign through its lifecycle.
type CampaignStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=planned active completed"`
}

// CampaignQuery captures GET /campaigns filters.
type CampaignQuery struct {
	HealthCenterID string `form:"healthCenterId"`
	Status         string `form:"status"`
	Search         string `form:"search"`
}

// ActivityRequest records one campaign activity.
type ActivityRequest struct {
	Type      string  `json:"activityType" validate:"required,oneof=awareness_session health_screening vaccination other"`
	Date      string  `json:"date" validate:"required"`
	Location  string  `json:"location" validate:"required,max=200"`
	Attendees int     `json:"attendees" validate:"gte=0,lte=1000000"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// RegisterRequest is a public self-registration.
type RegisterRequest struct {
	Email          string  `json:"email" validate:"required,email"`
	Password       string  `json:"password" validate:"required,min=8"`
	FullName       string  `json:"fullName" validate:"required,max=200"`
	HealthCenterID *string `json:"healthCenterId,omitempty"`
	Phone          *string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// ApproveRegistrationRequest grants a role to a pending account.
type ApproveRegistrationRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN USER"`
}

// RejectRegistrationRequest declines a pending account.
type RejectRegistrationRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}
