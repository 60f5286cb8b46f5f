package dto

// HealthCenterRequest captures health center create/update payloads.
type HealthCenterRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Code      string  `json:"code" validate:"required,max=32"`
	District  *string `json:"district,omitempty"`
	Address   *string `json:"address,omitempty"`
	ManagerID *string `json:"managerId,omitempty"`
	IsActive  *bool   `json:"isActive,omitempty"`
}
