package dto

// CategoryRequest captures category create/update payloads.
type CategoryRequest struct {
	ID          string  `json:"id" validate:"omitempty,max=64"`
	Name        string  `json:"name" validate:"required,max=200"`
	NameAr      *string `json:"nameAr,omitempty"`
	Description *string `json:"description,omitempty"`
	Order       int     `json:"order" validate:"gte=0"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// TopicRequest captures topic create/update payloads.
type TopicRequest struct {
	ID         string  `json:"id" validate:"omitempty,max=128"`
	CategoryID string  `json:"categoryId" validate:"required"`
	Name       string  `json:"name" validate:"required,max=200"`
	NameAr     *string `json:"nameAr,omitempty"`
	Order      int     `json:"order" validate:"gte=0"`
	IsActive   *bool   `json:"isActive,omitempty"`
}

// RegistryTopic is a topic entry of the ordered registry listing.
type RegistryTopic struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
	IsActive bool   `json:"isActive"`
}

// RegistryCategory is a category entry of the ordered registry listing.
type RegistryCategory struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Order       int             `json:"order"`
	IsActive    bool            `json:"isActive"`
	Topics      []RegistryTopic `json:"topics"`
}
