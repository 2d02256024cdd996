package models

// ErrorResponse is a standardized error response for API
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// AllModels lists every entity handled by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Chat{},
		&ChatParticipant{},
		&Message{},
	}
}
