package api

import "github.com/realtyvoice/backend/domain/entities"

// HealthResponse represents the response payload of the health check
type HealthResponse struct {
	Status           string `json:"status"`
	HasElevenLabsKey bool   `json:"has_elevenlabs_key"`
}

// SessionLogStoredResponse acknowledges an appended session log
type SessionLogStoredResponse struct {
	Status string `json:"status"`
	Stored bool   `json:"stored"`
}

// SessionLogListResponse is the stored session log in append order
type SessionLogListResponse []entities.SessionLogEntry

// VoicesResponse wraps the provider voice catalogue
type VoicesResponse struct {
	Voices []map[string]interface{} `json:"voices"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Detail string `json:"detail"`
}
