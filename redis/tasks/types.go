package tasks

// Task types
const (
	TypeHealthSync     = "health:sync"
	TypeStatePurge     = "oauth:purge_states"
	TypeHealthCheck    = "health:check"
	TypeConnectionTest = "connection:test"
)

// TaskPriority defines priority levels for tasks
const (
	PriorityLow      = "low"
	PriorityDefault  = "default"
	PriorityCritical = "critical"
)

// HealthSyncPayload represents the payload for a health data sync task
type HealthSyncPayload struct {
	UserID      string `json:"user_id"`
	ServiceName string `json:"service_name"`
}
