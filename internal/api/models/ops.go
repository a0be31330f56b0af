package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Readiness represents the readiness of the service and its dependencies.
type Readiness struct {
	Status HealthStatus      `json:"status"`
	Time   Timestamp         `json:"time"`
	Checks []DependencyCheck `json:"checks"`
}

// DependencyCheck reports the state of a single dependency.
type DependencyCheck struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}
