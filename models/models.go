package models

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidService is returned when a service name is not part of the
	// supported provider catalog. Validation happens before any persistence.
	ErrInvalidService = errors.New("invalid service")
)

// ServiceName identifies a supported third-party health-data provider.
type ServiceName string

const (
	ServiceGoogleFit   ServiceName = "google_fit"
	ServiceFitbit      ServiceName = "fitbit"
	ServiceAppleHealth ServiceName = "apple_health"
)

// SupportedServices is the static catalog of providers users can connect.
// The "available" set shown to a user is this catalog minus their connected
// services.
var SupportedServices = []ServiceName{
	ServiceGoogleFit,
	ServiceFitbit,
	ServiceAppleHealth,
}

// IsValidService reports whether name is part of the provider catalog.
func IsValidService(name ServiceName) bool {
	for _, s := range SupportedServices {
		if s == name {
			return true
		}
	}

	return false
}
