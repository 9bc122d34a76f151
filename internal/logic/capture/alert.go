package capture

// AlertKind identifies why the controller blocked.
type AlertKind int

const (
	AlertUnsupportedEnvironment AlertKind = iota
	AlertPermissionDenied
	AlertUnknownAuthStatus
	AlertConfigurationFailed
)

// Message is the user-facing text of the alert.
func (k AlertKind) Message() string {
	switch k {
	case AlertUnsupportedEnvironment:
		return "Camera is not available in this environment, please use a real device"
	case AlertPermissionDenied:
		return "Permission of camera usage should be granted"
	case AlertUnknownAuthStatus:
		return "Unknown camera permission status"
	case AlertConfigurationFailed:
		return "Camera could not be configured"
	default:
		return "Camera error"
	}
}

func (k AlertKind) String() string {
	switch k {
	case AlertUnsupportedEnvironment:
		return "unsupported-environment"
	case AlertPermissionDenied:
		return "permission-denied"
	case AlertUnknownAuthStatus:
		return "unknown-auth-status"
	case AlertConfigurationFailed:
		return "configuration-failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k AlertKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Alert is a modal message for the user. Acknowledging it closes the screen.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
}
