package camera

import (
	"context"
	"fmt"
	"sync"
)

// AuthorizationStatus is the OS-level camera permission state.
type AuthorizationStatus int

const (
	NotDetermined AuthorizationStatus = iota
	Restricted
	Denied
	Authorized
)

func (s AuthorizationStatus) String() string {
	switch s {
	case NotDetermined:
		return "not_determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseAuthorizationStatus converts a config value into a status.
func ParseAuthorizationStatus(s string) (AuthorizationStatus, error) {
	switch s {
	case "not_determined":
		return NotDetermined, nil
	case "restricted":
		return Restricted, nil
	case "denied":
		return Denied, nil
	case "authorized":
		return Authorized, nil
	default:
		return 0, fmt.Errorf("unknown authorization status %q", s)
	}
}

// Authorizer is the permission boundary in front of the camera.
type Authorizer interface {
	Status() AuthorizationStatus
	// RequestAccess prompts the user. It may block until answered or ctx is done.
	RequestAccess(ctx context.Context) (bool, error)
}

// StaticAuthorizer answers permission requests from a preset answer.
// Once a request is answered, Status reflects the answer, as an OS would.
type StaticAuthorizer struct {
	mu     sync.Mutex
	status AuthorizationStatus
	answer bool
}

// NewStaticAuthorizer creates an authorizer starting at status. answer is
// the reply given if RequestAccess is called while NotDetermined.
func NewStaticAuthorizer(status AuthorizationStatus, answer bool) *StaticAuthorizer {
	return &StaticAuthorizer{status: status, answer: answer}
}

func (a *StaticAuthorizer) Status() AuthorizationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *StaticAuthorizer) RequestAccess(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != NotDetermined {
		return a.status == Authorized, nil
	}
	if a.answer {
		a.status = Authorized
	} else {
		a.status = Denied
	}
	return a.answer, nil
}
