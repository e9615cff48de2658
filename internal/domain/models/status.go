package models

// Status is the lifecycle state of a sending domain.
//
// The state machine only moves forward:
//
//	pending --[provisioning succeeds]--> verifying --[provider confirms]--> verified
//	pending --[provisioning fails fatally]--> failed
//	verifying --[timeout elapsed]--> failed
//
// Verified and failed are terminal; recovering a failed domain means
// deleting it and adding it again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVerifying Status = "verifying"
	StatusVerified  Status = "verified"
	StatusFailed    Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is one of the four lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusVerifying, StatusVerified, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusFailed
}

// CanTransitionTo reports whether the state machine permits moving from
// s to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusVerifying || next == StatusFailed
	case StatusVerifying:
		return next == StatusVerified || next == StatusFailed
	default:
		return false
	}
}
