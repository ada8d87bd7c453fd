package approval

// Intent represents the command an actor issues against a subject
type Intent string

const (
	IntentApprove Intent = "APPROVE"
	IntentReject  Intent = "REJECT"
	IntentProcess Intent = "PROCESS"
)

// String returns the string representation of the intent
func (i Intent) String() string {
	return string(i)
}

// IsValid returns true if the intent is one of the defined commands
func (i Intent) IsValid() bool {
	switch i {
	case IntentApprove, IntentReject, IntentProcess:
		return true
	default:
		return false
	}
}
