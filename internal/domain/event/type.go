package event

// Type identifies the type of domain event
type Type string

const (
	TypeSubjectSubmitted Type = "subject.submitted"
	TypeSubjectApproved  Type = "subject.approved"
	TypeSubjectRejected  Type = "subject.rejected"
	TypeSubjectPaid      Type = "subject.paid"
	TypeSubjectVerified  Type = "subject.verified"
	TypeStatusChanged    Type = "subject.status_changed"
	TypeStageAdvanced    Type = "subject.stage_advanced"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsTerminal reports whether the event marks a terminal transition, i.e. one
// that feeds the notification path
func (t Type) IsTerminal() bool {
	switch t {
	case TypeSubjectApproved, TypeSubjectRejected, TypeSubjectPaid, TypeSubjectVerified:
		return true
	default:
		return false
	}
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSubjectSubmitted,
		TypeSubjectApproved,
		TypeSubjectRejected,
		TypeSubjectPaid,
		TypeSubjectVerified,
		TypeStatusChanged,
		TypeStageAdvanced:
		return true
	default:
		return false
	}
}
