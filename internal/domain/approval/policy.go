package approval

import "fmt"

// WorkflowType describes one approval ladder: how many sequential levels it
// has, which status marks the completed ladder, and which status (if any)
// marks the executed business outcome reached through a Process action.
type WorkflowType struct {
	Name            string
	MaxLevel        int
	ApprovedStatus  Status
	ProcessedStatus Status
}

// HasProcessStep returns true when "authorized" and "executed" are distinct
// states for this workflow type
func (w WorkflowType) HasProcessStep() bool {
	return w.ProcessedStatus != ""
}

// Closed returns true when no further transitions are permitted for a subject
// in the given status
func (w WorkflowType) Closed(s Status) bool {
	if s == StatusRejected {
		return true
	}
	if w.HasProcessStep() {
		return s == w.ProcessedStatus
	}
	return s == w.ApprovedStatus
}

// Decision is the outcome of evaluating an action against the policy
type Decision struct {
	Permit     bool
	NextStatus Status
	NextLevel  int
	Reason     string
}

// Policy encodes the level ladder and role-gating rules. It is pure: no I/O,
// no mutable state, safe to share across any number of concurrent actors.
type Policy struct {
	roleLevels map[string]int
}

// NewPolicy creates a policy from a role name to authorized level map
func NewPolicy(roleLevels map[string]int) *Policy {
	levels := make(map[string]int, len(roleLevels))
	for role, level := range roleLevels {
		levels[role] = level
	}
	return &Policy{roleLevels: levels}
}

// RoleLevel returns the authorized level for a role; 0 means no authority
func (p *Policy) RoleLevel(role string) int {
	return p.roleLevels[role]
}

// Decide maps (current status, current level, actor role, intent) onto a
// transition. It never mutates anything; the caller applies the result.
func (p *Policy) Decide(status Status, currentLevel int, wf WorkflowType, role string, intent Intent) Decision {
	if wf.Closed(status) {
		return refuse("workflow closed")
	}

	roleLevel, authorized := p.roleLevels[role]
	if !authorized {
		return refuse(fmt.Sprintf("role %q holds no approval authority", role))
	}

	switch intent {
	case IntentApprove:
		return p.decideApprove(status, currentLevel, wf, roleLevel)
	case IntentReject:
		return p.decideReject(status, currentLevel, wf, roleLevel)
	case IntentProcess:
		return p.decideProcess(status, currentLevel, wf, roleLevel)
	default:
		return refuse(fmt.Sprintf("unknown intent %q", intent))
	}
}

func (p *Policy) decideApprove(status Status, currentLevel int, wf WorkflowType, roleLevel int) Decision {
	if status == wf.ApprovedStatus {
		return refuse("approval ladder already complete")
	}
	next := currentLevel + 1
	if roleLevel != next {
		return refuse(fmt.Sprintf("approval at level %d requires a level %d approver, actor holds level %d", next, next, roleLevel))
	}
	if next == wf.MaxLevel {
		return Decision{Permit: true, NextStatus: wf.ApprovedStatus, NextLevel: next}
	}
	return Decision{Permit: true, NextStatus: ApprovedLevel(next), NextLevel: next}
}

func (p *Policy) decideReject(status Status, currentLevel int, wf WorkflowType, roleLevel int) Decision {
	if status == wf.ApprovedStatus {
		return refuse("approval ladder already complete")
	}
	if roleLevel < currentLevel+1 {
		return refuse(fmt.Sprintf("rejection requires authority at level %d or above, actor holds level %d", currentLevel+1, roleLevel))
	}
	// Reject is final and level-independent; the level reached so far stays on
	// record for the audit trail.
	return Decision{Permit: true, NextStatus: StatusRejected, NextLevel: currentLevel}
}

func (p *Policy) decideProcess(status Status, currentLevel int, wf WorkflowType, roleLevel int) Decision {
	if !wf.HasProcessStep() {
		return refuse(fmt.Sprintf("workflow type %q has no processing step", wf.Name))
	}
	if status != wf.ApprovedStatus {
		return refuse("processing requires a fully approved subject")
	}
	if roleLevel < wf.MaxLevel {
		return refuse(fmt.Sprintf("processing requires authority at level %d, actor holds level %d", wf.MaxLevel, roleLevel))
	}
	return Decision{Permit: true, NextStatus: wf.ProcessedStatus, NextLevel: currentLevel}
}

// Replay applies a recorded history back through the policy from the initial
// (PENDING, 0) state. A consistent audit trail reproduces the stored status
// and level; a gap or forged entry surfaces as an error.
func (p *Policy) Replay(wf WorkflowType, entries []HistoryEntry) (Status, int, error) {
	status := StatusPending
	level := 0
	for i, e := range entries {
		if e.FromStatus != status || e.FromLevel != level {
			return status, level, fmt.Errorf("history entry %d starts at (%s, %d), expected (%s, %d)",
				i, e.FromStatus, e.FromLevel, status, level)
		}
		d := p.Decide(status, level, wf, e.ActorRole, Intent(e.Action))
		if !d.Permit {
			return status, level, fmt.Errorf("history entry %d replays as refused: %s", i, d.Reason)
		}
		if d.NextStatus != e.ToStatus || d.NextLevel != e.ToLevel {
			return status, level, fmt.Errorf("history entry %d recorded (%s, %d), policy yields (%s, %d)",
				i, e.ToStatus, e.ToLevel, d.NextStatus, d.NextLevel)
		}
		status, level = d.NextStatus, d.NextLevel
	}
	return status, level, nil
}

func refuse(reason string) Decision {
	return Decision{Permit: false, Reason: reason}
}
