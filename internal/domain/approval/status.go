package approval

import (
	"fmt"
	"strconv"
	"strings"
)

// Status represents a workflow status in the approval lifecycle
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusRejected        Status = "REJECTED"
	StatusFinanceApproved Status = "FINANCE_APPROVED"
	StatusPaid            Status = "PAID"
	StatusVerified        Status = "VERIFIED"
)

// approvedLevelPrefix is the prefix for intermediate ladder statuses (APPROVED_L1, APPROVED_L2, ...)
const approvedLevelPrefix = "APPROVED_L"

// ApprovedLevel returns the intermediate status for a completed approval level
func ApprovedLevel(n int) Status {
	return Status(fmt.Sprintf("%s%d", approvedLevelPrefix, n))
}

// LevelOf returns the ladder level encoded in an intermediate status.
// The second return value is false for statuses that do not encode a level.
func (s Status) LevelOf() (int, bool) {
	if !strings.HasPrefix(string(s), approvedLevelPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(s), approvedLevelPrefix))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
