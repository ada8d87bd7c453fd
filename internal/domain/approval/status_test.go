package approval

import "testing"

func TestApprovedLevel(t *testing.T) {
	if got := ApprovedLevel(1); got != Status("APPROVED_L1") {
		t.Errorf("ApprovedLevel(1) = %v, want APPROVED_L1", got)
	}
	if got := ApprovedLevel(3); got != Status("APPROVED_L3") {
		t.Errorf("ApprovedLevel(3) = %v, want APPROVED_L3", got)
	}
}

func TestStatus_LevelOf(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		wantLevel int
		wantOK    bool
	}{
		{"level one", ApprovedLevel(1), 1, true},
		{"level four", ApprovedLevel(4), 4, true},
		{"pending", StatusPending, 0, false},
		{"rejected", StatusRejected, 0, false},
		{"finance approved", StatusFinanceApproved, 0, false},
		{"malformed suffix", Status("APPROVED_Lx"), 0, false},
		{"zero level", Status("APPROVED_L0"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := tt.status.LevelOf()
			if level != tt.wantLevel || ok != tt.wantOK {
				t.Errorf("LevelOf() = (%d, %v), want (%d, %v)", level, ok, tt.wantLevel, tt.wantOK)
			}
		})
	}
}

func TestWorkflowType_Closed(t *testing.T) {
	payment := WorkflowType{Name: "payment", MaxLevel: 2, ApprovedStatus: StatusFinanceApproved, ProcessedStatus: StatusPaid}
	businessData := WorkflowType{Name: "business-data", MaxLevel: 2, ApprovedStatus: StatusFinanceApproved}

	tests := []struct {
		name   string
		wf     WorkflowType
		status Status
		closed bool
	}{
		{"payment pending", payment, StatusPending, false},
		{"payment level one", payment, ApprovedLevel(1), false},
		{"payment fully approved awaits processing", payment, StatusFinanceApproved, false},
		{"payment paid", payment, StatusPaid, true},
		{"payment rejected", payment, StatusRejected, true},
		{"business-data approved is terminal", businessData, StatusFinanceApproved, true},
		{"business-data rejected", businessData, StatusRejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.wf.Closed(tt.status); got != tt.closed {
				t.Errorf("Closed(%s) = %v, want %v", tt.status, got, tt.closed)
			}
		})
	}
}

func TestIntent_IsValid(t *testing.T) {
	for _, intent := range []Intent{IntentApprove, IntentReject, IntentProcess} {
		if !intent.IsValid() {
			t.Errorf("IsValid(%s) = false, want true", intent)
		}
	}
	if Intent("ESCALATE").IsValid() {
		t.Error("IsValid(ESCALATE) = true, want false")
	}
}
