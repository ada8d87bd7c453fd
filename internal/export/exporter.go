// Package export flattens approval subjects into back-office register files.
// The same row model feeds both the CSV download and the Excel register so
// finance sees identical columns regardless of format.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/coverdesk/approvalflow/internal/domain/approval"
)

const registerSheet = "Approval Register"

var headers = []string{
	"Reference",
	"Workflow Type",
	"Status",
	"Level",
	"Amount",
	"Submitter",
	"Assignee",
	"Approver Chain",
	"Rejection Reason",
	"Submitted At",
	"Last Transition At",
}

// Row is one register line for a subject
type Row struct {
	Reference        string
	WorkflowType     string
	Status           string
	Level            string
	Amount           string
	Submitter        string
	Assignee         string
	ApproverChain    string
	RejectionReason  string
	SubmittedAt      string
	LastTransitionAt string
}

// RowFromSubject flattens a subject, deriving the approver chain from the
// audit trail in applied order.
func RowFromSubject(subject *approval.Subject) Row {
	return Row{
		Reference:        subject.Reference,
		WorkflowType:     subject.WorkflowType,
		Status:           subject.Status.String(),
		Level:            fmt.Sprintf("%d/%d", subject.CurrentLevel, subject.MaxLevel),
		Amount:           formatAmount(subject.AmountCents),
		Submitter:        subject.SubmitterID,
		Assignee:         subject.Assignee,
		ApproverChain:    approverChain(subject.History),
		RejectionReason:  subject.RejectionReason,
		SubmittedAt:      subject.CreatedAt.Format("2006-01-02 15:04:05"),
		LastTransitionAt: subject.LastTransitionAt.Format("2006-01-02 15:04:05"),
	}
}

func (r Row) values() []string {
	return []string{
		r.Reference,
		r.WorkflowType,
		r.Status,
		r.Level,
		r.Amount,
		r.Submitter,
		r.Assignee,
		r.ApproverChain,
		r.RejectionReason,
		r.SubmittedAt,
		r.LastTransitionAt,
	}
}

// formatAmount renders cents as a decimal string, e.g. 125000 -> "1250.00"
func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// approverChain joins the acting reviewers as "role:actor" in applied order
func approverChain(history []approval.HistoryEntry) string {
	var parts []string
	for _, entry := range history {
		parts = append(parts, fmt.Sprintf("%s:%s", entry.ActorRole, entry.ActorID))
	}
	return strings.Join(parts, " > ")
}

// Exporter writes approval registers in CSV and Excel formats
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// WriteCSV streams the register as CSV with a header row
func (e *Exporter) WriteCSV(w io.Writer, subjects []*approval.Subject) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, subject := range subjects {
		if err := writer.Write(RowFromSubject(subject).values()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	e.logger.Info("CSV register written", zap.Int("subjects", len(subjects)))
	return nil
}

// WriteXLSX writes the register as a single-sheet Excel workbook
func (e *Exporter) WriteXLSX(w io.Writer, subjects []*approval.Subject) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, header := range headers {
		if err := e.setCell(f, col+1, 1, header); err != nil {
			return err
		}
	}
	for i, subject := range subjects {
		for col, value := range RowFromSubject(subject).values() {
			if err := e.setCell(f, col+1, i+2, value); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Excel register written", zap.Int("subjects", len(subjects)))
	return nil
}

func (e *Exporter) setCell(f *excelize.File, col, row int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell (%d, %d): %w", col, row, err)
	}
	if err := f.SetCellValue(registerSheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
