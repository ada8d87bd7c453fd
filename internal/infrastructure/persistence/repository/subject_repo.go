package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/coverdesk/approvalflow/internal/application/port"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/sqlite"
)

const subjectColumns = `id, reference, workflow_type, status, current_level, max_level,
	payload, amount_cents, submitter_id, assignee, pending_reason, rejection_reason,
	last_transition_at, created_at, updated_at`

// SubjectRepository implements port.SubjectRepository over sqlite.
// History reads go through the history repository so subject and audit
// trail queries share one implementation.
type SubjectRepository struct {
	db      *sqlite.DB
	history *HistoryRepository
	logger  *zap.Logger
}

// NewSubjectRepository creates a new subject repository
func NewSubjectRepository(db *sqlite.DB, history *HistoryRepository, logger *zap.Logger) *SubjectRepository {
	return &SubjectRepository{
		db:      db,
		history: history,
		logger:  logger,
	}
}

// Create inserts a new subject and assigns its id
func (r *SubjectRepository) Create(ctx context.Context, subject *approval.Subject) error {
	query := `
		INSERT INTO subjects (
			reference, workflow_type, status, current_level, max_level,
			payload, amount_cents, submitter_id, assignee, pending_reason,
			rejection_reason, last_transition_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		subject.Reference,
		subject.WorkflowType,
		subject.Status.String(),
		subject.CurrentLevel,
		subject.MaxLevel,
		subject.Payload,
		subject.AmountCents,
		subject.SubmitterID,
		subject.Assignee,
		subject.PendingReason,
		subject.RejectionReason,
		subject.LastTransitionAt,
		subject.CreatedAt,
		subject.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create subject", zap.Error(err))
		return fmt.Errorf("%w: create subject: %v", approval.ErrStorageUnavailable, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: last insert id: %v", approval.ErrStorageUnavailable, err)
	}

	subject.ID = id
	return nil
}

// GetByID retrieves a subject with its full history
func (r *SubjectRepository) GetByID(ctx context.Context, id int64) (*approval.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects WHERE id = ?`, subjectColumns)

	subject, err := r.scanSubject(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", approval.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get subject", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: get subject: %v", approval.ErrStorageUnavailable, err)
	}

	history, err := r.history.GetBySubjectID(ctx, id)
	if err != nil {
		return nil, err
	}
	subject.History = history

	return subject, nil
}

// List retrieves subjects matching the filter in insertion order
func (r *SubjectRepository) List(ctx context.Context, filter port.Filter) ([]*approval.Subject, error) {
	query := fmt.Sprintf(`SELECT %s FROM subjects`, subjectColumns)

	var conds []string
	var args []interface{}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.Level != nil {
		conds = append(conds, "current_level = ?")
		args = append(args, *filter.Level)
	}
	if filter.Assignee != "" {
		conds = append(conds, "assignee = ?")
		args = append(args, filter.Assignee)
	}
	if filter.WorkflowType != "" {
		conds = append(conds, "workflow_type = ?")
		args = append(args, filter.WorkflowType)
	}
	if filter.Month != "" {
		// created_at is stored as text; the leading 7 chars are YYYY-MM
		conds = append(conds, "substr(created_at, 1, 7) = ?")
		args = append(args, filter.Month)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY id"

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list subjects", zap.Error(err))
		return nil, fmt.Errorf("%w: list subjects: %v", approval.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var subjects []*approval.Subject
	for rows.Next() {
		subject, err := r.scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan subject: %v", approval.ErrStorageUnavailable, err)
		}
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list subjects: %v", approval.ErrStorageUnavailable, err)
	}

	if err := r.attachHistory(ctx, subjects); err != nil {
		return nil, err
	}

	return subjects, nil
}

// attachHistory loads the audit trail for every listed subject in one batch
func (r *SubjectRepository) attachHistory(ctx context.Context, subjects []*approval.Subject) error {
	if len(subjects) == 0 {
		return nil
	}

	ids := make([]int64, len(subjects))
	for i, subject := range subjects {
		ids[i] = subject.ID
	}

	grouped, err := r.history.GetBySubjectIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, subject := range subjects {
		subject.History = grouped[subject.ID]
	}
	return nil
}

// CompareAndSwap applies the mutator only when the stored (status, level)
// pair still matches the caller's expectation. The status update and the
// history append commit in the same transaction; the guarded UPDATE makes
// lost updates impossible.
func (r *SubjectRepository) CompareAndSwap(ctx context.Context, id int64, expectedStatus approval.Status, expectedLevel int, mutate port.Mutator) (*approval.Subject, error) {
	var updated *approval.Subject

	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		subject, err := r.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if subject.Status != expectedStatus || subject.CurrentLevel != expectedLevel {
			return fmt.Errorf("%w: subject %d is at (%s, %d), expected (%s, %d)",
				approval.ErrConflict, id, subject.Status, subject.CurrentLevel, expectedStatus, expectedLevel)
		}

		entry, err := mutate(subject)
		if err != nil {
			return err
		}

		result, err := r.db.Executor(txCtx).ExecContext(txCtx, `
			UPDATE subjects
			SET status = ?, current_level = ?, assignee = ?, pending_reason = ?,
				rejection_reason = ?, last_transition_at = ?, updated_at = ?
			WHERE id = ? AND status = ? AND current_level = ?
		`,
			subject.Status.String(),
			subject.CurrentLevel,
			subject.Assignee,
			subject.PendingReason,
			subject.RejectionReason,
			subject.LastTransitionAt,
			subject.UpdatedAt,
			id,
			expectedStatus.String(),
			expectedLevel,
		)
		if err != nil {
			return fmt.Errorf("%w: swap subject: %v", approval.ErrStorageUnavailable, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: rows affected: %v", approval.ErrStorageUnavailable, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: subject %d moved away from (%s, %d)",
				approval.ErrConflict, id, expectedStatus, expectedLevel)
		}

		if entry != nil {
			if err := r.insertHistory(txCtx, id, entry); err != nil {
				return err
			}
		}

		updated, err = r.GetByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *SubjectRepository) insertHistory(ctx context.Context, subjectID int64, entry *approval.HistoryEntry) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO subject_history (
			subject_id, actor_id, actor_role, action, from_status, to_status,
			from_level, to_level, note, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		subjectID,
		entry.ActorID,
		entry.ActorRole,
		entry.Action,
		entry.FromStatus.String(),
		entry.ToStatus.String(),
		entry.FromLevel,
		entry.ToLevel,
		entry.Note,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append history", zap.Int64("subject_id", subjectID), zap.Error(err))
		return fmt.Errorf("%w: append history: %v", approval.ErrStorageUnavailable, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: history insert id: %v", approval.ErrStorageUnavailable, err)
	}
	entry.ID = id
	entry.SubjectID = subjectID
	return nil
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *SubjectRepository) scanSubject(row scanner) (*approval.Subject, error) {
	var subject approval.Subject
	var status string

	err := row.Scan(
		&subject.ID,
		&subject.Reference,
		&subject.WorkflowType,
		&status,
		&subject.CurrentLevel,
		&subject.MaxLevel,
		&subject.Payload,
		&subject.AmountCents,
		&subject.SubmitterID,
		&subject.Assignee,
		&subject.PendingReason,
		&subject.RejectionReason,
		&subject.LastTransitionAt,
		&subject.CreatedAt,
		&subject.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	subject.Status = approval.Status(status)
	return &subject, nil
}

// Verify interface compliance
var _ port.SubjectRepository = (*SubjectRepository)(nil)
