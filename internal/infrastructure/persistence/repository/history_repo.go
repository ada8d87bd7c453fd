package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/coverdesk/approvalflow/internal/application/port"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository reads the audit trail independently of the subject row
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

const historyColumns = `id, subject_id, actor_id, actor_role, action, from_status, to_status,
	from_level, to_level, note, timestamp`

// GetBySubjectID returns all history entries for a subject in applied order
func (r *HistoryRepository) GetBySubjectID(ctx context.Context, subjectID int64) ([]approval.HistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM subject_history WHERE subject_id = ? ORDER BY id`, historyColumns)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, subjectID)
	if err != nil {
		r.logger.Error("Failed to load history", zap.Int64("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("%w: load history: %v", approval.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// GetBySubjectIDs loads the history for every listed subject in one query,
// keyed by subject id. Entries within each subject stay in applied order.
func (r *HistoryRepository) GetBySubjectIDs(ctx context.Context, subjectIDs []int64) (map[int64][]approval.HistoryEntry, error) {
	grouped := make(map[int64][]approval.HistoryEntry, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return grouped, nil
	}

	placeholders := strings.Repeat("?, ", len(subjectIDs)-1) + "?"
	query := fmt.Sprintf(`SELECT %s FROM subject_history WHERE subject_id IN (%s) ORDER BY id`,
		historyColumns, placeholders)
	args := make([]interface{}, len(subjectIDs))
	for i, id := range subjectIDs {
		args[i] = id
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load history batch", zap.Int("subjects", len(subjectIDs)), zap.Error(err))
		return nil, fmt.Errorf("%w: load history: %v", approval.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	history, err := scanHistory(rows)
	if err != nil {
		return nil, err
	}
	for _, entry := range history {
		grouped[entry.SubjectID] = append(grouped[entry.SubjectID], entry)
	}
	return grouped, nil
}

func scanHistory(rows *sql.Rows) ([]approval.HistoryEntry, error) {
	var history []approval.HistoryEntry
	for rows.Next() {
		var entry approval.HistoryEntry
		var fromStatus, toStatus string
		if err := rows.Scan(
			&entry.ID,
			&entry.SubjectID,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.Action,
			&fromStatus,
			&toStatus,
			&entry.FromLevel,
			&entry.ToLevel,
			&entry.Note,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("%w: scan history: %v", approval.ErrStorageUnavailable, err)
		}
		entry.FromStatus = approval.Status(fromStatus)
		entry.ToStatus = approval.Status(toStatus)
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load history: %v", approval.ErrStorageUnavailable, err)
	}
	return history, nil
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
