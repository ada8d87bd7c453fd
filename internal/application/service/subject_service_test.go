package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coverdesk/approvalflow/internal/application/port"
	"github.com/coverdesk/approvalflow/internal/domain/approval"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/memory"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/repository"
	"github.com/coverdesk/approvalflow/internal/infrastructure/persistence/sqlite"
	"github.com/coverdesk/approvalflow/migrations"
	"github.com/coverdesk/approvalflow/pkg/database"
)

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

func seedSubject(t *testing.T, store *memory.SubjectStore, ref string, status approval.Status, level int) *approval.Subject {
	t.Helper()
	now := time.Now()
	subject := &approval.Subject{
		Reference:        ref,
		WorkflowType:     "payment",
		Status:           status,
		CurrentLevel:     level,
		MaxLevel:         2,
		Payload:          "{}",
		AmountCents:      75000,
		SubmitterID:      "agent-1",
		LastTransitionAt: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, store.Create(context.Background(), subject))
	return subject
}

func TestSubjectService_List(t *testing.T) {
	store := memory.NewSubjectStore()
	svc := NewSubjectService(store, noopLogger{})

	seedSubject(t, store, "REF-1", approval.StatusPending, 0)
	seedSubject(t, store, "REF-2", approval.ApprovedLevel(1), 1)
	seedSubject(t, store, "REF-3", approval.StatusPending, 0)

	pending, err := svc.List(context.Background(), port.Filter{Status: approval.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "REF-1", pending[0].Reference)
	assert.Equal(t, "REF-3", pending[1].Reference)
	assert.Equal(t, int64(75000), pending[0].AmountCents)

	all, err := svc.List(context.Background(), port.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSubjectService_SnapshotHistoryTail(t *testing.T) {
	store := memory.NewSubjectStore()
	svc := NewSubjectService(store, noopLogger{})

	subject := seedSubject(t, store, "REF-1", approval.StatusPending, 0)

	// Seven advances leave a seven-entry history; the snapshot keeps the tail.
	status := approval.StatusPending
	for i := 1; i <= 7; i++ {
		next := approval.ApprovedLevel(i)
		_, err := store.CompareAndSwap(context.Background(), subject.ID, status, i-1,
			func(s *approval.Subject) (*approval.HistoryEntry, error) {
				entry := &approval.HistoryEntry{
					Action: "ADVANCE", FromStatus: s.Status, ToStatus: next,
					FromLevel: s.CurrentLevel, ToLevel: s.CurrentLevel + 1, Timestamp: time.Now(),
				}
				s.Status = next
				s.CurrentLevel++
				return entry, nil
			})
		require.NoError(t, err)
		status = next
	}

	snapshots, err := svc.List(context.Background(), port.Filter{})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0].HistoryTail, 5)
	assert.Equal(t, 3, snapshots[0].HistoryTail[0].FromLevel)

	full, err := svc.Get(context.Background(), subject.ID)
	require.NoError(t, err)
	assert.Len(t, full.History, 7)
}

func newSQLiteRepo(t *testing.T) *repository.SubjectRepository {
	t.Helper()
	logger := zap.NewNop()

	raw, err := database.Open(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	require.NoError(t, database.NewMigrator(raw, logger).Run(migrations.FS))

	db := sqlite.NewDB(raw.DB, logger)
	return repository.NewSubjectRepository(db, repository.NewHistoryRepository(db, logger), logger)
}

func TestSubjectService_SnapshotHistoryTail_SQLiteBacked(t *testing.T) {
	repo := newSQLiteRepo(t)
	svc := NewSubjectService(repo, noopLogger{})
	ctx := context.Background()

	now := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	subject := &approval.Subject{
		Reference:        "REF-1",
		WorkflowType:     "payment",
		Status:           approval.StatusPending,
		MaxLevel:         2,
		Payload:          "{}",
		AmountCents:      75000,
		SubmitterID:      "agent-1",
		LastTransitionAt: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.Create(ctx, subject))

	_, err := repo.CompareAndSwap(ctx, subject.ID, approval.StatusPending, 0,
		func(s *approval.Subject) (*approval.HistoryEntry, error) {
			entry := &approval.HistoryEntry{
				ActorID:    "reviewer-1",
				ActorRole:  "branch-reviewer",
				Action:     "APPROVE",
				FromStatus: s.Status,
				ToStatus:   approval.ApprovedLevel(1),
				FromLevel:  s.CurrentLevel,
				ToLevel:    1,
				Timestamp:  now,
			}
			s.Status = approval.ApprovedLevel(1)
			s.CurrentLevel = 1
			return entry, nil
		})
	require.NoError(t, err)

	snapshots, err := svc.List(ctx, port.Filter{})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0].HistoryTail, 1)
	assert.Equal(t, "reviewer-1", snapshots[0].HistoryTail[0].ActorID)
	assert.Equal(t, approval.ApprovedLevel(1), snapshots[0].HistoryTail[0].ToStatus)
}
