package sessionstore

import (
	"context"
	"time"

	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
	"github.com/stretchr/testify/mock"
)

// MockSessionStore is a mock implementation of SessionStore for testing.
type MockSessionStore struct {
	mock.Mock
}

var _ contract.SessionStore = &MockSessionStore{} // Compile-time check

// LoadSessions implements the SessionSource interface.
func (m *MockSessionStore) LoadSessions(ctx context.Context, profile string, from, to time.Time) ([]schema.SessionRecord, error) {
	args := m.Called(ctx, profile, from, to)
	records, _ := args.Get(0).([]schema.SessionRecord)
	return records, args.Error(1)
}

// RecordRun implements the RunRecorder interface.
func (m *MockSessionStore) RecordRun(ctx context.Context, profile string, ref time.Time, recordCount int, params map[string]any, scores map[schema.ScoreType]schema.CompositeScore) (string, error) {
	args := m.Called(ctx, profile, ref, recordCount, params, scores)
	return args.String(0), args.Error(1)
}

// UpsertSessions implements the SessionStore interface.
func (m *MockSessionStore) UpsertSessions(ctx context.Context, profile string, records []schema.SessionRecord) (int, error) {
	args := m.Called(ctx, profile, records)
	return args.Int(0), args.Error(1)
}

// ListRuns implements the SessionStore interface.
func (m *MockSessionStore) ListRuns(ctx context.Context, profile string, limit int) ([]schema.RunRecord, error) {
	args := m.Called(ctx, profile, limit)
	runs, _ := args.Get(0).([]schema.RunRecord)
	return runs, args.Error(1)
}

// ListRunScores implements the SessionStore interface.
func (m *MockSessionStore) ListRunScores(ctx context.Context, runID string) ([]schema.RunScoreRecord, error) {
	args := m.Called(ctx, runID)
	scores, _ := args.Get(0).([]schema.RunScoreRecord)
	return scores, args.Error(1)
}

// GetStatus implements the SessionStore interface.
func (m *MockSessionStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Clear implements the SessionStore interface.
func (m *MockSessionStore) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Close implements the SessionStore interface.
func (m *MockSessionStore) Close() error {
	return m.Called().Error(0)
}
