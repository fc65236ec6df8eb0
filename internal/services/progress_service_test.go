package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courselab/quiz-service/internal/cache"
	"github.com/courselab/quiz-service/internal/events"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/repositories"
	"github.com/courselab/quiz-service/internal/utils"
)

// memoryProgressRepo is an in-memory authority stand-in.
type memoryProgressRepo struct {
	mu      sync.Mutex
	records map[string]*models.OnboardingProgress
}

func newMemoryProgressRepo() *memoryProgressRepo {
	return &memoryProgressRepo{records: make(map[string]*models.OnboardingProgress)}
}

func (r *memoryProgressRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.OnboardingProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[sessionID]
	if !ok {
		return nil, repositories.ErrProgressNotFound
	}
	clone := *record
	return &clone, nil
}

func (r *memoryProgressRepo) GetLatestByUserID(ctx context.Context, userID string) (*models.OnboardingProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.OnboardingProgress
	for _, record := range r.records {
		if record.UserID == nil || *record.UserID != userID {
			continue
		}
		if latest == nil || record.UpdatedAt.After(latest.UpdatedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, repositories.ErrProgressNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *memoryProgressRepo) Upsert(ctx context.Context, progress *models.OnboardingProgress) (*models.OnboardingProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *progress
	stored.UpdatedAt = time.Now()
	if existing, ok := r.records[progress.SessionID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = stored.UpdatedAt
	}
	r.records[progress.SessionID] = &stored
	clone := stored
	return &clone, nil
}

func (r *memoryProgressRepo) DeleteBySessionID(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[sessionID]; !ok {
		return repositories.ErrProgressNotFound
	}
	delete(r.records, sessionID)
	return nil
}

func (r *memoryProgressRepo) AttachUser(ctx context.Context, sessionID string, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[sessionID]
	if !ok {
		return repositories.ErrProgressNotFound
	}
	record.UserID = &userID
	return nil
}

func newTestProgressService(t *testing.T) (ProgressService, *events.MockEventPublisher) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewMockEventPublisher(discard)

	svc := NewProgressService(
		cache.NewRedisCache(client, zap.NewNop()),
		newMemoryProgressRepo(),
		publisher,
		discard,
		utils.NewDefaultLogger(),
	)
	return svc, publisher
}

func TestProgressService_SaveAndGet(t *testing.T) {
	svc, publisher := newTestProgressService(t)
	ctx := context.Background()
	scope := ClientScope{KeyPrefix: "t1"}

	record, err := svc.Save(ctx, scope, 3, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 3, record.StepNumber)
	assert.Len(t, record.SessionID, 26)

	got, err := svc.Get(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, record.SessionID, got.SessionID)
	assert.Equal(t, 3, got.StepNumber)

	require.Len(t, publisher.Events, 1)
	assert.Equal(t, events.EventProgressSaved, publisher.Events[0].Type)
}

func TestProgressService_SaveRejectsBadStep(t *testing.T) {
	svc, publisher := newTestProgressService(t)

	_, err := svc.Save(context.Background(), ClientScope{KeyPrefix: "t1"}, 0, nil)
	require.Error(t, err)

	var ruleErr *BusinessRuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "step_number_positive", ruleErr.Rule)
	assert.Empty(t, publisher.Events)
}

func TestProgressService_ClearStartsFresh(t *testing.T) {
	svc, publisher := newTestProgressService(t)
	ctx := context.Background()
	scope := ClientScope{KeyPrefix: "t1"}

	record, err := svc.Save(ctx, scope, 2, map[string]any{"step": "two"})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, scope))

	// Cleared session ids are retired; resolution mints a new one.
	freshID, err := svc.ResolveSession(ctx, scope)
	require.NoError(t, err)
	assert.NotEqual(t, record.SessionID, freshID)

	require.Len(t, publisher.Events, 2)
	assert.Equal(t, events.EventProgressCleared, publisher.Events[1].Type)
}

func TestProgressService_ScopesAreIsolated(t *testing.T) {
	svc, _ := newTestProgressService(t)
	ctx := context.Background()

	a, err := svc.ResolveSession(ctx, ClientScope{KeyPrefix: "client-a"})
	require.NoError(t, err)
	b, err := svc.ResolveSession(ctx, ClientScope{KeyPrefix: "client-b"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)

	// Same scope resolves to the same session.
	again, err := svc.ResolveSession(ctx, ClientScope{KeyPrefix: "client-a"})
	require.NoError(t, err)
	assert.Equal(t, a, again)
}
