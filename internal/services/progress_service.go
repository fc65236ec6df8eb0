package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/courselab/quiz-service/internal/cache"
	"github.com/courselab/quiz-service/internal/events"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/progress"
	"github.com/courselab/quiz-service/internal/repositories"
	"github.com/courselab/quiz-service/internal/utils"
)

// ===== PROGRESS SERVICE INTERFACE =====

// ClientScope identifies the client a progress store belongs to. KeyPrefix
// namespaces the cache partitions; UserID, when present, lets resolution
// re-adopt a session the user already owns.
type ClientScope struct {
	KeyPrefix string
	UserID    *string
}

// ProgressService exposes the dual-backed onboarding progress store. Each
// client scope gets its own store with its own resolved session id; stores are
// created lazily and reused across calls.
type ProgressService interface {
	ResolveSession(ctx context.Context, scope ClientScope) (string, error)
	Get(ctx context.Context, scope ClientScope) (*models.OnboardingProgress, error)
	Save(ctx context.Context, scope ClientScope, stepNumber int, data map[string]any) (*models.OnboardingProgress, error)
	Clear(ctx context.Context, scope ClientScope) error
}

// ===== PROGRESS SERVICE IMPLEMENTATION =====

type progressService struct {
	cache     cache.CacheService
	repo      repositories.ProgressRepository
	publisher events.EventPublisher
	logger    *slog.Logger
	storeLog  utils.Logger

	mu     sync.Mutex
	stores map[string]*progress.Store
}

func NewProgressService(
	cacheSvc cache.CacheService,
	repo repositories.ProgressRepository,
	publisher events.EventPublisher,
	logger *slog.Logger,
	storeLog utils.Logger,
) ProgressService {
	return &progressService{
		cache:     cacheSvc,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		storeLog:  storeLog,
		stores:    make(map[string]*progress.Store),
	}
}

func (s *progressService) ResolveSession(ctx context.Context, scope ClientScope) (string, error) {
	store := s.storeFor(scope)

	sessionID, err := store.ResolveSessionID(ctx)
	if err != nil && !errors.Is(err, progress.ErrDegraded) {
		return "", fmt.Errorf("%w: %v", ErrProgressStoreFailed, err)
	}
	if errors.Is(err, progress.ErrDegraded) {
		s.logger.Warn("progress store degraded, serving from cache tier",
			"session_id", sessionID,
		)
	}
	return sessionID, nil
}

func (s *progressService) Get(ctx context.Context, scope ClientScope) (*models.OnboardingProgress, error) {
	record, err := s.storeFor(scope).Get(ctx)
	if err != nil {
		if errors.Is(err, progress.ErrNoProgress) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProgressStoreFailed, err)
	}
	return record, nil
}

func (s *progressService) Save(ctx context.Context, scope ClientScope, stepNumber int, data map[string]any) (*models.OnboardingProgress, error) {
	if stepNumber < 1 {
		return nil, NewBusinessRuleError("step_number_positive", "step number must be at least 1", map[string]interface{}{
			"step_number": stepNumber,
		})
	}

	record, err := s.storeFor(scope).Save(ctx, stepNumber, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProgressStoreFailed, err)
	}

	if pubErr := s.publisher.PublishEvent(ctx, events.NewProgressSavedEvent(record.SessionID, record.StepNumber, scope.UserID)); pubErr != nil {
		s.logger.Warn("failed to publish progress saved event",
			"session_id", record.SessionID,
			"error", pubErr,
		)
	}
	return record, nil
}

func (s *progressService) Clear(ctx context.Context, scope ClientScope) error {
	store := s.storeFor(scope)

	sessionID, resolveErr := store.ResolveSessionID(ctx)
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrProgressStoreFailed, err)
	}

	// Retire the store so the next call resolves a fresh session instead of
	// reviving the cleared one.
	s.drop(scope)

	if resolveErr == nil || errors.Is(resolveErr, progress.ErrDegraded) {
		if pubErr := s.publisher.PublishEvent(ctx, events.NewProgressClearedEvent(sessionID)); pubErr != nil {
			s.logger.Warn("failed to publish progress cleared event",
				"session_id", sessionID,
				"error", pubErr,
			)
		}
	}
	return nil
}

// ===== INTERNAL =====

func (s *progressService) storeFor(scope ClientScope) *progress.Store {
	key := s.scopeKey(scope)

	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.stores[key]; ok {
		return store
	}
	store := progress.NewStore(s.cache, s.repo, s.storeLog, progress.Options{
		KeyPrefix: scope.KeyPrefix,
		UserID:    scope.UserID,
	})
	s.stores[key] = store
	return store
}

func (s *progressService) drop(scope ClientScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, s.scopeKey(scope))
}

func (s *progressService) scopeKey(scope ClientScope) string {
	prefix := scope.KeyPrefix
	if prefix == "" {
		prefix = "onboarding"
	}
	if scope.UserID != nil {
		return prefix + "|" + *scope.UserID
	}
	return prefix
}
