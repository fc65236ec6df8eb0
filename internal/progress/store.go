package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/courselab/quiz-service/internal/cache"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/repositories"
	"github.com/courselab/quiz-service/internal/utils"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// Sentinel errors for the dual-backed store.
var (
	// ErrNoProgress means resolution succeeded but no record exists yet.
	ErrNoProgress = errors.New("progress: no record for session")
	// ErrDegraded means the authority store was unreachable and the store is
	// operating from its cache tier only. Reads still work where the cache has
	// data; Save returns a hard error until the authority recovers.
	ErrDegraded = errors.New("progress: authority unavailable, cache-only mode")
)

const (
	sessionIDSuffix = ":session_id"
	progressSuffix  = ":progress"

	cacheTTL = 24 * time.Hour
)

// Store reconciles onboarding progress across a cache tier (fast, lossy) and
// an authority tier (canonical timestamps and ids). One Store belongs to one
// client session scope; construct it explicitly, never share a package global.
type Store struct {
	cache  cache.CacheService
	repo   repositories.ProgressRepository
	logger utils.Logger

	sessionIDKey string
	progressKey  string
	userID       *string

	resolveOnce sync.Once
	sessionID   string
	resolveErr  error
}

// Options scope a Store to one client.
type Options struct {
	// KeyPrefix namespaces the two cache partitions, e.g. a client identifier.
	KeyPrefix string
	// UserID, when known, lets resolution re-adopt a session the user already
	// owns in the authority store.
	UserID *string
}

func NewStore(cacheSvc cache.CacheService, repo repositories.ProgressRepository, logger utils.Logger, opts Options) *Store {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "onboarding"
	}
	return &Store{
		cache:        cacheSvc,
		repo:         repo,
		logger:       logger,
		sessionIDKey: prefix + sessionIDSuffix,
		progressKey:  prefix + progressSuffix,
		userID:       opts.UserID,
	}
}

// ResolveSessionID runs the session resolution algorithm once per Store and
// caches the outcome: a cached id is verified against the authority; failing
// that, the authority is asked for an existing session to adopt; failing that,
// a fresh id is minted and a blank record initialized in both tiers.
//
// The returned error is nil, ErrDegraded (id still usable, authority down), or
// a hard failure.
func (s *Store) ResolveSessionID(ctx context.Context) (string, error) {
	s.resolveOnce.Do(func() {
		s.sessionID, s.resolveErr = s.resolve(ctx)
	})
	return s.sessionID, s.resolveErr
}

func (s *Store) resolve(ctx context.Context) (string, error) {
	// Step 1: verify the cached id against the authority.
	var localID string
	if err := s.cache.Get(ctx, s.sessionIDKey, &localID); err == nil && localID != "" {
		record, verifyErr := s.repo.GetBySessionID(ctx, localID)
		switch {
		case verifyErr == nil:
			s.claim(ctx, record)
			return localID, nil
		case errors.Is(verifyErr, repositories.ErrProgressNotFound):
			// stale local id, fall through to adoption
		default:
			s.logger.WarnContext(ctx, "progress authority unreachable during resolution, keeping cached session id",
				"session_id", localID, "error", verifyErr)
			return localID, ErrDegraded
		}
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "progress cache read failed during resolution", "error", err)
	}

	// Step 2: adopt an existing session from the authority and mirror it back.
	if s.userID != nil {
		record, err := s.repo.GetLatestByUserID(ctx, *s.userID)
		switch {
		case err == nil:
			s.mirror(ctx, record)
			return record.SessionID, nil
		case errors.Is(err, repositories.ErrProgressNotFound):
			// nothing to adopt
		default:
			s.logger.WarnContext(ctx, "progress authority unreachable during adoption lookup", "error", err)
			return "", fmt.Errorf("resolve session: %w", err)
		}
	}

	// Step 3: mint a fresh id and initialize a blank record in both tiers.
	sessionID := utils.NewULID()
	blank := &models.OnboardingProgress{
		SessionID:  sessionID,
		StepNumber: 1,
		Data:       datatypes.JSONMap{},
		UserID:     s.userID,
	}

	stored, err := s.repo.Upsert(ctx, blank)
	if err != nil {
		s.logger.WarnContext(ctx, "progress authority unreachable creating session, continuing cache-only",
			"session_id", sessionID, "error", err)
		s.mirror(ctx, blank)
		return sessionID, ErrDegraded
	}

	s.mirror(ctx, stored)
	return sessionID, nil
}

// claim stamps the store's user onto a session that was resolved while
// anonymous, so later adoption lookups for that user find it. A failure is
// logged and the session stays usable.
func (s *Store) claim(ctx context.Context, record *models.OnboardingProgress) {
	if s.userID == nil || record.UserID != nil {
		return
	}
	if err := s.repo.AttachUser(ctx, record.SessionID, *s.userID); err != nil {
		s.logger.WarnContext(ctx, "progress authority unreachable attaching user to session",
			"session_id", record.SessionID, "user_id", *s.userID, "error", err)
	}
}

// Get returns the current progress record, preferring the cache tier when its
// session id matches the resolved one; otherwise it falls back to the
// authority and mirrors the result into the cache.
func (s *Store) Get(ctx context.Context) (*models.OnboardingProgress, error) {
	sessionID, resErr := s.ResolveSessionID(ctx)
	if resErr != nil && !errors.Is(resErr, ErrDegraded) {
		return nil, resErr
	}

	var cached models.OnboardingProgress
	if err := s.cache.Get(ctx, s.progressKey, &cached); err == nil && cached.SessionID == sessionID {
		return &cached, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "progress cache read failed", "error", err)
	}

	record, err := s.repo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrProgressNotFound) {
			return nil, ErrNoProgress
		}
		if errors.Is(resErr, ErrDegraded) {
			return nil, fmt.Errorf("%w: %v", ErrDegraded, err)
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}

	s.mirror(ctx, record)
	return record, nil
}

// Save writes the record to both tiers concurrently and returns the authority
// tier's stored row. A cache failure is logged and swallowed; an authority
// failure fails the whole call.
func (s *Store) Save(ctx context.Context, stepNumber int, data map[string]any) (*models.OnboardingProgress, error) {
	sessionID, resErr := s.ResolveSessionID(ctx)
	if resErr != nil && !errors.Is(resErr, ErrDegraded) {
		return nil, resErr
	}

	record := &models.OnboardingProgress{
		SessionID:  sessionID,
		StepNumber: stepNumber,
		Data:       datatypes.JSONMap(data),
		UserID:     s.userID,
	}

	var stored *models.OnboardingProgress
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		stored, err = s.repo.Upsert(gctx, record)
		if err != nil {
			return fmt.Errorf("save progress: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.mirror(gctx, record)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stored, nil
}

// Clear removes the record from both tiers. Authority failure propagates; a
// missing authority row is treated as already cleared.
func (s *Store) Clear(ctx context.Context) error {
	sessionID, resErr := s.ResolveSessionID(ctx)
	if resErr != nil && !errors.Is(resErr, ErrDegraded) {
		return resErr
	}

	if err := s.cache.Delete(ctx, s.progressKey); err != nil {
		s.logger.WarnContext(ctx, "progress cache delete failed", "error", err)
	}
	if err := s.cache.Delete(ctx, s.sessionIDKey); err != nil {
		s.logger.WarnContext(ctx, "progress session id delete failed", "error", err)
	}

	if err := s.repo.DeleteBySessionID(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrProgressNotFound) {
			return nil
		}
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}

// mirror best-effort copies a record and its session id into the cache tier.
func (s *Store) mirror(ctx context.Context, record *models.OnboardingProgress) {
	if err := s.cache.Set(ctx, s.progressKey, record, cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "progress cache mirror failed", "session_id", record.SessionID, "error", err)
	}
	if err := s.cache.Set(ctx, s.sessionIDKey, record.SessionID, cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "session id cache mirror failed", "session_id", record.SessionID, "error", err)
	}
}
