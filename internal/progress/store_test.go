package progress

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/courselab/quiz-service/internal/cache"
	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/repositories"
	"github.com/courselab/quiz-service/internal/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAuthority is an in-memory ProgressRepository with a kill switch.
type fakeAuthority struct {
	records  map[string]*models.OnboardingProgress
	down     bool
	getCalls int
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{records: make(map[string]*models.OnboardingProgress)}
}

var errAuthorityDown = errors.New("authority down")

func (f *fakeAuthority) GetBySessionID(_ context.Context, sessionID string) (*models.OnboardingProgress, error) {
	f.getCalls++
	if f.down {
		return nil, errAuthorityDown
	}
	record, ok := f.records[sessionID]
	if !ok {
		return nil, repositories.ErrProgressNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeAuthority) GetLatestByUserID(_ context.Context, userID string) (*models.OnboardingProgress, error) {
	if f.down {
		return nil, errAuthorityDown
	}
	var found []*models.OnboardingProgress
	for _, r := range f.records {
		if r.UserID != nil && *r.UserID == userID {
			found = append(found, r)
		}
	}
	if len(found) == 0 {
		return nil, repositories.ErrProgressNotFound
	}
	sort.Slice(found, func(i, j int) bool { return found[i].UpdatedAt.After(found[j].UpdatedAt) })
	clone := *found[0]
	return &clone, nil
}

func (f *fakeAuthority) Upsert(_ context.Context, progress *models.OnboardingProgress) (*models.OnboardingProgress, error) {
	if f.down {
		return nil, errAuthorityDown
	}
	stored := *progress
	now := time.Now()
	if existing, ok := f.records[progress.SessionID]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.ID = uint(len(f.records) + 1)
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	f.records[progress.SessionID] = &stored
	clone := stored
	return &clone, nil
}

func (f *fakeAuthority) DeleteBySessionID(_ context.Context, sessionID string) error {
	if f.down {
		return errAuthorityDown
	}
	if _, ok := f.records[sessionID]; !ok {
		return repositories.ErrProgressNotFound
	}
	delete(f.records, sessionID)
	return nil
}

func (f *fakeAuthority) AttachUser(_ context.Context, sessionID string, userID string) error {
	if f.down {
		return errAuthorityDown
	}
	record, ok := f.records[sessionID]
	if !ok {
		return repositories.ErrProgressNotFound
	}
	record.UserID = &userID
	return nil
}

func newTestStore(t *testing.T, opts Options) (*Store, *fakeAuthority, cache.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cacheSvc := cache.NewRedisCache(client, zap.NewNop())
	authority := newFakeAuthority()
	return NewStore(cacheSvc, authority, utils.NewDefaultLogger(), opts), authority, cacheSvc, mr
}

func TestStore_ResolveMintsFreshSession(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t1"})
	ctx := context.Background()

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	assert.Len(t, id, 26)

	// blank record initialized in the authority
	record, err := authority.GetBySessionID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, record.StepNumber)

	// and the id mirrored into the cache partition
	var cachedID string
	require.NoError(t, cacheSvc.Get(ctx, "t1:session_id", &cachedID))
	assert.Equal(t, id, cachedID)
}

func TestStore_ResolveVerifiesCachedID(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t2"})
	ctx := context.Background()

	existing := utils.NewULID()
	_, err := authority.Upsert(ctx, &models.OnboardingProgress{SessionID: existing, StepNumber: 3})
	require.NoError(t, err)
	require.NoError(t, cacheSvc.Set(ctx, "t2:session_id", existing, time.Minute))

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, existing, id)
}

func TestStore_ResolveDropsStaleCachedID(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t3"})
	ctx := context.Background()

	stale := utils.NewULID()
	require.NoError(t, cacheSvc.Set(ctx, "t3:session_id", stale, time.Minute))

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, stale, id, "stale id must not be kept")

	_, err = authority.GetBySessionID(ctx, id)
	assert.NoError(t, err, "fresh record must exist in the authority")
}

func TestStore_ResolveAdoptsUserSession(t *testing.T) {
	userID := "user-42"
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t4", UserID: &userID})
	ctx := context.Background()

	existing := utils.NewULID()
	_, err := authority.Upsert(ctx, &models.OnboardingProgress{
		SessionID: existing, StepNumber: 2, UserID: &userID,
	})
	require.NoError(t, err)

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, existing, id)

	// adopted id mirrored back into the cache
	var cachedID string
	require.NoError(t, cacheSvc.Get(ctx, "t4:session_id", &cachedID))
	assert.Equal(t, existing, cachedID)
}

func TestStore_ResolveClaimsAnonymousSession(t *testing.T) {
	userID := "user-7"
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t13", UserID: &userID})
	ctx := context.Background()

	// session started before login, so the authority record has no user yet
	anonymous := utils.NewULID()
	_, err := authority.Upsert(ctx, &models.OnboardingProgress{SessionID: anonymous, StepNumber: 2})
	require.NoError(t, err)
	require.NoError(t, cacheSvc.Set(ctx, "t13:session_id", anonymous, time.Minute))

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, anonymous, id)

	record, err := authority.GetBySessionID(ctx, anonymous)
	require.NoError(t, err)
	require.NotNil(t, record.UserID, "resolved session now belongs to the user")
	assert.Equal(t, userID, *record.UserID)
}

func TestStore_ResolveKeepsExistingOwner(t *testing.T) {
	userID := "user-7"
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t14", UserID: &userID})
	ctx := context.Background()

	owner := "user-1"
	owned := utils.NewULID()
	_, err := authority.Upsert(ctx, &models.OnboardingProgress{
		SessionID: owned, StepNumber: 3, UserID: &owner,
	})
	require.NoError(t, err)
	require.NoError(t, cacheSvc.Set(ctx, "t14:session_id", owned, time.Minute))

	_, err = store.ResolveSessionID(ctx)
	require.NoError(t, err)

	record, err := authority.GetBySessionID(ctx, owned)
	require.NoError(t, err)
	require.NotNil(t, record.UserID)
	assert.Equal(t, owner, *record.UserID, "an already attributed session is never re-stamped")
}

func TestStore_ResolveRunsOnce(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t5"})
	ctx := context.Background()

	first, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)

	// clear every backing partition; the cached resolution must survive
	require.NoError(t, cacheSvc.Delete(ctx, "t5:session_id"))
	calls := authority.getCalls

	second, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, authority.getCalls, "no re-query after first resolution")
}

func TestStore_ResolveDegradedKeepsCachedID(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t6"})
	ctx := context.Background()

	local := utils.NewULID()
	require.NoError(t, cacheSvc.Set(ctx, "t6:session_id", local, time.Minute))
	authority.down = true

	id, err := store.ResolveSessionID(ctx)
	assert.ErrorIs(t, err, ErrDegraded)
	assert.Equal(t, local, id)
}

func TestStore_GetFastPathAndFallback(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t7"})
	ctx := context.Background()

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)

	_, err = authority.Upsert(ctx, &models.OnboardingProgress{
		SessionID: id, StepNumber: 4,
	})
	require.NoError(t, err)

	// drop the cached blob so the first read must hit the authority
	require.NoError(t, cacheSvc.Delete(ctx, "t7:progress"))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StepNumber)

	// the fallback read mirrors back, so the next read is served from cache
	authority.down = true
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.StepNumber)
}

func TestStore_GetIgnoresForeignCachedBlob(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t8"})
	ctx := context.Background()

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	_, err = authority.Upsert(ctx, &models.OnboardingProgress{SessionID: id, StepNumber: 2})
	require.NoError(t, err)

	// a blob from some other session must not satisfy the fast path
	require.NoError(t, cacheSvc.Set(ctx, "t8:progress", models.OnboardingProgress{
		SessionID: utils.NewULID(), StepNumber: 9,
	}, time.Minute))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got.SessionID)
	assert.Equal(t, 2, got.StepNumber)
}

func TestStore_SaveReturnsAuthorityRecord(t *testing.T) {
	store, _, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t9"})
	ctx := context.Background()

	stored, err := store.Save(ctx, 3, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, 3, stored.StepNumber)
	assert.False(t, stored.UpdatedAt.IsZero(), "authority timestamps are canonical")

	var mirrored models.OnboardingProgress
	require.NoError(t, cacheSvc.Get(ctx, "t9:progress", &mirrored))
	assert.Equal(t, stored.SessionID, mirrored.SessionID)
	assert.Equal(t, 3, mirrored.StepNumber)
}

func TestStore_SaveSurvivesCacheOutage(t *testing.T) {
	store, _, _, mr := newTestStore(t, Options{KeyPrefix: "t10"})
	ctx := context.Background()

	_, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)

	mr.Close()

	stored, err := store.Save(ctx, 2, map[string]any{"k": "v"})
	require.NoError(t, err, "cache tier failure is soft")
	assert.Equal(t, 2, stored.StepNumber)
}

func TestStore_SaveFailsWhenAuthorityDown(t *testing.T) {
	store, authority, _, _ := newTestStore(t, Options{KeyPrefix: "t11"})
	ctx := context.Background()

	_, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)

	authority.down = true
	_, err = store.Save(ctx, 2, map[string]any{"k": "v"})
	assert.Error(t, err, "authority failure must never be reported as success")
}

func TestStore_Clear(t *testing.T) {
	store, authority, cacheSvc, _ := newTestStore(t, Options{KeyPrefix: "t12"})
	ctx := context.Background()

	id, err := store.ResolveSessionID(ctx)
	require.NoError(t, err)
	_, err = store.Save(ctx, 2, map[string]any{"k": "v"})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx))

	_, err = authority.GetBySessionID(ctx, id)
	assert.ErrorIs(t, err, repositories.ErrProgressNotFound)

	var cachedID string
	assert.ErrorIs(t, cacheSvc.Get(ctx, "t12:session_id", &cachedID), cache.ErrCacheMiss)

	// clearing twice is fine
	assert.NoError(t, store.Clear(ctx))
}
