package repositories

import (
	"context"
	"errors"

	"github.com/courselab/quiz-service/internal/models"
)

// Not-found sentinels, returned by every implementation so callers can branch
// without knowing the backing store.
var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrProgressNotFound = errors.New("onboarding progress not found")
)

// ===== SHARED FILTER STRUCTS =====

type QuizFilters struct {
	CreatedBy *string `json:"created_by"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`    // "created_at", "title", "updated_at"
	SortOrder string  `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORY INTERFACES =====

// QuizRepository persists authored quizzes and their question lists.
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id string) (*models.Quiz, error)
	Update(ctx context.Context, quiz *models.Quiz) error
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, filters QuizFilters) ([]*models.Quiz, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters QuizFilters) ([]*models.Quiz, int64, error)

	IsOwner(ctx context.Context, quizID string, userID string) (bool, error)
	ExistsByTitle(ctx context.Context, title string, creatorID string, excludeID *string) (bool, error)
}

// ProgressRepository is the authority store for onboarding progress records,
// keyed by the client-minted session id.
type ProgressRepository interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.OnboardingProgress, error)
	GetLatestByUserID(ctx context.Context, userID string) (*models.OnboardingProgress, error)
	Upsert(ctx context.Context, progress *models.OnboardingProgress) (*models.OnboardingProgress, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
	AttachUser(ctx context.Context, sessionID string, userID string) error
}
