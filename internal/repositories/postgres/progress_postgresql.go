package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/courselab/quiz-service/internal/models"
	"github.com/courselab/quiz-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressPostgreSQL struct {
	db *gorm.DB
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{db: db}
}

func (p *ProgressPostgreSQL) GetBySessionID(ctx context.Context, sessionID string) (*models.OnboardingProgress, error) {
	var progress models.OnboardingProgress
	err := p.db.WithContext(ctx).
		First(&progress, "session_id = ?", sessionID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress for session %s: %w", sessionID, err)
	}

	return &progress, nil
}

// GetLatestByUserID returns the most recently updated record owned by the
// given user. Used to re-adopt an existing session when the client lost its id.
func (p *ProgressPostgreSQL) GetLatestByUserID(ctx context.Context, userID string) (*models.OnboardingProgress, error) {
	var progress models.OnboardingProgress
	err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&progress).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to get progress for user %s: %w", userID, err)
	}

	return &progress, nil
}

// Upsert writes the progress record keyed by session id and returns the stored
// row, whose timestamps are canonical.
func (p *ProgressPostgreSQL) Upsert(ctx context.Context, progress *models.OnboardingProgress) (*models.OnboardingProgress, error) {
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"step_number", "data", "user_id", "updated_at",
			}),
		}).
		Create(progress).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert progress for session %s: %w", progress.SessionID, err)
	}

	// Re-read so the caller gets database-assigned timestamps and the id of a
	// pre-existing row, not the zero values of the insert attempt.
	return p.GetBySessionID(ctx, progress.SessionID)
}

func (p *ProgressPostgreSQL) DeleteBySessionID(ctx context.Context, sessionID string) error {
	result := p.db.WithContext(ctx).
		Delete(&models.OnboardingProgress{}, "session_id = ?", sessionID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete progress for session %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrProgressNotFound
	}
	return nil
}

// AttachUser links an authenticated user to an anonymous session's record.
func (p *ProgressPostgreSQL) AttachUser(ctx context.Context, sessionID string, userID string) error {
	result := p.db.WithContext(ctx).
		Model(&models.OnboardingProgress{}).
		Where("session_id = ?", sessionID).
		Update("user_id", userID)
	if result.Error != nil {
		return fmt.Errorf("failed to attach user to session %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrProgressNotFound
	}
	return nil
}
