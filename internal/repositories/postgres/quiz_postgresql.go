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

type QuizPostgreSQL struct {
	db *gorm.DB
}

func NewQuizPostgreSQL(db *gorm.DB) repositories.QuizRepository {
	return &QuizPostgreSQL{db: db}
}

// Create inserts a quiz together with its question list.
func (q *QuizPostgreSQL) Create(ctx context.Context, quiz *models.Quiz) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := q.existsByTitle(tx, quiz.Title, quiz.CreatedBy, nil)
		if err != nil {
			return fmt.Errorf("failed to check title uniqueness: %w", err)
		}
		if exists {
			return fmt.Errorf("quiz with title '%s' already exists for this creator", quiz.Title)
		}

		if err := tx.Create(quiz).Error; err != nil {
			return fmt.Errorf("failed to create quiz: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a quiz with its questions in authored order.
func (q *QuizPostgreSQL) GetByID(ctx context.Context, id string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := q.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC`)
		}).
		First(&quiz, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrQuizNotFound
		}
		return nil, err
	}

	return &quiz, nil
}

// Update replaces the quiz row and its full question list.
func (q *QuizPostgreSQL) Update(ctx context.Context, quiz *models.Quiz) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Quiz
		if err := tx.First(&current, "id = ?", quiz.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repositories.ErrQuizNotFound
			}
			return fmt.Errorf("failed to load quiz: %w", err)
		}

		if quiz.Title != current.Title {
			exists, err := q.existsByTitle(tx, quiz.Title, quiz.CreatedBy, &quiz.ID)
			if err != nil {
				return fmt.Errorf("failed to check title uniqueness: %w", err)
			}
			if exists {
				return fmt.Errorf("quiz with title '%s' already exists for this creator", quiz.Title)
			}
		}

		if err := tx.Omit("Questions").Save(quiz).Error; err != nil {
			return fmt.Errorf("failed to update quiz: %w", err)
		}

		// Question edits can reorder, delete, and insert; replacing the list
		// wholesale keeps the stored order authoritative.
		if err := tx.Where("quiz_id = ?", quiz.ID).Delete(&models.Question{}).Error; err != nil {
			return fmt.Errorf("failed to clear quiz questions: %w", err)
		}
		if len(quiz.Questions) > 0 {
			for i := range quiz.Questions {
				quiz.Questions[i].QuizID = quiz.ID
			}
			if err := tx.Create(&quiz.Questions).Error; err != nil {
				return fmt.Errorf("failed to save quiz questions: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a quiz and its questions.
func (q *QuizPostgreSQL) Delete(ctx context.Context, id string) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return fmt.Errorf("failed to delete quiz questions: %w", err)
		}
		result := tx.Delete(&models.Quiz{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete quiz: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return repositories.ErrQuizNotFound
		}
		return nil
	})
}

// List returns quizzes matching the filters plus the unpaged total.
func (q *QuizPostgreSQL) List(ctx context.Context, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	query := q.db.WithContext(ctx).Model(&models.Quiz{})

	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count quizzes: %w", err)
	}

	query = applyQuizSorting(query, filters)
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var quizzes []*models.Quiz
	if err := query.Find(&quizzes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list quizzes: %w", err)
	}
	return quizzes, total, nil
}

// GetByCreator lists quizzes owned by the given creator.
func (q *QuizPostgreSQL) GetByCreator(ctx context.Context, creatorID string, filters repositories.QuizFilters) ([]*models.Quiz, int64, error) {
	filters.CreatedBy = &creatorID
	return q.List(ctx, filters)
}

func (q *QuizPostgreSQL) IsOwner(ctx context.Context, quizID string, userID string) (bool, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&models.Quiz{}).
		Where("id = ? AND created_by = ?", quizID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check quiz ownership: %w", err)
	}
	return count > 0, nil
}

func (q *QuizPostgreSQL) ExistsByTitle(ctx context.Context, title string, creatorID string, excludeID *string) (bool, error) {
	return q.existsByTitle(q.db.WithContext(ctx), title, creatorID, excludeID)
}

func (q *QuizPostgreSQL) existsByTitle(tx *gorm.DB, title string, creatorID string, excludeID *string) (bool, error) {
	query := tx.Model(&models.Quiz{}).
		Where("title = ? AND created_by = ?", title, creatorID)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func applyQuizSorting(query *gorm.DB, filters repositories.QuizFilters) *gorm.DB {
	sortBy := filters.SortBy
	switch sortBy {
	case "title", "created_at", "updated_at":
	default:
		sortBy = "created_at"
	}
	desc := filters.SortOrder != "asc"
	return query.Order(clause.OrderByColumn{
		Column: clause.Column{Name: sortBy},
		Desc:   desc,
	})
}
