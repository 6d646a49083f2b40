package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("history record not found")

// sortColumns whitelists the columns List may order by.
var sortColumns = map[string]bool{
	"created_at": true,
	"prediction": true,
	"confidence": true,
	"filename":   true,
}

type ListQuery struct {
	Search string
	SortBy string
	Order  string
}

// normalize falls back to newest first for unknown columns or directions.
func (q ListQuery) normalize() ListQuery {
	if !sortColumns[q.SortBy] {
		q.SortBy = "created_at"
	}
	q.Order = strings.ToLower(q.Order)
	if q.Order != "asc" {
		q.Order = "desc"
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

type PredictionCount struct {
	Prediction string
	Count      int64
}

type Repository interface {
	Create(ctx context.Context, r *Record) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Record, error)
	List(ctx context.Context, userID uuid.UUID, q ListQuery) ([]Record, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Record, error)
	Count(ctx context.Context, userID uuid.UUID) (int64, error)
	CountByPrediction(ctx context.Context, userID uuid.UUID) ([]PredictionCount, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rec *Record) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, userID, id uuid.UUID) (*Record, error) {
	var rec Record
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find history record: %w", err)
	}
	return &rec, nil
}

func (r *repository) List(ctx context.Context, userID uuid.UUID, q ListQuery) ([]Record, error) {
	q = q.normalize()
	tx := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.Search != "" {
		like := "%" + q.Search + "%"
		tx = tx.Where("filename ILIKE ? OR prediction ILIKE ?", like, like)
	}

	var recs []Record
	if err := tx.Order(q.SortBy + " " + q.Order).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return recs, nil
}

func (r *repository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Record, error) {
	var recs []Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent history: %w", err)
	}
	return recs, nil
}

func (r *repository) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Record{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

func (r *repository) CountByPrediction(ctx context.Context, userID uuid.UUID) ([]PredictionCount, error) {
	var rows []PredictionCount
	err := r.db.WithContext(ctx).
		Model(&Record{}).
		Select("prediction, count(*) AS count").
		Where("user_id = ?", userID).
		Group("prediction").
		Order("count DESC, prediction ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	return rows, nil
}

func (r *repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Record{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete history record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
