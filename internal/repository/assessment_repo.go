package repository

import (
	"context"
	"errors"

	"feeledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAssessmentNotFound = errors.New("费用评估不存在")

// AssessmentRepository 费用评估只读访问，Seed 时才会写入
type AssessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (r *AssessmentRepository) GetByEnrollmentID(ctx context.Context, enrollmentID int64) (*model.FeeAssessment, error) {
	var assessment model.FeeAssessment
	err := r.db.WithContext(ctx).Where("enrollment_id = ?", enrollmentID).First(&assessment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return &assessment, nil
}

// CreateIfAbsent 已存在同一 enrollment 的记录时不做任何事
func (r *AssessmentRepository) CreateIfAbsent(ctx context.Context, assessment *model.FeeAssessment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "enrollment_id"}},
			DoNothing: true,
		}).
		Create(assessment).Error
}
