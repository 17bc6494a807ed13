package repositories

import (
	"context"

	"blog-cms/models"

	"gorm.io/gorm"
)

type KeywordRepository interface {
	// FirstOrCreate returns the keyword with exactly this name, creating an
	// active one when none exists.
	FirstOrCreate(ctx context.Context, name string) (*models.Keyword, error)
	GetByName(ctx context.Context, name string) (*models.Keyword, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

type keywordRepository struct {
	db *gorm.DB
}

func NewKeywordRepository(db *gorm.DB) KeywordRepository {
	return &keywordRepository{db: db}
}

func (r *keywordRepository) FirstOrCreate(ctx context.Context, name string) (*models.Keyword, error) {
	var keyword models.Keyword
	err := r.db.WithContext(ctx).
		Where(models.Keyword{Name: name}).
		Attrs(models.Keyword{IsActive: true}).
		FirstOrCreate(&keyword).Error
	return &keyword, err
}

func (r *keywordRepository) GetByName(ctx context.Context, name string) (*models.Keyword, error) {
	var keyword models.Keyword
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&keyword).Error
	return &keyword, err
}

func (r *keywordRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Keyword{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
