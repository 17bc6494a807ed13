package repositories

import (
	"context"
	"strings"
	"time"

	"blog-cms/models"

	"gorm.io/gorm"
)

type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	// GetByID loads any article, hidden or not, with its keywords.
	GetByID(ctx context.Context, id uint) (*models.Article, error)
	// GetPublishedByID loads a published, not deleted article with its
	// user, category and keywords.
	GetPublishedByID(ctx context.Context, id uint) (*models.Article, error)
	GetList(ctx context.Context, params models.ArticleListParams) ([]models.Article, int64, error)
	GetRelated(ctx context.Context, article *models.Article, limit int) ([]models.Article, error)
	Search(ctx context.Context, query string, page, perPage int) ([]models.Article, int64, error)
	// Update writes the editable columns, zero values included.
	Update(ctx context.Context, article *models.Article) error
	// ReplaceKeywords detaches every keyword from the article, then attaches
	// the given set.
	ReplaceKeywords(ctx context.Context, article *models.Article, keywords []models.Keyword) error
	// SoftDelete flags the article as deleted. Rows are never removed.
	SoftDelete(ctx context.Context, id uint) error
}

var articleEditableColumns = []string{"heading", "content", "category_id", "language", "is_comment_enabled"}

type articleRepository struct {
	db *gorm.DB
}

func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	return r.db.WithContext(ctx).Omit("Keywords", "User", "Category", "Address").Create(article).Error
}

func (r *articleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	err := r.db.WithContext(ctx).
		Preload("Keywords").
		First(&article, id).Error
	return &article, err
}

func (r *articleRepository) GetPublishedByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	err := visible(r.db.WithContext(ctx), time.Now()).
		Preload("User").
		Preload("Category").
		Preload("Keywords").
		Where("articles.id = ?", id).
		First(&article).Error
	return &article, err
}

func (r *articleRepository) GetList(ctx context.Context, params models.ArticleListParams) ([]models.Article, int64, error) {
	var articles []models.Article
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Article{})
	if !params.IncludeHidden {
		query = visible(query, time.Now())
	}
	if params.AuthorID > 0 {
		query = query.Where("articles.user_id = ?", params.AuthorID)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("User").
		Preload("Category").
		Preload("Keywords").
		Order("articles.created_at DESC, articles.id DESC").
		Offset(offset(params.Page, params.PerPage)).
		Limit(params.PerPage).
		Find(&articles).Error

	return articles, total, err
}

func (r *articleRepository) GetRelated(ctx context.Context, article *models.Article, limit int) ([]models.Article, error) {
	var related []models.Article
	if limit <= 0 {
		return related, nil
	}
	err := visible(r.db.WithContext(ctx), time.Now()).
		Where("articles.category_id = ? AND articles.id <> ?", article.CategoryID, article.ID).
		Order("articles.created_at DESC, articles.id DESC").
		Limit(limit).
		Find(&related).Error
	return related, err
}

func (r *articleRepository) Search(ctx context.Context, query string, page, perPage int) ([]models.Article, int64, error) {
	var articles []models.Article
	var total int64

	pattern := "%" + escapeLike(query) + "%"

	db := r.db.WithContext(ctx)

	keywordMatch := db.Table("article_keyword").
		Select("1").
		Joins("JOIN keywords ON keywords.id = article_keyword.keyword_id").
		Where("article_keyword.article_id = articles.id").
		Where("keywords.name LIKE ? AND keywords.is_active = ?", pattern, true)

	matches := db.Where("articles.heading LIKE ?", pattern).
		Or("articles.content LIKE ?", pattern).
		Or("EXISTS (?)", keywordMatch)

	base := visible(db.Model(&models.Article{}), time.Now()).
		Where(matches).
		Session(&gorm.Session{})

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := base.
		Preload("Category").
		Preload("Keywords").
		Preload("User").
		Order("articles.created_at DESC, articles.id DESC").
		Offset(offset(page, perPage)).
		Limit(perPage).
		Find(&articles).Error

	return articles, total, err
}

func (r *articleRepository) Update(ctx context.Context, article *models.Article) error {
	return r.db.WithContext(ctx).
		Model(article).
		Select(articleEditableColumns).
		Updates(article).Error
}

func (r *articleRepository) ReplaceKeywords(ctx context.Context, article *models.Article, keywords []models.Keyword) error {
	association := r.db.WithContext(ctx).Model(article).Association("Keywords")
	if err := association.Clear(); err != nil {
		return err
	}
	if len(keywords) == 0 {
		return nil
	}
	return association.Append(keywords)
}

func (r *articleRepository) SoftDelete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", id).Update("is_deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// visible restricts a query to published, not deleted articles.
func visible(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("articles.published_at IS NOT NULL AND articles.published_at <= ? AND articles.is_deleted = ?", now, false)
}

func offset(page, perPage int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE treat the user's query as a literal substring.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
