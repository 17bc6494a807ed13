package repositories

import (
	"context"
	"strings"
	"testing"
	"time"

	"blog-cms/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlRecorder is a gorm logger that keeps every statement with its values
// inlined.
type sqlRecorder struct {
	statements []string
	contexts   []context.Context
}

type ctxKey struct{}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface      { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()
	r.statements = append(r.statements, sql)
	r.contexts = append(r.contexts, ctx)
}

// find returns the first recorded statement containing fragment.
func (r *sqlRecorder) find(t *testing.T, fragment string) (int, string) {
	t.Helper()
	for i, stmt := range r.statements {
		if strings.Contains(stmt, fragment) {
			return i, stmt
		}
	}
	t.Fatalf("no statement contains %q; got:\n%s", fragment, strings.Join(r.statements, "\n"))
	return -1, ""
}

// newDryRunDB builds postgres SQL without connecting to a server.
func newDryRunDB(t *testing.T) (*gorm.DB, *sqlRecorder) {
	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.Open("host=localhost user=blog dbname=blog sslmode=disable"), &gorm.Config{
		DryRun:                 true,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 rec,
	})
	require.NoError(t, err)
	return db, rec
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestArticleRepository_SearchSQL(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewArticleRepository(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "search")
	_, total, err := repo.Search(ctx, `50%_off\`, 2, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	for _, got := range rec.contexts {
		assert.Equal(t, "search", got.Value(ctxKey{}))
	}

	_, count := rec.find(t, `SELECT count(*) FROM "articles"`)
	assert.Contains(t, count, "articles.published_at IS NOT NULL AND articles.published_at <= '")
	assert.Contains(t, count, "articles.is_deleted = false")
	assert.Contains(t, count, `articles.heading LIKE '%50\%\_off\\%'`)
	assert.Contains(t, count, `articles.content LIKE '%50\%\_off\\%'`)
	assert.Contains(t, count, "EXISTS (SELECT 1 FROM")
	assert.Contains(t, count, "article_keyword.article_id = articles.id")
	assert.Contains(t, count, `keywords.name LIKE '%50\%\_off\\%' AND keywords.is_active = true`)

	_, page := rec.find(t, "ORDER BY articles.created_at DESC, articles.id DESC")
	assert.Contains(t, page, "keywords.is_active = true")
	assert.Contains(t, page, "LIMIT 10 OFFSET 10")
}

func TestArticleRepository_UpdateWritesOnlyEditableColumns(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewArticleRepository(db)

	published := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	addressID := uint(4)
	article := &models.Article{
		ID:               7,
		Heading:          "New heading",
		Content:          "body",
		CategoryID:       2,
		Language:         "en",
		IsCommentEnabled: false,
		PublishedAt:      &published,
		IsDeleted:        true,
		UserID:           9,
		AddressID:        &addressID,
	}
	require.NoError(t, repo.Update(context.Background(), article))

	_, stmt := rec.find(t, `UPDATE "articles" SET`)
	assert.Contains(t, stmt, `"heading"='New heading'`)
	assert.Contains(t, stmt, `"category_id"=2`)
	assert.Contains(t, stmt, `"language"='en'`)
	assert.Contains(t, stmt, `"is_comment_enabled"=false`, "zero values are written too")
	assert.Contains(t, stmt, `"id" = 7`)
	for _, column := range []string{"published_at", "is_deleted", "user_id", "address_id"} {
		assert.NotContains(t, stmt, column)
	}
}

func TestArticleRepository_ReplaceKeywordsClearsThenAppends(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewArticleRepository(db)

	article := &models.Article{ID: 7}
	keywords := []models.Keyword{{ID: 2, Name: "php", IsActive: true}, {ID: 3, Name: "laravel", IsActive: true}}
	require.NoError(t, repo.ReplaceKeywords(context.Background(), article, keywords))

	clearAt, clear := rec.find(t, `DELETE FROM "article_keyword"`)
	assert.Contains(t, clear, `"article_id" = 7`)

	appendAt, insert := rec.find(t, `INSERT INTO "article_keyword"`)
	assert.Contains(t, insert, "(7,2),(7,3)")
	assert.Less(t, clearAt, appendAt)
}

func TestArticleRepository_ReplaceKeywordsWithEmptySetOnlyClears(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewArticleRepository(db)

	require.NoError(t, repo.ReplaceKeywords(context.Background(), &models.Article{ID: 7}, nil))

	rec.find(t, `DELETE FROM "article_keyword"`)
	for _, stmt := range rec.statements {
		assert.NotContains(t, stmt, "INSERT")
	}
}

func TestArticleRepository_GetRelatedSQL(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewArticleRepository(db)

	_, err := repo.GetRelated(context.Background(), &models.Article{ID: 7, CategoryID: 3}, 3)
	require.NoError(t, err)

	_, stmt := rec.find(t, `FROM "articles"`)
	assert.Contains(t, stmt, "articles.category_id = 3 AND articles.id <> 7")
	assert.Contains(t, stmt, "articles.is_deleted = false")
	assert.Contains(t, stmt, "LIMIT 3")
}
