package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"blog-cms/config"
	"blog-cms/logging"
	"blog-cms/models"
	"blog-cms/notifications"
	"blog-cms/repositories"
	"blog-cms/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Name() string { return "mock" }

func (m *mockDispatcher) Dispatch(ctx context.Context, msg notifications.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockDispatcher) Close() error { return nil }

// failingStore makes ReplaceKeywords fail inside transactions, after the
// article row and keywords have already been written.
type failingStore struct {
	repositories.Store
	err error
}

func (f *failingStore) Transaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	return f.Store.Transaction(ctx, func(tx repositories.Store) error {
		return fn(&failingStore{Store: tx, err: f.err})
	})
}

func (f *failingStore) Articles() repositories.ArticleRepository {
	return &failingArticles{ArticleRepository: f.Store.Articles(), err: f.err}
}

type failingArticles struct {
	repositories.ArticleRepository
	err error
}

func (f *failingArticles) ReplaceKeywords(ctx context.Context, article *models.Article, keywords []models.Keyword) error {
	return f.err
}

type ArticleServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *memory.Store
	dispatcher *mockDispatcher
	service    ArticleService
	logs       *bytes.Buffer

	category models.Category
	other    models.Category
	owner    models.User
	author   models.User
	stranger models.User
}

func TestArticleServiceSuite(t *testing.T) {
	suite.Run(t, new(ArticleServiceSuite))
}

func (s *ArticleServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.logs = &bytes.Buffer{}
	logging.SetOutput(s.logs)

	s.store = memory.New()
	s.dispatcher = &mockDispatcher{}
	s.service = s.newService(s.store)

	s.category = models.Category{Name: "Go", IsActive: true}
	s.Require().NoError(s.store.Categories().Create(s.ctx, &s.category))
	s.other = models.Category{Name: "Rust", IsActive: true}
	s.Require().NoError(s.store.Categories().Create(s.ctx, &s.other))
	inactive := models.Category{Name: "Archive", IsActive: false}
	s.Require().NoError(s.store.Categories().Create(s.ctx, &inactive))

	s.owner = s.createUser("Owner", "owner@example.com", models.RoleOwner)
	s.author = s.createUser("Author", "author@example.com", models.RoleAuthor)
	s.stranger = s.createUser("Stranger", "stranger@example.com", models.RoleAuthor)
}

func (s *ArticleServiceSuite) newService(store repositories.Store) ArticleService {
	return NewArticleService(store, s.dispatcher, config.BlogConfig{ItemPerPage: 2, RelatedLimit: 3}, "https://blog.test")
}

func (s *ArticleServiceSuite) createUser(name, email string, role models.UserRole) models.User {
	u := models.User{Name: name, Email: email, Role: role}
	s.Require().NoError(s.store.Users().Create(s.ctx, &u))
	return u
}

func caller(u models.User) *models.Caller {
	return &models.Caller{ID: u.ID, Name: u.Name, Role: u.Role}
}

func (s *ArticleServiceSuite) request(heading, keywords string) models.ArticleRequest {
	return models.ArticleRequest{
		Heading:    heading,
		Content:    "content of " + heading,
		CategoryID: s.category.ID,
		Language:   "en",
		Keywords:   keywords,
	}
}

func (s *ArticleServiceSuite) storeArticle(heading, keywords string) *models.Article {
	article, err := s.service.Store(s.ctx, caller(s.author), s.request(heading, keywords), "10.0.0.1")
	s.Require().NoError(err)
	return article
}

func (s *ArticleServiceSuite) TestStoreAttachesKeywordsAddressAndAuthor() {
	article := s.storeArticle("Laravel tips", "php laravel php")

	got, err := s.store.Articles().GetByID(s.ctx, article.ID)
	s.Require().NoError(err)
	s.Equal([]string{"php", "laravel"}, got.KeywordNames())
	s.Equal(s.author.ID, got.UserID)
	s.Require().NotNil(got.PublishedAt)
	s.Require().NotNil(got.Address)
	s.Equal("10.0.0.1", got.Address.IP)

	// The same IP reuses its address record.
	again := s.storeArticle("More tips", "")
	s.Equal(*article.AddressID, *again.AddressID)
}

func (s *ArticleServiceSuite) TestStoreNotifiesEverySubscriber() {
	s.Require().NoError(s.store.Users().SetSubscribed(s.ctx, s.owner.ID, true))
	s.Require().NoError(s.store.Users().SetSubscribed(s.ctx, s.stranger.ID, true))

	s.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(msg notifications.Message) bool {
		return msg.ToAddress == s.owner.Email && strings.HasPrefix(msg.URL, "https://blog.test/articles/")
	})).Return(nil).Once()
	s.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(msg notifications.Message) bool {
		return msg.ToAddress == s.stranger.Email
	})).Return(errors.New("queue full")).Once()

	article := s.storeArticle("Hello", "")

	s.dispatcher.AssertExpectations(s.T())
	s.NotZero(article.ID)
	s.Contains(s.logs.String(), "failed to dispatch article notification")
}

func (s *ArticleServiceSuite) TestStoreFailureLeavesNoPartialWrites() {
	s.Require().NoError(s.store.Users().SetSubscribed(s.ctx, s.owner.ID, true))
	service := s.newService(&failingStore{Store: s.store, err: errors.New("deadlock detected")})

	_, err := service.Store(s.ctx, caller(s.author), s.request("Broken", "php laravel"), "10.0.0.9")

	var internal models.ErrorInternalServer
	s.Require().ErrorAs(err, &internal)
	s.NotContains(internal.Message, "deadlock")

	page, err := s.service.AdminList(s.ctx, caller(s.owner), 1)
	s.Require().NoError(err)
	s.Zero(page.Total)
	_, err = s.store.Keywords().GetByName(s.ctx, "php")
	s.Error(err)

	lines := strings.Split(strings.TrimSpace(s.logs.String()), "\n")
	s.Len(lines, 1)
	s.Contains(lines[0], "deadlock detected")
	s.dispatcher.AssertNotCalled(s.T(), "Dispatch", mock.Anything, mock.Anything)
}

func (s *ArticleServiceSuite) TestStoreRequiresPublisher() {
	_, err := s.service.Store(s.ctx, nil, s.request("x", ""), "")
	s.ErrorAs(err, &models.ErrorUnauthorized{})

	reader := &models.Caller{ID: 99, Role: models.RoleReader}
	_, err = s.service.Store(s.ctx, reader, s.request("x", ""), "")
	s.ErrorAs(err, &models.ErrorUnauthorized{})
}

func (s *ArticleServiceSuite) TestUpdateReplacesKeywordsIdempotently() {
	article := s.storeArticle("Tags", "php laravel")

	req := s.request("Tags v2", "php")
	req.IsCommentEnabled = true
	_, err := s.service.Update(s.ctx, caller(s.author), article.ID, req)
	s.Require().NoError(err)
	_, err = s.service.Update(s.ctx, caller(s.author), article.ID, req)
	s.Require().NoError(err)

	got, err := s.store.Articles().GetByID(s.ctx, article.ID)
	s.Require().NoError(err)
	s.Equal("Tags v2", got.Heading)
	s.True(got.IsCommentEnabled)
	s.Equal([]string{"php"}, got.KeywordNames())
}

func (s *ArticleServiceSuite) TestUpdateMissingArticle() {
	_, err := s.service.Update(s.ctx, caller(s.owner), 404, s.request("x", "php"))

	var notFound models.ErrorNotFound
	s.Require().ErrorAs(err, &notFound)
	s.Equal(MsgArticleNotFound, notFound.Message)
	_, err = s.store.Keywords().GetByName(s.ctx, "php")
	s.Error(err, "no keyword may be written for a missing article")
}

func (s *ArticleServiceSuite) TestUpdateDeniedForOtherAuthors() {
	article := s.storeArticle("Mine", "")

	_, err := s.service.Update(s.ctx, caller(s.stranger), article.ID, s.request("Hijacked", ""))
	var unauthorized models.ErrorUnauthorized
	s.Require().ErrorAs(err, &unauthorized)
	s.Equal(MsgUnauthorized, unauthorized.Message)

	_, err = s.service.Update(s.ctx, caller(s.owner), article.ID, s.request("Fixed by owner", ""))
	s.NoError(err)
}

func (s *ArticleServiceSuite) TestCheckEditable() {
	article := s.storeArticle("Mine", "")

	s.NoError(s.service.CheckEditable(s.ctx, caller(s.author), article.ID))
	s.NoError(s.service.CheckEditable(s.ctx, caller(s.owner), article.ID))
	s.ErrorAs(s.service.CheckEditable(s.ctx, caller(s.stranger), article.ID), &models.ErrorUnauthorized{})
	s.ErrorAs(s.service.CheckEditable(s.ctx, nil, article.ID), &models.ErrorUnauthorized{})
	s.ErrorAs(s.service.CheckEditable(s.ctx, caller(s.owner), 404), &models.ErrorNotFound{})
}

func (s *ArticleServiceSuite) TestShow() {
	article := s.storeArticle("Visible", "go")

	detail, err := s.service.Show(s.ctx, nil, article.ID)
	s.Require().NoError(err)
	s.False(detail.IsEditable)
	s.Equal("Author", detail.Article.User.Name)
	s.Equal("Go", detail.Article.Category.Name)

	detail, err = s.service.Show(s.ctx, caller(s.author), article.ID)
	s.Require().NoError(err)
	s.True(detail.IsEditable)

	detail, err = s.service.Show(s.ctx, caller(s.stranger), article.ID)
	s.Require().NoError(err)
	s.False(detail.IsEditable)

	_, err = s.service.Show(s.ctx, nil, 12345)
	s.ErrorAs(err, &models.ErrorNotFound{})

	s.Require().NoError(s.store.Articles().SoftDelete(s.ctx, article.ID))
	_, err = s.service.Show(s.ctx, nil, article.ID)
	s.ErrorAs(err, &models.ErrorNotFound{})
}

func (s *ArticleServiceSuite) TestShowRelated() {
	var ids []uint
	for i := 0; i < 5; i++ {
		ids = append(ids, s.storeArticle("same category", "").ID)
	}
	elsewhere := s.request("elsewhere", "")
	elsewhere.CategoryID = s.other.ID
	_, err := s.service.Store(s.ctx, caller(s.author), elsewhere, "")
	s.Require().NoError(err)

	future := time.Now().Add(time.Hour)
	draft := models.Article{Heading: "draft", CategoryID: s.category.ID, UserID: s.author.ID, PublishedAt: &future}
	s.Require().NoError(s.store.Articles().Create(s.ctx, &draft))

	detail, err := s.service.Show(s.ctx, nil, ids[0])
	s.Require().NoError(err)
	s.Require().Len(detail.Related, 3)
	for i, related := range detail.Related {
		s.NotEqual(ids[0], related.ID)
		s.Equal(s.category.ID, related.CategoryID)
		s.True(related.IsPublished(time.Now()))
		if i > 0 {
			s.False(related.CreatedAt.After(detail.Related[i-1].CreatedAt))
		}
	}
	s.Equal(ids[4], detail.Related[0].ID)
}

func (s *ArticleServiceSuite) TestEditForm() {
	article := s.storeArticle("Editable", "php laravel")

	form, categories, err := s.service.EditForm(s.ctx, caller(s.author), article.ID)
	s.Require().NoError(err)
	s.Equal("php laravel", form.Keywords)
	s.Equal("Editable", form.Heading)
	s.Len(categories, 2, "inactive categories are not offered")

	_, _, err = s.service.EditForm(s.ctx, nil, article.ID)
	s.ErrorAs(err, &models.ErrorUnauthorized{})

	_, _, err = s.service.EditForm(s.ctx, caller(s.owner), 999)
	s.ErrorAs(err, &models.ErrorNotFound{})

	// Hidden articles stay editable.
	s.Require().NoError(s.store.Articles().SoftDelete(s.ctx, article.ID))
	_, _, err = s.service.EditForm(s.ctx, caller(s.author), article.ID)
	s.NoError(err)
}

func (s *ArticleServiceSuite) TestListPaginatesNewestFirst() {
	first := s.storeArticle("one", "")
	second := s.storeArticle("two", "")
	third := s.storeArticle("three", "")

	page, err := s.service.List(s.ctx, 1)
	s.Require().NoError(err)
	s.EqualValues(3, page.Total)
	s.Require().Len(page.Articles, 2)
	s.Equal(third.ID, page.Articles[0].ID)
	s.Equal(second.ID, page.Articles[1].ID)

	page, err = s.service.List(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(page.Articles, 1)
	s.Equal(first.ID, page.Articles[0].ID)
}

func (s *ArticleServiceSuite) TestSearch() {
	byHeading := s.storeArticle("rust in production", "")
	byKeyword := s.storeArticle("systems", "rustlang")
	s.storeArticle("nothing here", "go")
	deleted := s.storeArticle("rust deleted", "")
	s.Require().NoError(s.store.Articles().SoftDelete(s.ctx, deleted.ID))

	page, err := s.service.Search(s.ctx, "rust", 1)
	s.Require().NoError(err)
	s.EqualValues(2, page.Total)
	s.Equal([]uint{byKeyword.ID, byHeading.ID}, []uint{page.Articles[0].ID, page.Articles[1].ID})

	page, err = s.service.Search(s.ctx, "Rust", 1)
	s.Require().NoError(err)
	s.Zero(page.Total, "matching is case-sensitive")

	_, err = s.service.Search(s.ctx, "", 1)
	s.ErrorAs(err, &models.ErrorValidation{})
}

func (s *ArticleServiceSuite) TestAdminListAndDestroy() {
	mine := s.storeArticle("mine", "")
	_, err := s.service.Store(s.ctx, caller(s.stranger), s.request("theirs", ""), "")
	s.Require().NoError(err)

	page, err := s.service.AdminList(s.ctx, caller(s.author), 1)
	s.Require().NoError(err)
	s.EqualValues(1, page.Total)

	page, err = s.service.AdminList(s.ctx, caller(s.owner), 1)
	s.Require().NoError(err)
	s.EqualValues(2, page.Total)

	s.ErrorAs(s.service.Destroy(s.ctx, caller(s.stranger), mine.ID), &models.ErrorUnauthorized{})
	s.Require().NoError(s.service.Destroy(s.ctx, caller(s.author), mine.ID))

	page, err = s.service.AdminList(s.ctx, caller(s.author), 1)
	s.Require().NoError(err)
	s.Require().Len(page.Articles, 1)
	s.True(page.Articles[0].IsDeleted)

	list, err := s.service.List(s.ctx, 1)
	s.Require().NoError(err)
	s.EqualValues(1, list.Total)
}

func TestParseKeywords(t *testing.T) {
	assert.Equal(t, []string{"php", "laravel"}, ParseKeywords("  php \t laravel\nphp  "))
	assert.Equal(t, []string{"Go", "go"}, ParseKeywords("Go go Go"))
	assert.Empty(t, ParseKeywords("   "))
}

func TestJoinKeywords(t *testing.T) {
	assert.Equal(t, "php laravel", JoinKeywords([]models.Keyword{{Name: "php"}, {Name: "laravel"}}))
	assert.Equal(t, "", JoinKeywords(nil))
}

func TestTokenManagerRoundTrip(t *testing.T) {
	tokens := NewTokenManager(config.JWTConfig{Secret: []byte("secret"), Expiration: time.Hour})

	signed, err := tokens.Generate(&models.User{ID: 4, Name: "Ada", Role: models.RoleAdmin})
	require.NoError(t, err)

	c, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, &models.Caller{ID: 4, Name: "Ada", Role: models.RoleAdmin}, c)

	other := NewTokenManager(config.JWTConfig{Secret: []byte("other"), Expiration: time.Hour})
	_, err = other.Parse(signed)
	assert.Error(t, err)
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	tokens := NewTokenManager(config.JWTConfig{Secret: []byte("secret"), Expiration: time.Minute})
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }

	signed, err := tokens.Generate(&models.User{ID: 1})
	require.NoError(t, err)
	_, err = tokens.Parse(signed)
	assert.Error(t, err)
}
