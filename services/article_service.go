package services

import (
	"context"
	"errors"
	"time"

	"blog-cms/config"
	"blog-cms/logging"
	"blog-cms/metrics"
	"blog-cms/models"
	"blog-cms/notifications"
	"blog-cms/oops"
	"blog-cms/policy"
	"blog-cms/repositories"

	"gorm.io/gorm"
)

const (
	MsgArticleNotFound = "Article not found"
	MsgUnauthorized    = "Unauthorized request"
)

// ArticleService implements the blog's article operations. Every method
// takes the caller explicitly; a nil caller is an anonymous visitor.
type ArticleService interface {
	// List returns published articles, newest first.
	List(ctx context.Context, page int) (*models.ArticlePage, error)
	Show(ctx context.Context, caller *models.Caller, id uint) (*models.ArticleDetail, error)
	EditForm(ctx context.Context, caller *models.Caller, id uint) (*models.ArticleEditForm, []models.Category, error)
	// CheckEditable reports ErrorNotFound or ErrorUnauthorized before any
	// form input is looked at.
	CheckEditable(ctx context.Context, caller *models.Caller, id uint) error
	Update(ctx context.Context, caller *models.Caller, id uint, req models.ArticleRequest) (*models.Article, error)
	CreateForm(ctx context.Context) ([]models.Category, error)
	// Store publishes a new article and notifies every subscriber once the
	// article is committed.
	Store(ctx context.Context, caller *models.Caller, req models.ArticleRequest, ip string) (*models.Article, error)
	Search(ctx context.Context, query string, page int) (*models.ArticlePage, error)
	AdminList(ctx context.Context, caller *models.Caller, page int) (*models.ArticlePage, error)
	Destroy(ctx context.Context, caller *models.Caller, id uint) error
}

type articleService struct {
	store    repositories.Store
	notifier notifications.Dispatcher
	cfg      config.BlogConfig
	appURL   string
	now      func() time.Time
}

func NewArticleService(store repositories.Store, notifier notifications.Dispatcher, cfg config.BlogConfig, appURL string) ArticleService {
	return &articleService{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		appURL:   appURL,
		now:      time.Now,
	}
}

func (s *articleService) List(ctx context.Context, page int) (*models.ArticlePage, error) {
	page = normalizePage(page)
	articles, total, err := s.store.Articles().GetList(ctx, models.ArticleListParams{
		Page:    page,
		PerPage: s.cfg.ItemPerPage,
	})
	if err != nil {
		return nil, s.internal(ctx, err, "failed to list articles")
	}
	return &models.ArticlePage{Articles: articles, Total: total, Page: page, PerPage: s.cfg.ItemPerPage}, nil
}

func (s *articleService) Show(ctx context.Context, caller *models.Caller, id uint) (*models.ArticleDetail, error) {
	article, err := s.store.Articles().GetPublishedByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(ctx, err)
	}

	related, err := s.store.Articles().GetRelated(ctx, article, s.cfg.RelatedLimit)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to load related articles")
	}

	return &models.ArticleDetail{
		Article:    *article,
		IsEditable: policy.CanEditArticle(caller, article),
		Related:    related,
	}, nil
}

func (s *articleService) EditForm(ctx context.Context, caller *models.Caller, id uint) (*models.ArticleEditForm, []models.Category, error) {
	article, err := s.editable(ctx, caller, id)
	if err != nil {
		return nil, nil, err
	}

	categories, err := s.store.Categories().GetActive(ctx)
	if err != nil {
		return nil, nil, s.internal(ctx, err, "failed to load categories")
	}

	form := &models.ArticleEditForm{
		ID:               article.ID,
		Heading:          article.Heading,
		Content:          article.Content,
		CategoryID:       article.CategoryID,
		Language:         article.Language,
		IsCommentEnabled: article.IsCommentEnabled,
		Keywords:         JoinKeywords(article.Keywords),
	}
	return form, categories, nil
}

func (s *articleService) CheckEditable(ctx context.Context, caller *models.Caller, id uint) error {
	_, err := s.editable(ctx, caller, id)
	return err
}

func (s *articleService) Update(ctx context.Context, caller *models.Caller, id uint, req models.ArticleRequest) (*models.Article, error) {
	article, err := s.editable(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	article.Heading = req.Heading
	article.Content = req.Content
	article.CategoryID = req.CategoryID
	article.Language = req.Language
	article.IsCommentEnabled = req.IsCommentEnabled

	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Articles().Update(ctx, article); err != nil {
			return err
		}
		return syncKeywords(ctx, tx, article, req.Keywords)
	})
	metrics.RecordArticleWrite("update", err)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to update article")
	}
	return article, nil
}

func (s *articleService) CreateForm(ctx context.Context) ([]models.Category, error) {
	categories, err := s.store.Categories().GetActive(ctx)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to load categories")
	}
	return categories, nil
}

func (s *articleService) Store(ctx context.Context, caller *models.Caller, req models.ArticleRequest, ip string) (*models.Article, error) {
	if !policy.CanPublish(caller) {
		return nil, models.ErrorUnauthorized{Message: MsgUnauthorized}
	}

	now := s.now()
	article := &models.Article{
		Heading:          req.Heading,
		Content:          req.Content,
		CategoryID:       req.CategoryID,
		Language:         req.Language,
		IsCommentEnabled: req.IsCommentEnabled,
		PublishedAt:      &now,
		UserID:           caller.ID,
	}

	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		if ip != "" {
			address, err := tx.Addresses().FirstOrCreate(ctx, ip)
			if err != nil {
				return err
			}
			article.AddressID = &address.ID
		}
		if err := tx.Articles().Create(ctx, article); err != nil {
			return err
		}
		return syncKeywords(ctx, tx, article, req.Keywords)
	})
	metrics.RecordArticleWrite("store", err)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to store article")
	}

	s.notifySubscribers(ctx, article, caller.Name)
	return article, nil
}

func (s *articleService) Search(ctx context.Context, query string, page int) (*models.ArticlePage, error) {
	if query == "" {
		return nil, models.ErrorValidation{Message: "query_string is required"}
	}
	page = normalizePage(page)
	articles, total, err := s.store.Articles().Search(ctx, query, page, s.cfg.ItemPerPage)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to search articles")
	}
	return &models.ArticlePage{Articles: articles, Total: total, Page: page, PerPage: s.cfg.ItemPerPage}, nil
}

func (s *articleService) AdminList(ctx context.Context, caller *models.Caller, page int) (*models.ArticlePage, error) {
	if !policy.CanPublish(caller) {
		return nil, models.ErrorUnauthorized{Message: MsgUnauthorized}
	}

	params := models.ArticleListParams{
		Page:          normalizePage(page),
		PerPage:       s.cfg.ItemPerPage,
		IncludeHidden: true,
	}
	if !policy.CanSeeAllArticles(caller) {
		params.AuthorID = caller.ID
	}

	articles, total, err := s.store.Articles().GetList(ctx, params)
	if err != nil {
		return nil, s.internal(ctx, err, "failed to list articles")
	}
	return &models.ArticlePage{Articles: articles, Total: total, Page: params.Page, PerPage: params.PerPage}, nil
}

func (s *articleService) Destroy(ctx context.Context, caller *models.Caller, id uint) error {
	if _, err := s.editable(ctx, caller, id); err != nil {
		return err
	}
	err := s.store.Articles().SoftDelete(ctx, id)
	metrics.RecordArticleWrite("destroy", err)
	if err != nil {
		return s.internal(ctx, err, "failed to delete article")
	}
	return nil
}

// editable loads any article by id, hidden or not, and checks the caller
// may change it.
func (s *articleService) editable(ctx context.Context, caller *models.Caller, id uint) (*models.Article, error) {
	article, err := s.store.Articles().GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(ctx, err)
	}
	if !policy.CanEditArticle(caller, article) {
		return nil, models.ErrorUnauthorized{Message: MsgUnauthorized}
	}
	return article, nil
}

// syncKeywords replaces the article's keyword set with the parsed input.
func syncKeywords(ctx context.Context, tx repositories.Store, article *models.Article, input string) error {
	names := ParseKeywords(input)
	keywords := make([]models.Keyword, 0, len(names))
	for _, name := range names {
		keyword, err := tx.Keywords().FirstOrCreate(ctx, name)
		if err != nil {
			return err
		}
		keywords = append(keywords, *keyword)
	}
	if err := tx.Articles().ReplaceKeywords(ctx, article, keywords); err != nil {
		return err
	}
	article.Keywords = keywords
	return nil
}

// notifySubscribers hands one message per subscriber to the dispatcher.
// Failures are logged and never reach the caller.
func (s *articleService) notifySubscribers(ctx context.Context, article *models.Article, author string) {
	logger := logging.ExtractLogger(ctx)

	subscribers, err := s.store.Users().GetSubscribed(ctx)
	if err != nil {
		logger.Error().Err(err).Uint("article_id", article.ID).Msg("failed to load subscribers")
		return
	}

	for _, subscriber := range subscribers {
		msg := notifications.NewArticleMessage(s.appURL, subscriber, article, author)
		err := s.notifier.Dispatch(ctx, msg)
		metrics.RecordNotification(s.notifier.Name(), err)
		if err != nil {
			logger.Error().
				Err(err).
				Uint("article_id", article.ID).
				Str("to", subscriber.Email).
				Msg("failed to dispatch article notification")
		}
	}
}

func (s *articleService) lookupError(ctx context.Context, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrorNotFound{Message: MsgArticleNotFound}
	}
	return s.internal(ctx, err, "failed to load article")
}

// internal logs err once with its stack and hides it behind a
// client-safe error.
func (s *articleService) internal(ctx context.Context, err error, msg string) error {
	wrapped := oops.New(err, msg)
	logging.ExtractLogger(ctx).Error().Stack().Err(wrapped).Msg(msg)
	return models.ErrorInternalServer{Message: msg, Err: wrapped}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
