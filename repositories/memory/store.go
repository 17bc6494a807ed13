// Package memory implements repositories.Store in process memory. It backs
// `serve --storage=memory` and the service and handler tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"blog-cms/models"
	"blog-cms/repositories"

	"gorm.io/gorm"
)

var (
	errForeignKey = errors.New("violates foreign key constraint")
	errDuplicate  = errors.New("duplicate key value violates unique constraint")
)

// Store keeps every table in maps guarded by one RWMutex. Transactions are
// serialized and work on a copy that is swapped in on commit.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *state
	now  func() time.Time
	inTx bool
}

type state struct {
	articles        map[uint]models.Article
	articleKeywords map[uint][]uint
	keywords        map[uint]models.Keyword
	categories      map[uint]models.Category
	users           map[uint]models.User
	addresses       map[uint]models.Address
	seq             map[string]uint
}

func New() *Store {
	return &Store{
		data: &state{
			articles:        make(map[uint]models.Article),
			articleKeywords: make(map[uint][]uint),
			keywords:        make(map[uint]models.Keyword),
			categories:      make(map[uint]models.Category),
			users:           make(map[uint]models.User),
			addresses:       make(map[uint]models.Address),
			seq:             make(map[string]uint),
		},
		now: time.Now,
	}
}

func (s *Store) Articles() repositories.ArticleRepository    { return &articleRepo{s} }
func (s *Store) Keywords() repositories.KeywordRepository    { return &keywordRepo{s} }
func (s *Store) Categories() repositories.CategoryRepository { return &categoryRepo{s} }
func (s *Store) Users() repositories.UserRepository          { return &userRepo{s} }
func (s *Store) Addresses() repositories.AddressRepository   { return &addressRepo{s} }

// Transaction runs fn against a private copy of the data. The copy replaces
// the shared data only when fn succeeds, so readers never see uncommitted
// rows. Writes made outside a transaction wait for it to finish. Nested
// calls join the outer transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &Store{data: s.data.clone(), now: s.now, inTx: true}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}

// lockWrite takes the locks a mutation needs and returns the matching
// unlock. Outside a transaction that includes txMu, which keeps writes from
// landing on data an open transaction is about to replace.
func (s *Store) lockWrite() func() {
	if s.inTx {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func (st *state) clone() *state {
	c := &state{
		articles:        make(map[uint]models.Article, len(st.articles)),
		articleKeywords: make(map[uint][]uint, len(st.articleKeywords)),
		keywords:        make(map[uint]models.Keyword, len(st.keywords)),
		categories:      make(map[uint]models.Category, len(st.categories)),
		users:           make(map[uint]models.User, len(st.users)),
		addresses:       make(map[uint]models.Address, len(st.addresses)),
		seq:             make(map[string]uint, len(st.seq)),
	}
	for k, v := range st.articles {
		c.articles[k] = v
	}
	for k, v := range st.articleKeywords {
		c.articleKeywords[k] = append([]uint(nil), v...)
	}
	for k, v := range st.keywords {
		c.keywords[k] = v
	}
	for k, v := range st.categories {
		c.categories[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.addresses {
		c.addresses[k] = v
	}
	for k, v := range st.seq {
		c.seq[k] = v
	}
	return c
}

// nextID must be called with the write lock held.
func (s *Store) nextID(table string) uint {
	s.data.seq[table]++
	return s.data.seq[table]
}

// hydrate attaches relations to a stored article. Callers hold a read lock.
func (s *Store) hydrate(a models.Article) models.Article {
	a.User = s.data.users[a.UserID]
	a.Category = s.data.categories[a.CategoryID]
	if a.AddressID != nil {
		if addr, ok := s.data.addresses[*a.AddressID]; ok {
			a.Address = &addr
		}
	}

	ids := s.data.articleKeywords[a.ID]
	a.Keywords = make([]models.Keyword, 0, len(ids))
	for _, id := range ids {
		if k, ok := s.data.keywords[id]; ok {
			a.Keywords = append(a.Keywords, k)
		}
	}
	sort.Slice(a.Keywords, func(i, j int) bool { return a.Keywords[i].ID < a.Keywords[j].ID })
	return a
}

func (s *Store) visible(a models.Article, now time.Time) bool {
	return a.PublishedAt != nil && !a.PublishedAt.After(now) && !a.IsDeleted
}

// newestFirst orders like the SQL repositories: created_at DESC, id DESC.
func newestFirst(articles []models.Article) {
	sort.Slice(articles, func(i, j int) bool {
		if !articles[i].CreatedAt.Equal(articles[j].CreatedAt) {
			return articles[i].CreatedAt.After(articles[j].CreatedAt)
		}
		return articles[i].ID > articles[j].ID
	})
}

func paginate(articles []models.Article, page, perPage int) []models.Article {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if perPage <= 0 || start >= len(articles) {
		return []models.Article{}
	}
	end := start + perPage
	if end > len(articles) {
		end = len(articles)
	}
	return articles[start:end]
}

type articleRepo struct{ s *Store }

func (r *articleRepo) Create(ctx context.Context, article *models.Article) error {
	s := r.s
	defer s.lockWrite()()

	if _, ok := s.data.categories[article.CategoryID]; !ok {
		return errForeignKey
	}
	if _, ok := s.data.users[article.UserID]; !ok {
		return errForeignKey
	}
	if article.AddressID != nil {
		if _, ok := s.data.addresses[*article.AddressID]; !ok {
			return errForeignKey
		}
	}

	now := s.now()
	article.ID = s.nextID("articles")
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now

	stored := *article
	stored.User = models.User{}
	stored.Category = models.Category{}
	stored.Address = nil
	stored.Keywords = nil
	s.data.articles[stored.ID] = stored
	return nil
}

func (r *articleRepo) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data.articles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	hydrated := s.hydrate(a)
	return &hydrated, nil
}

func (r *articleRepo) GetPublishedByID(ctx context.Context, id uint) (*models.Article, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.data.articles[id]
	if !ok || !s.visible(a, s.now()) {
		return nil, gorm.ErrRecordNotFound
	}
	hydrated := s.hydrate(a)
	return &hydrated, nil
}

func (r *articleRepo) GetList(ctx context.Context, params models.ArticleListParams) ([]models.Article, int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var matched []models.Article
	for _, a := range s.data.articles {
		if !params.IncludeHidden && !s.visible(a, now) {
			continue
		}
		if params.AuthorID > 0 && a.UserID != params.AuthorID {
			continue
		}
		matched = append(matched, s.hydrate(a))
	}
	newestFirst(matched)
	return paginate(matched, params.Page, params.PerPage), int64(len(matched)), nil
}

func (r *articleRepo) GetRelated(ctx context.Context, article *models.Article, limit int) ([]models.Article, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var related []models.Article
	for _, a := range s.data.articles {
		if a.ID == article.ID || a.CategoryID != article.CategoryID || !s.visible(a, now) {
			continue
		}
		related = append(related, a)
	}
	newestFirst(related)
	if limit < 0 {
		limit = 0
	}
	if len(related) > limit {
		related = related[:limit]
	}
	return related, nil
}

func (r *articleRepo) Search(ctx context.Context, query string, page, perPage int) ([]models.Article, int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var matched []models.Article
	for _, a := range s.data.articles {
		if !s.visible(a, now) {
			continue
		}
		if strings.Contains(a.Heading, query) || strings.Contains(a.Content, query) || s.keywordMatches(a.ID, query) {
			matched = append(matched, s.hydrate(a))
		}
	}
	newestFirst(matched)
	return paginate(matched, page, perPage), int64(len(matched)), nil
}

func (s *Store) keywordMatches(articleID uint, query string) bool {
	for _, id := range s.data.articleKeywords[articleID] {
		k, ok := s.data.keywords[id]
		if ok && k.IsActive && strings.Contains(k.Name, query) {
			return true
		}
	}
	return false
}

func (r *articleRepo) Update(ctx context.Context, article *models.Article) error {
	s := r.s
	defer s.lockWrite()()

	stored, ok := s.data.articles[article.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if _, ok := s.data.categories[article.CategoryID]; !ok {
		return errForeignKey
	}

	stored.Heading = article.Heading
	stored.Content = article.Content
	stored.CategoryID = article.CategoryID
	stored.Language = article.Language
	stored.IsCommentEnabled = article.IsCommentEnabled
	stored.UpdatedAt = s.now()
	article.UpdatedAt = stored.UpdatedAt
	s.data.articles[article.ID] = stored
	return nil
}

func (r *articleRepo) ReplaceKeywords(ctx context.Context, article *models.Article, keywords []models.Keyword) error {
	s := r.s
	defer s.lockWrite()()

	if _, ok := s.data.articles[article.ID]; !ok {
		return gorm.ErrRecordNotFound
	}

	ids := make([]uint, 0, len(keywords))
	seen := make(map[uint]bool, len(keywords))
	for _, k := range keywords {
		if _, ok := s.data.keywords[k.ID]; !ok {
			return errForeignKey
		}
		if seen[k.ID] {
			continue
		}
		seen[k.ID] = true
		ids = append(ids, k.ID)
	}

	delete(s.data.articleKeywords, article.ID)
	if len(ids) > 0 {
		s.data.articleKeywords[article.ID] = ids
	}
	return nil
}

func (r *articleRepo) SoftDelete(ctx context.Context, id uint) error {
	s := r.s
	defer s.lockWrite()()

	a, ok := s.data.articles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.IsDeleted = true
	a.UpdatedAt = s.now()
	s.data.articles[id] = a
	return nil
}

type keywordRepo struct{ s *Store }

func (r *keywordRepo) FirstOrCreate(ctx context.Context, name string) (*models.Keyword, error) {
	s := r.s
	defer s.lockWrite()()

	for _, k := range s.data.keywords {
		if k.Name == name {
			found := k
			return &found, nil
		}
	}

	now := s.now()
	k := models.Keyword{
		ID:        s.nextID("keywords"),
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data.keywords[k.ID] = k
	return &k, nil
}

func (r *keywordRepo) GetByName(ctx context.Context, name string) (*models.Keyword, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.data.keywords {
		if k.Name == name {
			found := k
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *keywordRepo) SetActive(ctx context.Context, id uint, active bool) error {
	s := r.s
	defer s.lockWrite()()

	k, ok := s.data.keywords[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	k.IsActive = active
	k.UpdatedAt = s.now()
	s.data.keywords[id] = k
	return nil
}

type categoryRepo struct{ s *Store }

func (r *categoryRepo) Create(ctx context.Context, category *models.Category) error {
	s := r.s
	defer s.lockWrite()()

	for _, c := range s.data.categories {
		if c.Name == category.Name {
			return errDuplicate
		}
	}
	now := s.now()
	category.ID = s.nextID("categories")
	category.CreatedAt = now
	category.UpdatedAt = now
	s.data.categories[category.ID] = *category
	return nil
}

func (r *categoryRepo) GetActive(ctx context.Context) ([]models.Category, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := []models.Category{}
	for _, c := range s.data.categories {
		if c.IsActive {
			categories = append(categories, c)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (r *categoryRepo) Count(ctx context.Context) (int64, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.data.categories)), nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	s := r.s
	defer s.lockWrite()()

	for _, u := range s.data.users {
		if u.Email == user.Email {
			return errDuplicate
		}
	}
	if user.Role == "" {
		user.Role = models.RoleReader
	}
	now := s.now()
	user.ID = s.nextID("users")
	user.CreatedAt = now
	user.UpdatedAt = now
	s.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (*models.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.data.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.data.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *userRepo) GetSubscribed(ctx context.Context) ([]models.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []models.User
	for _, u := range s.data.users {
		if u.IsSubscribed {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepo) SetSubscribed(ctx context.Context, id uint, subscribed bool) error {
	s := r.s
	defer s.lockWrite()()

	u, ok := s.data.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.IsSubscribed = subscribed
	u.UpdatedAt = s.now()
	s.data.users[id] = u
	return nil
}

type addressRepo struct{ s *Store }

func (r *addressRepo) FirstOrCreate(ctx context.Context, ip string) (*models.Address, error) {
	s := r.s
	defer s.lockWrite()()

	for _, a := range s.data.addresses {
		if a.IP == ip {
			found := a
			return &found, nil
		}
	}
	a := models.Address{ID: s.nextID("addresses"), IP: ip, CreatedAt: s.now()}
	s.data.addresses[a.ID] = a
	return &a, nil
}
