package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories so that a unit of work can run all of them
// against one transaction.
type Store interface {
	Articles() ArticleRepository
	Keywords() KeywordRepository
	Categories() CategoryRepository
	Users() UserRepository
	Addresses() AddressRepository
	// Transaction runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db         *gorm.DB
	articles   ArticleRepository
	keywords   KeywordRepository
	categories CategoryRepository
	users      UserRepository
	addresses  AddressRepository
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:         db,
		articles:   NewArticleRepository(db),
		keywords:   NewKeywordRepository(db),
		categories: NewCategoryRepository(db),
		users:      NewUserRepository(db),
		addresses:  NewAddressRepository(db),
	}
}

func (s *gormStore) Articles() ArticleRepository    { return s.articles }
func (s *gormStore) Keywords() KeywordRepository    { return s.keywords }
func (s *gormStore) Categories() CategoryRepository { return s.categories }
func (s *gormStore) Users() UserRepository          { return s.users }
func (s *gormStore) Addresses() AddressRepository   { return s.addresses }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
