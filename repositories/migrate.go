package repositories

import (
	"blog-cms/models"

	"gorm.io/gorm"
)

// Migrate creates or updates the schema, including the article_keyword join
// table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Keyword{},
		&models.Address{},
		&models.Article{},
	)
}
