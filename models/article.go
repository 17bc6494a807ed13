package models

import (
	"strings"
	"time"
	"unicode"
)

type Article struct {
	ID               uint       `json:"id" gorm:"primarykey"`
	Heading          string     `json:"heading" gorm:"not null"`
	Content          string     `json:"content" gorm:"type:text;not null"`
	CategoryID       uint       `json:"category_id" gorm:"not null;index"`
	Category         Category   `json:"category" gorm:"foreignKey:CategoryID"`
	Language         string     `json:"language" gorm:"size:10"`
	IsCommentEnabled bool       `json:"is_comment_enabled"`
	PublishedAt      *time.Time `json:"published_at" gorm:"index"`
	IsDeleted        bool       `json:"is_deleted" gorm:"default:false;index"`
	UserID           uint       `json:"user_id" gorm:"not null;index"`
	User             User       `json:"user" gorm:"foreignKey:UserID"`
	AddressID        *uint      `json:"address_id"`
	Address          *Address   `json:"address,omitempty" gorm:"foreignKey:AddressID"`
	Keywords         []Keyword  `json:"keywords" gorm:"many2many:article_keyword;"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsPublished reports whether the article is visible to readers at now.
func (a *Article) IsPublished(now time.Time) bool {
	return a.PublishedAt != nil && !a.PublishedAt.After(now) && !a.IsDeleted
}

func (a *Article) KeywordNames() []string {
	names := make([]string, 0, len(a.Keywords))
	for _, k := range a.Keywords {
		names = append(names, k.Name)
	}
	return names
}

// Slug is the decorative heading segment of the article URL. It plays no
// part in lookups.
func (a *Article) Slug() string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(a.Heading) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
