package models

type RegisterRequest struct {
	Name     string   `json:"name" binding:"required,min=3,max=50"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=6"`
	Role     UserRole `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type SubscriptionRequest struct {
	Subscribed *bool `json:"subscribed" binding:"required"`
}

// ArticleRequest holds the whitelisted fields accepted by store and update.
// It is checked with the HTTP helper's validator, like SearchRequest.
type ArticleRequest struct {
	Heading          string `form:"heading" json:"heading" validate:"required,max=255"`
	Content          string `form:"content" json:"content" validate:"required"`
	CategoryID       uint   `form:"category_id" json:"category_id" validate:"required"`
	Language         string `form:"language" json:"language" validate:"max=10"`
	IsCommentEnabled bool   `form:"is_comment_enabled" json:"is_comment_enabled"`
	Keywords         string `form:"keywords" json:"keywords"`
}

// SearchRequest is checked with the HTTP helper's validator rather than gin
// binding so that failures use the validation error envelope.
type SearchRequest struct {
	QueryString string `form:"query_string" validate:"required"`
	Page        int    `form:"page"`
}

type ArticleListParams struct {
	Page    int
	PerPage int
	// AuthorID restricts the list to one author when non-zero.
	AuthorID uint
	// IncludeHidden lists unpublished and soft-deleted articles too.
	IncludeHidden bool
}

type ArticlePage struct {
	Articles []Article
	Total    int64
	Page     int
	PerPage  int
}

type ArticleDetail struct {
	Article    Article
	IsEditable bool
	Related    []Article
}

// ArticleEditForm is the flattened article used to pre-fill the edit form.
type ArticleEditForm struct {
	ID               uint   `json:"id"`
	Heading          string `json:"heading"`
	Content          string `json:"content"`
	CategoryID       uint   `json:"category_id"`
	Language         string `json:"language"`
	IsCommentEnabled bool   `json:"is_comment_enabled"`
	Keywords         string `json:"keywords"`
}
