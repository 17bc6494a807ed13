// Package policy holds the authorization decisions for articles. Decisions
// take the caller and the resource explicitly so they can be evaluated
// outside any request context.
package policy

import "blog-cms/models"

// CanEditArticle permits owners and admins on every article, and authors on
// their own. Anonymous callers are always denied.
func CanEditArticle(caller *models.Caller, article *models.Article) bool {
	if caller == nil || article == nil {
		return false
	}
	if caller.HasRole(models.RoleOwner, models.RoleAdmin) {
		return true
	}
	return caller.ID == article.UserID
}

// CanPublish reports whether the caller may create new articles.
func CanPublish(caller *models.Caller) bool {
	return caller.HasRole(models.RoleOwner, models.RoleAdmin, models.RoleAuthor)
}

// CanSeeAllArticles reports whether the admin listing covers every author.
func CanSeeAllArticles(caller *models.Caller) bool {
	return caller.HasRole(models.RoleOwner, models.RoleAdmin)
}
