package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"blog-cms/helper"
	"blog-cms/middleware"
	"blog-cms/models"
	"blog-cms/services"

	"github.com/gin-gonic/gin"
	"gopkg.in/go-playground/validator.v9"
)

const (
	msgArticleUpdated   = "Article updated successfully!"
	msgArticlePublished = "Article published successfully!"
	msgArticleDeleted   = "Article deleted successfully!"
)

// ArticleHandler serves the public article pages and the admin article
// forms. Pages render HTML; form submissions answer JSON.
type ArticleHandler struct {
	articleService services.ArticleService
	Helper         *helper.HTTPHelper
	appURL         string
}

func NewArticleHandler(articleService services.ArticleService, h *helper.HTTPHelper, appURL string) *ArticleHandler {
	return &ArticleHandler{articleService: articleService, Helper: h, appURL: appURL}
}

func (h *ArticleHandler) Index(c *gin.Context) {
	page := h.Helper.CurrentPage(c)
	result, err := h.articleService.List(c.Request.Context(), page)
	if err != nil {
		h.failPage(c, err)
		return
	}

	h.render(c, "articles_index.html", gin.H{
		"Articles":   result.Articles,
		"Pagination": h.Helper.GeneratePaging(c, result.Page, result.PerPage, result.Total),
	})
}

// Show ignores the optional heading segment; it only decorates the URL.
func (h *ArticleHandler) Show(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.redirectHome(c, helper.FlashWarning, services.MsgArticleNotFound)
		return
	}

	detail, err := h.articleService.Show(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		if isNotFound(err) {
			h.redirectHome(c, helper.FlashWarning, services.MsgArticleNotFound)
			return
		}
		h.failPage(c, err)
		return
	}

	h.render(c, "article_show.html", gin.H{
		"Article":    detail.Article,
		"IsEditable": detail.IsEditable,
		"Related":    detail.Related,
	})
}

func (h *ArticleHandler) Edit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.redirectHome(c, helper.FlashError, services.MsgArticleNotFound)
		return
	}

	form, categories, err := h.articleService.EditForm(c.Request.Context(), middleware.CallerFrom(c), id)
	if err != nil {
		var unauthorized models.ErrorUnauthorized
		switch {
		case isNotFound(err):
			h.redirectHome(c, helper.FlashError, services.MsgArticleNotFound)
		case errors.As(err, &unauthorized):
			h.redirectHome(c, helper.FlashError, services.MsgUnauthorized)
		default:
			h.failPage(c, err)
		}
		return
	}

	h.render(c, "article_edit.html", gin.H{
		"Article":    form,
		"Categories": categories,
	})
}

func (h *ArticleHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.Helper.SendErrorMsg(c, models.ErrorNotFound{Message: services.MsgArticleNotFound})
		return
	}

	// A missing or foreign article is reported before the form is validated.
	if err := h.articleService.CheckEditable(c.Request.Context(), middleware.CallerFrom(c), id); err != nil {
		h.Helper.SendErrorMsg(c, err)
		return
	}

	req, ok := h.bindArticle(c)
	if !ok {
		return
	}

	if _, err := h.articleService.Update(c.Request.Context(), middleware.CallerFrom(c), id, req); err != nil {
		h.Helper.SendErrorMsg(c, err)
		return
	}

	helper.SetFlash(c, helper.FlashSuccess, msgArticleUpdated)
	h.Helper.SendRedirectURL(c, h.adminURL())
}

func (h *ArticleHandler) Create(c *gin.Context) {
	categories, err := h.articleService.CreateForm(c.Request.Context())
	if err != nil {
		h.failPage(c, err)
		return
	}

	h.render(c, "article_create.html", gin.H{
		"Categories": categories,
	})
}

func (h *ArticleHandler) Store(c *gin.Context) {
	req, ok := h.bindArticle(c)
	if !ok {
		return
	}

	_, err := h.articleService.Store(c.Request.Context(), middleware.CallerFrom(c), req, c.ClientIP())
	if err != nil {
		h.Helper.SendErrorMsg(c, err)
		return
	}

	helper.SetFlash(c, helper.FlashSuccess, msgArticlePublished)
	h.Helper.SendRedirectURL(c, h.adminURL())
}

func (h *ArticleHandler) Search(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.Helper.SendBadRequest(c, "Invalid search parameters", h.Helper.EmptyJsonMap())
		return
	}
	req.QueryString = strings.TrimSpace(req.QueryString)
	if !h.validate(c, req) {
		return
	}

	result, err := h.articleService.Search(c.Request.Context(), req.QueryString, h.Helper.CurrentPage(c))
	if err != nil {
		h.failPage(c, err)
		return
	}

	h.render(c, "search_result.html", gin.H{
		"Articles":   result.Articles,
		"Query":      req.QueryString,
		"Total":      result.Total,
		"Pagination": h.Helper.GeneratePaging(c, result.Page, result.PerPage, result.Total),
	})
}

// AdminIndex lists every article the caller manages, hidden ones included.
func (h *ArticleHandler) AdminIndex(c *gin.Context) {
	result, err := h.articleService.AdminList(c.Request.Context(), middleware.CallerFrom(c), h.Helper.CurrentPage(c))
	if err != nil {
		h.failPage(c, err)
		return
	}

	h.render(c, "admin_articles.html", gin.H{
		"Articles":   result.Articles,
		"Pagination": h.Helper.GeneratePaging(c, result.Page, result.PerPage, result.Total),
	})
}

func (h *ArticleHandler) Destroy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		h.Helper.SendErrorMsg(c, models.ErrorNotFound{Message: services.MsgArticleNotFound})
		return
	}

	if err := h.articleService.Destroy(c.Request.Context(), middleware.CallerFrom(c), id); err != nil {
		h.Helper.SendErrorMsg(c, err)
		return
	}

	helper.SetFlash(c, helper.FlashSuccess, msgArticleDeleted)
	h.Helper.SendRedirectURL(c, h.adminURL())
}

func (h *ArticleHandler) bindArticle(c *gin.Context) (models.ArticleRequest, bool) {
	var req models.ArticleRequest
	if err := c.ShouldBind(&req); err != nil {
		h.Helper.SendErrorMsg(c, models.ErrorValidation{Message: "Invalid article form"})
		return req, false
	}
	return req, h.validate(c, req)
}

func (h *ArticleHandler) validate(c *gin.Context, req interface{}) bool {
	err := h.Helper.Validate.Struct(req)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.Helper.SendValidationError(c, validationErrors)
	} else {
		h.Helper.SendBadRequest(c, err.Error(), h.Helper.EmptyJsonMap())
	}
	return false
}

// render adds the values every page needs: flashes and the caller.
func (h *ArticleHandler) render(c *gin.Context, name string, data gin.H) {
	data["Flash"] = helper.PopFlashes(c)
	data["Caller"] = middleware.CallerFrom(c)
	data["AppURL"] = h.appURL
	c.HTML(http.StatusOK, name, data)
}

func (h *ArticleHandler) redirectHome(c *gin.Context, kind helper.FlashKind, message string) {
	helper.SetFlash(c, kind, message)
	c.Redirect(http.StatusFound, "/")
}

func (h *ArticleHandler) failPage(c *gin.Context, err error) {
	c.String(h.Helper.GetStatusCode(err), h.Helper.ClientMessage(err))
}

func (h *ArticleHandler) adminURL() string {
	return h.appURL + "/admin/articles"
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func isNotFound(err error) bool {
	var notFound models.ErrorNotFound
	return errors.As(err, &notFound)
}
