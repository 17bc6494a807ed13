package handlers

import (
	"net/http"

	"blog-cms/helper"
	"blog-cms/middleware"
	"blog-cms/models"
	"blog-cms/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	Helper      *helper.HTTPHelper
	// cookieMaxAge is the session cookie lifetime in seconds.
	cookieMaxAge int
}

func NewAuthHandler(authService services.AuthService, h *helper.HTTPHelper, tokens *services.TokenManager) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		Helper:       h,
		cookieMaxAge: int(tokens.Expiration().Seconds()),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, "Error ", err.Error())
		return
	}

	response, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	h.setSessionCookie(c, response.Token)
	h.Helper.SendSuccess(c, "Register success", response)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, "Error ", err.Error())
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	h.setSessionCookie(c, response.Token)
	h.Helper.SendSuccess(c, "Login success", response)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", false, true)
	h.Helper.SendSuccess(c, "Logout success", h.Helper.EmptyJsonMap())
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	if caller == nil {
		h.Helper.SendUnauthorizedError(c, "User not found in context", h.Helper.EmptyJsonMap())
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), caller.ID)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Profile loaded", user)
}

// Subscription turns new-article emails on or off for the caller.
func (h *AuthHandler) Subscription(c *gin.Context) {
	caller := middleware.CallerFrom(c)
	if caller == nil {
		h.Helper.SendUnauthorizedError(c, "User not found in context", h.Helper.EmptyJsonMap())
		return
	}

	var req models.SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Helper.SendBadRequest(c, "Error ", err.Error())
		return
	}

	user, err := h.authService.SetSubscription(c.Request.Context(), caller.ID, *req.Subscribed)
	if err != nil {
		h.sendServiceError(c, err)
		return
	}

	h.Helper.SendSuccess(c, "Subscription updated", user)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, h.cookieMaxAge, "/", "", c.Request.TLS != nil, true)
}

func (h *AuthHandler) sendServiceError(c *gin.Context, err error) {
	message := h.Helper.ClientMessage(err)
	switch h.Helper.GetStatusCode(err) {
	case http.StatusUnauthorized:
		h.Helper.SendUnauthorizedError(c, message, h.Helper.EmptyJsonMap())
	case http.StatusNotFound:
		h.Helper.SendNotFoundError(c, message, h.Helper.EmptyJsonMap())
	case http.StatusConflict:
		h.Helper.SendConflictError(c, message, h.Helper.EmptyJsonMap())
	case http.StatusInternalServerError:
		h.Helper.SendError(c, message, h.Helper.EmptyJsonMap(), http.StatusInternalServerError, `internalServerError`)
	default:
		h.Helper.SendBadRequest(c, message, h.Helper.EmptyJsonMap())
	}
}
