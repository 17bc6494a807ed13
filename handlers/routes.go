package handlers

import (
	"net/http"

	"blog-cms/helper"
	"blog-cms/middleware"
	"blog-cms/models"
	"blog-cms/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps is everything NewRouter wires together.
type RouterDeps struct {
	Articles services.ArticleService
	Auth     services.AuthService
	Tokens   *services.TokenManager
	Helper   *helper.HTTPHelper
	Views    render.HTMLRender
	// SearchLimiter throttles /search per client IP. Nil disables it.
	SearchLimiter *middleware.RateLimiter
	AppURL        string
}

var articleManagers = []models.UserRole{models.RoleOwner, models.RoleAdmin, models.RoleAuthor}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.HTMLRender = d.Views

	auth := middleware.NewAuth(d.Tokens, d.Helper)
	articleHandler := NewArticleHandler(d.Articles, d.Helper, d.AppURL)
	authHandler := NewAuthHandler(d.Auth, d.Helper, d.Tokens)

	router.Use(gin.Recovery(), middleware.RequestLogger(), cors(), auth.OptionalAuth())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", articleHandler.Index)
	router.GET("/articles/:id", articleHandler.Show)
	router.GET("/articles/:id/:heading", articleHandler.Show)

	search := []gin.HandlerFunc{articleHandler.Search}
	if d.SearchLimiter != nil {
		search = append([]gin.HandlerFunc{d.SearchLimiter.Middleware()}, search...)
	}
	router.GET("/search", search...)

	admin := router.Group("/admin", middleware.RequireRole(articleManagers...))
	{
		admin.GET("/articles", articleHandler.AdminIndex)
		admin.GET("/articles/create", articleHandler.Create)
		admin.POST("/articles", articleHandler.Store)
		admin.GET("/articles/:id/edit", articleHandler.Edit)
		admin.PUT("/articles/:id", articleHandler.Update)
		// HTML forms cannot send PUT.
		admin.POST("/articles/:id", articleHandler.Update)
		admin.DELETE("/articles/:id", articleHandler.Destroy)
	}

	v1 := router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/logout", authHandler.Logout)
		}

		protected := v1.Group("/")
		protected.Use(auth.AuthMiddleware())
		{
			protected.GET("/profile", authHandler.GetProfile)
			protected.PUT("/profile/subscription", authHandler.Subscription)
		}
	}

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
