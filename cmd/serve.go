package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"blog-cms/config"
	"blog-cms/handlers"
	"blog-cms/helper"
	"blog-cms/logging"
	"blog-cms/middleware"
	"blog-cms/notifications"
	"blog-cms/render"
	"blog-cms/repositories"
	"blog-cms/repositories/memory"
	"blog-cms/services"
	"blog-cms/templates"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var storage string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&storage, "storage", "postgres", "storage backend: postgres or memory")
}

func openStore(ctx context.Context) (repositories.Store, error) {
	switch storage {
	case "postgres":
		db, err := config.InitDB(cfg.DB, cfg.Debug)
		if err != nil {
			return nil, err
		}
		return repositories.NewStore(db), nil
	case "memory":
		store := memory.New()
		// Nothing can be created without a category.
		if err := seed(ctx, store, ownerAccount{}); err != nil {
			return nil, err
		}
		logging.Warn().Msg("using in-memory storage; data is lost on exit")
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage %q", storage)
}

func serve(ctx context.Context) error {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}

	renderer, err := render.New(cfg.Blog.RenderCache)
	if err != nil {
		return err
	}
	views, err := templates.New(renderer.FuncMap())
	if err != nil {
		return err
	}

	dispatcher, err := notifications.New(ctx, cfg.Notify, views)
	if err != nil {
		return err
	}
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close notification dispatcher")
		}
	}()

	tokens := services.NewTokenManager(cfg.JWT)
	router := handlers.NewRouter(handlers.RouterDeps{
		Articles:      services.NewArticleService(store, dispatcher, cfg.Blog, cfg.AppURL),
		Auth:          services.NewAuthService(store.Users(), tokens),
		Tokens:        tokens,
		Helper:        helper.NewHTTPHelper(cfg.Debug),
		Views:         views,
		SearchLimiter: middleware.NewRateLimiter(ctx, cfg.Search.Rate, cfg.Search.Burst),
		AppURL:        cfg.AppURL,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Str("notify", dispatcher.Name()).Msg("server starting")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
