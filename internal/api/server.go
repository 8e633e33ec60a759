package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/prmarites/internal/config"
	githuboutput "github.com/prmarites/internal/provider_output/github"
	slackoutput "github.com/prmarites/internal/provider_output/slack"
	"github.com/prmarites/internal/storage"
	"github.com/prmarites/internal/users"
)

// Server wires the webhook routes to their collaborators.
type Server struct {
	echo *echo.Echo
	cfg  *config.Config

	correlation *storage.CorrelationStore
	directory   *users.Directory
	chat        ChatSender
	github      ReviewPlatform
}

// NewServer creates the API server with real collaborators built from config.
func NewServer(cfg *config.Config) *Server {
	kv := storage.NewKVStore(cfg.KV.RestURL, cfg.KV.RestToken)

	return newServer(cfg,
		storage.NewCorrelationStore(kv),
		users.NewDirectory(kv),
		slackoutput.NewClient(cfg.Slack.BotToken),
		githuboutput.NewClient(cfg.GitHub.AppID, cfg.GitHub.PrivateKey),
	)
}

// newServer is the injection point tests use to swap collaborators.
func newServer(cfg *config.Config, correlation *storage.CorrelationStore, directory *users.Directory, chat ChatSender, github ReviewPlatform) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	server := &Server{
		echo:        e,
		cfg:         cfg,
		correlation: correlation,
		directory:   directory,
		chat:        chat,
		github:      github,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/", s.handleLanding)
	s.echo.GET("/health", s.handleHealth)

	s.echo.POST("/webhooks/github", s.handleGitHubWebhook)
	s.echo.POST("/webhooks/slack", s.handleSlackWebhook)
	s.echo.POST("/webhooks/slack/interactive", s.handleSlackInteractive)
}

// handleLanding serves a minimal service identity page.
func (s *Server) handleLanding(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service":     "prmarites",
		"description": "GitHub PR review comments, delivered as Slack DMs",
	})
}

// handleHealth reports whether the required configuration is in place.
func (s *Server) handleHealth(c echo.Context) error {
	checks := map[string]bool{
		"github_configured":  s.cfg.GitHub.AppID != "" && s.cfg.GitHub.WebhookSecret != "",
		"slack_configured":   s.cfg.Slack.BotToken != "" && s.cfg.Slack.SigningSecret != "",
		"storage_configured": s.cfg.KV.RestURL != "" && s.cfg.KV.RestToken != "",
	}

	healthy := true
	for _, ok := range checks {
		healthy = healthy && ok
	}

	status := http.StatusOK
	statusText := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	return c.JSON(status, map[string]interface{}{
		"status": statusText,
		"checks": checks,
	})
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.cfg.Server.Port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
