package api

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/quill/pkg/auth"
	"github.com/papercomputeco/quill/pkg/generate"
	"github.com/papercomputeco/quill/pkg/oauth"
	"github.com/papercomputeco/quill/pkg/payments"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/trends"
)

const (
	defaultCurrency  = "usd"
	defaultListLimit = 20
	maxListLimit     = 100
	oauthCookieTTL   = 10 * time.Minute
)

// handleRegister signs a user up with the auth provider.
func (s *Server) handleRegister(c *fiber.Ctx) error {
	if s.collab.Registrar == nil {
		return unavailable(c, "registration")
	}

	var req auth.Registration
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := s.collab.Registrar.Register(c.Context(), req)
	if err != nil {
		var providerErr auth.ProviderError
		switch {
		case errors.Is(err, auth.ErrInvalidRegistration):
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		case errors.As(err, &providerErr) && providerErr.StatusCode >= 400 && providerErr.StatusCode < 500:
			return errorJSON(c, providerErr.StatusCode, providerErr.Message)
		default:
			s.logger.Error("registration failed", zap.Error(err))
			return errorJSON(c, fiber.StatusBadGateway, "registration failed")
		}
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

type paymentIntentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// handleCreatePaymentIntent creates a payment intent and returns its client secret.
func (s *Server) handleCreatePaymentIntent(c *fiber.Ctx) error {
	if s.collab.Payments == nil {
		return unavailable(c, "payments")
	}

	var req paymentIntentRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}
	currency, err := payments.ValidateIntent(req.Amount, req.Currency)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	intent, err := s.collab.Payments.CreatePaymentIntent(c.Context(), req.Amount, currency)
	if err != nil {
		var providerErr payments.ProviderError
		if errors.As(err, &providerErr) && providerErr.StatusCode == fiber.StatusBadRequest {
			return errorJSON(c, fiber.StatusBadRequest, providerErr.Message)
		}
		s.logger.Error("failed to create payment intent", zap.Error(err))
		return errorJSON(c, fiber.StatusBadGateway, "payment intent creation failed")
	}

	return c.JSON(intent)
}

// handleConnect redirects the user to a social platform's authorization page.
// The state (and PKCE verifier) are kept in short-lived cookies for the callback.
func (s *Server) handleConnect(c *fiber.Ctx) error {
	if s.collab.Connector == nil {
		return unavailable(c, "social connections")
	}

	platform := strings.ToLower(c.Params("platform"))
	authz, err := s.collab.Connector.AuthURL(platform)
	switch {
	case errors.Is(err, oauth.ErrUnknownPlatform):
		return errorJSON(c, fiber.StatusNotFound, "unknown platform: "+platform)
	case errors.Is(err, oauth.ErrNotConfigured):
		return errorJSON(c, fiber.StatusServiceUnavailable, platform+" is not configured")
	case err != nil:
		s.logger.Error("failed to build authorization url", zap.String("platform", platform), zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "internal error")
	}

	s.setOAuthCookie(c, "oauth_state", authz.State, platform)
	if authz.Verifier != "" {
		s.setOAuthCookie(c, "oauth_verifier", authz.Verifier, platform)
	}

	s.logger.Debug("redirecting to platform", zap.String("platform", platform))
	return c.Redirect(authz.URL, fiber.StatusFound)
}

func (s *Server) setOAuthCookie(c *fiber.Ctx, name, value, platform string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/connect/" + platform,
		MaxAge:   int(oauthCookieTTL.Seconds()),
		Secure:   s.config.SecureCookies,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

type createStoryRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Prompt  string `json:"prompt"`
	UserID  string `json:"user_id"`
}

// handleCreateStory saves a story.
func (s *Server) handleCreateStory(c *fiber.Ctx) error {
	var req createStoryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	story := storage.NewStory(req.Title, req.Content, req.Prompt, req.UserID)
	if err := story.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	if err := s.stories.Insert(c.Context(), story); err != nil {
		s.logger.Error("failed to store story", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to store story")
	}

	s.logger.Info("story stored", zap.String("id", story.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"story": story})
}

// handleListStories returns the newest stories.
func (s *Server) handleListStories(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	stories, err := s.stories.List(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list stories", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to list stories")
	}

	return c.JSON(fiber.Map{
		"count":   len(stories),
		"stories": stories,
	})
}

// handleGetStory returns a single story by ID.
func (s *Server) handleGetStory(c *fiber.Ctx) error {
	story, err := s.stories.Get(c.Context(), c.Params("id"))
	if err != nil {
		var notFound storage.ErrNotFound
		if errors.As(err, &notFound) {
			return errorJSON(c, fiber.StatusNotFound, "story not found")
		}
		s.logger.Error("failed to get story", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to get story")
	}

	return c.JSON(fiber.Map{"story": story})
}

// handleTrends looks up search trends related to the q query parameter.
func (s *Server) handleTrends(c *fiber.Ctx) error {
	if s.collab.Trends == nil {
		return unavailable(c, "trends")
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return errorJSON(c, fiber.StatusBadRequest, trends.ErrEmptyQuery.Error())
	}

	found, err := s.collab.Trends.Lookup(c.Context(), query, c.Query("geo"))
	if err != nil {
		s.logger.Error("trend lookup failed", zap.String("query", query), zap.Error(err))
		return errorJSON(c, fiber.StatusBadGateway, "trend lookup failed")
	}

	return c.JSON(fiber.Map{"trends": found})
}

type generateStoryRequest struct {
	Prompt string `json:"prompt"`
}

// handleGenerateStory generates a story for a prompt and returns the text.
func (s *Server) handleGenerateStory(c *fiber.Ctx) error {
	if s.collab.Generator == nil {
		return unavailable(c, "generation")
	}

	var req generateStoryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "prompt is required")
	}

	startTime := time.Now()
	result, err := s.collab.Generator.Generate(c.Context(), req.Prompt)
	if err != nil {
		var failed generate.RequestFailedError
		if errors.As(err, &failed) {
			s.logger.Error("upstream returned error",
				zap.Int("status", failed.StatusCode),
				zap.String("body", failed.Body),
			)
		} else {
			s.logger.Error("generation failed", zap.Error(err))
		}
		return errorJSON(c, fiber.StatusBadGateway, "story generation failed")
	}

	if result.Skipped > 0 {
		s.logger.Warn("skipped malformed generation lines",
			zap.Int("skipped", result.Skipped),
			zap.Int("lines", result.Lines),
		)
	}
	s.logger.Debug("story generated",
		zap.Int("length", len(result.Text)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return c.JSON(fiber.Map{"story": result.Text})
}
