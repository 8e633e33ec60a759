package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	slackinput "github.com/prmarites/internal/provider_input/slack"
	"github.com/prmarites/internal/storage"
	"github.com/prmarites/internal/users"
	"github.com/prmarites/internal/webhookutils"
)

// handleSlackWebhook drives the chat side of the relay: commands manage
// registrations, thread replies are routed back to the originating review
// comment.
func (s *Server) handleSlackWebhook(c echo.Context) error {
	requestID := uuid.NewString()
	logger := log.With().Str("request_id", requestID).Str("source", "slack").Logger()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read webhook body")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
	}

	event := slackinput.ParseEvent(body)

	// The URL verification handshake is answered before the signature check
	// so endpoint setup does not depend on the signing secret being wired.
	if v, ok := event.(*slackinput.URLVerificationEvent); ok {
		logger.Info().Msg("Responding to Slack URL verification challenge")
		return c.JSON(http.StatusOK, map[string]string{"challenge": v.Challenge})
	}

	if !s.verifySlackSignature(c, body) {
		logger.Warn().Msg("Invalid Slack signature")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
	}

	switch ev := event.(type) {
	case *slackinput.CommandEvent:
		return s.handleCommand(c, logger, ev)
	case *slackinput.ThreadReplyEvent:
		return s.handleThreadReply(c, logger, ev)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Event ignored"})
}

// handleSlackInteractive acknowledges block_actions payloads. Parsing is the
// extent of the current scope; the buttons in notifications are plain links.
func (s *Server) handleSlackInteractive(c echo.Context) error {
	logger := log.With().Str("source", "slack_interactive").Logger()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
	}

	if !s.verifySlackSignature(c, body) {
		logger.Warn().Msg("Invalid Slack signature on interactive payload")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
	}

	// Interactive payloads arrive form-encoded with the JSON in `payload`.
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return c.JSON(http.StatusOK, map[string]string{"message": "Payload ignored"})
	}

	action := slackinput.ParseInteractive([]byte(values.Get("payload")))
	if action == nil {
		return c.JSON(http.StatusOK, map[string]string{"message": "Payload ignored"})
	}

	logger.Info().Str("user", action.User).Int("actions", len(action.Actions)).Msg("Acknowledged interactive payload")
	return c.JSON(http.StatusOK, map[string]string{"message": "Acknowledged"})
}

func (s *Server) verifySlackSignature(c echo.Context, body []byte) bool {
	headers := headerMap(c)
	timestamp, _ := webhookutils.GetHeaderCaseInsensitive(headers, "X-Slack-Request-Timestamp")
	signature, _ := webhookutils.GetHeaderCaseInsensitive(headers, "X-Slack-Signature")
	return slackinput.VerifySignature(timestamp, body, signature, s.cfg.Slack.SigningSecret, time.Now())
}

// handleCommand dispatches register/unregister/status/help. The HTTP response
// is always 200 so Slack does not redeliver; the actual outcome reaches the
// user through the DM text.
func (s *Server) handleCommand(c echo.Context, logger zerolog.Logger, ev *slackinput.CommandEvent) error {
	text := strings.TrimSpace(ev.Text)
	parts := strings.SplitN(text, " ", 2)
	command := strings.ToLower(parts[0])

	switch command {
	case "register":
		if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
			s.sendCommandReply(ev.User, "❌ Usage: `register <github_username>`")
			break
		}
		githubUsername := strings.TrimSpace(parts[1])
		if s.directory.Register(ev.User, githubUsername) {
			s.sendCommandReply(ev.User, fmt.Sprintf("✅ Registered! You will receive PR notifications for GitHub user: `%s`", githubUsername))
		} else {
			s.sendCommandReply(ev.User, "❌ Registration failed. Please try again.")
		}

	case "unregister":
		switch s.directory.Unregister(ev.User) {
		case users.Unregistered:
			s.sendCommandReply(ev.User, "✅ Unregistered successfully. You will no longer receive PR notifications.")
		case users.NotRegistered:
			s.sendCommandReply(ev.User, "❌ You are not registered.")
		case users.UnregisterFailed:
			s.sendCommandReply(ev.User, "❌ Unregistration did not complete. Please try again.")
		}

	case "status":
		if reg := s.directory.UserBySlack(ev.User); reg != nil {
			s.sendCommandReply(ev.User, fmt.Sprintf("✅ Registered\n📝 GitHub: `%s`\n💬 Slack: `%s`", reg.GitHubUsername, ev.User))
		} else {
			s.sendCommandReply(ev.User, "❌ Not registered\n\nSend `register <github_username>` to get started!")
		}

	case "help":
		s.sendCommandReply(ev.User,
			"🦜 **PR Marites Commands**\n\n"+
				"• `register <github_username>` - Start receiving PR notifications\n"+
				"• `unregister` - Stop receiving notifications\n"+
				"• `status` - Check your registration status\n"+
				"• `help` - Show this help message\n\n"+
				"After registering, you'll receive DMs when someone comments on your PRs!")

	default:
		s.sendCommandReply(ev.User, fmt.Sprintf("❓ Unknown command: `%s`\n\nSend `help` for available commands.", command))
	}

	logger.Info().Str("user", ev.User).Str("command", command).Msg("Command processed")
	return c.JSON(http.StatusOK, map[string]string{"message": "Command processed"})
}

// sendCommandReply delivers a command outcome over DM. A delivery failure is
// logged and swallowed: the command path never surfaces errors over HTTP.
func (s *Server) sendCommandReply(userID, text string) {
	if _, err := s.chat.SendDM(userID, nil, text); err != nil {
		log.Error().Err(err).Str("user", userID).Msg("Failed to send command reply")
	}
}

// handleThreadReply routes a Slack thread reply back to the review comment
// the thread was created for.
func (s *Server) handleThreadReply(c echo.Context, logger zerolog.Logger, ev *slackinput.ThreadReplyEvent) error {
	reg := s.directory.UserBySlack(ev.User)
	if reg == nil {
		logger.Info().Str("user", ev.User).Msg("Ignoring message from unregistered user")
		return c.JSON(http.StatusOK, map[string]string{"message": "User not registered"})
	}

	logger.Info().Str("slack", ev.User).Str("github", reg.GitHubUsername).Msg("Processing reply from registered user")

	mapping := s.correlation.GetThreadMapping(ev.ThreadTS)
	if mapping == nil {
		logger.Warn().Str("thread_ts", ev.ThreadTS).Msg("No GitHub mapping found for thread")
		return c.JSON(http.StatusOK, map[string]string{"message": "No GitHub mapping found"})
	}
	if mapping.Kind != storage.ThreadKindReviewComment {
		return c.JSON(http.StatusOK, map[string]string{"message": "Not a review comment thread"})
	}

	formatted := fmt.Sprintf("**@%s:**\n\n%s", reg.GitHubUsername, ev.Text)

	result, err := s.github.PostCommentReply(mapping.InstallationID, mapping.RepoFullName, mapping.PRNumber, mapping.CommentID, formatted)
	if err != nil {
		logger.Error().Err(err).Int("comment_id", mapping.CommentID).Msg("Error posting to GitHub")
		s.chat.AddReaction(ev.Channel, ev.TS, "x")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to post to GitHub"})
	}

	s.chat.AddReaction(ev.Channel, ev.TS, "white_check_mark")

	logger.Info().Int("comment_id", mapping.CommentID).Int("reply_id", result.ID).Msg("Posted reply to GitHub comment")
	return c.JSON(http.StatusOK, map[string]string{
		"message":           "Reply posted to GitHub",
		"github_comment_id": strconv.Itoa(result.ID),
	})
}
