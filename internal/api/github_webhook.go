package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prmarites/internal/codecontext"
	githubinput "github.com/prmarites/internal/provider_input/github"
	slackoutput "github.com/prmarites/internal/provider_output/slack"
	"github.com/prmarites/internal/storage"
	"github.com/prmarites/internal/webhookutils"
)

// handleGitHubWebhook drives the review-platform side of the relay:
// verify → ping → registration gate → parse → idempotency → notify → persist.
func (s *Server) handleGitHubWebhook(c echo.Context) error {
	requestID := uuid.NewString()
	logger := log.With().Str("request_id", requestID).Str("source", "github").Logger()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read webhook body")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
	}

	headers := headerMap(c)
	signature, _ := webhookutils.GetHeaderCaseInsensitive(headers, "X-Hub-Signature-256")
	eventType, _ := webhookutils.GetHeaderCaseInsensitive(headers, "X-GitHub-Event")

	// Signature is computed over the exact raw bytes of the request body.
	if !githubinput.VerifySignature(body, signature, s.cfg.GitHub.WebhookSecret) {
		logger.Warn().Msg("Invalid webhook signature")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
	}

	logger.Info().Str("event", eventType).Int("bytes", len(body)).
		Interface("headers", webhookutils.RelevantHeaders(headers)).
		Msg("Received GitHub webhook")

	if eventType == "ping" {
		return c.JSON(http.StatusOK, map[string]string{"message": "pong"})
	}

	// Registration gate before the full parse: an event for an unregistered
	// author is dropped before any KV mapping reads or GitHub API calls.
	prAuthor := githubinput.ExtractPRAuthor(body)
	if prAuthor == "" {
		logger.Warn().Msg("No PR author found in payload, skipping")
		return c.JSON(http.StatusOK, map[string]string{"message": "No PR author"})
	}

	slackUserID := s.directory.SlackUserID(prAuthor)
	if slackUserID == "" {
		logger.Debug().Str("author", prAuthor).Msg("PR author not registered, skipping early")
		return c.JSON(http.StatusOK, map[string]string{"message": "User not registered"})
	}

	logger.Info().Str("github", prAuthor).Str("slack", slackUserID).Msg("Processing event for registered user")

	switch eventType {
	case "pull_request_review_comment":
		return s.handleReviewComment(c, logger, body, slackUserID)
	case "pull_request_review":
		return s.handleReview(c, logger, body, slackUserID)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Event processed"})
}

func (s *Server) handleReviewComment(c echo.Context, logger zerolog.Logger, body []byte, slackUserID string) error {
	ev := githubinput.ParseReviewComment(body)
	if ev == nil {
		return c.JSON(http.StatusOK, map[string]string{"message": "Comment ignored"})
	}

	commentID := strconv.Itoa(ev.CommentID)
	if s.correlation.IsProcessed("comment", commentID) {
		logger.Info().Str("comment_id", commentID).Msg("Comment already processed")
		return c.JSON(http.StatusOK, map[string]string{"message": "Already processed"})
	}

	codeContext := s.buildCodeContext(ev)

	blocks, text := slackoutput.FormatReviewComment(ev, codeContext)
	sent, err := s.chat.SendDM(slackUserID, blocks, text)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send message to Slack")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to send to Slack"})
	}

	// Delivery is the source of truth; mapping writes after it are best
	// effort and a failure here must not change the response.
	threadTS := sent.MessageTS
	if threadTS == "" {
		threadTS = sent.TS
	}

	commentSaved := s.correlation.SaveCommentMapping(ev.CommentID, storage.CommentMapping{
		Channel:   sent.Channel,
		ThreadTS:  threadTS,
		MessageTS: sent.TS,
	})
	threadSaved := s.correlation.SaveThreadMapping(threadTS, storage.ThreadMapping{
		CommentID:      ev.CommentID,
		InstallationID: ev.InstallationID,
		RepoFullName:   ev.RepoFullName,
		PRNumber:       ev.PRNumber,
		Kind:           storage.ThreadKindReviewComment,
	})
	if !commentSaved || !threadSaved {
		logger.Error().Bool("comment_saved", commentSaved).Bool("thread_saved", threadSaved).
			Msg("KV save failed after successful delivery")
	}

	if !s.correlation.MarkProcessed("comment", commentID) {
		logger.Warn().Str("comment_id", commentID).Msg("Failed to write processed marker, redelivery will resend")
	}

	logger.Info().Str("comment_id", commentID).Str("thread_ts", threadTS).Msg("Forwarded comment to Slack")
	return c.JSON(http.StatusOK, map[string]string{"message": "Comment forwarded to Slack"})
}

func (s *Server) handleReview(c echo.Context, logger zerolog.Logger, body []byte, slackUserID string) error {
	ev := githubinput.ParseReview(body)
	if ev == nil {
		return c.JSON(http.StatusOK, map[string]string{"message": "Review ignored"})
	}

	reviewID := strconv.Itoa(ev.ReviewID)
	if s.correlation.IsProcessed("review", reviewID) {
		logger.Info().Str("review_id", reviewID).Msg("Review already processed")
		return c.JSON(http.StatusOK, map[string]string{"message": "Already processed"})
	}

	blocks, text := slackoutput.FormatReview(ev)
	if _, err := s.chat.SendDM(slackUserID, blocks, text); err != nil {
		logger.Error().Err(err).Msg("Failed to send review to Slack")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to send to Slack"})
	}

	// Reviews are not repliable, so no thread mapping is written.
	if !s.correlation.MarkProcessed("review", reviewID) {
		logger.Warn().Str("review_id", reviewID).Msg("Failed to write processed marker, redelivery will resend")
	}

	logger.Info().Str("review_id", reviewID).Msg("Forwarded review to Slack")
	return c.JSON(http.StatusOK, map[string]string{"message": "Review forwarded to Slack"})
}

// buildCodeContext assembles the snippet shown under the comment. File
// content at the commented commit is preferred; the diff hunk is the
// fallback. Either may be missing without blocking delivery.
func (s *Server) buildCodeContext(ev *githubinput.ReviewCommentEvent) string {
	var snippet codecontext.Snippet
	haveSnippet := false

	if ev.FilePath != "" && ev.CommitID != "" {
		if content := s.github.FileContent(ev.InstallationID, ev.RepoFullName, ev.FilePath, ev.CommitID); content != "" && ev.Line > 0 {
			snippet = codecontext.FromFile(content, ev.Line)
			haveSnippet = snippet.Code != ""
		}
	}
	if !haveSnippet && ev.DiffHunk != "" {
		snippet = codecontext.FromDiff(ev.DiffHunk, ev.Line)
		haveSnippet = true
	}

	if !haveSnippet {
		return ""
	}
	return codecontext.Render(snippet, ev.FilePath)
}

// headerMap flattens the request headers for case-insensitive webhook lookups.
func headerMap(c echo.Context) map[string]string {
	headers := make(map[string]string)
	for key, values := range c.Request().Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
