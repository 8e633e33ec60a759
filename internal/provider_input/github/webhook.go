package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ReviewCommentEvent is a normalized pull_request_review_comment event,
// carrying only the fields the relay routes on.
type ReviewCommentEvent struct {
	InstallationID   int64
	RepoFullName     string
	RepoName         string
	PRNumber         int
	PRTitle          string
	PRURL            string
	CommentID        int
	CommentBody      string
	CommentURL       string
	CommentAuthor    string
	FilePath         string
	DiffHunk         string
	Position         int
	OriginalPosition int
	Line             int
	OriginalLine     int
	CommitID         string
}

// ReviewEvent is a normalized pull_request_review (submitted) event.
type ReviewEvent struct {
	InstallationID int64
	RepoFullName   string
	RepoName       string
	PRNumber       int
	PRTitle        string
	PRURL          string
	ReviewID       int
	ReviewBody     string
	ReviewURL      string
	ReviewAuthor   string
	ReviewState    string
}

// VerifySignature validates the X-Hub-Signature-256 header against the raw
// request body. The signature must be computed over the exact bytes GitHub
// sent; verifying a re-serialized payload will not match.
func VerifySignature(payload []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	// Constant time comparison to prevent timing attacks
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ExtractPRAuthor pulls the pull request author's login out of a raw payload
// without running a full parse. The registration gate and the parsers both go
// through this accessor so the two paths cannot drift apart.
func ExtractPRAuthor(payload []byte) string {
	var probe struct {
		PullRequest struct {
			User struct {
				Login string `json:"login"`
			} `json:"user"`
		} `json:"pull_request"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.PullRequest.User.Login
}

// ParseReviewComment normalizes a pull_request_review_comment payload.
// Returns nil when the event is not of interest: wrong action, or the comment
// author is the PR author (no self-notification).
func ParseReviewComment(payload []byte) *ReviewCommentEvent {
	var p GitHubReviewCommentWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil
	}

	if p.Action != "created" {
		return nil
	}

	prAuthor := ExtractPRAuthor(payload)
	if p.Comment.User.Login == prAuthor {
		return nil
	}

	return &ReviewCommentEvent{
		InstallationID:   p.Installation.ID,
		RepoFullName:     p.Repository.FullName,
		RepoName:         p.Repository.Name,
		PRNumber:         p.PullRequest.Number,
		PRTitle:          p.PullRequest.Title,
		PRURL:            p.PullRequest.HTMLURL,
		CommentID:        p.Comment.ID,
		CommentBody:      p.Comment.Body,
		CommentURL:       p.Comment.HTMLURL,
		CommentAuthor:    p.Comment.User.Login,
		FilePath:         p.Comment.Path,
		DiffHunk:         p.Comment.DiffHunk,
		Position:         p.Comment.Position,
		OriginalPosition: p.Comment.OriginalPosition,
		Line:             p.Comment.Line,
		OriginalLine:     p.Comment.OriginalLine,
		CommitID:         p.Comment.CommitID,
	}
}

// ParseReview normalizes a pull_request_review payload. Only submitted reviews
// that carry a comment state or a non-empty body are of interest, and
// self-reviews are suppressed the same way self-comments are.
func ParseReview(payload []byte) *ReviewEvent {
	var p GitHubReviewWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil
	}

	if p.Action != "submitted" {
		return nil
	}
	if p.Review.State != "commented" && p.Review.Body == "" {
		return nil
	}

	prAuthor := ExtractPRAuthor(payload)
	if p.Review.User.Login == prAuthor {
		return nil
	}

	return &ReviewEvent{
		InstallationID: p.Installation.ID,
		RepoFullName:   p.Repository.FullName,
		RepoName:       p.Repository.Name,
		PRNumber:       p.PullRequest.Number,
		PRTitle:        p.PullRequest.Title,
		PRURL:          p.PullRequest.HTMLURL,
		ReviewID:       p.Review.ID,
		ReviewBody:     p.Review.Body,
		ReviewURL:      p.Review.HTMLURL,
		ReviewAuthor:   p.Review.User.Login,
		ReviewState:    p.Review.State,
	}
}
