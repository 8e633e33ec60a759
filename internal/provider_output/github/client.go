package github

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const apiBaseURL = "https://api.github.com"

// tokenCacheMargin is how much validity must remain for a cached installation
// token to be reused. Tokens are valid for about an hour.
const tokenCacheMargin = 60 * time.Second

// Client posts outbound content to GitHub on behalf of an app installation.
// The installation-token cache is an optimization only: the process may be
// re-created per request, so nothing is allowed to depend on a warm cache.
type Client struct {
	appID      string
	privateKey string
	baseURL    string
	httpClient *http.Client

	mu     sync.Mutex
	tokens map[int64]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// ReplyResult describes the review comment created by PostCommentReply.
type ReplyResult struct {
	ID      int    `json:"id"`
	HTMLURL string `json:"html_url"`
}

// NewClient constructs a GitHub App client.
func NewClient(appID, privateKey string) *Client {
	return &Client{
		appID:      appID,
		privateKey: privateKey,
		baseURL:    apiBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     make(map[int64]cachedToken),
	}
}

// NewClientWithBaseURL constructs a client pointed at a non-default API host.
func NewClientWithBaseURL(appID, privateKey, baseURL string) *Client {
	c := NewClient(appID, privateKey)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// appJWT signs a short-lived RS256 app token for the installations API.
func (c *Client) appJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.privateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse GitHub app private key: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": c.appID,
	})

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app JWT: %w", err)
	}
	return signed, nil
}

// installationToken exchanges the app JWT for an installation access token,
// reusing a cached token while more than tokenCacheMargin remains.
func (c *Client) installationToken(installationID int64) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[installationID]
	c.mu.Unlock()
	if ok && time.Until(cached.expiresAt) > tokenCacheMargin {
		return cached.token, nil
	}

	appJWT, err := c.appJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.baseURL, installationID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("installation token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("installation token request returned %d: %s", resp.StatusCode, body)
	}

	var data struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	expiresAt := data.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}

	c.mu.Lock()
	c.tokens[installationID] = cachedToken{token: data.Token, expiresAt: expiresAt}
	c.mu.Unlock()

	return data.Token, nil
}

// PostCommentReply posts a threaded reply to an existing review comment.
func (c *Client) PostCommentReply(installationID int64, repoFullName string, prNumber, commentID int, body string) (*ReplyResult, error) {
	token, err := c.installationToken(installationID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/pulls/%d/comments/%d/replies",
		c.baseURL, repoFullName, prNumber, commentID)
	payload, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reply request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub reply returned %d: %s", resp.StatusCode, respBody)
	}

	var result ReplyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode reply response: %w", err)
	}

	log.Info().Int("comment_id", commentID).Int("reply_id", result.ID).Msg("Posted reply to GitHub comment")
	return &result, nil
}

// FileContent fetches a file's content at a specific ref. Returns "" on any
// failure; callers fall back to the diff hunk for code context.
func (c *Client) FileContent(installationID int64, repoFullName, path, ref string) string {
	token, err := c.installationToken(installationID)
	if err != nil {
		log.Warn().Err(err).Str("repo", repoFullName).Msg("Token exchange failed for file content fetch")
		return ""
	}

	url := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", c.baseURL, repoFullName, path, ref)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("File content request failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var data struct {
		Type     string `json:"type"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return ""
	}
	if data.Type != "file" || data.Encoding != "base64" {
		return ""
	}

	// GitHub wraps base64 content at 60 columns
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(data.Content, "\n", ""))
	if err != nil {
		return ""
	}
	return string(decoded)
}
