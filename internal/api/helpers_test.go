package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prmarites/internal/config"
	githuboutput "github.com/prmarites/internal/provider_output/github"
	slackoutput "github.com/prmarites/internal/provider_output/slack"
	"github.com/prmarites/internal/storage"
	"github.com/prmarites/internal/users"
)

const (
	testGitHubSecret = "gh-webhook-secret"
	testSlackSecret  = "slack-signing-secret"
)

// fakeChat records outbound Slack traffic.
type fakeChat struct {
	dms       []sentDM
	reactions []string
	failDM    bool
}

type sentDM struct {
	User   string
	Text   string
	Blocks []slackoutput.Block
}

func (f *fakeChat) SendDM(userID string, blocks []slackoutput.Block, text string) (*slackoutput.MessageResult, error) {
	if f.failDM {
		return nil, fmt.Errorf("slack API error: channel_not_found")
	}
	f.dms = append(f.dms, sentDM{User: userID, Text: text, Blocks: blocks})
	return &slackoutput.MessageResult{
		Channel:   "D42",
		TS:        "1700000002.000200",
		MessageTS: "1700000002.000200",
	}, nil
}

func (f *fakeChat) AddReaction(channelID, timestamp, emoji string) error {
	f.reactions = append(f.reactions, emoji)
	return nil
}

// fakeReviewPlatform records outbound GitHub traffic.
type fakeReviewPlatform struct {
	replies      []string
	fileRequests []string
	fileContent  string
	failReply    bool
}

func (f *fakeReviewPlatform) PostCommentReply(installationID int64, repoFullName string, prNumber, commentID int, body string) (*githuboutput.ReplyResult, error) {
	if f.failReply {
		return nil, fmt.Errorf("GitHub reply returned 422")
	}
	f.replies = append(f.replies, body)
	return &githuboutput.ReplyResult{ID: 8800, HTMLURL: "https://github.com/acme/widgets/pull/7#discussion_r8800"}, nil
}

func (f *fakeReviewPlatform) FileContent(installationID int64, repoFullName, path, ref string) string {
	f.fileRequests = append(f.fileRequests, path+"@"+ref)
	return f.fileContent
}

// testEnv bundles a server with its fakes and a direct view of the KV data.
// failSetPrefixes makes SETs against matching keys fail, for exercising
// persistence-failure paths.
type testEnv struct {
	server          *Server
	kvData          map[string]string
	chat            *fakeChat
	github          *fakeReviewPlatform
	failSetPrefixes []string
}

func (env *testEnv) setFails(key string) bool {
	for _, prefix := range env.failSetPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	data := make(map[string]string)
	env := &testEnv{
		kvData: data,
		chat:   &fakeChat{},
		github: &fakeReviewPlatform{},
	}

	kvServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var command []string
		if err := json.NewDecoder(r.Body).Decode(&command); err != nil || len(command) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch command[0] {
		case "SET":
			if env.setFails(command[1]) {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			data[command[1]] = command[2]
			json.NewEncoder(w).Encode(map[string]interface{}{"result": "OK"})
		case "GET":
			value, ok := data[command[1]]
			if !ok {
				json.NewEncoder(w).Encode(map[string]interface{}{"result": nil})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"result": value})
		case "DEL":
			delete(data, command[1])
			json.NewEncoder(w).Encode(map[string]interface{}{"result": 1})
		}
	}))
	t.Cleanup(kvServer.Close)

	cfg := &config.Config{}
	cfg.GitHub.AppID = "12345"
	cfg.GitHub.WebhookSecret = testGitHubSecret
	cfg.Slack.BotToken = "xoxb-test"
	cfg.Slack.SigningSecret = testSlackSecret
	cfg.KV.RestURL = kvServer.URL
	cfg.KV.RestToken = "test-token"

	kv := storage.NewKVStore(kvServer.URL, "test-token")
	env.server = newServer(cfg, storage.NewCorrelationStore(kv), users.NewDirectory(kv), env.chat, env.github)
	return env
}

func (env *testEnv) registerUser(t *testing.T, slackUserID, githubUsername string) {
	t.Helper()
	require.True(t, env.server.directory.Register(slackUserID, githubUsername))
}

func signGitHubBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testGitHubSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (env *testEnv) postGitHub(event string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-Hub-Signature-256", signature)

	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)
	return rec
}

func signSlackRequest(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSlackSecret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func (env *testEnv) postSlack(path string, body []byte, timestamp, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if timestamp != "" {
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	}
	if signature != "" {
		req.Header.Set("X-Slack-Signature", signature)
	}

	rec := httptest.NewRecorder()
	env.server.echo.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	return response
}
