package slack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const apiBaseURL = "https://slack.com/api"

// Client calls the Slack Web API with a bot token.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// MessageResult describes a message posted by SendDM or SendMessage.
type MessageResult struct {
	Channel   string
	TS        string
	MessageTS string
}

// NewClient constructs a Slack Web API client.
func NewClient(botToken string) *Client {
	return &Client{
		botToken:   botToken,
		baseURL:    apiBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL constructs a client pointed at a non-default API host.
func NewClientWithBaseURL(botToken, baseURL string) *Client {
	c := NewClient(botToken)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// call posts a Web API method and decodes Slack's {ok, error, ...} envelope
// into out. Slack reports failures with HTTP 200 and ok=false.
func (c *Client) call(method string, args map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode %s args: %w", method, err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.botToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	body := new(bytes.Buffer)
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("slack %s failed: %s", method, envelope.Error)
	}

	if out != nil {
		if err := json.Unmarshal(body.Bytes(), out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// OpenDM opens (or reuses) the direct message channel with a user.
func (c *Client) OpenDM(userID string) (string, error) {
	var result struct {
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	}
	if err := c.call("conversations.open", map[string]interface{}{
		"users": userID,
	}, &result); err != nil {
		return "", err
	}
	return result.Channel.ID, nil
}

// SendDM opens the user's DM channel and posts a message there. Blocks may be
// nil for plain text messages.
func (c *Client) SendDM(userID string, blocks []Block, text string) (*MessageResult, error) {
	channelID, err := c.OpenDM(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open DM channel: %w", err)
	}
	return c.SendMessage(channelID, blocks, text, "")
}

// SendMessage posts a message to a channel, optionally into a thread.
func (c *Client) SendMessage(channelID string, blocks []Block, text, threadTS string) (*MessageResult, error) {
	args := map[string]interface{}{
		"channel": channelID,
		"text":    text,
	}
	if len(blocks) > 0 {
		args["blocks"] = blocks
	}
	if threadTS != "" {
		args["thread_ts"] = threadTS
	}

	var result struct {
		Channel string `json:"channel"`
		TS      string `json:"ts"`
	}
	if err := c.call("chat.postMessage", args, &result); err != nil {
		log.Error().Err(err).Str("channel", channelID).Msg("Failed to post Slack message")
		return nil, err
	}

	return &MessageResult{
		Channel:   result.Channel,
		TS:        result.TS,
		MessageTS: result.TS,
	}, nil
}

// AddReaction attaches an emoji reaction to a message.
func (c *Client) AddReaction(channelID, timestamp, emoji string) error {
	err := c.call("reactions.add", map[string]interface{}{
		"channel":   channelID,
		"timestamp": timestamp,
		"name":      emoji,
	}, nil)
	if err != nil {
		log.Warn().Err(err).Str("channel", channelID).Str("emoji", emoji).Msg("Failed to add reaction")
	}
	return err
}
