package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event is the discriminated union of Slack events the relay cares about.
// Parsers return nil for everything else.
type Event interface {
	Kind() string
}

// URLVerificationEvent is Slack's endpoint handshake. It is answered before
// signature verification so a fresh deployment can be verified without the
// signing secret round trip.
type URLVerificationEvent struct {
	Challenge string
}

func (e *URLVerificationEvent) Kind() string { return "url_verification" }

// ThreadReplyEvent is a user message inside an existing thread.
type ThreadReplyEvent struct {
	Channel  string
	ThreadTS string
	User     string
	Text     string
	TS       string
}

func (e *ThreadReplyEvent) Kind() string { return "thread_reply" }

// CommandEvent is a top-level direct message, interpreted as a bot command.
type CommandEvent struct {
	Channel string
	User    string
	Text    string
	TS      string
}

func (e *CommandEvent) Kind() string { return "command" }

// BlockActionsEvent is a parsed block_actions interactive payload.
type BlockActionsEvent struct {
	User      string
	Actions   []json.RawMessage
	Channel   string
	MessageTS string
}

func (e *BlockActionsEvent) Kind() string { return "block_actions" }

// replay window Slack documents for request signing
const maxTimestampSkew = 5 * time.Minute

// VerifySignature validates the X-Slack-Signature header. The signed string is
// v0:{timestamp}:{raw body}; the timestamp is checked against the replay
// window before any HMAC work is done.
func VerifySignature(timestamp string, body []byte, signature, secret string, now time.Time) bool {
	if timestamp == "" || signature == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(maxTimestampSkew.Seconds()) {
		return false
	}

	base := fmt.Sprintf("v0:%s:%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	// Constant time comparison to prevent timing attacks
	return hmac.Equal([]byte(expected), []byte(signature))
}

type eventCallbackPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type        string `json:"type"`
		Subtype     string `json:"subtype"`
		BotID       string `json:"bot_id"`
		Channel     string `json:"channel"`
		ChannelType string `json:"channel_type"`
		User        string `json:"user"`
		Text        string `json:"text"`
		TS          string `json:"ts"`
		ThreadTS    string `json:"thread_ts"`
	} `json:"event"`
}

// ParseEvent classifies an Events API payload. Messages with a subtype or a
// bot_id are discarded so the bot never loops on its own output.
func ParseEvent(payload []byte) Event {
	var p eventCallbackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil
	}

	switch p.Type {
	case "url_verification":
		return &URLVerificationEvent{Challenge: p.Challenge}

	case "event_callback":
		if p.Event.Type != "message" {
			return nil
		}
		if p.Event.Subtype != "" || p.Event.BotID != "" {
			return nil
		}

		if p.Event.ThreadTS != "" {
			return &ThreadReplyEvent{
				Channel:  p.Event.Channel,
				ThreadTS: p.Event.ThreadTS,
				User:     p.Event.User,
				Text:     p.Event.Text,
				TS:       p.Event.TS,
			}
		}

		if p.Event.ChannelType == "im" {
			return &CommandEvent{
				Channel: p.Event.Channel,
				User:    p.Event.User,
				Text:    p.Event.Text,
				TS:      p.Event.TS,
			}
		}

		return nil
	}

	return nil
}

type interactivePayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []json.RawMessage `json:"actions"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Message struct {
		TS string `json:"ts"`
	} `json:"message"`
}

// ParseInteractive extracts the routing fields from a block_actions payload.
// Parsing is as far as the current scope goes; handlers acknowledge and stop.
func ParseInteractive(payload []byte) *BlockActionsEvent {
	var p interactivePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil
	}

	if p.Type != "block_actions" {
		return nil
	}

	return &BlockActionsEvent{
		User:      p.User.ID,
		Actions:   p.Actions,
		Channel:   p.Channel.ID,
		MessageTS: p.Message.TS,
	}
}
