package slack

import (
	"fmt"
	"net/url"
	"strings"

	githubinput "github.com/prmarites/internal/provider_input/github"
)

// Block is a single Block Kit element, marshalled as-is into chat.postMessage.
type Block map[string]interface{}

func headerBlock(text string) Block {
	return Block{
		"type": "header",
		"text": map[string]interface{}{
			"type":  "plain_text",
			"text":  text,
			"emoji": true,
		},
	}
}

func sectionBlock(markdown string) Block {
	return Block{
		"type": "section",
		"text": map[string]interface{}{
			"type": "mrkdwn",
			"text": markdown,
		},
	}
}

func fieldsBlock(fields ...string) Block {
	items := make([]map[string]interface{}, 0, len(fields))
	for _, f := range fields {
		items = append(items, map[string]interface{}{
			"type": "mrkdwn",
			"text": f,
		})
	}
	return Block{"type": "section", "fields": items}
}

func buttonElement(text, link, actionID string) map[string]interface{} {
	return map[string]interface{}{
		"type": "button",
		"text": map[string]interface{}{
			"type":  "plain_text",
			"text":  text,
			"emoji": true,
		},
		"url":       link,
		"action_id": actionID,
	}
}

// CursorLink builds a cursor:// deep link that opens the commented file at
// the right line in the editor.
func CursorLink(repoFullName, filePath string, line int) string {
	repoURL := "https://github.com/" + repoFullName
	return fmt.Sprintf("cursor://file/%s/%s:%d",
		url.QueryEscape(repoURL), url.QueryEscape(filePath), line)
}

// FormatReviewComment renders a review-comment notification. codeContext is
// the pre-rendered snippet; empty context still produces a complete message.
func FormatReviewComment(ev *githubinput.ReviewCommentEvent, codeContext string) ([]Block, string) {
	blocks := []Block{
		headerBlock(fmt.Sprintf("💬 New Review Comment on PR #%d", ev.PRNumber)),
		fieldsBlock(
			fmt.Sprintf("*Repository:*\n%s", ev.RepoName),
			fmt.Sprintf("*Author:*\n%s", ev.CommentAuthor),
			fmt.Sprintf("*PR:*\n<%s|#%d: %s>", ev.PRURL, ev.PRNumber, ev.PRTitle),
			fmt.Sprintf("*File:*\n%s:%d", ev.FilePath, ev.Line),
		),
		Block{"type": "divider"},
		sectionBlock(fmt.Sprintf("*Comment:*\n%s", ev.CommentBody)),
		sectionBlock(fmt.Sprintf("*Code Context:*\n%s", codeContext)),
		Block{
			"type": "actions",
			"elements": []map[string]interface{}{
				buttonElement("View on GitHub", ev.CommentURL, "view_github"),
				buttonElement("Open in Cursor", CursorLink(ev.RepoFullName, ev.FilePath, ev.Line), "open_cursor"),
			},
		},
		Block{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": "💡 _Reply to this thread to respond on GitHub (replies will show as @your_username via Marites)_",
				},
			},
		},
	}

	text := fmt.Sprintf("New comment from %s on PR #%d", ev.CommentAuthor, ev.PRNumber)
	return blocks, text
}

var reviewStateEmoji = map[string]string{
	"approved":          "✅",
	"changes_requested": "🔴",
	"commented":         "💬",
}

// FormatReview renders a submitted-review notification.
func FormatReview(ev *githubinput.ReviewEvent) ([]Block, string) {
	emoji, ok := reviewStateEmoji[ev.ReviewState]
	if !ok {
		emoji = "💬"
	}

	stateLabel := titleCase(strings.ReplaceAll(ev.ReviewState, "_", " "))

	blocks := []Block{
		headerBlock(fmt.Sprintf("%s New Review on PR #%d", emoji, ev.PRNumber)),
		fieldsBlock(
			fmt.Sprintf("*Repository:*\n%s", ev.RepoName),
			fmt.Sprintf("*Reviewer:*\n%s", ev.ReviewAuthor),
			fmt.Sprintf("*PR:*\n<%s|#%d: %s>", ev.PRURL, ev.PRNumber, ev.PRTitle),
			fmt.Sprintf("*State:*\n%s", stateLabel),
		),
	}

	if ev.ReviewBody != "" {
		blocks = append(blocks,
			Block{"type": "divider"},
			sectionBlock(fmt.Sprintf("*Review Comment:*\n%s", ev.ReviewBody)),
		)
	}

	blocks = append(blocks, Block{
		"type": "actions",
		"elements": []map[string]interface{}{
			buttonElement("View on GitHub", ev.ReviewURL, "view_github_review"),
		},
	})

	text := fmt.Sprintf("New review from %s on PR #%d", ev.ReviewAuthor, ev.PRNumber)
	return blocks, text
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// FormatError renders a one-section error notice.
func FormatError(message string) ([]Block, string) {
	return []Block{
		sectionBlock(fmt.Sprintf("⚠️ *Error:* %s", message)),
	}, "Error: " + message
}
