package api

import (
	githuboutput "github.com/prmarites/internal/provider_output/github"
	slackoutput "github.com/prmarites/internal/provider_output/slack"
)

// ChatSender posts messages and reactions to the chat platform. The Slack
// client satisfies this; tests inject fakes.
type ChatSender interface {
	SendDM(userID string, blocks []slackoutput.Block, text string) (*slackoutput.MessageResult, error)
	AddReaction(channelID, timestamp, emoji string) error
}

// ReplyPoster posts a reply to a review comment on the code review platform.
type ReplyPoster interface {
	PostCommentReply(installationID int64, repoFullName string, prNumber, commentID int, body string) (*githuboutput.ReplyResult, error)
}

// ContextFetcher retrieves file content for code-context snippets. Best
// effort: implementations return "" rather than an error.
type ContextFetcher interface {
	FileContent(installationID int64, repoFullName, path, ref string) string
}

// ReviewPlatform is what the routers need from the GitHub client.
type ReviewPlatform interface {
	ReplyPoster
	ContextFetcher
}
