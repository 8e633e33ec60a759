package github

// GitHubUser represents a GitHub user as delivered in webhook payloads
type GitHubUser struct {
	ID        int    `json:"id"`
	Login     string `json:"login"`
	HTMLURL   string `json:"html_url"`
	AvatarURL string `json:"avatar_url"`
	Type      string `json:"type"`
}

// GitHubRepository represents a GitHub repository
type GitHubRepository struct {
	ID       int        `json:"id"`
	Name     string     `json:"name"`
	FullName string     `json:"full_name"`
	HTMLURL  string     `json:"html_url"`
	Owner    GitHubUser `json:"owner"`
	Private  bool       `json:"private"`
}

// GitHubPullRequest represents a GitHub pull request
type GitHubPullRequest struct {
	ID      int        `json:"id"`
	Number  int        `json:"number"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	State   string     `json:"state"`
	HTMLURL string     `json:"html_url"`
	User    GitHubUser `json:"user"`
}

// GitHubReviewComment represents a pull request review comment
type GitHubReviewComment struct {
	ID               int        `json:"id"`
	Body             string     `json:"body"`
	HTMLURL          string     `json:"html_url"`
	User             GitHubUser `json:"user"`
	Path             string     `json:"path"`
	DiffHunk         string     `json:"diff_hunk"`
	Position         int        `json:"position"`
	OriginalPosition int        `json:"original_position"`
	Line             int        `json:"line"`
	OriginalLine     int        `json:"original_line"`
	CommitID         string     `json:"commit_id"`
	InReplyToID      int        `json:"in_reply_to_id"`
}

// GitHubReview represents a submitted pull request review
type GitHubReview struct {
	ID      int        `json:"id"`
	Body    string     `json:"body"`
	State   string     `json:"state"`
	HTMLURL string     `json:"html_url"`
	User    GitHubUser `json:"user"`
}

// GitHubInstallation identifies the app installation a webhook belongs to
type GitHubInstallation struct {
	ID int64 `json:"id"`
}

// GitHubReviewCommentWebhookPayload is the pull_request_review_comment payload
type GitHubReviewCommentWebhookPayload struct {
	Action       string              `json:"action"`
	Comment      GitHubReviewComment `json:"comment"`
	PullRequest  GitHubPullRequest   `json:"pull_request"`
	Repository   GitHubRepository    `json:"repository"`
	Installation GitHubInstallation  `json:"installation"`
	Sender       GitHubUser          `json:"sender"`
}

// GitHubReviewWebhookPayload is the pull_request_review payload
type GitHubReviewWebhookPayload struct {
	Action       string             `json:"action"`
	Review       GitHubReview       `json:"review"`
	PullRequest  GitHubPullRequest  `json:"pull_request"`
	Repository   GitHubRepository   `json:"repository"`
	Installation GitHubInstallation `json:"installation"`
	Sender       GitHubUser         `json:"sender"`
}
