package webhookutils

import "strings"

// GetHeaderCaseInsensitive retrieves a header value using case-insensitive
// key matching. Go's HTTP library canonicalizes header keys (X-GitHub-Event
// arrives as X-Github-Event), so exact matches against the documented webhook
// header names fail.
func GetHeaderCaseInsensitive(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// RelevantHeaders filters a header map down to the webhook headers worth
// logging, keeping signatures and tokens out of log lines.
func RelevantHeaders(headers map[string]string) map[string]string {
	relevant := make(map[string]string)

	webhookHeaders := []string{
		"X-GitHub-Event", "X-GitHub-Delivery",
		"X-Slack-Request-Timestamp",
		"User-Agent", "Content-Type",
	}

	for _, name := range webhookHeaders {
		if value, ok := GetHeaderCaseInsensitive(headers, name); ok {
			relevant[name] = value
		}
	}

	return relevant
}
