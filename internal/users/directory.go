package users

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/prmarites/internal/storage"
)

const (
	slackKeyPrefix  = "user:slack:"
	githubKeyPrefix = "user:github:"
)

// Registration is the primary user record, keyed by Slack user id. The
// secondary index user:github:{username} -> slack id must always agree with
// it; both are written and deleted as a pair.
type Registration struct {
	GitHubUsername string `json:"github_username"`
	SlackUserID    string `json:"slack_user_id"`
	Active         bool   `json:"active"`
}

// Directory maintains the bidirectional Slack <-> GitHub user mapping.
// Registration is the sole gate for turning review events into DMs, so the
// lookups here run on every inbound webhook.
type Directory struct {
	kv *storage.KVStore
}

// NewDirectory wraps a KV client.
func NewDirectory(kv *storage.KVStore) *Directory {
	return &Directory{kv: kv}
}

// Register creates the primary record and secondary index together. The
// mappings are sticky: no TTL, removed only by an explicit unregister.
func (d *Directory) Register(slackUserID, githubUsername string) bool {
	record, err := json.Marshal(Registration{
		GitHubUsername: githubUsername,
		SlackUserID:    slackUserID,
		Active:         true,
	})
	if err != nil {
		return false
	}

	ok := storage.PairedWrite(d.kv,
		storage.KeyWrite{Key: slackKeyPrefix + slackUserID, Value: string(record)},
		storage.KeyWrite{Key: githubKeyPrefix + githubUsername, Value: slackUserID},
	)
	if ok {
		log.Info().Str("github", githubUsername).Str("slack", slackUserID).Msg("User registered")
	}
	return ok
}

// UnregisterResult distinguishes the ways an unregister can go.
type UnregisterResult int

const (
	// Unregistered means both records were removed.
	Unregistered UnregisterResult = iota
	// NotRegistered means there was no record to remove.
	NotRegistered
	// UnregisterFailed means deletion started but did not complete; one of
	// the paired records may remain.
	UnregisterFailed
)

// Unregister removes the primary record and its secondary index.
func (d *Directory) Unregister(slackUserID string) UnregisterResult {
	reg := d.UserBySlack(slackUserID)
	if reg == nil {
		log.Warn().Str("slack", slackUserID).Msg("Attempted to unregister non-existent user")
		return NotRegistered
	}

	if !d.kv.Delete(slackKeyPrefix + slackUserID) {
		log.Error().Str("slack", slackUserID).Msg("Failed to delete Slack ID mapping")
		return UnregisterFailed
	}

	if reg.GitHubUsername != "" && !d.kv.Delete(githubKeyPrefix+reg.GitHubUsername) {
		log.Error().Str("github", reg.GitHubUsername).Msg("Failed to delete GitHub username mapping")
		return UnregisterFailed
	}

	log.Info().Str("github", reg.GitHubUsername).Str("slack", slackUserID).Msg("User unregistered")
	return Unregistered
}

// UserBySlack returns the registration for a Slack user, or nil.
func (d *Directory) UserBySlack(slackUserID string) *Registration {
	value := d.kv.Get(slackKeyPrefix + slackUserID)
	if value == "" {
		return nil
	}

	var reg Registration
	if err := json.Unmarshal([]byte(value), &reg); err != nil {
		return nil
	}
	return &reg
}

// UserByGitHub returns the registration for a GitHub username, or nil.
func (d *Directory) UserByGitHub(githubUsername string) *Registration {
	slackUserID := d.SlackUserID(githubUsername)
	if slackUserID == "" {
		return nil
	}
	return d.UserBySlack(slackUserID)
}

// SlackUserID resolves a GitHub username through the secondary index.
// Returns "" on a miss; never errors.
func (d *Directory) SlackUserID(githubUsername string) string {
	return d.kv.Get(githubKeyPrefix + githubUsername)
}

// GitHubUsername resolves a Slack user id to its GitHub username.
func (d *Directory) GitHubUsername(slackUserID string) string {
	reg := d.UserBySlack(slackUserID)
	if reg == nil {
		return ""
	}
	return reg.GitHubUsername
}

// IsRegistered reports whether a Slack user has an active registration.
func (d *Directory) IsRegistered(slackUserID string) bool {
	return d.UserBySlack(slackUserID) != nil
}
