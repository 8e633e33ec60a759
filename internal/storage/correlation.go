package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Key layout in the KV service. The relay owns this namespace.
const (
	commentKeyPrefix    = "github_comment:"
	threadKeyPrefix     = "slack_thread:"
	processedKeyPrefix  = "last_processed:"
	prMetadataKeyPrefix = "pr_metadata:"
)

const (
	mappingTTL    = 30 * 24 * time.Hour
	processedTTL  = 24 * time.Hour
	prMetadataTTL = 90 * 24 * time.Hour
)

// CommentMapping records where a review comment landed in Slack. Created once
// after a successful DM, never mutated, expires by TTL.
type CommentMapping struct {
	Channel   string `json:"channel"`
	ThreadTS  string `json:"thread_ts"`
	MessageTS string `json:"message_ts"`
}

// ThreadMapping is the reverse lookup from a Slack thread back to the
// originating review comment, used when a thread reply arrives.
type ThreadMapping struct {
	CommentID      int    `json:"comment_id"`
	InstallationID int64  `json:"installation_id"`
	RepoFullName   string `json:"repo_full_name"`
	PRNumber       int    `json:"pr_number"`
	Kind           string `json:"type"`
}

// ThreadKindReviewComment is the only mapping kind currently written.
const ThreadKindReviewComment = "review_comment"

// CorrelationStore layers the relay's durable mappings over the KV service.
type CorrelationStore struct {
	kv *KVStore
}

// NewCorrelationStore wraps a KV client.
func NewCorrelationStore(kv *KVStore) *CorrelationStore {
	return &CorrelationStore{kv: kv}
}

// IsProcessed reports whether a side effect for this event already ran.
// Checked before any side effect begins.
func (c *CorrelationStore) IsProcessed(kind, id string) bool {
	return c.kv.Exists(processedKeyPrefix + kind + ":" + id)
}

// MarkProcessed records that the side effect for this event completed.
// Written only after the side effect succeeded.
func (c *CorrelationStore) MarkProcessed(kind, id string) bool {
	key := processedKeyPrefix + kind + ":" + id
	return c.kv.Set(key, time.Now().Format(time.RFC3339), processedTTL)
}

// SaveCommentMapping records the Slack destination for a review comment.
func (c *CorrelationStore) SaveCommentMapping(commentID int, m CommentMapping) bool {
	value, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Int("comment_id", commentID).Msg("Failed to encode comment mapping")
		return false
	}

	key := fmt.Sprintf("%s%d", commentKeyPrefix, commentID)
	ok := c.kv.Set(key, string(value), mappingTTL)
	if ok {
		log.Info().Int("comment_id", commentID).Str("thread_ts", m.ThreadTS).Msg("Saved comment mapping")
	} else {
		log.Error().Int("comment_id", commentID).Msg("Failed to save comment mapping")
	}
	return ok
}

// GetCommentMapping returns the Slack destination for a comment, or nil.
func (c *CorrelationStore) GetCommentMapping(commentID int) *CommentMapping {
	value := c.kv.Get(fmt.Sprintf("%s%d", commentKeyPrefix, commentID))
	if value == "" {
		return nil
	}

	var m CommentMapping
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return nil
	}
	return &m
}

// SaveThreadMapping records the review comment behind a Slack thread.
func (c *CorrelationStore) SaveThreadMapping(threadTS string, m ThreadMapping) bool {
	value, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Str("thread_ts", threadTS).Msg("Failed to encode thread mapping")
		return false
	}

	ok := c.kv.Set(threadKeyPrefix+threadTS, string(value), mappingTTL)
	if ok {
		log.Info().Str("thread_ts", threadTS).Int("comment_id", m.CommentID).Msg("Saved thread mapping")
	} else {
		log.Error().Str("thread_ts", threadTS).Msg("Failed to save thread mapping")
	}
	return ok
}

// GetThreadMapping returns the mapping for a thread, or nil when the thread
// is unknown. Absence is a routine outcome, not an error.
func (c *CorrelationStore) GetThreadMapping(threadTS string) *ThreadMapping {
	value := c.kv.Get(threadKeyPrefix + threadTS)
	if value == "" {
		return nil
	}

	var m ThreadMapping
	if err := json.Unmarshal([]byte(value), &m); err != nil {
		return nil
	}
	return &m
}

// SavePRMetadata stores auxiliary PR details for later enrichment.
func (c *CorrelationStore) SavePRMetadata(repo string, prNumber int, metadata map[string]interface{}) bool {
	value, err := json.Marshal(metadata)
	if err != nil {
		return false
	}
	key := fmt.Sprintf("%s%s:%d", prMetadataKeyPrefix, repo, prNumber)
	return c.kv.Set(key, string(value), prMetadataTTL)
}

// GetPRMetadata returns stored PR details, or nil.
func (c *CorrelationStore) GetPRMetadata(repo string, prNumber int) map[string]interface{} {
	value := c.kv.Get(fmt.Sprintf("%s%s:%d", prMetadataKeyPrefix, repo, prNumber))
	if value == "" {
		return nil
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(value), &metadata); err != nil {
		return nil
	}
	return metadata
}
