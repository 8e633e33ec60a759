package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// KVStore talks to a Redis-compatible REST service (Upstash-style). Commands
// are posted as JSON arrays and reads come back in a {"result": ...} envelope.
//
// Every operation degrades to a zero value on transport failure instead of
// returning an error. The router treats storage failure as "could not
// confirm, proceed defensively" rather than crashing.
type KVStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewKVStore constructs a KV client with the short timeout the one-shot
// request model expects.
func NewKVStore(baseURL, token string) *KVStore {
	return &KVStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *KVStore) execute(command []string) (*http.Response, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	return s.httpClient.Do(req)
}

// Get returns the value stored at key, or "" on a miss or any failure.
func (s *KVStore) Get(key string) string {
	resp, err := s.execute([]string{"GET", key})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("KV GET request failed")
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Str("key", key).Int("status", resp.StatusCode).Msg("KV GET failed")
		return ""
	}

	var envelope struct {
		Result *string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to decode KV GET response")
		return ""
	}
	if envelope.Result == nil {
		return ""
	}
	return *envelope.Result
}

// Set writes a value. A TTL of zero means no expiry.
func (s *KVStore) Set(key, value string, ttl time.Duration) bool {
	command := []string{"SET", key, value}
	if ttl > 0 {
		command = append(command, "EX", fmt.Sprintf("%d", int(ttl.Seconds())))
	}

	resp, err := s.execute(command)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("KV SET request failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Str("key", key).Int("status", resp.StatusCode).Msg("KV SET failed")
		return false
	}

	log.Debug().Str("key", key).Msg("KV SET successful")
	return true
}

// Delete removes a key. Deleting an absent key still reports success.
func (s *KVStore) Delete(key string) bool {
	resp, err := s.execute([]string{"DEL", key})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("KV DEL request failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Exists reports whether key currently holds a value.
func (s *KVStore) Exists(key string) bool {
	return s.Get(key) != ""
}
