package storage

import (
	"time"

	"github.com/rs/zerolog/log"
)

// KeyWrite describes one half of a paired write.
type KeyWrite struct {
	Key   string
	Value string
	TTL   time.Duration
}

// PairedWrite writes a primary record and its secondary index as a unit.
// If the secondary write fails the primary is rolled back so no one-sided
// mapping is ever left behind. Returns true only when both writes landed.
func PairedWrite(kv *KVStore, primary, secondary KeyWrite) bool {
	if !kv.Set(primary.Key, primary.Value, primary.TTL) {
		log.Error().Str("key", primary.Key).Msg("Paired write: primary write failed")
		return false
	}

	if !kv.Set(secondary.Key, secondary.Value, secondary.TTL) {
		log.Error().Str("key", secondary.Key).Msg("Paired write: secondary write failed, rolling back primary")
		if !kv.Delete(primary.Key) {
			// Rollback itself failed; the one-sided record will sit there
			// until someone re-registers. Loud log for reconciliation.
			log.Error().Str("key", primary.Key).Msg("Paired write: rollback of primary failed")
		}
		return false
	}

	return true
}
