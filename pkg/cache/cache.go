// Package cache provides the content-addressed result cache shared by
// extraction workers. Keys are stable digests of a slice's pixel content plus
// its id, so byte-identical tiles reuse recognition results across runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Store is a content-addressed byte store. A miss is not an error; it simply
// triggers recompute at the caller.
type Store interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores a value under key.
	Put(ctx context.Context, key string, value []byte) error
}

// Key derives the stable cache key for a slice: a hex digest over the slice's
// encoded pixel buffer and its id.
func Key(sliceID string, pixels []byte) string {
	h := sha256.New()
	h.Write(pixels)
	h.Write([]byte(sliceID))
	return "texttrack:" + hex.EncodeToString(h.Sum(nil))
}
