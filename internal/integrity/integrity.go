// Package integrity provides tamper-evident hashing for ledger records.
// All functions are pure and deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SessionHash produces a SHA-256 hex digest over the canonical fields of a
// finalized coordination session. Each field is encoded with a 4-byte
// big-endian length prefix so freeform text cannot collide with field
// boundaries.
func SessionHash(id uuid.UUID, identityID, finalDecision string, ratio float64, byzantineDetected int, createdAt time.Time) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(id.String())
	writeField(identityID)
	writeField(finalDecision)
	writeField(strconv.FormatFloat(ratio, 'f', 10, 64))
	writeField(strconv.Itoa(byzantineDetected))
	writeField(createdAt.UTC().Format(time.RFC3339Nano))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks whether a stored hash matches the recomputed hash.
func Verify(stored string, id uuid.UUID, identityID, finalDecision string, ratio float64, byzantineDetected int, createdAt time.Time) bool {
	return stored == SessionHash(id, identityID, finalDecision, ratio, byzantineDetected, createdAt)
}
