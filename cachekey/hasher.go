// Package cachekey derives stable, collision-resistant cache keys for
// query plans. A key commits to everything that can change the planned
// result: the raw operation text, the operation name, the schema's
// identity, and a digest of every planner-affecting configuration
// flag, plus a format version tag so incompatible cache layouts never
// collide.
//
// Keys are SHA-256: with identical schema and configuration, the same
// operation hashes identically across process restarts and across
// gateway instances, which is what lets independently-deployed
// gateways share a distributed cache tier and lets warm-up recognize
// entries that survived a reload.
package cachekey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// formatTag versions the key layout. Bump it whenever the hashed
// inputs or the cached value encoding change shape.
const formatTag = "graphgate-cache:v1"

// Size is the key length in bytes.
const Size = sha256.Size

// Key is an opaque fixed-size cache key.
type Key [Size]byte

// String returns the lowercase hex form used as the store key.
func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Hasher derives cache keys for one (schema identity, planner config)
// pair. The pair is fixed at construction; a reload builds a new
// Hasher. Hasher is immutable and safe for concurrent use.
type Hasher struct {
	schemaHash string
	configHash string
}

// New creates a Hasher bound to a schema identity hash and a planner
// configuration hash. Both inputs are opaque digests produced by the
// operation package.
func New(schemaHash, configHash string) *Hasher {
	return &Hasher{schemaHash: schemaHash, configHash: configHash}
}

// SchemaHash returns the schema identity digest this hasher is bound to.
func (h *Hasher) SchemaHash() string { return h.schemaHash }

// ConfigHash returns the planner configuration digest this hasher is
// bound to.
func (h *Hasher) ConfigHash() string { return h.configHash }

// Key hashes an operation. The operation text is always included in
// full — omitting any input would open the door to two distinct
// operations sharing a key. Every field is length-prefixed so that
// concatenation ambiguity cannot produce collisions either (e.g.
// ("ab","c") vs ("a","bc")).
func (h *Hasher) Key(query, operationName string) Key {
	d := sha256.New()
	writeField(d, formatTag)
	writeField(d, h.schemaHash)
	writeField(d, h.configHash)
	writeField(d, query)
	writeField(d, operationName)

	var k Key
	d.Sum(k[:0])
	return k
}

func writeField(d interface{ Write([]byte) (int, error) }, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = d.Write(n[:])
	_, _ = d.Write([]byte(s))
}
