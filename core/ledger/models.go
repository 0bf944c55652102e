// Package ledger implements the append-only audit log of stock mutations.
// Blocks of a chain are linked by hash: each block stores the hash of the previous one,
// so altering or removing a block breaks verification of every block after it.
package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GenesisHash is the previous hash of the first block of every chain.
var GenesisHash = strings.Repeat("0", 64)

type Block struct {
	ID           string          `json:"id"`
	ChainKey     string          `json:"chain_key"`
	Index        int64           `json:"index"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	PreviousHash string          `json:"previous_hash"`
	Hash         string          `json:"hash"`
	Timestamp    time.Time       `json:"timestamp"` // UTC
	IsVerified   bool            `json:"is_verified"`
	Actor        string          `json:"actor"`
}

// ChainKey returns the key of the chain recording the events of an object.
func ChainKey(kind, id string) string {
	return kind + ":" + id
}

// ComputeHash returns the hex encoded SHA-256 of the block's canonical encoding.
// Every field is length-prefixed so that no two blocks share an encoding.
func ComputeHash(b Block) string {
	var buf bytes.Buffer
	write := func(val string) {
		buf.WriteString(strconv.Itoa(len(val)))
		buf.WriteByte(':')
		buf.WriteString(val)
		buf.WriteByte('|')
	}

	write(b.ChainKey)
	write(strconv.FormatInt(b.Index, 10))
	write(b.EventType)
	write(string(compactJSON(b.Payload)))
	write(b.PreviousHash)
	write(b.Timestamp.UTC().Format(time.RFC3339Nano))
	write(b.Actor)

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func compactJSON(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}

// Issue describes why a block fails verification.
type Issue struct {
	Index  int64  `json:"index"`
	Reason string `json:"reason"`
}

type Report struct {
	ChainKey   string    `json:"chain_key"`
	Valid      bool      `json:"valid"`
	Length     int       `json:"length"`
	LastHash   string    `json:"last_hash,omitempty"`
	Issues     []Issue   `json:"issues"`
	VerifiedAt time.Time `json:"verified_at"`
}

// VerifyBlocks re-computes the hash links of blocks, sorted by Index, and reports every broken one.
func VerifyBlocks(chainKey string, blocks []Block) Report {
	report := Report{
		ChainKey:   chainKey,
		Length:     len(blocks),
		Issues:     []Issue{},
		VerifiedAt: time.Now().UTC(),
	}
	addIssue := func(idx int64, format string, args ...interface{}) {
		report.Issues = append(report.Issues, Issue{Index: idx, Reason: fmt.Sprintf(format, args...)})
	}

	for i, b := range blocks {
		expectedIdx := int64(i)
		switch {
		case i > 0 && b.Index == blocks[i-1].Index:
			addIssue(b.Index, "duplicate index %d", b.Index)
		case b.Index != expectedIdx:
			addIssue(b.Index, "index gap: expected %d, got %d", expectedIdx, b.Index)
		}

		if i == 0 {
			if b.PreviousHash != GenesisHash {
				addIssue(b.Index, "first block does not link to the genesis hash")
			}
		} else if b.PreviousHash != blocks[i-1].Hash {
			addIssue(b.Index, "previous hash does not match the hash of block %d", blocks[i-1].Index)
		}

		if b.ChainKey != chainKey {
			addIssue(b.Index, "block belongs to chain %q", b.ChainKey)
		}
		if ComputeHash(b) != b.Hash {
			addIssue(b.Index, "hash mismatch: block content was altered")
		}
		if !b.IsVerified {
			addIssue(b.Index, "block is flagged as unverified")
		}
	}

	if len(blocks) > 0 {
		report.LastHash = blocks[len(blocks)-1].Hash
	}
	report.Valid = len(report.Issues) == 0
	return report
}
