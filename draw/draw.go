// Package draw turns an entropy context and a prize table into a draw outcome.
//
// The roll is derived from context data (previous hash, timestamp, player and
// nonce). Anyone who can observe that data before committing can predict the
// roll, so the source is not suitable for adversarial settings.
package draw

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/Ashenafi-pixel/prize-draw-ledger/prize"
)

// Hash is a 32-byte Keccak-256 digest.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a hex digest. Short input is left-padded with zeros.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h, nil
}

// SeedHash derives a starting context hash from an arbitrary seed phrase.
func SeedHash(seed string) Hash {
	return keccak([]byte(seed))
}

// Context is the per-ticket input to the entropy source.
type Context struct {
	PrevHash  Hash
	Timestamp uint64
	Player    string
	Nonce     uint64
}

// Entropy produces a roll in [0, prize.DrawScale) and the digest it came from.
type Entropy interface {
	Roll(c Context) (uint64, Hash)
}

// EntropyFunc adapts a function to Entropy.
type EntropyFunc func(c Context) (uint64, Hash)

func (f EntropyFunc) Roll(c Context) (uint64, Hash) {
	return f(c)
}

// Keccak is the default entropy source:
// keccak256(prevHash ‖ uint256(timestamp) ‖ player ‖ uint256(nonce)) mod DrawScale.
type Keccak struct{}

func (Keccak) Roll(c Context) (uint64, Hash) {
	d := Digest(c)
	return Reduce(d), d
}

// Digest packs the context the way the roll is defined: 32-byte words for the
// integers, raw bytes for the player identity.
func Digest(c Context) Hash {
	buf := make([]byte, 0, 32+32+len(c.Player)+32)
	buf = append(buf, c.PrevHash[:]...)
	buf = append(buf, word(c.Timestamp)...)
	buf = append(buf, c.Player...)
	buf = append(buf, word(c.Nonce)...)
	return keccak(buf)
}

// Reduce interprets d as a big-endian unsigned integer and returns it modulo DrawScale.
func Reduce(d Hash) uint64 {
	v := new(big.Int).SetBytes(d[:])
	return v.Mod(v, big.NewInt(prize.DrawScale)).Uint64()
}

func word(v uint64) []byte {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], v)
	return w[:]
}

func keccak(b []byte) Hash {
	var h Hash
	k := sha3.NewLegacyKeccak256()
	k.Write(b)
	copy(h[:], k.Sum(nil))
	return h
}

// Outcome is the result of one draw. Index is -1 when Won is false.
type Outcome struct {
	Roll         uint64 `json:"roll"`
	Won          bool   `json:"won"`
	Index        int    `json:"index"`
	PayoutAmount uint64 `json:"payoutAmount"`
}

// Pick walks active records in index order accumulating weights; the first
// record whose cumulative weight exceeds roll wins. Inactive records take no
// part in the walk. If the walk ends without covering roll the outcome is a
// loss. Weight sums above DrawScale make later records unreachable.
func Pick(roll uint64, records []prize.Record) Outcome {
	var cum uint64
	for i, r := range records {
		if !r.Active || r.Weight == 0 {
			continue
		}
		// roll >= cum here; compare without forming cum+weight.
		if roll-cum < r.Weight {
			return Outcome{Roll: roll, Won: true, Index: i, PayoutAmount: r.PayoutAmount}
		}
		cum += r.Weight
	}
	return Outcome{Roll: roll, Index: -1}
}

// Engine combines an entropy source with Pick.
type Engine struct {
	entropy Entropy
}

// NewEngine returns an engine using e, or Keccak when e is nil.
func NewEngine(e Entropy) *Engine {
	if e == nil {
		e = Keccak{}
	}
	return &Engine{entropy: e}
}

// Draw rolls for c and resolves the roll against table. The returned digest
// becomes the next context's PrevHash.
func (e *Engine) Draw(c Context, table *prize.Table) (Outcome, Hash) {
	roll, digest := e.entropy.Roll(c)
	return Pick(roll%prize.DrawScale, table.Records()), digest
}
