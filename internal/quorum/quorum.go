// Package quorum validates threshold multi-signatures over market
// finalization messages. A verdict is accepted only when strictly more than
// half of the current delegate set has signed the fixed-format message.
package quorum

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
)

// ProtocolTag prefixes every verdict message, binding signatures to this
// protocol and operation.
const ProtocolTag uint32 = 1007

// A signature entry is 192 hex characters: 64 for the ed25519 public key,
// 128 for the signature.
const (
	entryHexLen  = 192
	pubKeyHexLen = 64
)

var (
	ErrInvalidSignatureEncoding = errors.New("invalid public key or signature")
	ErrDuplicatePublicKey       = errors.New("duplicated public key")
	ErrQuorumNotMet             = errors.New("signatures not enough")
)

// Set is the delegate public-key set current at event time, lowercase hex.
// It is injected per event; the core never holds a delegate singleton.
type Set []string

func (s Set) Contains(pubKeyHex string) bool {
	for _, pk := range s {
		if pk == pubKeyHex {
			return true
		}
	}
	return false
}

// Threshold is the strict majority: floor(N/2) + 1.
func (s Set) Threshold() int {
	return len(s)/2 + 1
}

// Message builds the canonical signed bytes for finalizing a market:
// little-endian protocol tag, raw market id bytes, little-endian choice.
func Message(marketID string, choice int32) []byte {
	buf := make([]byte, 0, 8+len(marketID))
	buf = binary.LittleEndian.AppendUint32(buf, ProtocolTag)
	buf = append(buf, []byte(marketID)...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(choice))
	return buf
}

// Entry is one parsed (public key, signature) pair.
type Entry struct {
	PublicKey []byte
	Signature []byte
}

// ParseSignatureSet decodes a comma-joined list of 192-hex-char entries.
// Any malformed entry invalidates the whole set; so does a repeated key.
func ParseSignatureSet(raw string) ([]Entry, error) {
	parts := strings.Split(raw, ",")
	entries := make([]Entry, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		if len(part) != entryHexLen {
			return nil, ErrInvalidSignatureEncoding
		}
		pubKey, err := hex.DecodeString(part[:pubKeyHexLen])
		if err != nil {
			return nil, ErrInvalidSignatureEncoding
		}
		sig, err := hex.DecodeString(part[pubKeyHexLen:])
		if err != nil {
			return nil, ErrInvalidSignatureEncoding
		}
		key := strings.ToLower(part[:pubKeyHexLen])
		if _, ok := seen[key]; ok {
			return nil, ErrDuplicatePublicKey
		}
		seen[key] = struct{}{}
		entries = append(entries, Entry{PublicKey: pubKey, Signature: sig})
	}
	return entries, nil
}

// Validate checks a signature set against the delegate set current at event
// time. A signature counts only if its key is a delegate and the ed25519
// signature verifies over the canonical message.
func Validate(marketID string, choice int32, signatureSet string, delegates Set) error {
	entries, err := ParseSignatureSet(signatureSet)
	if err != nil {
		return err
	}
	message := Message(marketID, choice)
	count := 0
	for _, entry := range entries {
		if len(entry.PublicKey) != ed25519.PublicKeySize || len(entry.Signature) != ed25519.SignatureSize {
			return ErrInvalidSignatureEncoding
		}
		pubKeyHex := strings.ToLower(hex.EncodeToString(entry.PublicKey))
		if !delegates.Contains(pubKeyHex) {
			continue
		}
		if ed25519.Verify(ed25519.PublicKey(entry.PublicKey), message, entry.Signature) {
			count++
		}
	}
	if count < delegates.Threshold() {
		return ErrQuorumNotMet
	}
	return nil
}
