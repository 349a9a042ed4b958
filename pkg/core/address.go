package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// ActorIDPrefix is the prefix of every textual actor id
const ActorIDPrefix = "0x"

// actorIDBytes is the size of an actor id (a 256-bit account id)
const actorIDBytes = 32

// ActorID identifies the caller that submitted a request. It is assigned by
// the transport, never taken from a request payload.
type ActorID string

// String implements fmt.Stringer
func (a ActorID) String() string {
	return string(a)
}

// IsZero reports whether the id is unset
func (a ActorID) IsZero() bool {
	return a == ""
}

// GenerateActorID generates a random actor id
// Format: 0x + 64 random hex characters
func GenerateActorID() (ActorID, error) {
	bytes := make([]byte, actorIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return ActorID(ActorIDPrefix + hex.EncodeToString(bytes)), nil
}

// ParseActorID validates s and returns it in canonical lower-case form
func ParseActorID(s string) (ActorID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !IsActorID(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidActor, s)
	}
	return ActorID(s), nil
}

// IsActorID checks if s is a well-formed actor id
func IsActorID(s string) bool {
	if len(s) != len(ActorIDPrefix)+2*actorIDBytes || !strings.HasPrefix(s, ActorIDPrefix) {
		return false
	}
	_, err := hex.DecodeString(s[len(ActorIDPrefix):])
	return err == nil
}
