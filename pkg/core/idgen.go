package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// IDGenerator produces fresh order ids
type IDGenerator interface {
	NextID(ctx context.Context) (string, error)
}

// RandomIDGenerator hashes a random seed together with the call time and a
// counter into a 64 character hex id.
type RandomIDGenerator struct {
	mu      sync.Mutex
	seed    io.Reader
	now     func() time.Time
	counter uint64
}

// NewRandomIDGenerator creates a generator reading seeds from crypto/rand
func NewRandomIDGenerator() *RandomIDGenerator {
	return NewRandomIDGeneratorFrom(rand.Reader, time.Now)
}

// NewRandomIDGeneratorFrom creates a generator with an explicit seed source and clock
func NewRandomIDGeneratorFrom(seed io.Reader, now func() time.Time) *RandomIDGenerator {
	return &RandomIDGenerator{seed: seed, now: now}
}

// NextID implements IDGenerator
func (g *RandomIDGenerator) NextID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var subject [32]byte
	if _, err := io.ReadFull(g.seed, subject[:]); err != nil {
		return "", fmt.Errorf("read id seed: %w", err)
	}

	g.counter++
	var ctxBytes [16]byte
	binary.BigEndian.PutUint64(ctxBytes[:8], uint64(g.now().UnixNano()))
	binary.BigEndian.PutUint64(ctxBytes[8:], g.counter)
	for i, b := range ctxBytes {
		subject[i] ^= b
	}

	sum := sha256.Sum256(subject[:])
	return hex.EncodeToString(sum[:]), nil
}

// SequenceIDGenerator hands out prefix-1, prefix-2, ...
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequenceIDGenerator creates a deterministic generator
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{prefix: prefix}
}

// NextID implements IDGenerator
func (g *SequenceIDGenerator) NextID(_ context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next), nil
}
