package headerresolver

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// LocalStore is a credential backend holding an in-process table of
// bcrypt-hashed API keys: callers register a plaintext key once (e.g.
// loaded from an env var at process start), LocalStore stores only its
// bcrypt hash, and ResolveWithKey verifies a caller-supplied key against
// that hash before emitting the configured header. LocalStore has no
// Resolve method and does not implement Resolver.
type LocalStore struct {
	mu     sync.RWMutex
	hashes map[string]string // name -> bcrypt hash
	header string
	scheme string // e.g. "Bearer"; "" means the raw key is the header value
}

// NewLocalStore creates a store that emits the named key's value (prefixed
// with scheme + " " if scheme is non-empty) on the given header.
func NewLocalStore(header, scheme string) *LocalStore {
	return &LocalStore{hashes: make(map[string]string), header: header, scheme: scheme}
}

// GenerateKey creates a new random plaintext key and stores its bcrypt
// hash under name.
func (s *LocalStore) GenerateKey(name string) (plaintext string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	plaintext = base64.URLEncoding.EncodeToString(raw)
	if err := s.Set(name, plaintext); err != nil {
		return "", err
	}
	return plaintext, nil
}

// Set hashes and stores plaintext under name, replacing any prior value.
func (s *LocalStore) Set(name, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing key: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[name] = string(hash)
	return nil
}

// Verify reports whether plaintext matches the hash stored under name.
func (s *LocalStore) Verify(name, plaintext string) bool {
	s.mu.RLock()
	hash, ok := s.hashes[name]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// ResolveWithKey verifies plaintext against name's stored hash and, if it
// matches, returns the configured header set to plaintext (scheme-prefixed
// if configured).
func (s *LocalStore) ResolveWithKey(_ context.Context, name, plaintext string) (map[string]string, error) {
	if !s.Verify(name, plaintext) {
		return nil, fmt.Errorf("header resolver: key %q failed verification", name)
	}
	value := plaintext
	if s.scheme != "" {
		value = s.scheme + " " + plaintext
	}
	return map[string]string{s.header: value}, nil
}
