// Package identity derives stable per-visitor session identifiers.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	keyPrefix     = "chatSessionId:"
	suffixLength  = 9
	base36Chars   = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Store is the key-value storage that caches identifiers per device
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Fingerprint derives a device key from browser traits. The key is a
// digest of all traits; devices that differ in any trait get different keys.
func Fingerprint(platform, userAgent, screen string) string {
	sum := sha256.Sum256([]byte(platform + "\x00" + userAgent + "\x00" + screen))
	return hex.EncodeToString(sum[:])
}

// Resolver hands out session identifiers, one per device
type Resolver struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger

	mu        sync.Mutex
	fallbacks map[string]string
}

// NewResolver creates a resolver backed by store
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:     store,
		now:       time.Now,
		logger:    logger,
		fallbacks: make(map[string]string),
	}
}

// Ensure returns the identifier cached for device, generating and storing a
// new one on first use. If the store cannot be used, a fallback identifier is
// returned that stays fixed for the device while this resolver lives; such
// sessions do not survive a restart.
func (r *Resolver) Ensure(ctx context.Context, device string) string {
	key := keyPrefix + device

	id, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.Warn("identity store unavailable", zap.String("device", device), zap.Error(err))
		return r.fallback(device)
	}
	if ok && id != "" {
		return id
	}

	id = NewSessionID(r.now())
	if err := r.store.Set(ctx, key, id); err != nil {
		r.logger.Warn("failed to persist session id", zap.String("device", device), zap.Error(err))
		return r.fallback(device)
	}
	return id
}

func (r *Resolver) fallback(device string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.fallbacks[device]; ok {
		return id
	}
	id := "fallback-" + NewSessionID(r.now())
	r.fallbacks[device] = id
	return id
}

// NewSessionID combines a millisecond timestamp with a random base36 suffix
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), randomBase36(suffixLength))
}

func randomBase36(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(base36Chars)))
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Errorf("crypto/rand failed: %w", err))
		}
		b[i] = base36Chars[v.Int64()]
	}
	return string(b)
}
