package settlement

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mark3labs/x402-gate"
)

// NonceTracker records consumed (from, nonce) pairs so an authorization cannot be
// settled twice. This matters for simulated settlement, which has no chain to
// reject a replay.
type NonceTracker interface {
	// Reserve marks the pair as used until validBefore. It returns an error wrapping
	// x402.ErrNonceReused if the pair was already reserved and has not expired.
	Reserve(from, nonce string, validBefore int64) error
}

// DefaultNonceCapacity is the number of reservations MemoryNonces keeps.
const DefaultNonceCapacity = 100_000

// MemoryNonces is an in-process NonceTracker. Entries are dropped once their
// authorization has expired, because the verifier rejects expired authorizations
// anyway. The least recently reserved entries are evicted past capacity, so the
// capacity must exceed the number of authorizations live at any one time.
type MemoryNonces struct {
	mu    sync.Mutex
	cache *lru.Cache[string, int64]
	clock x402.Clock
}

// NewMemoryNonces creates a tracker holding up to capacity reservations.
func NewMemoryNonces(capacity int, clock x402.Clock) (*MemoryNonces, error) {
	if capacity <= 0 {
		capacity = DefaultNonceCapacity
	}
	if clock == nil {
		clock = x402.SystemClock{}
	}
	cache, err := lru.New[string, int64](capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", x402.ErrInvalidConfig, err)
	}
	return &MemoryNonces{cache: cache, clock: clock}, nil
}

// nonceKey identifies an authorization by its parsed payer and nonce, so
// spellings of the same values (case, missing 0x) share one reservation.
func nonceKey(from, nonce string) string {
	return common.HexToAddress(from).Hex() + ":" + common.HexToHash(nonce).Hex()
}

// Reserve implements NonceTracker.
func (m *MemoryNonces) Reserve(from, nonce string, validBefore int64) error {
	key := nonceKey(from, nonce)
	now := m.clock.Now().Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.cache.Peek(key); ok && expiry >= now {
		return fmt.Errorf("%w: %s", x402.ErrNonceReused, nonce)
	}
	m.cache.Add(key, validBefore)
	return nil
}

// Len returns the number of tracked reservations, expired ones included.
func (m *MemoryNonces) Len() int {
	return m.cache.Len()
}
