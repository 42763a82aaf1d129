// Package challenge issues and consumes single-use, time-boxed random
// challenges that bind an attestation to a registration session, and
// rate-limits issuance per client.
package challenge

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/LucaDeLeo/realitycam-sub001/cryptoutils"
)

const (
	// Size is the challenge length in bytes.
	Size = 32

	// DefaultTTL is the validity window of an issued challenge.
	DefaultTTL = 5 * time.Minute

	// DefaultSweepInterval is how often expired entries are removed.
	DefaultSweepInterval = time.Minute

	// DefaultMaxPerWindow and DefaultWindow bound per-client issuance.
	DefaultMaxPerWindow = 10
	DefaultWindow       = time.Minute
)

var (
	// ErrRateLimited is returned when a client exceeds the issuance limit.
	ErrRateLimited = errors.New("challenge issuance rate limited")

	// ErrNotFound is returned when consuming an unknown challenge.
	ErrNotFound = errors.New("challenge not found")

	// ErrExpired is returned when consuming a challenge past its TTL.
	ErrExpired = errors.New("challenge expired")

	// ErrAlreadyUsed is returned when consuming a challenge a second time.
	ErrAlreadyUsed = errors.New("challenge already used")
)

// Challenge is an issued challenge value and its expiry.
type Challenge struct {
	Bytes     []byte
	ExpiresAt time.Time
}

// Config tunes a Store. Zero values fall back to the defaults above.
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxPerWindow  int
	Window        time.Duration
	Log           *slog.Logger
}

type entry struct {
	expiresAt time.Time
	used      bool
}

// Store tracks outstanding challenges. All mutations (issue, consume, sweep)
// hold one mutex, so consumption is a single check-and-mark step and can
// never succeed twice for the same challenge.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl          time.Duration
	maxPerWindow int64
	window       time.Duration
	windows      *gocache.Cache

	log  *slog.Logger
	stop chan struct{}
	done chan struct{}
}

// NewStore creates a Store and starts its background expiry sweep.
func NewStore(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = DefaultMaxPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	s := &Store{
		entries:      make(map[string]*entry),
		ttl:          cfg.TTL,
		maxPerWindow: int64(cfg.MaxPerWindow),
		window:       cfg.Window,
		windows:      gocache.New(cfg.Window, 2*cfg.Window),
		log:          cfg.Log,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	go s.sweepLoop(cfg.SweepInterval)
	return s
}

// Issue generates a fresh challenge for the client, enforcing the per-client
// issuance limit over a fixed window.
func (s *Store) Issue(clientKey string) (*Challenge, error) {
	if !s.allow(clientKey) {
		s.log.Warn("Challenge issuance rate limited", "client", clientKey)
		return nil, ErrRateLimited
	}

	buf, err := cryptoutils.RandomBytes(Size)
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().Add(s.ttl)

	s.mu.Lock()
	s.entries[string(buf)] = &entry{expiresAt: expiresAt}
	s.mu.Unlock()

	return &Challenge{Bytes: buf, ExpiresAt: expiresAt}, nil
}

// Consume atomically checks that the challenge exists, has not expired and
// has not been used, and marks it used.
func (s *Store) Consume(challenge []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[string(challenge)]
	if !ok {
		return ErrNotFound
	}
	if e.used {
		return ErrAlreadyUsed
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, string(challenge))
		return ErrExpired
	}
	e.used = true
	return nil
}

// Close stops the background sweep.
func (s *Store) Close() {
	close(s.stop)
	<-s.done
}

// allow implements a fixed-window counter per client key. The window state
// lives in an expiring cache so idle clients cost nothing.
func (s *Store) allow(clientKey string) bool {
	if err := s.windows.Add(clientKey, int64(1), s.window); err == nil {
		return true
	}
	n, err := s.windows.IncrementInt64(clientKey, 1)
	if err != nil {
		// Window expired between Add and Increment; start a new one.
		return s.windows.Add(clientKey, int64(1), s.window) == nil
	}
	return n <= s.maxPerWindow
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.sweepExpired(time.Now())
			if removed > 0 {
				s.log.Debug("Swept expired challenges", "removed", removed)
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
