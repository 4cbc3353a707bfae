package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salontime/internal/domain"
)

const recoveryInterval = time.Minute

// breaker tracks whether the primary backend is considered down and when it
// should be tried again.
type breaker struct {
	mu        sync.Mutex
	down      bool
	lastCheck time.Time
	now       func() time.Time
}

// usePrimary reports whether the next call should go to the primary.
func (b *breaker) usePrimary() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.down {
		return true
	}
	if b.now().Sub(b.lastCheck) > recoveryInterval {
		b.lastCheck = b.now()
		return true
	}
	return false
}

func (b *breaker) fail() {
	b.mu.Lock()
	b.down = true
	b.lastCheck = b.now()
	b.mu.Unlock()
}

func (b *breaker) recover() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	was := b.down
	b.down = false
	return was
}

// FailoverSlotCache serves from the primary (redis) and switches to the
// fallback (memory) when the primary errors, probing it again once a minute.
type FailoverSlotCache struct {
	primary  domain.SlotCache
	fallback domain.SlotCache
	logger   *zerolog.Logger
	state    breaker
}

func NewFailoverSlotCache(primary, fallback domain.SlotCache, logger *zerolog.Logger) *FailoverSlotCache {
	return &FailoverSlotCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		state:    breaker{now: time.Now},
	}
}

func (r *FailoverSlotCache) primaryFailed(err error) {
	r.logger.Error().Err(err).Msg("Primary slot cache failed, falling back to memory")
	r.state.fail()
}

func (r *FailoverSlotCache) primaryOK() {
	if r.state.recover() {
		r.logger.Info().Msg("Primary slot cache recovered")
	}
}

func (r *FailoverSlotCache) Get(ctx context.Context, key string) (*domain.SlotEntry, error) {
	if r.state.usePrimary() {
		entry, err := r.primary.Get(ctx, key)
		if err == nil {
			r.primaryOK()
			return entry, nil
		}
		r.primaryFailed(err)
	}
	return r.fallback.Get(ctx, key)
}

func (r *FailoverSlotCache) Set(ctx context.Context, key string, entry *domain.SlotEntry) error {
	if r.state.usePrimary() {
		err := r.primary.Set(ctx, key, entry)
		if err == nil {
			r.primaryOK()
			return nil
		}
		r.primaryFailed(err)
	}
	return r.fallback.Set(ctx, key, entry)
}

func (r *FailoverSlotCache) Generation(ctx context.Context, prefixes ...string) (string, error) {
	if r.state.usePrimary() {
		gen, err := r.primary.Generation(ctx, prefixes...)
		if err == nil {
			r.primaryOK()
			return gen, nil
		}
		r.primaryFailed(err)
	}
	return r.fallback.Generation(ctx, prefixes...)
}

// InvalidatePrefix always clears the fallback too: entries written there while
// the primary was down must not outlive a booking change.
func (r *FailoverSlotCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	fallbackErr := r.fallback.InvalidatePrefix(ctx, prefix)
	if r.state.usePrimary() {
		if err := r.primary.InvalidatePrefix(ctx, prefix); err != nil {
			r.primaryFailed(err)
		} else {
			r.primaryOK()
		}
	}
	return fallbackErr
}

// FailoverDayLocker takes the primary (redis) lock and uses the in-process
// fallback while redis is unreachable. A lock timeout is not a backend failure.
type FailoverDayLocker struct {
	primary  domain.DayLocker
	fallback domain.DayLocker
	logger   *zerolog.Logger
	state    breaker
}

func NewFailoverDayLocker(primary, fallback domain.DayLocker, logger *zerolog.Logger) *FailoverDayLocker {
	return &FailoverDayLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		state:    breaker{now: time.Now},
	}
}

func (l *FailoverDayLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.state.usePrimary() {
		unlock, err := l.primary.Lock(ctx, key)
		switch {
		case err == nil:
			l.state.recover()
			return unlock, nil
		case errors.Is(err, ErrLockTimeout):
			return nil, err
		}
		l.logger.Error().Err(err).Msg("Primary booking lock failed, falling back to memory")
		l.state.fail()
	}
	return l.fallback.Lock(ctx, key)
}
