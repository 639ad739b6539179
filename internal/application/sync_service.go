package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// DefaultSyncCooldown is the minimum time between two API triggered syncs.
const DefaultSyncCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	LayersAdded     int       `json:"layers_added"`
	LayersUpdated   int       `json:"layers_updated"`
	LayersRemoved   int       `json:"layers_removed"`
	LayersTotal     int       `json:"layers_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService keeps the registry in step with remote storage, on a
// schedule and on demand through the API.
type SyncService struct {
	registry *LayerRegistry
	interval time.Duration
	logger   *slog.Logger

	// held while a sync runs; scheduled and API syncs never overlap
	running sync.Mutex

	mu       sync.Mutex
	cooldown time.Duration
	lastAPI  time.Time
	next     time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSyncService creates a new sync service.
func NewSyncService(registry *LayerRegistry, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		cooldown: DefaultSyncCooldown,
	}
}

// SetCooldown changes the minimum time between API triggered syncs. Zero
// disables the limit.
func (s *SyncService) SetCooldown(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldown = d
}

// Cooldown returns the minimum time between API triggered syncs.
func (s *SyncService) Cooldown() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cooldown
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}

// Start runs scheduled syncs until ctx is done or Stop is called.
func (s *SyncService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.next = time.Now().Add(s.interval)
	s.mu.Unlock()

	s.logger.Info("starting sync service", "interval", s.interval)
	go s.schedule(ctx, done)
}

func (s *SyncService) schedule(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			s.mu.Lock()
			s.next = time.Now().Add(s.interval)
			s.mu.Unlock()

			if _, err := s.sync(ctx); err != nil {
				s.logger.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

// Stop ends the schedule and waits for a running sync to finish.
func (s *SyncService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	s.logger.Info("stopping sync service")
	cancel()
	<-done
}

// TriggerSync runs a sync now. It returns ErrRateLimited if the previous
// API triggered sync started less than the cooldown ago.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if s.cooldown > 0 && !s.lastAPI.IsZero() && time.Since(s.lastAPI) < s.cooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastAPI = time.Now()
	s.mu.Unlock()

	return s.sync(ctx)
}

func (s *SyncService) sync(ctx context.Context) (SyncResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	s.mu.Lock()
	next := s.next
	s.mu.Unlock()

	return SyncResult{
		LayersAdded:     stats.Added,
		LayersUpdated:   stats.Updated,
		LayersRemoved:   stats.Removed,
		LayersTotal:     s.registry.LayerCount(),
		SyncedAt:        time.Now(),
		NextScheduledAt: next,
	}, nil
}
