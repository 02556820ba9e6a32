package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/jwtx"
)

// HousekeepingService periodically deletes signing keys whose grace period
// has ended and unpublishes them from the JWKS.
type HousekeepingService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager // optional
	Logger     *slog.Logger
	Interval   time.Duration
	Now        func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults interval to one hour.
func NewHousekeepingService(s store.Store, km *jwtx.KeyManager, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Store:      s,
		KeyManager: km,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs cleanup now and then every Interval until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup removes expired signing keys and returns how many were deleted.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}

	keys, err := s.Store.SigningKeys().ListSigningKeys(ctx)
	if err != nil {
		s.Logger.Error("failed to list signing keys", "error", err)
		return 0
	}

	deleted, err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
		return 0
	}

	if s.KeyManager != nil {
		for _, key := range keys {
			if !key.IsExpired(now) {
				continue
			}
			if err := s.KeyManager.Retire(key.Kid); err != nil {
				s.Logger.Warn("failed to unpublish expired key", "kid", key.Kid, "error", err)
			}
		}
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted_signing_keys", deleted)
	return deleted
}
