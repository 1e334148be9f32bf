// Package scheduler runs the background jobs of the activity engine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants that currently have unpaid instances
type TenantProvider interface {
	TenantsWithPendingPayments(ctx context.Context) ([]uuid.UUID, error)
}

// ExpiryPort expires unpaid instances for one tenant and returns how many
// were moved to TIMEOUT
type ExpiryPort interface {
	ExpirePendingInstances(ctx context.Context, tenantID uuid.UUID, limit int) (int, error)
}

// ExpirySweeperConfig holds configuration for the expiry sweeper
type ExpirySweeperConfig struct {
	// Interval is how often the sweep runs
	Interval time.Duration
	// BatchSize caps the instances expired per tenant per run
	BatchSize int
}

// DefaultExpirySweeperConfig returns default sweeper configuration
func DefaultExpirySweeperConfig() ExpirySweeperConfig {
	return ExpirySweeperConfig{
		Interval:  time.Minute,
		BatchSize: 200,
	}
}

// ExpirySweeper periodically moves unpaid instances past their payment
// deadline into TIMEOUT, tenant by tenant
type ExpirySweeper struct {
	config  ExpirySweeperConfig
	tenants TenantProvider
	port    ExpiryPort
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(
	config ExpirySweeperConfig,
	tenants TenantProvider,
	port ExpiryPort,
	logger *zap.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		config:  config,
		tenants: tenants,
		port:    port,
		logger:  logger,
	}
}

// Start starts the sweeper loop
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Expiry sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
	)

	return nil
}

// Stop stops the sweeper loop
func (s *ExpirySweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Expiry sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop sweeps on every tick until the context is cancelled
func (s *ExpirySweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep across all tenants with unpaid instances.
// Per-tenant failures are logged and skipped.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) {
	tenantIDs, err := s.tenants.TenantsWithPendingPayments(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants for expiry sweep", zap.Error(err))
		return
	}
	if len(tenantIDs) == 0 {
		return
	}

	total := 0
	for _, tenantID := range tenantIDs {
		expired, err := s.port.ExpirePendingInstances(ctx, tenantID, s.config.BatchSize)
		if err != nil {
			s.logger.Error("Expiry sweep failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		total += expired
	}

	if total > 0 {
		s.logger.Info("Expiry sweep completed",
			zap.Int("tenants", len(tenantIDs)),
			zap.Int("expired", total),
		)
	}
}
