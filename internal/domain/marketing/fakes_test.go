package marketing

import (
	"context"
	"sync"
	"time"

	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// stubInstanceRepo is an in-memory InstanceRepository for strategy tests.
// Instances are kept in insertion order so FindByGroupID returns the leader
// first, matching the persistence contract.
type stubInstanceRepo struct {
	mu    sync.Mutex
	insts []*ActivityInstance
}

func newStubInstanceRepo(insts ...*ActivityInstance) *stubInstanceRepo {
	return &stubInstanceRepo{insts: insts}
}

func (r *stubInstanceRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ActivityInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.insts {
		if inst.TenantID == tenantID && inst.ID == id {
			return inst, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubInstanceRepo) FindByOrderSN(ctx context.Context, tenantID uuid.UUID, orderSN string) (*ActivityInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.insts {
		if inst.TenantID == tenantID && inst.OrderSN == orderSN {
			return inst, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubInstanceRepo) FindByGroupID(ctx context.Context, tenantID, groupID uuid.UUID) ([]ActivityInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ActivityInstance
	for _, inst := range r.insts {
		if inst.TenantID == tenantID && inst.GroupID != nil && *inst.GroupID == groupID {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (r *stubInstanceRepo) FindPendingBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, limit int) ([]ActivityInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []ActivityInstance
	for _, inst := range r.insts {
		if len(out) >= limit {
			break
		}
		if inst.TenantID == tenantID && inst.Status == StatusPendingPay && inst.CreatedAt.Before(cutoff) {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (r *stubInstanceRepo) CountJoinedByMember(ctx context.Context, tenantID, configID, memberID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, inst := range r.insts {
		if inst.TenantID != tenantID || inst.ConfigID != configID || inst.MemberID != memberID {
			continue
		}
		if inst.Status == StatusTimeout || inst.Status == StatusRefunded {
			continue
		}
		count++
	}
	return count, nil
}

func (r *stubInstanceRepo) Save(ctx context.Context, inst *ActivityInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for idx := range r.insts {
		if r.insts[idx].ID == inst.ID {
			r.insts[idx] = inst
			return nil
		}
	}
	r.insts = append(r.insts, inst)
	return nil
}

// stubConfigRepo is an in-memory ConfigRepository
type stubConfigRepo struct {
	mu   sync.Mutex
	cfgs map[uuid.UUID]*ActivityConfig
}

func newStubConfigRepo(cfgs ...*ActivityConfig) *stubConfigRepo {
	repo := &stubConfigRepo{cfgs: make(map[uuid.UUID]*ActivityConfig)}
	for _, cfg := range cfgs {
		repo.cfgs[cfg.ID] = cfg
	}
	return repo
}

func (r *stubConfigRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ActivityConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.cfgs[id]
	if !ok || cfg.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return cfg, nil
}

func (r *stubConfigRepo) Save(ctx context.Context, cfg *ActivityConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfgs[cfg.ID] = cfg
	return nil
}

// stubGuard implements IdempotencyGuard without expiry; the windows are
// irrelevant inside a single test run
type stubGuard struct {
	mu       sync.Mutex
	joins    map[string]*JoinResult
	payments map[string]bool
	locks    map[uuid.UUID]bool
	lockTTLs []time.Duration
}

func newStubGuard() *stubGuard {
	return &stubGuard{
		joins:    make(map[string]*JoinResult),
		payments: make(map[string]bool),
		locks:    make(map[uuid.UUID]bool),
	}
}

func (g *stubGuard) CheckJoinResult(ctx context.Context, key JoinKey) (*JoinResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joins[key.String()], nil
}

func (g *stubGuard) CacheJoinResult(ctx context.Context, key JoinKey, result *JoinResult, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.joins[key.String()] = result
	return nil
}

func (g *stubGuard) IsPaymentProcessed(ctx context.Context, orderSN string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.payments[orderSN], nil
}

func (g *stubGuard) MarkPaymentProcessed(ctx context.Context, orderSN string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[orderSN] = true
	return nil
}

func (g *stubGuard) WithLock(ctx context.Context, instanceID uuid.UUID, ttl time.Duration, fn func() error) error {
	g.mu.Lock()
	g.lockTTLs = append(g.lockTTLs, ttl)
	if g.locks[instanceID] {
		g.mu.Unlock()
		return shared.ErrLockContention
	}
	g.locks[instanceID] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.locks, instanceID)
		g.mu.Unlock()
	}()
	return fn()
}

// stubInventoryStore is a scripted InventoryStore that records every call
type stubInventoryStore struct {
	mu       sync.Mutex
	counts   map[uuid.UUID]int64
	setCalls []int64
	decCalls int
	incCalls []int64
}

func newStubInventoryStore() *stubInventoryStore {
	return &stubInventoryStore{counts: make(map[uuid.UUID]int64)}
}

func (s *stubInventoryStore) DecrementIfAvailable(ctx context.Context, configID uuid.UUID, amount int64) (ReserveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decCalls++
	remaining, exists := s.counts[configID]
	if !exists {
		return ReserveMiss, nil
	}
	if remaining < amount {
		return ReserveInsufficient, nil
	}
	s.counts[configID] = remaining - amount
	return ReserveOK, nil
}

func (s *stubInventoryStore) IncrementIfPresent(ctx context.Context, configID uuid.UUID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incCalls = append(s.incCalls, amount)
	if _, exists := s.counts[configID]; exists {
		s.counts[configID] += amount
	}
	return nil
}

func (s *stubInventoryStore) SetStock(ctx context.Context, configID uuid.UUID, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls = append(s.setCalls, qty)
	s.counts[configID] = qty
	return nil
}

func (s *stubInventoryStore) Remaining(ctx context.Context, configID uuid.UUID) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining, exists := s.counts[configID]
	return remaining, exists, nil
}

// recordingPort is a TransitionPort that applies transitions directly against
// the stub repository and records every call
type recordingPort struct {
	repo        *stubInstanceRepo
	mu          sync.Mutex
	transits    []InstanceStatus
	batchStatus []InstanceStatus
	batchIDs    [][]uuid.UUID
}

func newRecordingPort(repo *stubInstanceRepo) *recordingPort {
	return &recordingPort{repo: repo}
}

func (p *recordingPort) TransitStatus(ctx context.Context, tenantID, instanceID uuid.UUID, next InstanceStatus, extra InstanceData) (*ActivityInstance, error) {
	inst, err := p.repo.FindByIDForTenant(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if err := inst.TransitTo(next, extra); err != nil {
		return nil, err
	}
	if err := p.repo.Save(ctx, inst); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.transits = append(p.transits, next)
	p.mu.Unlock()
	return inst, nil
}

func (p *recordingPort) BatchTransitStatus(ctx context.Context, tenantID uuid.UUID, instanceIDs []uuid.UUID, next InstanceStatus, extra InstanceData) error {
	for _, id := range instanceIDs {
		if _, err := p.TransitStatus(ctx, tenantID, id, next, extra); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.batchStatus = append(p.batchStatus, next)
	p.batchIDs = append(p.batchIDs, instanceIDs)
	p.mu.Unlock()
	return nil
}
