package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewSQLiteDatabase()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newStoredInstance(t *testing.T, repo *GormInstanceRepository, tenantID, configID uuid.UUID, mutate func(*marketing.ActivityInstance)) *marketing.ActivityInstance {
	t.Helper()
	inst, err := marketing.NewActivityInstance(tenantID, configID, uuid.New(), marketing.TemplateGroupBuy, nil)
	require.NoError(t, err)
	if mutate != nil {
		mutate(inst)
	}
	require.NoError(t, repo.Save(context.Background(), inst))
	return inst
}

func TestGormInstanceRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGormInstanceRepository(db.DB)
	tenantID := uuid.New()
	configID := uuid.New()

	t.Run("save and find by id", func(t *testing.T) {
		inst := newStoredInstance(t, repo, tenantID, configID, func(i *marketing.ActivityInstance) {
			i.OrderSN = "ORD-1"
		})

		found, err := repo.FindByIDForTenant(ctx, tenantID, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, inst.ID, found.ID)
		assert.Equal(t, "ORD-1", found.OrderSN)
		assert.Equal(t, marketing.StatusPendingPay, found.Status)
	})

	t.Run("other tenants cannot see the instance", func(t *testing.T) {
		inst := newStoredInstance(t, repo, tenantID, configID, nil)

		_, err := repo.FindByIDForTenant(ctx, uuid.New(), inst.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find by order number", func(t *testing.T) {
		newStoredInstance(t, repo, tenantID, configID, func(i *marketing.ActivityInstance) {
			i.OrderSN = "ORD-FIND"
		})

		found, err := repo.FindByOrderSN(ctx, tenantID, "ORD-FIND")
		require.NoError(t, err)
		assert.Equal(t, "ORD-FIND", found.OrderSN)

		_, err = repo.FindByOrderSN(ctx, tenantID, "ORD-MISSING")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("group members come back oldest first", func(t *testing.T) {
		groupID := uuid.New()
		leader := newStoredInstance(t, repo, tenantID, configID, func(i *marketing.ActivityInstance) {
			i.GroupID = &groupID
			i.CreatedAt = time.Now().Add(-time.Hour)
		})
		participant := newStoredInstance(t, repo, tenantID, configID, func(i *marketing.ActivityInstance) {
			i.GroupID = &groupID
		})

		members, err := repo.FindByGroupID(ctx, tenantID, groupID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, leader.ID, members[0].ID)
		assert.Equal(t, participant.ID, members[1].ID)
	})

	t.Run("pending before cutoff honors the limit", func(t *testing.T) {
		tenant := uuid.New()
		for i := 0; i < 3; i++ {
			newStoredInstance(t, repo, tenant, configID, func(inst *marketing.ActivityInstance) {
				inst.CreatedAt = time.Now().Add(-2 * time.Hour)
			})
		}
		newStoredInstance(t, repo, tenant, configID, nil)

		pending, err := repo.FindPendingBefore(ctx, tenant, time.Now().Add(-time.Hour), 2)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("count excludes instances that gave their slot back", func(t *testing.T) {
		tenant := uuid.New()
		cfg := uuid.New()
		memberID := uuid.New()

		for _, status := range []marketing.InstanceStatus{
			marketing.StatusPendingPay,
			marketing.StatusSuccess,
			marketing.StatusTimeout,
			marketing.StatusRefunded,
		} {
			s := status
			inst, err := marketing.NewActivityInstance(tenant, cfg, memberID, marketing.TemplateFlashSale, nil)
			require.NoError(t, err)
			inst.Status = s
			require.NoError(t, repo.Save(ctx, inst))
		}

		count, err := repo.CountJoinedByMember(ctx, tenant, cfg, memberID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("distinct tenants with pending payments", func(t *testing.T) {
		tenant := uuid.New()
		newStoredInstance(t, repo, tenant, configID, nil)
		newStoredInstance(t, repo, tenant, configID, nil)

		tenants, err := repo.TenantsWithPendingPayments(ctx)
		require.NoError(t, err)
		assert.Contains(t, tenants, tenant)

		seen := map[uuid.UUID]int{}
		for _, id := range tenants {
			seen[id]++
		}
		assert.Equal(t, 1, seen[tenant])
	})

	t.Run("save updates in place", func(t *testing.T) {
		inst := newStoredInstance(t, repo, tenantID, configID, nil)
		require.NoError(t, inst.TransitTo(marketing.StatusPaid, nil))
		require.NoError(t, repo.Save(ctx, inst))

		found, err := repo.FindByIDForTenant(ctx, tenantID, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, marketing.StatusPaid, found.Status)
		assert.NotNil(t, found.PayTime)
	})
}

func TestGormConfigRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGormConfigRepository(db.DB)
	tenantID := uuid.New()

	cfg := &marketing.ActivityConfig{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		TemplateCode: marketing.TemplateGroupBuy,
		StoreID:      uuid.New(),
		StockMode:    marketing.StockModeStrongLock,
		Rules:        marketing.RuleBag(`{"price":"19.90","minCount":2,"stock":100}`),
	}
	require.NoError(t, repo.Save(ctx, cfg))

	t.Run("round trip", func(t *testing.T) {
		found, err := repo.FindByIDForTenant(ctx, tenantID, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, marketing.TemplateGroupBuy, found.TemplateCode)
		assert.Equal(t, marketing.StockModeStrongLock, found.StockMode)

		var rules marketing.GroupBuyRules
		require.NoError(t, found.Rules.Decode(&rules))
		assert.Equal(t, int64(2), rules.MinCount)
	})

	t.Run("tenant isolation", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, uuid.New(), cfg.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := repo.FindByIDForTenant(ctx, tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
