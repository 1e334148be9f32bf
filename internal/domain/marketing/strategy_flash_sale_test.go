package marketing

import (
	"context"
	"testing"

	"github.com/mall/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func flashSaleConfig(tenantID uuid.UUID, rules string) *ActivityConfig {
	return &ActivityConfig{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		TemplateCode: TemplateFlashSale,
		StoreID:      uuid.New(),
		StockMode:    StockModeStrongLock,
		Rules:        RuleBag(rules),
	}
}

func newFlashSaleFixture(cfgs []*ActivityConfig, insts ...*ActivityInstance) (*FlashSaleStrategy, *stubInstanceRepo, *stubInventoryStore) {
	repo := newStubInstanceRepo(insts...)
	store := newStubInventoryStore()
	strategy := NewFlashSaleStrategy(
		repo,
		newStubConfigRepo(cfgs...),
		NewInventoryEngine(store, zap.NewNop()),
		zap.NewNop(),
	)
	strategy.BindEngine(newRecordingPort(repo))
	return strategy, repo, store
}

func TestFlashSaleValidateJoin(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	memberID := uuid.New()
	rules := `{"skus":[{"skuId":"sku-1","price":"9.90"},{"skuId":"sku-2","price":"19.90"}],"limitPerMember":2,"stock":50}`

	t.Run("valid join passes", func(t *testing.T) {
		strategy, _, _ := newFlashSaleFixture(nil)
		cfg := flashSaleConfig(tenantID, rules)
		assert.NoError(t, strategy.ValidateJoin(ctx, cfg, memberID, JoinParams{SKUID: "sku-1"}))
	})

	t.Run("unknown SKU is denied", func(t *testing.T) {
		strategy, _, _ := newFlashSaleFixture(nil)
		cfg := flashSaleConfig(tenantID, rules)
		err := strategy.ValidateJoin(ctx, cfg, memberID, JoinParams{SKUID: "sku-9"})
		assertDomainErrorCode(t, err, "ADMISSION_DENIED")
	})

	t.Run("omitted SKU needs a single-SKU sale", func(t *testing.T) {
		strategy, _, _ := newFlashSaleFixture(nil)
		cfg := flashSaleConfig(tenantID, rules)
		err := strategy.ValidateJoin(ctx, cfg, memberID, JoinParams{})
		assertDomainErrorCode(t, err, "ADMISSION_DENIED")

		single := flashSaleConfig(tenantID, `{"skus":[{"skuId":"sku-1","price":"9.90"}],"stock":50}`)
		assert.NoError(t, strategy.ValidateJoin(ctx, single, memberID, JoinParams{}))
	})

	t.Run("per-member limit counts existing purchases", func(t *testing.T) {
		cfg := flashSaleConfig(tenantID, rules)
		existing, err := NewActivityInstance(tenantID, cfg.ID, memberID, TemplateFlashSale, nil)
		require.NoError(t, err)

		strategy, _, _ := newFlashSaleFixture([]*ActivityConfig{cfg}, existing)

		assert.NoError(t, strategy.ValidateJoin(ctx, cfg, memberID, JoinParams{SKUID: "sku-1", Quantity: 1}))
		err = strategy.ValidateJoin(ctx, cfg, memberID, JoinParams{SKUID: "sku-1", Quantity: 2})
		assertDomainErrorCode(t, err, "ADMISSION_DENIED")
	})

	t.Run("timed-out purchases give the slot back", func(t *testing.T) {
		cfg := flashSaleConfig(tenantID, rules)
		expired, err := NewActivityInstance(tenantID, cfg.ID, memberID, TemplateFlashSale, nil)
		require.NoError(t, err)
		require.NoError(t, expired.TransitTo(StatusTimeout, nil))

		strategy, _, _ := newFlashSaleFixture([]*ActivityConfig{cfg}, expired)

		assert.NoError(t, strategy.ValidateJoin(ctx, cfg, memberID, JoinParams{SKUID: "sku-1", Quantity: 2}))
	})
}

func TestFlashSaleCalculatePrice(t *testing.T) {
	strategy, _, _ := newFlashSaleFixture(nil)
	cfg := flashSaleConfig(uuid.New(),
		`{"skus":[{"skuId":"sku-1","price":"9.90"}],"stock":50}`)

	price, err := strategy.CalculatePrice(cfg, JoinParams{SKUID: "sku-1", Quantity: 3})
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("29.70")))

	// Quantity defaults to one
	price, err = strategy.CalculatePrice(cfg, JoinParams{SKUID: "sku-1"})
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("9.90")))
}

func TestFlashSaleBuildInstanceData(t *testing.T) {
	ctx := context.Background()
	strategy, _, _ := newFlashSaleFixture(nil)
	cfg := flashSaleConfig(uuid.New(),
		`{"skus":[{"skuId":"sku-1","price":"9.90"}],"stock":50}`)

	data, err := strategy.BuildInstanceData(ctx, cfg, uuid.New(), JoinParams{Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "sku-1", data[DataKeySKUID])
	assert.Equal(t, int64(2), data.Int64(DataKeyQuantity))
}

func TestFlashSaleOnPaymentSuccess(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	cfg := flashSaleConfig(tenantID, `{"skus":[{"skuId":"sku-1","price":"9.90"}],"stock":50}`)

	inst, err := NewActivityInstance(tenantID, cfg.ID, uuid.New(), TemplateFlashSale, nil)
	require.NoError(t, err)
	require.NoError(t, inst.TransitTo(StatusPaid, nil))

	strategy, repo, _ := newFlashSaleFixture([]*ActivityConfig{cfg}, inst)

	require.NoError(t, strategy.OnPaymentSuccess(ctx, inst))

	got, err := repo.FindByIDForTenant(ctx, tenantID, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
}

func TestFlashSaleOnStatusChange(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	cfg := flashSaleConfig(tenantID, `{"skus":[{"skuId":"sku-1","price":"9.90"}],"stock":50}`)

	inst, err := NewActivityInstance(tenantID, cfg.ID, uuid.New(), TemplateFlashSale,
		InstanceData{DataKeyQuantity: int64(2)})
	require.NoError(t, err)

	strategy, _, store := newFlashSaleFixture([]*ActivityConfig{cfg}, inst)
	require.NoError(t, store.SetStock(ctx, cfg.ID, 10))

	require.NoError(t, strategy.OnStatusChange(ctx, inst, StatusPendingPay, StatusTimeout))

	remaining, _, err := store.Remaining(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), remaining)

	// Non-failure transitions release nothing
	require.NoError(t, strategy.OnStatusChange(ctx, inst, StatusPaid, StatusSuccess))
	remaining, _, err = store.Remaining(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), remaining)

	// A refund following FAILED already gave the quantity back
	require.NoError(t, strategy.OnStatusChange(ctx, inst, StatusFailed, StatusRefunded))
	remaining, _, err = store.Remaining(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), remaining)
}
