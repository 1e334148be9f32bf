package marketing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopStrategy is the minimal Strategy used for factory tests
type noopStrategy struct {
	code  TemplateCode
	bound TransitionPort
}

func (s *noopStrategy) TemplateCode() TemplateCode { return s.code }
func (s *noopStrategy) ValidateJoin(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) error {
	return nil
}
func (s *noopStrategy) CalculatePrice(cfg *ActivityConfig, params JoinParams) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s *noopStrategy) BuildInstanceData(ctx context.Context, cfg *ActivityConfig, memberID uuid.UUID, params JoinParams) (InstanceData, error) {
	return InstanceData{}, nil
}
func (s *noopStrategy) OnPaymentSuccess(ctx context.Context, inst *ActivityInstance) error {
	return nil
}
func (s *noopStrategy) OnStatusChange(ctx context.Context, inst *ActivityInstance, from, to InstanceStatus) error {
	return nil
}
func (s *noopStrategy) BindEngine(port TransitionPort) { s.bound = port }

func TestFactoryRegister(t *testing.T) {
	t.Run("registers and resolves a strategy", func(t *testing.T) {
		factory, err := NewFactory()
		require.NoError(t, err)

		s := &noopStrategy{code: TemplateFlashSale}
		require.NoError(t, factory.Register(s))

		got, err := factory.GetStrategy(TemplateFlashSale)
		require.NoError(t, err)
		assert.Same(t, Strategy(s), got)
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		factory, err := NewFactory()
		require.NoError(t, err)

		require.NoError(t, factory.Register(&noopStrategy{code: TemplateGroupBuy}))
		err = factory.Register(&noopStrategy{code: TemplateGroupBuy})
		assertDomainErrorCode(t, err, "ALREADY_EXISTS")
	})

	t.Run("unknown template code is rejected", func(t *testing.T) {
		factory, err := NewFactory()
		require.NoError(t, err)

		err = factory.Register(&noopStrategy{code: "LOTTERY"})
		assertDomainErrorCode(t, err, "NOT_FOUND")
	})
}

func TestFactoryGetStrategyNotRegistered(t *testing.T) {
	factory, err := NewFactory()
	require.NoError(t, err)

	_, err = factory.GetStrategy(TemplateMemberUpgrade)
	assertDomainErrorCode(t, err, "NOT_FOUND")
}

func TestFactoryCapabilityAccessors(t *testing.T) {
	factory, err := NewFactory()
	require.NoError(t, err)

	hasInstance, err := factory.HasInstance(TemplateFullReduction)
	require.NoError(t, err)
	assert.False(t, hasInstance)

	canParallel, err := factory.CanParallel(TemplateGroupBuy)
	require.NoError(t, err)
	assert.False(t, canParallel)

	canFail, err := factory.CanFail(TemplateFlashSale)
	require.NoError(t, err)
	assert.True(t, canFail)

	mode, err := factory.DefaultStockMode(TemplateMemberUpgrade)
	require.NoError(t, err)
	assert.Equal(t, StockModeLazyCheck, mode)

	_, err = factory.HasState("LOTTERY")
	assertDomainErrorCode(t, err, "NOT_FOUND")
}

func TestFactoryBindEngine(t *testing.T) {
	factory, err := NewFactory()
	require.NoError(t, err)

	aware := &noopStrategy{code: TemplateGroupBuy}
	require.NoError(t, factory.Register(aware))

	port := newRecordingPort(newStubInstanceRepo())
	factory.BindEngine(port)

	assert.Same(t, TransitionPort(port), aware.bound)
}

func TestJoinParamsEffectiveQuantity(t *testing.T) {
	assert.Equal(t, int64(1), JoinParams{}.EffectiveQuantity())
	assert.Equal(t, int64(1), JoinParams{Quantity: -2}.EffectiveQuantity())
	assert.Equal(t, int64(3), JoinParams{Quantity: 3}.EffectiveQuantity())
}

func TestJoinKeyString(t *testing.T) {
	configID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	memberID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	groupID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	base := JoinKey{ConfigID: configID, MemberID: memberID}
	assert.Equal(t,
		"join:11111111-1111-1111-1111-111111111111:22222222-2222-2222-2222-222222222222",
		base.String())

	withGroup := JoinKey{ConfigID: configID, MemberID: memberID, GroupID: &groupID}
	assert.Equal(t, base.String()+":g:33333333-3333-3333-3333-333333333333", withGroup.String())

	withSKU := JoinKey{ConfigID: configID, MemberID: memberID, SKUID: "sku-1"}
	assert.Equal(t, base.String()+":sku:sku-1", withSKU.String())

	// Distinct discriminators must never collide
	assert.NotEqual(t, withGroup.String(), withSKU.String())
}
