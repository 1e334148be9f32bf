package marketing

import (
	"context"
	"fmt"
	"time"

	"github.com/mall/backend/internal/domain/marketing"
	"github.com/mall/backend/internal/domain/shared"
	"github.com/mall/backend/internal/domain/shared/valueobject"
	"github.com/mall/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Settings carries the tunable windows and rates of the instance engine
type Settings struct {
	// PlatformFeeRate is deducted from the gross price at settlement
	PlatformFeeRate decimal.Decimal
	// JoinResultTTL is the join dedupe window
	JoinResultTTL time.Duration
	// PaymentDedupeTTL is the payment callback dedupe window
	PaymentDedupeTTL time.Duration
	// SettlementDedupeTTL bounds the settlement marker lifetime
	SettlementDedupeTTL time.Duration
	// PendingPayTimeout is how long an unpaid instance may linger before the
	// expiry sweep moves it to TIMEOUT
	PendingPayTimeout time.Duration
}

// DefaultSettings returns the production defaults
func DefaultSettings() Settings {
	return Settings{
		PlatformFeeRate:     decimal.NewFromFloat(0.006),
		JoinResultTTL:       5 * time.Minute,
		PaymentDedupeTTL:    10 * time.Minute,
		SettlementDedupeTTL: 30 * 24 * time.Hour,
		PendingPayTimeout:   15 * time.Minute,
	}
}

// InstanceService orchestrates the activity-instance lifecycle: joins,
// payment confirmation, status transitions with settlement, and the expiry
// sweep. It is the concrete TransitionPort handed to strategies.
type InstanceService struct {
	instances   marketing.InstanceRepository
	configs     marketing.ConfigRepository
	factory     *marketing.Factory
	inventory   *marketing.InventoryEngine
	guard       marketing.IdempotencyGuard
	settlements shared.IdempotencyStore
	ledger      LedgerService
	fulfillment FulfillmentService
	publisher   shared.EventPublisher
	logger      *zap.Logger
	settings    Settings
}

// NewInstanceService creates a new InstanceService
func NewInstanceService(
	instances marketing.InstanceRepository,
	configs marketing.ConfigRepository,
	factory *marketing.Factory,
	inventory *marketing.InventoryEngine,
	guard marketing.IdempotencyGuard,
	settlements shared.IdempotencyStore,
	ledger LedgerService,
	fulfillment FulfillmentService,
	logger *zap.Logger,
	settings Settings,
) *InstanceService {
	return &InstanceService{
		instances:   instances,
		configs:     configs,
		factory:     factory,
		inventory:   inventory,
		guard:       guard,
		settlements: settlements,
		ledger:      ledger,
		fulfillment: fulfillment,
		logger:      logger,
		settings:    settings,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *InstanceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Join admits a member into an activity and creates the participation
// instance in PENDING_PAY. The request is deduplicated on (config, member,
// group, sku): a retry inside the window replays the original outcome.
func (s *InstanceService) Join(ctx context.Context, tenantID, memberID uuid.UUID, req JoinActivityRequest) (*JoinActivityResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "marketing", "join")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrConfigID, req.ConfigID.String(),
		telemetry.SpanAttrMemberID, memberID.String(),
		telemetry.SpanAttrOrderSN, req.OrderSN,
	)

	cfg, err := s.configs.FindByIDForTenant(ctx, tenantID, req.ConfigID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrTemplateCode, cfg.TemplateCode.String())

	meta, err := s.factory.GetMetadata(cfg.TemplateCode)
	if err != nil {
		return nil, err
	}
	if !meta.HasInstance {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Template %s does not create participation instances", cfg.TemplateCode))
	}

	strategy, err := s.factory.GetStrategy(cfg.TemplateCode)
	if err != nil {
		return nil, err
	}

	key := marketing.JoinKey{
		ConfigID: req.ConfigID,
		MemberID: memberID,
		GroupID:  req.GroupID,
		SKUID:    req.SKUID,
	}
	if cached, err := s.guard.CheckJoinResult(ctx, key); err != nil {
		s.logger.Warn("join dedupe lookup failed", zap.Error(err))
	} else if cached != nil {
		return &JoinActivityResponse{
			InstanceID: cached.InstanceID,
			GroupID:    cached.GroupID,
			Status:     cached.Status,
			Price:      cached.Price,
			Replayed:   true,
		}, nil
	}

	params := marketing.JoinParams{
		GroupID:     req.GroupID,
		SKUID:       req.SKUID,
		Quantity:    req.Quantity,
		OrderAmount: req.OrderAmount,
	}

	if err := strategy.ValidateJoin(ctx, cfg, memberID, params); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	price, err := strategy.CalculatePrice(cfg, params)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrPrice, price.String())

	// Reserve before creating the instance so an oversold join never persists
	qty := params.EffectiveQuantity()
	mode := cfg.EffectiveStockMode()
	if err := s.inventory.Reserve(ctx, cfg, qty, mode); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	inst, err := s.createInstance(ctx, cfg, memberID, strategy, params, price, req.OrderSN)
	if err != nil {
		telemetry.RecordError(span, err)
		if mode == marketing.StockModeStrongLock {
			if relErr := s.inventory.Release(ctx, cfg.ID, qty); relErr != nil {
				s.logger.Error("failed to release reservation after join failure",
					zap.String("config_id", cfg.ID.String()),
					zap.Error(relErr),
				)
			}
		}
		return nil, err
	}

	result := &marketing.JoinResult{
		InstanceID: inst.ID,
		GroupID:    inst.GroupID,
		Status:     inst.Status,
		Price:      price,
	}
	if err := s.guard.CacheJoinResult(ctx, key, result, s.settings.JoinResultTTL); err != nil {
		s.logger.Warn("failed to cache join result",
			zap.String("instance_id", inst.ID.String()),
			zap.Error(err),
		)
	}

	return &JoinActivityResponse{
		InstanceID: inst.ID,
		GroupID:    inst.GroupID,
		Status:     inst.Status,
		Price:      price,
	}, nil
}

// createInstance builds and persists the new instance
func (s *InstanceService) createInstance(
	ctx context.Context,
	cfg *marketing.ActivityConfig,
	memberID uuid.UUID,
	strategy marketing.Strategy,
	params marketing.JoinParams,
	price decimal.Decimal,
	orderSN string,
) (*marketing.ActivityInstance, error) {
	data, err := strategy.BuildInstanceData(ctx, cfg, memberID, params)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = marketing.InstanceData{}
	}
	data[marketing.DataKeyPrice] = price.String()

	inst, err := marketing.NewActivityInstance(cfg.TenantID, cfg.ID, memberID, cfg.TemplateCode, data)
	if err != nil {
		return nil, err
	}
	if params.GroupID != nil {
		inst.GroupID = params.GroupID
	} else if inst.IsLeader() {
		// A leader anchors its own group
		id := inst.ID
		inst.GroupID = &id
	}
	inst.AttachOrder(orderSN)

	if err := s.instances.Save(ctx, inst); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, inst)

	s.logger.Info("activity instance created",
		zap.String("instance_id", inst.ID.String()),
		zap.String("config_id", cfg.ID.String()),
		zap.String("template_code", cfg.TemplateCode.String()),
		zap.String("member_id", memberID.String()),
	)
	return inst, nil
}

// HandlePaymentSuccess processes a payment confirmation for the order. The
// callback is deduplicated on the order number; a duplicate inside the
// window is acknowledged without re-running payment handling.
func (s *InstanceService) HandlePaymentSuccess(ctx context.Context, tenantID uuid.UUID, orderSN string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "marketing", "payment_success")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrOrderSN, orderSN)

	processed, err := s.guard.IsPaymentProcessed(ctx, orderSN)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if processed {
		s.logger.Info("duplicate payment callback ignored", zap.String("order_sn", orderSN))
		return nil
	}

	inst, err := s.instances.FindByOrderSN(ctx, tenantID, orderSN)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrInstanceID, inst.ID.String())

	paid, err := s.TransitStatus(ctx, tenantID, inst.ID, marketing.StatusPaid, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	strategy, err := s.factory.GetStrategy(paid.TemplateCode)
	if err != nil {
		return err
	}
	if err := strategy.OnPaymentSuccess(ctx, paid); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	// Marked only after the whole handling succeeded, so a failed callback
	// stays retryable
	return s.guard.MarkPaymentProcessed(ctx, orderSN, s.settings.PaymentDedupeTTL)
}

// TransitStatus moves one instance to the next status. The transition is
// validated and committed first; entering SUCCESS then triggers settlement,
// and the activity-type hook runs last. A settlement failure leaves the
// committed SUCCESS in place and surfaces SETTLEMENT_FAILURE so the caller
// can retry; settlement itself is idempotent.
func (s *InstanceService) TransitStatus(ctx context.Context, tenantID, instanceID uuid.UUID, next marketing.InstanceStatus, extra marketing.InstanceData) (*marketing.ActivityInstance, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "marketing", "transit_status")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInstanceID, instanceID.String(),
		telemetry.SpanAttrStatus, next.String(),
	)

	inst, err := s.instances.FindByIDForTenant(ctx, tenantID, instanceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	from := inst.Status
	if err := inst.TransitTo(next, extra); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.instances.Save(ctx, inst); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, inst)

	s.logger.Info("instance status changed",
		zap.String("instance_id", inst.ID.String()),
		zap.String("from", from.String()),
		zap.String("to", next.String()),
	)

	if next == marketing.StatusSuccess {
		if err := s.settle(ctx, inst); err != nil {
			telemetry.RecordError(span, err)
			return inst, err
		}
	}

	strategy, err := s.factory.GetStrategy(inst.TemplateCode)
	if err != nil {
		return inst, err
	}
	if err := strategy.OnStatusChange(ctx, inst, from, next); err != nil {
		return inst, err
	}
	return inst, nil
}

// BatchTransitStatus transitions several instances best-effort: one failed
// instance never blocks the rest, failures are logged per instance
func (s *InstanceService) BatchTransitStatus(ctx context.Context, tenantID uuid.UUID, instanceIDs []uuid.UUID, next marketing.InstanceStatus, extra marketing.InstanceData) error {
	var failed int
	for _, id := range instanceIDs {
		if _, err := s.TransitStatus(ctx, tenantID, id, next, extra); err != nil {
			failed++
			s.logger.Error("batch transition failed for instance",
				zap.String("instance_id", id.String()),
				zap.String("to", next.String()),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		s.logger.Warn("batch transition completed with failures",
			zap.Int("total", len(instanceIDs)),
			zap.Int("failed", failed),
			zap.String("to", next.String()),
		)
	}
	return nil
}

// settle applies the cross-context effects of a completed instance: the
// platform fee split, the store ledger credit, the optional gift asset and
// the member-level change. The whole block is guarded by a settlement
// marker keyed on the instance id, and each collaborator call carries that
// key, so retries apply every effect at most once.
func (s *InstanceService) settle(ctx context.Context, inst *marketing.ActivityInstance) error {
	key := fmt.Sprintf("settlement:%s", inst.ID)

	done, err := s.settlements.IsProcessed(ctx, key)
	if err != nil {
		return marketing.NewSettlementFailureError(inst.ID, err)
	}
	if done {
		return nil
	}

	cfg, err := s.configs.FindByIDForTenant(ctx, inst.TenantID, inst.ConfigID)
	if err != nil {
		return marketing.NewSettlementFailureError(inst.ID, err)
	}

	gross := inst.Data.Decimal(marketing.DataKeyPrice)
	fee := gross.Mul(s.settings.PlatformFeeRate).Round(2)
	net := gross.Sub(fee)

	if net.IsPositive() {
		amount := valueobject.NewMoneyCNY(net)
		if err := s.ledger.Credit(ctx, key, inst.TenantID, cfg.StoreID, amount); err != nil {
			return marketing.NewSettlementFailureError(inst.ID, err)
		}
	}

	gift, err := cfg.GiftAssetRule()
	if err != nil {
		return marketing.NewSettlementFailureError(inst.ID, err)
	}
	if gift != nil {
		grant := AssetGrant{AssetType: gift.AssetType, Balance: gift.Balance}
		if err := s.fulfillment.IssueAsset(ctx, key, inst.TenantID, inst.MemberID, grant); err != nil {
			return marketing.NewSettlementFailureError(inst.ID, err)
		}
	}

	if inst.TemplateCode == marketing.TemplateMemberUpgrade {
		level, _ := inst.Data[marketing.DataKeyTargetLevel].(string)
		if err := s.fulfillment.UpgradeMember(ctx, key, inst.TenantID, inst.MemberID, level); err != nil {
			return marketing.NewSettlementFailureError(inst.ID, err)
		}
	}

	if _, err := s.settlements.MarkProcessed(ctx, key, s.settings.SettlementDedupeTTL); err != nil {
		return marketing.NewSettlementFailureError(inst.ID, err)
	}

	if s.publisher != nil {
		event := marketing.NewInstanceSettledEvent(inst, cfg.StoreID, gross, net)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish settlement event",
				zap.String("instance_id", inst.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("instance settled",
		zap.String("instance_id", inst.ID.String()),
		zap.String("gross", gross.String()),
		zap.String("net", net.String()),
	)
	return nil
}

// ExpirePendingInstances sweeps unpaid instances past the payment deadline
// into TIMEOUT. Returns the number of instances expired; individual
// failures are logged and skipped.
func (s *InstanceService) ExpirePendingInstances(ctx context.Context, tenantID uuid.UUID, limit int) (int, error) {
	cutoff := time.Now().Add(-s.settings.PendingPayTimeout)
	pending, err := s.instances.FindPendingBefore(ctx, tenantID, cutoff, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for idx := range pending {
		if _, err := s.TransitStatus(ctx, tenantID, pending[idx].ID, marketing.StatusTimeout, nil); err != nil {
			s.logger.Error("failed to expire pending instance",
				zap.String("instance_id", pending[idx].ID.String()),
				zap.Error(err),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

// SeedInventory (re)materializes the cached remaining count from the
// activity's authoritative rule-bag stock
func (s *InstanceService) SeedInventory(ctx context.Context, tenantID, configID uuid.UUID) error {
	cfg, err := s.configs.FindByIDForTenant(ctx, tenantID, configID)
	if err != nil {
		return err
	}
	stock, err := cfg.AuthoritativeStock()
	if err != nil {
		return err
	}
	return s.inventory.Seed(ctx, configID, stock)
}

// GetInventory reads the cached remaining count for an activity
func (s *InstanceService) GetInventory(ctx context.Context, tenantID, configID uuid.UUID) (*InventoryResponse, error) {
	if _, err := s.configs.FindByIDForTenant(ctx, tenantID, configID); err != nil {
		return nil, err
	}
	remaining, cached, err := s.inventory.Remaining(ctx, configID)
	if err != nil {
		return nil, err
	}
	return &InventoryResponse{ConfigID: configID, Remaining: remaining, Cached: cached}, nil
}

// QuotePrice computes the payable amount without creating anything. This is
// the only execution path for instance-less templates such as full
// reduction.
func (s *InstanceService) QuotePrice(ctx context.Context, tenantID, memberID uuid.UUID, req QuotePriceRequest) (*QuotePriceResponse, error) {
	cfg, err := s.configs.FindByIDForTenant(ctx, tenantID, req.ConfigID)
	if err != nil {
		return nil, err
	}
	strategy, err := s.factory.GetStrategy(cfg.TemplateCode)
	if err != nil {
		return nil, err
	}

	params := marketing.JoinParams{
		GroupID:     req.GroupID,
		SKUID:       req.SKUID,
		Quantity:    req.Quantity,
		OrderAmount: req.OrderAmount,
	}
	if err := strategy.ValidateJoin(ctx, cfg, memberID, params); err != nil {
		return nil, err
	}
	price, err := strategy.CalculatePrice(cfg, params)
	if err != nil {
		return nil, err
	}
	return &QuotePriceResponse{ConfigID: cfg.ID, Price: price}, nil
}

// ValidateConfigDraft runs the template's authoring-time rule validation
// against an unpublished draft
func (s *InstanceService) ValidateConfigDraft(ctx context.Context, tenantID uuid.UUID, req ValidateConfigDraftRequest) error {
	strategy, err := s.factory.GetStrategy(req.TemplateCode)
	if err != nil {
		return err
	}
	if req.StockMode != "" && !req.StockMode.IsValid() {
		return shared.NewDomainError("INVALID_RULES",
			fmt.Sprintf("Unknown stock mode %s", req.StockMode))
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && !req.EndTime.After(req.StartTime) {
		return shared.NewDomainError("INVALID_RULES", "Activity end time must be after start time")
	}

	draft := &marketing.ActivityConfig{
		TenantID:     tenantID,
		TemplateCode: req.TemplateCode,
		StockMode:    req.StockMode,
		Rules:        marketing.RuleBag(req.Rules),
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}
	if validator, ok := strategy.(marketing.ConfigValidator); ok {
		return validator.ValidateConfig(draft)
	}
	return nil
}

// GetInstance retrieves one instance by id
func (s *InstanceService) GetInstance(ctx context.Context, tenantID, instanceID uuid.UUID) (*InstanceResponse, error) {
	inst, err := s.instances.FindByIDForTenant(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	resp := ToInstanceResponse(inst)
	return &resp, nil
}

// GetGroupProgress returns the group roster and headcount for a group-buy
// group
func (s *InstanceService) GetGroupProgress(ctx context.Context, tenantID, groupID uuid.UUID) (*GroupProgressResponse, error) {
	members, err := s.instances.FindByGroupID(ctx, tenantID, groupID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, shared.NewDomainError("NOT_FOUND", fmt.Sprintf("Group %s does not exist", groupID))
	}

	resp := &GroupProgressResponse{
		GroupID: groupID,
		Members: ToInstanceResponses(members),
	}
	for idx := range members {
		if members[idx].IsLeader() {
			resp.LeaderID = members[idx].ID
			resp.CurrentCount = members[idx].Data.Int64(marketing.DataKeyCurrentCount)
			resp.TargetCount = members[idx].Data.Int64(marketing.DataKeyTargetCount)
		}
	}
	return resp, nil
}

// GetDisplayData returns the storefront projection for an activity
func (s *InstanceService) GetDisplayData(ctx context.Context, tenantID, configID uuid.UUID) (map[string]interface{}, error) {
	cfg, err := s.configs.FindByIDForTenant(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}
	strategy, err := s.factory.GetStrategy(cfg.TemplateCode)
	if err != nil {
		return nil, err
	}
	provider, ok := strategy.(marketing.DisplayDataProvider)
	if !ok {
		return map[string]interface{}{}, nil
	}
	return provider.GetDisplayData(cfg)
}

// ListTemplates returns every registered activity template
func (s *InstanceService) ListTemplates() []TemplateResponse {
	metas := s.factory.ListMetadata()
	out := make([]TemplateResponse, len(metas))
	for idx, meta := range metas {
		out[idx] = ToTemplateResponse(meta)
	}
	return out
}

// publishEvents flushes an aggregate's pending domain events
func (s *InstanceService) publishEvents(ctx context.Context, inst *marketing.ActivityInstance) {
	if s.publisher == nil {
		inst.ClearDomainEvents()
		return
	}
	events := inst.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish domain events",
			zap.String("instance_id", inst.ID.String()),
			zap.Error(err),
		)
	}
	inst.ClearDomainEvents()
}

// interface guard
var _ marketing.TransitionPort = (*InstanceService)(nil)
