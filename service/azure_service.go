// api/service/azure_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cloudscope/armproxy/api/audit"
	"github.com/cloudscope/armproxy/api/cache"
	logger "github.com/cloudscope/armproxy/api/logging"
	"github.com/cloudscope/armproxy/api/model"
	"github.com/cloudscope/armproxy/api/upstream"
	"github.com/cloudscope/armproxy/api/util"
)

// IAzureService is the hierarchical resource view: subscriptions down to
// composite VM and route-table detail records, all cache-backed.
type IAzureService interface {
	ListSubscriptions(ctx context.Context, refresh bool) ([]model.Subscription, error)
	ListResourceGroups(ctx context.Context, subscriptionID string, refresh bool) ([]model.ResourceGroup, error)
	ListVirtualMachines(ctx context.Context, subscriptionID, resourceGroup string, refresh bool) ([]model.VirtualMachine, error)
	GetVirtualMachineDetail(ctx context.Context, subscriptionID, resourceGroup, vmName string, refresh bool) (*model.VirtualMachineDetail, error)
	GetVMEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, vmName string, refresh bool) ([]model.Route, error)
	GetNicEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, nicName string, refresh bool) ([]model.Route, error)
	ListRouteTables(ctx context.Context, subscriptionID string, refresh bool) ([]model.RouteTableSummary, error)
	GetRouteTableDetail(ctx context.Context, subscriptionID, resourceGroup, routeTableName string, refresh bool) (*model.RouteTable, error)
}

// AzureResourceService resolves resource views through the cache store,
// falling through to the upstream provider on miss, expiry, or forced
// refresh. It holds the only references to cache internals.
type AzureResourceService struct {
	provider       upstream.Provider
	store          *cache.Store
	validationUtil *util.ValidationUtil
	eventBus       *util.EventBus
}

// NewAzureResourceService creates a new instance of AzureResourceService.
// eventBus may be nil when no fetch auditing is wanted.
func NewAzureResourceService(provider upstream.Provider, store *cache.Store, validationUtil *util.ValidationUtil, eventBus *util.EventBus) *AzureResourceService {
	return &AzureResourceService{
		provider:       provider,
		store:          store,
		validationUtil: validationUtil,
		eventBus:       eventBus,
	}
}

// fetchCached resolves one resource key through the cache, wrapping the
// loader so every real upstream fetch is published to the event bus.
func fetchCached[T any](ctx context.Context, s *AzureResourceService, key cache.ResourceKey, refresh bool, load func(ctx context.Context) (T, error)) (T, error) {
	return cache.Fetch(ctx, s.store, key, refresh, func(ctx context.Context) (T, error) {
		start := time.Now()
		value, err := load(ctx)
		s.publishFetch(key, refresh, time.Since(start), err)
		return value, err
	})
}

func (s *AzureResourceService) publishFetch(key cache.ResourceKey, refresh bool, elapsed time.Duration, err error) {
	if s.eventBus == nil {
		return
	}
	record := audit.FetchRecord{
		Timestamp:   time.Now(),
		ResourceKey: key.String(),
		Kind:        string(key.Kind),
		Refresh:     refresh,
		DurationMs:  elapsed.Milliseconds(),
		Outcome:     "success",
	}
	if err != nil {
		record.Outcome = "failure"
		record.Error = err.Error()
	}
	s.eventBus.Publish(context.Background(), audit.EventUpstreamFetch, record)
}

func (s *AzureResourceService) ListSubscriptions(ctx context.Context, refresh bool) ([]model.Subscription, error) {
	key := cache.ResourceKey{Kind: cache.KindSubscriptions}
	return fetchCached(ctx, s, key, refresh, func(ctx context.Context) ([]model.Subscription, error) {
		return s.provider.ListSubscriptions(ctx)
	})
}

func (s *AzureResourceService) ListResourceGroups(ctx context.Context, subscriptionID string, refresh bool) ([]model.ResourceGroup, error) {
	if err := s.validationUtil.ValidateSubscriptionID(subscriptionID); err != nil {
		return nil, err
	}
	key := cache.ResourceKey{Kind: cache.KindResourceGroups, SubscriptionID: subscriptionID}
	return fetchCached(ctx, s, key, refresh, func(ctx context.Context) ([]model.ResourceGroup, error) {
		return s.provider.ListResourceGroups(ctx, subscriptionID)
	})
}

func (s *AzureResourceService) ListVirtualMachines(ctx context.Context, subscriptionID, resourceGroup string, refresh bool) ([]model.VirtualMachine, error) {
	if err := s.validateGroupScope(subscriptionID, resourceGroup); err != nil {
		return nil, err
	}
	key := cache.ResourceKey{Kind: cache.KindVirtualMachines, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup}
	return fetchCached(ctx, s, key, refresh, func(ctx context.Context) ([]model.VirtualMachine, error) {
		return s.provider.ListVirtualMachines(ctx, subscriptionID, resourceGroup)
	})
}

// GetVirtualMachineDetail assembles the composite VM record. The base
// summary fetch is authoritative: if it fails, the whole call fails. The
// four sub-resource fetches run concurrently, each under its own cache
// key; a failed sub-fetch degrades that field to an empty collection and
// is logged as a warning, never failing the composite.
func (s *AzureResourceService) GetVirtualMachineDetail(ctx context.Context, subscriptionID, resourceGroup, vmName string, refresh bool) (*model.VirtualMachineDetail, error) {
	if err := s.validateVMScope(subscriptionID, resourceGroup, vmName); err != nil {
		return nil, err
	}

	vmKey := cache.ResourceKey{Kind: cache.KindVirtualMachine, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: vmName}
	vm, err := fetchCached(ctx, s, vmKey, refresh, func(ctx context.Context) (*model.VirtualMachine, error) {
		return s.provider.GetVirtualMachine(ctx, subscriptionID, resourceGroup, vmName)
	})
	if err != nil {
		return nil, err
	}

	var (
		nics     []model.NetworkInterface
		nsgRules []model.NsgRule
		routes   []model.Route
		groups   []model.AadGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		key := cache.ResourceKey{Kind: cache.KindNetworkInterfaces, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: vmName}
		nics = subFetch(gctx, s, key, refresh, vmName, func(ctx context.Context) ([]model.NetworkInterface, error) {
			return s.provider.GetNetworkInterfaces(ctx, subscriptionID, resourceGroup, vmName)
		})
		return nil
	})
	g.Go(func() error {
		key := cache.ResourceKey{Kind: cache.KindNsgRules, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: vmName}
		nsgRules = subFetch(gctx, s, key, refresh, vmName, func(ctx context.Context) ([]model.NsgRule, error) {
			return s.provider.GetEffectiveNsgRules(ctx, subscriptionID, resourceGroup, vmName)
		})
		return nil
	})
	g.Go(func() error {
		key := cache.ResourceKey{Kind: cache.KindEffectiveRoutes, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: vmName}
		routes = subFetch(gctx, s, key, refresh, vmName, func(ctx context.Context) ([]model.Route, error) {
			return s.provider.GetEffectiveRoutes(ctx, subscriptionID, resourceGroup, vmName)
		})
		return nil
	})
	g.Go(func() error {
		key := cache.ResourceKey{Kind: cache.KindAadGroups, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: vmName}
		groups = subFetch(gctx, s, key, refresh, vmName, func(ctx context.Context) ([]model.AadGroup, error) {
			return s.provider.GetDirectoryGroups(ctx, subscriptionID, resourceGroup, vmName)
		})
		return nil
	})
	g.Wait()

	detail := &model.VirtualMachineDetail{
		VirtualMachine:    *vm,
		NetworkInterfaces: nics,
		EffectiveNsgRules: nsgRules,
		EffectiveRoutes:   routes,
		AadGroups:         groups,
	}
	logger.Info("Assembled VM detail",
		zap.String("subscriptionID", subscriptionID),
		zap.String("resourceGroup", resourceGroup),
		zap.String("vmName", vmName))
	return detail, nil
}

// subFetch runs one composite sub-resource fetch, absorbing failures into
// an empty collection so the composite record still returns whatever
// succeeded.
func subFetch[S any](ctx context.Context, s *AzureResourceService, key cache.ResourceKey, refresh bool, vmName string, load func(ctx context.Context) ([]S, error)) []S {
	values, err := fetchCached(ctx, s, key, refresh, load)
	if err != nil {
		logger.Warn("Sub-resource fetch failed, degrading to empty collection",
			zap.String("key", key.String()),
			zap.String("vmName", vmName),
			zap.Error(err))
		return []S{}
	}
	if values == nil {
		return []S{}
	}
	return values
}

func (s *AzureResourceService) GetVMEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, vmName string, refresh bool) ([]model.Route, error) {
	if err := s.validateVMScope(subscriptionID, resourceGroup, vmName); err != nil {
		return nil, err
	}
	key := cache.ResourceKey{Kind: cache.KindEffectiveRoutes, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: vmName}
	return fetchCached(ctx, s, key, refresh, func(ctx context.Context) ([]model.Route, error) {
		return s.provider.GetEffectiveRoutes(ctx, subscriptionID, resourceGroup, vmName)
	})
}

func (s *AzureResourceService) GetNicEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, nicName string, refresh bool) ([]model.Route, error) {
	if err := s.validateVMScope(subscriptionID, resourceGroup, nicName); err != nil {
		return nil, err
	}
	key := cache.ResourceKey{Kind: cache.KindNicRoutes, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: nicName}
	return fetchCached(ctx, s, key, refresh, func(ctx context.Context) ([]model.Route, error) {
		return s.provider.GetNicEffectiveRoutes(ctx, subscriptionID, resourceGroup, nicName)
	})
}

func (s *AzureResourceService) ListRouteTables(ctx context.Context, subscriptionID string, refresh bool) ([]model.RouteTableSummary, error) {
	if err := s.validationUtil.ValidateSubscriptionID(subscriptionID); err != nil {
		return nil, err
	}
	key := cache.ResourceKey{Kind: cache.KindRouteTables, SubscriptionID: subscriptionID}
	return fetchCached(ctx, s, key, refresh, func(ctx context.Context) ([]model.RouteTableSummary, error) {
		return s.provider.ListRouteTables(ctx, subscriptionID)
	})
}

func (s *AzureResourceService) GetRouteTableDetail(ctx context.Context, subscriptionID, resourceGroup, routeTableName string, refresh bool) (*model.RouteTable, error) {
	if err := s.validateVMScope(subscriptionID, resourceGroup, routeTableName); err != nil {
		return nil, err
	}
	key := cache.ResourceKey{Kind: cache.KindRouteTable, SubscriptionID: subscriptionID, ResourceGroup: resourceGroup, Resource: routeTableName}
	return fetchCached(ctx, s, key, refresh, func(ctx context.Context) (*model.RouteTable, error) {
		return s.provider.GetRouteTableDetail(ctx, subscriptionID, resourceGroup, routeTableName)
	})
}

func (s *AzureResourceService) validateGroupScope(subscriptionID, resourceGroup string) error {
	if err := s.validationUtil.ValidateSubscriptionID(subscriptionID); err != nil {
		return err
	}
	return s.validationUtil.ValidateResourceGroupName(resourceGroup)
}

func (s *AzureResourceService) validateVMScope(subscriptionID, resourceGroup, resourceName string) error {
	if err := s.validateGroupScope(subscriptionID, resourceGroup); err != nil {
		return err
	}
	return s.validationUtil.ValidateResourceName(resourceName)
}
