// api/service/azure_service_test.go
package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloudscope/armproxy/api/cache"
	proxy_errors "github.com/cloudscope/armproxy/api/errors"
	logger "github.com/cloudscope/armproxy/api/logging"
	"github.com/cloudscope/armproxy/api/model"
	"github.com/cloudscope/armproxy/api/service"
	"github.com/cloudscope/armproxy/api/test/mock"
	"github.com/cloudscope/armproxy/api/util"
)

func newTestService(t *testing.T, provider *mock.MockProvider) service.IAzureService {
	t.Helper()
	logger.InitLogger(t.TempDir())
	store := cache.NewStore(time.Minute, 5*time.Second, nil)
	return service.NewAzureResourceService(provider, store, util.NewValidationUtil(), nil)
}

func baseVM() *model.VirtualMachine {
	return &model.VirtualMachine{
		ID:         "/subscriptions/sub-1/resourceGroups/rg-1/providers/Microsoft.Compute/virtualMachines/web-01",
		Name:       "web-01",
		Location:   "eastus",
		VMSize:     "Standard_D2s_v3",
		OSType:     "Linux",
		PowerState: "running",
		Hostname:   "web-01.internal",
	}
}

func expectSubResources(provider *mock.MockProvider) {
	provider.On("GetNetworkInterfaces", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return([]model.NetworkInterface{{Name: "nic-0", PrivateIPAddresses: []string{"10.0.0.4"}}}, nil)
	provider.On("GetEffectiveNsgRules", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return([]model.NsgRule{{Name: "allow-ssh", Direction: "Inbound", Protocol: "Tcp", PortRange: "22", Access: "Allow"}}, nil)
	provider.On("GetEffectiveRoutes", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return([]model.Route{{Name: "default", AddressPrefix: "0.0.0.0/0", NextHopType: "Internet", RouteOrigin: "Default"}}, nil)
	provider.On("GetDirectoryGroups", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return([]model.AadGroup{{ID: "aad-1", DisplayName: "vm-admins"}}, nil)
}

func TestGetVirtualMachineDetailAssemblesComposite(t *testing.T) {
	provider := new(mock.MockProvider)
	provider.On("GetVirtualMachine", tmock.Anything, "sub-1", "rg-1", "web-01").Return(baseVM(), nil)
	expectSubResources(provider)
	svc := newTestService(t, provider)

	detail, err := svc.GetVirtualMachineDetail(context.Background(), "sub-1", "rg-1", "web-01", false)
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, "web-01", detail.Name)
	assert.Equal(t, "web-01.internal", detail.Hostname)
	require.Len(t, detail.NetworkInterfaces, 1)
	assert.Equal(t, "nic-0", detail.NetworkInterfaces[0].Name)
	require.Len(t, detail.EffectiveNsgRules, 1)
	assert.Equal(t, "allow-ssh", detail.EffectiveNsgRules[0].Name)
	require.Len(t, detail.EffectiveRoutes, 1)
	require.Len(t, detail.AadGroups, 1)
	provider.AssertExpectations(t)
}

func TestGetVirtualMachineDetailSingleFlight(t *testing.T) {
	provider := new(mock.MockProvider)
	// Each upstream call takes long enough for every concurrent caller to
	// attach to the fetch already in flight.
	provider.On("GetVirtualMachine", tmock.Anything, "sub-1", "rg-1", "web-01").
		After(40*time.Millisecond).Return(baseVM(), nil)
	provider.On("GetNetworkInterfaces", tmock.Anything, "sub-1", "rg-1", "web-01").
		After(40*time.Millisecond).Return([]model.NetworkInterface{}, nil)
	provider.On("GetEffectiveNsgRules", tmock.Anything, "sub-1", "rg-1", "web-01").
		After(40*time.Millisecond).Return([]model.NsgRule{}, nil)
	provider.On("GetEffectiveRoutes", tmock.Anything, "sub-1", "rg-1", "web-01").
		After(40*time.Millisecond).Return([]model.Route{}, nil)
	provider.On("GetDirectoryGroups", tmock.Anything, "sub-1", "rg-1", "web-01").
		After(40*time.Millisecond).Return([]model.AadGroup{}, nil)
	svc := newTestService(t, provider)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.GetVirtualMachineDetail(context.Background(), "sub-1", "rg-1", "web-01", false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	provider.AssertNumberOfCalls(t, "GetVirtualMachine", 1)
	provider.AssertNumberOfCalls(t, "GetNetworkInterfaces", 1)
	provider.AssertNumberOfCalls(t, "GetEffectiveNsgRules", 1)
	provider.AssertNumberOfCalls(t, "GetEffectiveRoutes", 1)
	provider.AssertNumberOfCalls(t, "GetDirectoryGroups", 1)
}

func TestGetVirtualMachineDetailDegradesFailedSubResource(t *testing.T) {
	provider := new(mock.MockProvider)
	provider.On("GetVirtualMachine", tmock.Anything, "sub-1", "rg-1", "web-01").Return(baseVM(), nil)
	provider.On("GetNetworkInterfaces", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return([]model.NetworkInterface{{Name: "nic-0"}}, nil)
	provider.On("GetEffectiveNsgRules", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return(nil, proxy_errors.ErrUpstreamUnavailable)
	provider.On("GetEffectiveRoutes", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return([]model.Route{{Name: "default"}}, nil)
	provider.On("GetDirectoryGroups", tmock.Anything, "sub-1", "rg-1", "web-01").
		Return([]model.AadGroup{{ID: "aad-1"}}, nil)
	svc := newTestService(t, provider)

	detail, err := svc.GetVirtualMachineDetail(context.Background(), "sub-1", "rg-1", "web-01", false)
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, []model.NsgRule{}, detail.EffectiveNsgRules)
	assert.Len(t, detail.NetworkInterfaces, 1)
	assert.Len(t, detail.EffectiveRoutes, 1)
	assert.Len(t, detail.AadGroups, 1)
}

func TestGetVirtualMachineDetailFailsWhenBaseFetchFails(t *testing.T) {
	provider := new(mock.MockProvider)
	provider.On("GetVirtualMachine", tmock.Anything, "sub-1", "rg-1", "gone-vm").
		Return(nil, proxy_errors.ErrResourceNotFound)
	svc := newTestService(t, provider)

	detail, err := svc.GetVirtualMachineDetail(context.Background(), "sub-1", "rg-1", "gone-vm", false)
	assert.Nil(t, detail)
	assert.ErrorIs(t, err, proxy_errors.ErrResourceNotFound)
	provider.AssertNotCalled(t, "GetNetworkInterfaces", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestListResourceGroupsUnknownSubscription(t *testing.T) {
	provider := new(mock.MockProvider)
	provider.On("ListResourceGroups", tmock.Anything, "nonexistent-sub").
		Return(nil, proxy_errors.ErrResourceNotFound)
	svc := newTestService(t, provider)

	groups, err := svc.ListResourceGroups(context.Background(), "nonexistent-sub", false)
	assert.Nil(t, groups)
	assert.Equal(t, proxy_errors.KindNotFound, proxy_errors.Classify(err))
}

func TestListResourceGroupsRejectsMalformedID(t *testing.T) {
	provider := new(mock.MockProvider)
	svc := newTestService(t, provider)

	_, err := svc.ListResourceGroups(context.Background(), "not a/subscription", false)
	assert.ErrorIs(t, err, proxy_errors.ErrInvalidSubscriptionID)
	provider.AssertNotCalled(t, "ListResourceGroups", tmock.Anything, tmock.Anything)
}

func TestListSubscriptionsCachesSecondCall(t *testing.T) {
	provider := new(mock.MockProvider)
	provider.On("ListSubscriptions", tmock.Anything).
		Return([]model.Subscription{{ID: "sub-1", Name: "prod"}}, nil)
	svc := newTestService(t, provider)

	first, err := svc.ListSubscriptions(context.Background(), false)
	require.NoError(t, err)
	second, err := svc.ListSubscriptions(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	provider.AssertNumberOfCalls(t, "ListSubscriptions", 1)
}

func TestGetRouteTableDetail(t *testing.T) {
	provider := new(mock.MockProvider)
	table := &model.RouteTable{
		RouteTableSummary: model.RouteTableSummary{
			ID:            "/subscriptions/sub-1/resourceGroups/rg-1/providers/Microsoft.Network/routeTables/rt-1",
			Name:          "rt-1",
			Location:      "eastus",
			ResourceGroup: "rg-1",
			RouteCount:    1,
			SubnetCount:   1,
		},
		Routes:  []model.Route{{Name: "to-firewall", AddressPrefix: "0.0.0.0/0", NextHopType: "VirtualAppliance", NextHopIP: "10.0.1.4"}},
		Subnets: []string{"/subscriptions/sub-1/resourceGroups/rg-1/providers/Microsoft.Network/virtualNetworks/vnet/subnets/app"},
	}
	provider.On("GetRouteTableDetail", tmock.Anything, "sub-1", "rg-1", "rt-1").Return(table, nil)
	svc := newTestService(t, provider)

	got, err := svc.GetRouteTableDetail(context.Background(), "sub-1", "rg-1", "rt-1", false)
	require.NoError(t, err)
	assert.Equal(t, table, got)

	// Cached on the second read.
	_, err = svc.GetRouteTableDetail(context.Background(), "sub-1", "rg-1", "rt-1", false)
	require.NoError(t, err)
	provider.AssertNumberOfCalls(t, "GetRouteTableDetail", 1)
}
