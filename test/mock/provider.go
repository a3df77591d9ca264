// test/mock/provider.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloudscope/armproxy/api/model"
)

// MockProvider is a mock implementation of upstream.Provider. Call
// counts are tracked by testify, so tests can assert how many upstream
// fetches a cached path actually performed.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	args := m.Called(ctx)
	subs, _ := args.Get(0).([]model.Subscription)
	return subs, args.Error(1)
}

func (m *MockProvider) ListResourceGroups(ctx context.Context, subscriptionID string) ([]model.ResourceGroup, error) {
	args := m.Called(ctx, subscriptionID)
	groups, _ := args.Get(0).([]model.ResourceGroup)
	return groups, args.Error(1)
}

func (m *MockProvider) ListVirtualMachines(ctx context.Context, subscriptionID, resourceGroup string) ([]model.VirtualMachine, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup)
	vms, _ := args.Get(0).([]model.VirtualMachine)
	return vms, args.Error(1)
}

func (m *MockProvider) GetVirtualMachine(ctx context.Context, subscriptionID, resourceGroup, vmName string) (*model.VirtualMachine, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, vmName)
	vm, _ := args.Get(0).(*model.VirtualMachine)
	return vm, args.Error(1)
}

func (m *MockProvider) GetNetworkInterfaces(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NetworkInterface, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, vmName)
	nics, _ := args.Get(0).([]model.NetworkInterface)
	return nics, args.Error(1)
}

func (m *MockProvider) GetEffectiveNsgRules(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NsgRule, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, vmName)
	rules, _ := args.Get(0).([]model.NsgRule)
	return rules, args.Error(1)
}

func (m *MockProvider) GetEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.Route, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, vmName)
	routes, _ := args.Get(0).([]model.Route)
	return routes, args.Error(1)
}

func (m *MockProvider) GetNicEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, nicName string) ([]model.Route, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, nicName)
	routes, _ := args.Get(0).([]model.Route)
	return routes, args.Error(1)
}

func (m *MockProvider) GetDirectoryGroups(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.AadGroup, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, vmName)
	groups, _ := args.Get(0).([]model.AadGroup)
	return groups, args.Error(1)
}

func (m *MockProvider) ListRouteTables(ctx context.Context, subscriptionID string) ([]model.RouteTableSummary, error) {
	args := m.Called(ctx, subscriptionID)
	tables, _ := args.Get(0).([]model.RouteTableSummary)
	return tables, args.Error(1)
}

func (m *MockProvider) GetRouteTableDetail(ctx context.Context, subscriptionID, resourceGroup, routeTableName string) (*model.RouteTable, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, routeTableName)
	table, _ := args.Get(0).(*model.RouteTable)
	return table, args.Error(1)
}
