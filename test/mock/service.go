// test/mock/service.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloudscope/armproxy/api/model"
)

// MockAzureService is a mock implementation of service.IAzureService
type MockAzureService struct {
	mock.Mock
}

func (m *MockAzureService) ListSubscriptions(ctx context.Context, refresh bool) ([]model.Subscription, error) {
	args := m.Called(ctx, refresh)
	subs, _ := args.Get(0).([]model.Subscription)
	return subs, args.Error(1)
}

func (m *MockAzureService) ListResourceGroups(ctx context.Context, subscriptionID string, refresh bool) ([]model.ResourceGroup, error) {
	args := m.Called(ctx, subscriptionID, refresh)
	groups, _ := args.Get(0).([]model.ResourceGroup)
	return groups, args.Error(1)
}

func (m *MockAzureService) ListVirtualMachines(ctx context.Context, subscriptionID, resourceGroup string, refresh bool) ([]model.VirtualMachine, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, refresh)
	vms, _ := args.Get(0).([]model.VirtualMachine)
	return vms, args.Error(1)
}

func (m *MockAzureService) GetVirtualMachineDetail(ctx context.Context, subscriptionID, resourceGroup, vmName string, refresh bool) (*model.VirtualMachineDetail, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, vmName, refresh)
	detail, _ := args.Get(0).(*model.VirtualMachineDetail)
	return detail, args.Error(1)
}

func (m *MockAzureService) GetVMEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, vmName string, refresh bool) ([]model.Route, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, vmName, refresh)
	routes, _ := args.Get(0).([]model.Route)
	return routes, args.Error(1)
}

func (m *MockAzureService) GetNicEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, nicName string, refresh bool) ([]model.Route, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, nicName, refresh)
	routes, _ := args.Get(0).([]model.Route)
	return routes, args.Error(1)
}

func (m *MockAzureService) ListRouteTables(ctx context.Context, subscriptionID string, refresh bool) ([]model.RouteTableSummary, error) {
	args := m.Called(ctx, subscriptionID, refresh)
	tables, _ := args.Get(0).([]model.RouteTableSummary)
	return tables, args.Error(1)
}

func (m *MockAzureService) GetRouteTableDetail(ctx context.Context, subscriptionID, resourceGroup, routeTableName string, refresh bool) (*model.RouteTable, error) {
	args := m.Called(ctx, subscriptionID, resourceGroup, routeTableName, refresh)
	table, _ := args.Get(0).(*model.RouteTable)
	return table, args.Error(1)
}

// MockProjectionService is a mock implementation of service.IProjectionService
type MockProjectionService struct {
	mock.Mock
}

func (m *MockProjectionService) ListAllVirtualMachines(ctx context.Context, refresh bool) ([]model.VirtualMachineWithContext, error) {
	args := m.Called(ctx, refresh)
	vms, _ := args.Get(0).([]model.VirtualMachineWithContext)
	return vms, args.Error(1)
}

func (m *MockProjectionService) GetVirtualMachineByName(ctx context.Context, vmName string, refresh bool) (*model.VirtualMachineDetail, error) {
	args := m.Called(ctx, vmName, refresh)
	detail, _ := args.Get(0).(*model.VirtualMachineDetail)
	return detail, args.Error(1)
}

func (m *MockProjectionService) ListHostnames(ctx context.Context, refresh bool) ([]model.VirtualMachineHostname, error) {
	args := m.Called(ctx, refresh)
	hostnames, _ := args.Get(0).([]model.VirtualMachineHostname)
	return hostnames, args.Error(1)
}

func (m *MockProjectionService) GetVirtualMachineReport(ctx context.Context, refresh bool) ([]model.VirtualMachineReport, error) {
	args := m.Called(ctx, refresh)
	report, _ := args.Get(0).([]model.VirtualMachineReport)
	return report, args.Error(1)
}
