// api/upstream/mock.go
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	proxy_errors "github.com/cloudscope/armproxy/api/errors"
	logger "github.com/cloudscope/armproxy/api/logging"
	"github.com/cloudscope/armproxy/api/model"
)

// MockProvider serves deterministic fixture data from a directory tree:
//
//	<root>/subscriptions.json
//	<root>/<subscriptionId>/resource_groups.json
//	<root>/<subscriptionId>/route_tables.json
//	<root>/<subscriptionId>/<resourceGroup>/virtual_machines.json
//	<root>/<subscriptionId>/<resourceGroup>/route_tables/<name>.json
//	<root>/<subscriptionId>/<resourceGroup>/<vmName>/vm.json
//	<root>/<subscriptionId>/<resourceGroup>/<vmName>/network_interfaces.json
//	<root>/<subscriptionId>/<resourceGroup>/<vmName>/nsg_rules.json
//	<root>/<subscriptionId>/<resourceGroup>/<vmName>/routes.json
//	<root>/<subscriptionId>/<resourceGroup>/<vmName>/aad_groups.json
//	<root>/<subscriptionId>/<resourceGroup>/nics/<nicName>_routes.json
//
// A missing file fails fast with ErrResourceNotFound; there are no
// retries and no network dependency.
type MockProvider struct {
	fixturesDir string
}

func NewMockProvider(fixturesDir string) *MockProvider {
	logger.Info("Mock provider initialized", zap.String("fixturesDir", fixturesDir))
	return &MockProvider{fixturesDir: fixturesDir}
}

// readFixture decodes one fixture file into out. Absent paths map to
// ErrResourceNotFound so callers behave exactly like an unknown live
// resource.
func (p *MockProvider) readFixture(path string, out interface{}) error {
	data, err := os.ReadFile(filepath.Join(p.fixturesDir, path))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: fixture %s", proxy_errors.ErrResourceNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode fixture %s: %w", path, err)
	}
	return nil
}

func (p *MockProvider) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var subscriptions []model.Subscription
	if err := p.readFixture("subscriptions.json", &subscriptions); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (p *MockProvider) ListResourceGroups(ctx context.Context, subscriptionID string) ([]model.ResourceGroup, error) {
	var groups []model.ResourceGroup
	if err := p.readFixture(filepath.Join(subscriptionID, "resource_groups.json"), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (p *MockProvider) ListVirtualMachines(ctx context.Context, subscriptionID, resourceGroup string) ([]model.VirtualMachine, error) {
	var machines []model.VirtualMachine
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, "virtual_machines.json"), &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

func (p *MockProvider) GetVirtualMachine(ctx context.Context, subscriptionID, resourceGroup, vmName string) (*model.VirtualMachine, error) {
	var vm model.VirtualMachine
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, vmName, "vm.json"), &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

func (p *MockProvider) GetNetworkInterfaces(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NetworkInterface, error) {
	var nics []model.NetworkInterface
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, vmName, "network_interfaces.json"), &nics); err != nil {
		return nil, err
	}
	return nics, nil
}

func (p *MockProvider) GetEffectiveNsgRules(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NsgRule, error) {
	var rules []model.NsgRule
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, vmName, "nsg_rules.json"), &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (p *MockProvider) GetEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.Route, error) {
	var routes []model.Route
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, vmName, "routes.json"), &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func (p *MockProvider) GetNicEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, nicName string) ([]model.Route, error) {
	var routes []model.Route
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, "nics", nicName+"_routes.json"), &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func (p *MockProvider) GetDirectoryGroups(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.AadGroup, error) {
	var groups []model.AadGroup
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, vmName, "aad_groups.json"), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (p *MockProvider) ListRouteTables(ctx context.Context, subscriptionID string) ([]model.RouteTableSummary, error) {
	var tables []model.RouteTableSummary
	if err := p.readFixture(filepath.Join(subscriptionID, "route_tables.json"), &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (p *MockProvider) GetRouteTableDetail(ctx context.Context, subscriptionID, resourceGroup, routeTableName string) (*model.RouteTable, error) {
	var table model.RouteTable
	if err := p.readFixture(filepath.Join(subscriptionID, resourceGroup, "route_tables", routeTableName+".json"), &table); err != nil {
		return nil, err
	}
	return &table, nil
}
