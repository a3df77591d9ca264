// api/upstream/provider.go
package upstream

import (
	"context"

	"github.com/cloudscope/armproxy/api/model"
)

// Provider is the capability interface over the Azure management API.
// Two variants exist: LiveProvider talks to the real management endpoint,
// MockProvider reads a fixture hierarchy from disk. The variant is chosen
// once at startup and injected into the service layer.
type Provider interface {
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	ListResourceGroups(ctx context.Context, subscriptionID string) ([]model.ResourceGroup, error)
	ListVirtualMachines(ctx context.Context, subscriptionID, resourceGroup string) ([]model.VirtualMachine, error)
	GetVirtualMachine(ctx context.Context, subscriptionID, resourceGroup, vmName string) (*model.VirtualMachine, error)
	GetNetworkInterfaces(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NetworkInterface, error)
	GetEffectiveNsgRules(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NsgRule, error)
	GetEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.Route, error)
	GetNicEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, nicName string) ([]model.Route, error)
	GetDirectoryGroups(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.AadGroup, error)
	ListRouteTables(ctx context.Context, subscriptionID string) ([]model.RouteTableSummary, error)
	GetRouteTableDetail(ctx context.Context, subscriptionID, resourceGroup, routeTableName string) (*model.RouteTable, error)
}

// TokenProvider supplies bearer tokens for the live management API.
// Credential acquisition lives outside this module; the proxy only ever
// sees an already-authenticated token source.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider wraps a fixed token, useful for tests and for
// environments where a sidecar refreshes the token file.
type StaticTokenProvider string

func (t StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return string(t), nil
}
