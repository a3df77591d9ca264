// api/cache/keys.go
package cache

import (
	"strings"
	"time"
)

// Kind identifies one cacheable upstream resource type. TTLs are
// configured per kind.
type Kind string

const (
	KindSubscriptions     Kind = "subscriptions"
	KindResourceGroups    Kind = "resourceGroups"
	KindVirtualMachines   Kind = "virtualMachines"
	KindVirtualMachine    Kind = "virtualMachine"
	KindNetworkInterfaces Kind = "networkInterfaces"
	KindNsgRules          Kind = "nsgRules"
	KindEffectiveRoutes   Kind = "effectiveRoutes"
	KindNicRoutes         Kind = "nicRoutes"
	KindAadGroups         Kind = "aadGroups"
	KindRouteTables       Kind = "routeTables"
	KindRouteTable        Kind = "routeTable"
)

// Kinds lists every resource kind. Used to map configuration entries
// onto kinds.
var Kinds = []Kind{
	KindSubscriptions,
	KindResourceGroups,
	KindVirtualMachines,
	KindVirtualMachine,
	KindNetworkInterfaces,
	KindNsgRules,
	KindEffectiveRoutes,
	KindNicRoutes,
	KindAadGroups,
	KindRouteTables,
	KindRouteTable,
}

// TTLTable converts a name-keyed TTL map into a kind-keyed one. Names
// match kinds case-insensitively because configuration loaders do not
// always preserve key casing. Unrecognized names are ignored.
func TTLTable(byName map[string]time.Duration) map[Kind]time.Duration {
	ttls := make(map[Kind]time.Duration, len(byName))
	for name, ttl := range byName {
		for _, kind := range Kinds {
			if strings.EqualFold(name, string(kind)) {
				ttls[kind] = ttl
				break
			}
		}
	}
	return ttls
}

// ResourceKey addresses one cacheable upstream resource or resource list.
// Equality is structural; the string form is the cache map key.
type ResourceKey struct {
	Kind           Kind
	SubscriptionID string
	ResourceGroup  string
	Resource       string
}

func (k ResourceKey) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{string(k.Kind), k.SubscriptionID, k.ResourceGroup, k.Resource} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ":")
}
