// api/model/azure.go
package model

// Subscription is an Azure subscription as reported by the management API.
type Subscription struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	State       string `json:"state"`
}

// ResourceGroup is a resource group within a subscription.
type ResourceGroup struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Location string            `json:"location"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// NetworkInterface carries the addresses attached to one NIC.
type NetworkInterface struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	PrivateIPAddresses []string `json:"private_ip_addresses"`
	PublicIPAddresses  []string `json:"public_ip_addresses"`
}

// NsgRule is one effective network security group rule.
type NsgRule struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Protocol  string `json:"protocol"`
	PortRange string `json:"port_range"`
	Access    string `json:"access"`
}

// Route is one effective route on a network interface.
type Route struct {
	Name          string `json:"name,omitempty"`
	AddressPrefix string `json:"address_prefix"`
	NextHopType   string `json:"next_hop_type"`
	NextHopIP     string `json:"next_hop_ip,omitempty"`
	RouteOrigin   string `json:"route_origin"`
}

// AadGroup is a directory group holding a role assignment on a VM.
type AadGroup struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// VirtualMachine is the summary view of a VM.
type VirtualMachine struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Location     string            `json:"location"`
	VMSize       string            `json:"vm_size"`
	OSType       string            `json:"os_type,omitempty"`
	PowerState   string            `json:"power_state,omitempty"`
	Hostname     string            `json:"hostname,omitempty"`
	OSDiskSizeGB int               `json:"os_disk_size_gb,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// VirtualMachineDetail is the composite view assembled from independent
// sub-resource fetches. Each nested list is sourced and cached on its own.
type VirtualMachineDetail struct {
	VirtualMachine
	NetworkInterfaces []NetworkInterface `json:"network_interfaces"`
	EffectiveNsgRules []NsgRule          `json:"effective_nsg_rules"`
	EffectiveRoutes   []Route            `json:"effective_routes"`
	AadGroups         []AadGroup         `json:"aad_groups"`
}

// VirtualMachineWithContext is a VM summary tagged with the subscription and
// resource group it was found under, used by the cross-subscription listing.
type VirtualMachineWithContext struct {
	VirtualMachine
	SubscriptionID    string `json:"subscription_id"`
	SubscriptionName  string `json:"subscription_name"`
	ResourceGroupName string `json:"resource_group_name"`
	DetailURL         string `json:"detail_url,omitempty"`
}

// VirtualMachineReport is one row of the inventory report: a VM summary
// flattened together with its addresses and the environment and purpose
// tags operators file VMs under.
type VirtualMachineReport struct {
	Hostname          string   `json:"hostname,omitempty"`
	OS                string   `json:"os,omitempty"`
	Environment       string   `json:"environment,omitempty"`
	Purpose           string   `json:"purpose,omitempty"`
	IPAddresses       []string `json:"ip_addresses"`
	PublicIPAddresses []string `json:"public_ip_addresses"`
	VMName            string   `json:"vm_name"`
	VMSize            string   `json:"vm_size"`
	OSDiskSizeGB      int      `json:"os_disk_size_gb,omitempty"`
	ResourceGroup     string   `json:"resource_group"`
	Location          string   `json:"location"`
	SubscriptionID    string   `json:"subscription_id"`
	SubscriptionName  string   `json:"subscription_name,omitempty"`
}

// VirtualMachineHostname pairs a VM name with its hostname.
type VirtualMachineHostname struct {
	VMName   string `json:"vm_name"`
	Hostname string `json:"hostname,omitempty"`
}

// RouteTableSummary is the listing view of a route table.
type RouteTableSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	ResourceGroup string `json:"resource_group"`
	RouteCount    int    `json:"route_count"`
	SubnetCount   int    `json:"subnet_count"`
}

// RouteTable is the detail view of a route table.
type RouteTable struct {
	RouteTableSummary
	Routes  []Route  `json:"routes"`
	Subnets []string `json:"subnets"`
}
