// api/upstream/live.go
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	proxy_errors "github.com/cloudscope/armproxy/api/errors"
	logger "github.com/cloudscope/armproxy/api/logging"
	"github.com/cloudscope/armproxy/api/model"
)

const (
	apiVersionSubscriptions   = "2022-12-01"
	apiVersionResourceGroups  = "2021-04-01"
	apiVersionCompute         = "2024-03-01"
	apiVersionNetwork         = "2023-09-01"
	apiVersionAuthorization   = "2022-04-01"
	defaultLiveRetryAttempts  = 3
	defaultLiveRetryBackoff   = 500 * time.Millisecond
)

// LiveProvider issues calls against the Azure Resource Manager REST API.
// Transient failures (network errors, throttling, server errors) are
// retried with exponential backoff before surfacing ErrUpstreamUnavailable.
type LiveProvider struct {
	endpoint    string
	httpClient  *http.Client
	tokens      TokenProvider
	maxAttempts int
	backoff     time.Duration
}

// LiveOption customizes a LiveProvider.
type LiveOption func(*LiveProvider)

func WithHTTPClient(client *http.Client) LiveOption {
	return func(p *LiveProvider) { p.httpClient = client }
}

func WithRetry(maxAttempts int, backoff time.Duration) LiveOption {
	return func(p *LiveProvider) {
		p.maxAttempts = maxAttempts
		p.backoff = backoff
	}
}

func NewLiveProvider(endpoint string, tokens TokenProvider, opts ...LiveOption) *LiveProvider {
	provider := &LiveProvider{
		endpoint:    strings.TrimRight(endpoint, "/"),
		httpClient:  &http.Client{},
		tokens:      tokens,
		maxAttempts: defaultLiveRetryAttempts,
		backoff:     defaultLiveRetryBackoff,
	}
	for _, opt := range opts {
		opt(provider)
	}
	logger.Info("Live provider initialized", zap.String("endpoint", provider.endpoint))
	return provider
}

// armList is the envelope ARM uses for collection responses.
type armList struct {
	Value []json.RawMessage `json:"value"`
}

// call performs one authenticated request with bounded retries. 404 maps
// to ErrResourceNotFound; throttling and server errors are retried until
// the attempt budget is exhausted, then reported as ErrUpstreamUnavailable.
func (p *LiveProvider) call(ctx context.Context, method, path, apiVersion string, query url.Values, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", apiVersion)
	requestURL := p.endpoint + path + "?" + query.Encode()

	var lastErr error
	backoff := p.backoff
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		body, retryable, err := p.doOnce(ctx, method, requestURL)
		if err == nil {
			if out != nil {
				if err := json.Unmarshal(body, out); err != nil {
					return fmt.Errorf("failed to decode upstream response for %s: %w", path, err)
				}
			}
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
		logger.Warn("Retrying upstream call",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return fmt.Errorf("%w: %s: %v", proxy_errors.ErrUpstreamUnavailable, path, lastErr)
}

// doOnce executes a single HTTP attempt. The second return value reports
// whether the failure is transient.
func (p *LiveProvider) doOnce(ctx context.Context, method, requestURL string) ([]byte, bool, error) {
	token, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, fmt.Errorf("%w: %s", proxy_errors.ErrResourceNotFound, requestURL)
	case resp.StatusCode == http.StatusTooManyRequests:
		if after := resp.Header.Get("Retry-After"); after != "" {
			if seconds, err := strconv.Atoi(after); err == nil {
				select {
				case <-time.After(time.Duration(seconds) * time.Second):
				case <-ctx.Done():
					return nil, false, ctx.Err()
				}
			}
		}
		return nil, true, fmt.Errorf("throttled by upstream (429)")
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("upstream server error (%d)", resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: unexpected status %d from %s", proxy_errors.ErrUpstreamUnavailable, resp.StatusCode, requestURL)
	}
}

func (p *LiveProvider) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var list armList
	if err := p.call(ctx, http.MethodGet, "/subscriptions", apiVersionSubscriptions, nil, &list); err != nil {
		return nil, err
	}

	subscriptions := make([]model.Subscription, 0, len(list.Value))
	for _, raw := range list.Value {
		var sub struct {
			SubscriptionID string `json:"subscriptionId"`
			DisplayName    string `json:"displayName"`
			State          string `json:"state"`
		}
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subscriptions = append(subscriptions, model.Subscription{
			ID:          sub.SubscriptionID,
			Name:        sub.DisplayName,
			DisplayName: sub.DisplayName,
			State:       sub.State,
		})
	}
	return subscriptions, nil
}

func (p *LiveProvider) ListResourceGroups(ctx context.Context, subscriptionID string) ([]model.ResourceGroup, error) {
	path := fmt.Sprintf("/subscriptions/%s/resourcegroups", subscriptionID)
	var list armList
	if err := p.call(ctx, http.MethodGet, path, apiVersionResourceGroups, nil, &list); err != nil {
		return nil, err
	}

	groups := make([]model.ResourceGroup, 0, len(list.Value))
	for _, raw := range list.Value {
		var rg struct {
			ID       string            `json:"id"`
			Name     string            `json:"name"`
			Location string            `json:"location"`
			Tags     map[string]string `json:"tags"`
		}
		if err := json.Unmarshal(raw, &rg); err != nil {
			return nil, fmt.Errorf("failed to decode resource group: %w", err)
		}
		groups = append(groups, model.ResourceGroup(rg))
	}
	return groups, nil
}

// armVirtualMachine is the subset of the ARM VM payload the proxy carries.
type armVirtualMachine struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Location   string            `json:"location"`
	Tags       map[string]string `json:"tags"`
	Properties struct {
		HardwareProfile struct {
			VMSize string `json:"vmSize"`
		} `json:"hardwareProfile"`
		StorageProfile struct {
			OSDisk struct {
				OSType     string `json:"osType"`
				DiskSizeGB int    `json:"diskSizeGB"`
			} `json:"osDisk"`
		} `json:"storageProfile"`
		OSProfile struct {
			ComputerName string `json:"computerName"`
		} `json:"osProfile"`
		NetworkProfile struct {
			NetworkInterfaces []struct {
				ID string `json:"id"`
			} `json:"networkInterfaces"`
		} `json:"networkProfile"`
		InstanceView struct {
			Statuses []struct {
				Code string `json:"code"`
			} `json:"statuses"`
		} `json:"instanceView"`
	} `json:"properties"`
}

func (vm armVirtualMachine) toModel() model.VirtualMachine {
	out := model.VirtualMachine{
		ID:           vm.ID,
		Name:         vm.Name,
		Location:     vm.Location,
		VMSize:       vm.Properties.HardwareProfile.VMSize,
		OSType:       vm.Properties.StorageProfile.OSDisk.OSType,
		Hostname:     vm.Properties.OSProfile.ComputerName,
		OSDiskSizeGB: vm.Properties.StorageProfile.OSDisk.DiskSizeGB,
		Tags:         vm.Tags,
	}
	for _, status := range vm.Properties.InstanceView.Statuses {
		if strings.HasPrefix(status.Code, "PowerState/") {
			out.PowerState = strings.TrimPrefix(status.Code, "PowerState/")
		}
	}
	return out
}

func (p *LiveProvider) ListVirtualMachines(ctx context.Context, subscriptionID, resourceGroup string) ([]model.VirtualMachine, error) {
	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines", subscriptionID, resourceGroup)
	var list armList
	if err := p.call(ctx, http.MethodGet, path, apiVersionCompute, nil, &list); err != nil {
		return nil, err
	}

	machines := make([]model.VirtualMachine, 0, len(list.Value))
	for _, raw := range list.Value {
		var vm armVirtualMachine
		if err := json.Unmarshal(raw, &vm); err != nil {
			return nil, fmt.Errorf("failed to decode virtual machine: %w", err)
		}
		machines = append(machines, vm.toModel())
	}
	return machines, nil
}

func (p *LiveProvider) GetVirtualMachine(ctx context.Context, subscriptionID, resourceGroup, vmName string) (*model.VirtualMachine, error) {
	vm, err := p.getRawVirtualMachine(ctx, subscriptionID, resourceGroup, vmName)
	if err != nil {
		return nil, err
	}
	out := vm.toModel()
	return &out, nil
}

func (p *LiveProvider) getRawVirtualMachine(ctx context.Context, subscriptionID, resourceGroup, vmName string) (*armVirtualMachine, error) {
	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s", subscriptionID, resourceGroup, vmName)
	query := url.Values{"$expand": []string{"instanceView"}}
	var vm armVirtualMachine
	if err := p.call(ctx, http.MethodGet, path, apiVersionCompute, query, &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

func (p *LiveProvider) GetNetworkInterfaces(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NetworkInterface, error) {
	vm, err := p.getRawVirtualMachine(ctx, subscriptionID, resourceGroup, vmName)
	if err != nil {
		return nil, err
	}

	nicIDs := vm.Properties.NetworkProfile.NetworkInterfaces
	nics := make([]model.NetworkInterface, len(nicIDs))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, ref := range nicIDs {
		i, nicID := i, ref.ID
		group.Go(func() error {
			nic, err := p.getNetworkInterface(groupCtx, nicID)
			if err != nil {
				return err
			}
			nics[i] = *nic
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return nics, nil
}

func (p *LiveProvider) getNetworkInterface(ctx context.Context, nicID string) (*model.NetworkInterface, error) {
	var nic struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Properties struct {
			IPConfigurations []struct {
				Properties struct {
					PrivateIPAddress string `json:"privateIPAddress"`
					PublicIPAddress  struct {
						ID string `json:"id"`
					} `json:"publicIPAddress"`
				} `json:"properties"`
			} `json:"ipConfigurations"`
		} `json:"properties"`
	}
	if err := p.call(ctx, http.MethodGet, nicID, apiVersionNetwork, nil, &nic); err != nil {
		return nil, err
	}

	out := &model.NetworkInterface{
		ID:                 nic.ID,
		Name:               nic.Name,
		PrivateIPAddresses: []string{},
		PublicIPAddresses:  []string{},
	}
	for _, ipConfig := range nic.Properties.IPConfigurations {
		if ipConfig.Properties.PrivateIPAddress != "" {
			out.PrivateIPAddresses = append(out.PrivateIPAddresses, ipConfig.Properties.PrivateIPAddress)
		}
		if publicID := ipConfig.Properties.PublicIPAddress.ID; publicID != "" {
			address, err := p.getPublicIPAddress(ctx, publicID)
			if err != nil {
				logger.Warn("Failed to resolve public IP", zap.String("publicIPID", publicID), zap.Error(err))
				continue
			}
			if address != "" {
				out.PublicIPAddresses = append(out.PublicIPAddresses, address)
			}
		}
	}
	return out, nil
}

func (p *LiveProvider) getPublicIPAddress(ctx context.Context, publicIPID string) (string, error) {
	var publicIP struct {
		Properties struct {
			IPAddress string `json:"ipAddress"`
		} `json:"properties"`
	}
	if err := p.call(ctx, http.MethodGet, publicIPID, apiVersionNetwork, nil, &publicIP); err != nil {
		return "", err
	}
	return publicIP.Properties.IPAddress, nil
}

// primaryNicName resolves the first NIC attached to a VM. Effective NSG
// rules and routes are NIC-scoped operations in ARM.
func (p *LiveProvider) primaryNicName(ctx context.Context, subscriptionID, resourceGroup, vmName string) (string, error) {
	vm, err := p.getRawVirtualMachine(ctx, subscriptionID, resourceGroup, vmName)
	if err != nil {
		return "", err
	}
	nics := vm.Properties.NetworkProfile.NetworkInterfaces
	if len(nics) == 0 {
		return "", fmt.Errorf("%w: no network interfaces on VM %s", proxy_errors.ErrResourceNotFound, vmName)
	}
	parts := strings.Split(nics[0].ID, "/")
	return parts[len(parts)-1], nil
}

func (p *LiveProvider) GetEffectiveNsgRules(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.NsgRule, error) {
	nicName, err := p.primaryNicName(ctx, subscriptionID, resourceGroup, vmName)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/networkInterfaces/%s/effectiveNetworkSecurityGroups", subscriptionID, resourceGroup, nicName)
	var response struct {
		Value []struct {
			EffectiveSecurityRules []struct {
				Name                 string `json:"name"`
				Direction            string `json:"direction"`
				Protocol             string `json:"protocol"`
				DestinationPortRange string `json:"destinationPortRange"`
				Access               string `json:"access"`
			} `json:"effectiveSecurityRules"`
		} `json:"value"`
	}
	if err := p.call(ctx, http.MethodPost, path, apiVersionNetwork, nil, &response); err != nil {
		return nil, err
	}

	rules := []model.NsgRule{}
	for _, nsg := range response.Value {
		for _, rule := range nsg.EffectiveSecurityRules {
			rules = append(rules, model.NsgRule{
				Name:      rule.Name,
				Direction: rule.Direction,
				Protocol:  rule.Protocol,
				PortRange: rule.DestinationPortRange,
				Access:    rule.Access,
			})
		}
	}
	return rules, nil
}

func (p *LiveProvider) GetEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.Route, error) {
	nicName, err := p.primaryNicName(ctx, subscriptionID, resourceGroup, vmName)
	if err != nil {
		return nil, err
	}
	return p.GetNicEffectiveRoutes(ctx, subscriptionID, resourceGroup, nicName)
}

func (p *LiveProvider) GetNicEffectiveRoutes(ctx context.Context, subscriptionID, resourceGroup, nicName string) ([]model.Route, error) {
	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/networkInterfaces/%s/effectiveRouteTable", subscriptionID, resourceGroup, nicName)
	var response struct {
		Value []struct {
			Name             string   `json:"name"`
			AddressPrefix    []string `json:"addressPrefix"`
			NextHopType      string   `json:"nextHopType"`
			NextHopIPAddress []string `json:"nextHopIpAddress"`
			Source           string   `json:"source"`
		} `json:"value"`
	}
	if err := p.call(ctx, http.MethodPost, path, apiVersionNetwork, nil, &response); err != nil {
		return nil, err
	}

	routes := []model.Route{}
	for _, route := range response.Value {
		out := model.Route{
			Name:        route.Name,
			NextHopType: route.NextHopType,
			RouteOrigin: route.Source,
		}
		if len(route.AddressPrefix) > 0 {
			out.AddressPrefix = route.AddressPrefix[0]
		}
		if len(route.NextHopIPAddress) > 0 {
			out.NextHopIP = route.NextHopIPAddress[0]
		}
		routes = append(routes, out)
	}
	return routes, nil
}

func (p *LiveProvider) GetDirectoryGroups(ctx context.Context, subscriptionID, resourceGroup, vmName string) ([]model.AadGroup, error) {
	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute/virtualMachines/%s/providers/Microsoft.Authorization/roleAssignments", subscriptionID, resourceGroup, vmName)
	var response struct {
		Value []struct {
			Properties struct {
				PrincipalID   string `json:"principalId"`
				PrincipalType string `json:"principalType"`
			} `json:"properties"`
		} `json:"value"`
	}
	if err := p.call(ctx, http.MethodGet, path, apiVersionAuthorization, nil, &response); err != nil {
		return nil, err
	}

	groups := []model.AadGroup{}
	seen := make(map[string]bool)
	for _, assignment := range response.Value {
		if assignment.Properties.PrincipalType != "Group" {
			continue
		}
		if seen[assignment.Properties.PrincipalID] {
			continue
		}
		seen[assignment.Properties.PrincipalID] = true
		groups = append(groups, model.AadGroup{ID: assignment.Properties.PrincipalID})
	}
	return groups, nil
}

func (p *LiveProvider) ListRouteTables(ctx context.Context, subscriptionID string) ([]model.RouteTableSummary, error) {
	path := fmt.Sprintf("/subscriptions/%s/providers/Microsoft.Network/routeTables", subscriptionID)
	var list armList
	if err := p.call(ctx, http.MethodGet, path, apiVersionNetwork, nil, &list); err != nil {
		return nil, err
	}

	tables := make([]model.RouteTableSummary, 0, len(list.Value))
	for _, raw := range list.Value {
		var rt armRouteTable
		if err := json.Unmarshal(raw, &rt); err != nil {
			return nil, fmt.Errorf("failed to decode route table: %w", err)
		}
		tables = append(tables, rt.toSummary())
	}
	return tables, nil
}

func (p *LiveProvider) GetRouteTableDetail(ctx context.Context, subscriptionID, resourceGroup, routeTableName string) (*model.RouteTable, error) {
	path := fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/routeTables/%s", subscriptionID, resourceGroup, routeTableName)
	var rt armRouteTable
	if err := p.call(ctx, http.MethodGet, path, apiVersionNetwork, nil, &rt); err != nil {
		return nil, err
	}

	detail := &model.RouteTable{
		RouteTableSummary: rt.toSummary(),
		Routes:            []model.Route{},
		Subnets:           []string{},
	}
	for _, route := range rt.Properties.Routes {
		detail.Routes = append(detail.Routes, model.Route{
			Name:          route.Name,
			AddressPrefix: route.Properties.AddressPrefix,
			NextHopType:   route.Properties.NextHopType,
			NextHopIP:     route.Properties.NextHopIPAddress,
			RouteOrigin:   "User",
		})
	}
	for _, subnet := range rt.Properties.Subnets {
		detail.Subnets = append(detail.Subnets, subnet.ID)
	}
	return detail, nil
}

type armRouteTable struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location"`
	Properties struct {
		Routes []struct {
			Name       string `json:"name"`
			Properties struct {
				AddressPrefix    string `json:"addressPrefix"`
				NextHopType      string `json:"nextHopType"`
				NextHopIPAddress string `json:"nextHopIpAddress"`
			} `json:"properties"`
		} `json:"routes"`
		Subnets []struct {
			ID string `json:"id"`
		} `json:"subnets"`
	} `json:"properties"`
}

func (rt armRouteTable) toSummary() model.RouteTableSummary {
	return model.RouteTableSummary{
		ID:            rt.ID,
		Name:          rt.Name,
		Location:      rt.Location,
		ResourceGroup: resourceGroupFromID(rt.ID),
		RouteCount:    len(rt.Properties.Routes),
		SubnetCount:   len(rt.Properties.Subnets),
	}
}

// resourceGroupFromID extracts the resource group segment of an ARM
// resource ID, empty if the ID is not group-scoped.
func resourceGroupFromID(resourceID string) string {
	parts := strings.Split(resourceID, "/")
	for i := 0; i < len(parts)-1; i++ {
		if strings.EqualFold(parts[i], "resourceGroups") {
			return parts[i+1]
		}
	}
	return ""
}
