// api/service/projection_service.go
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	proxy_errors "github.com/cloudscope/armproxy/api/errors"
	logger "github.com/cloudscope/armproxy/api/logging"
	"github.com/cloudscope/armproxy/api/model"
)

// IProjectionService exposes flattened cross-subscription views derived
// from the hierarchical traversal, with no upstream calls beyond those
// the traversal itself triggers.
type IProjectionService interface {
	ListAllVirtualMachines(ctx context.Context, refresh bool) ([]model.VirtualMachineWithContext, error)
	GetVirtualMachineByName(ctx context.Context, vmName string, refresh bool) (*model.VirtualMachineDetail, error)
	ListHostnames(ctx context.Context, refresh bool) ([]model.VirtualMachineHostname, error)
	GetVirtualMachineReport(ctx context.Context, refresh bool) ([]model.VirtualMachineReport, error)
}

// ProjectionService reshapes AzureResourceService outputs into shortcut
// views. Traversal cost is O(subscriptions x resource groups) upstream
// operations unless the hierarchy is already cached.
type ProjectionService struct {
	azureService IAzureService
}

func NewProjectionService(azureService IAzureService) *ProjectionService {
	return &ProjectionService{azureService: azureService}
}

// ListAllVirtualMachines merges every VM across all subscriptions and
// resource groups into one sequence tagged with its context. A failing
// branch of the traversal is logged and skipped, never failing the merge.
func (s *ProjectionService) ListAllVirtualMachines(ctx context.Context, refresh bool) ([]model.VirtualMachineWithContext, error) {
	subscriptions, err := s.azureService.ListSubscriptions(ctx, refresh)
	if err != nil {
		return nil, err
	}

	allVMs := []model.VirtualMachineWithContext{}
	for _, sub := range subscriptions {
		groups, err := s.azureService.ListResourceGroups(ctx, sub.ID, refresh)
		if err != nil {
			logger.Warn("Skipping subscription in merged VM listing",
				zap.String("subscriptionID", sub.ID),
				zap.Error(err))
			continue
		}
		for _, rg := range groups {
			vms, err := s.azureService.ListVirtualMachines(ctx, sub.ID, rg.Name, refresh)
			if err != nil {
				logger.Warn("Skipping resource group in merged VM listing",
					zap.String("subscriptionID", sub.ID),
					zap.String("resourceGroup", rg.Name),
					zap.Error(err))
				continue
			}
			for _, vm := range vms {
				allVMs = append(allVMs, model.VirtualMachineWithContext{
					VirtualMachine:    vm,
					SubscriptionID:    sub.ID,
					SubscriptionName:  sub.Name,
					ResourceGroupName: rg.Name,
					DetailURL:         fmt.Sprintf("/subscriptions/%s/resource-groups/%s/virtual-machines/%s", sub.ID, rg.Name, vm.Name),
				})
			}
		}
	}

	logger.Info("Merged VM listing assembled", zap.Int("count", len(allVMs)))
	return allVMs, nil
}

// GetVirtualMachineByName scans the merged sequence in traversal order
// and resolves the first name match (case-insensitive) to its full
// detail record.
func (s *ProjectionService) GetVirtualMachineByName(ctx context.Context, vmName string, refresh bool) (*model.VirtualMachineDetail, error) {
	allVMs, err := s.ListAllVirtualMachines(ctx, refresh)
	if err != nil {
		return nil, err
	}

	for _, vm := range allVMs {
		if strings.EqualFold(vm.Name, vmName) {
			return s.azureService.GetVirtualMachineDetail(ctx, vm.SubscriptionID, vm.ResourceGroupName, vm.Name, refresh)
		}
	}

	logger.Warn("VM not found in any subscription", zap.String("vmName", vmName))
	return nil, fmt.Errorf("%w: virtual machine %q", proxy_errors.ErrResourceNotFound, vmName)
}

// ListHostnames projects {vmName, hostname} pairs from the merged VM
// sequence. The hostname is carried through from upstream unchanged.
func (s *ProjectionService) ListHostnames(ctx context.Context, refresh bool) ([]model.VirtualMachineHostname, error) {
	allVMs, err := s.ListAllVirtualMachines(ctx, refresh)
	if err != nil {
		return nil, err
	}

	hostnames := make([]model.VirtualMachineHostname, 0, len(allVMs))
	for _, vm := range allVMs {
		hostnames = append(hostnames, model.VirtualMachineHostname{
			VMName:   vm.Name,
			Hostname: vm.Hostname,
		})
	}
	return hostnames, nil
}

// GetVirtualMachineReport flattens every VM into one inventory row, joining
// the NIC addresses from the detail composition with the summary fields.
// A VM whose detail cannot be assembled is logged and dropped from the
// report rather than failing it.
func (s *ProjectionService) GetVirtualMachineReport(ctx context.Context, refresh bool) ([]model.VirtualMachineReport, error) {
	allVMs, err := s.ListAllVirtualMachines(ctx, refresh)
	if err != nil {
		return nil, err
	}

	report := make([]model.VirtualMachineReport, 0, len(allVMs))
	for _, vm := range allVMs {
		detail, err := s.azureService.GetVirtualMachineDetail(ctx, vm.SubscriptionID, vm.ResourceGroupName, vm.Name, refresh)
		if err != nil {
			logger.Warn("Skipping VM in inventory report",
				zap.String("vmName", vm.Name),
				zap.String("subscriptionID", vm.SubscriptionID),
				zap.Error(err))
			continue
		}

		privateIPs := []string{}
		publicIPs := []string{}
		for _, nic := range detail.NetworkInterfaces {
			privateIPs = append(privateIPs, nic.PrivateIPAddresses...)
			publicIPs = append(publicIPs, nic.PublicIPAddresses...)
		}

		report = append(report, model.VirtualMachineReport{
			Hostname:          detail.Hostname,
			OS:                detail.OSType,
			Environment:       detail.Tags["environment"],
			Purpose:           detail.Tags["purpose"],
			IPAddresses:       privateIPs,
			PublicIPAddresses: publicIPs,
			VMName:            vm.Name,
			VMSize:            vm.VMSize,
			OSDiskSizeGB:      detail.OSDiskSizeGB,
			ResourceGroup:     vm.ResourceGroupName,
			Location:          vm.Location,
			SubscriptionID:    vm.SubscriptionID,
			SubscriptionName:  vm.SubscriptionName,
		})
	}

	logger.Info("VM inventory report assembled", zap.Int("count", len(report)))
	return report, nil
}
