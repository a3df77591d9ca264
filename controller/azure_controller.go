// api/controller/azure_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	proxy_errors "github.com/cloudscope/armproxy/api/errors"
	"github.com/cloudscope/armproxy/api/service"
	"github.com/cloudscope/armproxy/api/util"
)

type AzureController struct {
	azureService      service.IAzureService
	projectionService service.IProjectionService
}

func NewAzureController(azureService service.IAzureService, projectionService service.IProjectionService) *AzureController {
	return &AzureController{
		azureService:      azureService,
		projectionService: projectionService,
	}
}

// Reserved first path segments under /subscriptions/. These select the
// flattened cross-subscription views instead of a single subscription.
const (
	segmentAllVirtualMachines = "virtual_machines"
	segmentHostnames          = "hostnames"
)

// RegisterRoutes registers the API routes.
//
// The first segment after /subscriptions/ is either a subscription ID or
// one of the reserved view names above. gin's routing tree rejects a
// literal segment registered beside a parameter at the same position, so
// both shapes share the :subscriptionId parameter and are told apart in
// the dispatch handlers.
func (ac *AzureController) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/ping", ac.Ping)
	r.GET("/api/reports/virtual-machines", ac.GetVirtualMachineReport)

	subscriptions := r.Group("/subscriptions")
	{
		subscriptions.GET("/", ac.ListSubscriptions)

		// /subscriptions/{id}|virtual_machines|hostnames/...
		subscriptions.GET("/:subscriptionId/", ac.dispatchSubscriptionRoot)
		subscriptions.GET("/:subscriptionId/:scope", ac.dispatchSubscriptionScope)

		// Hierarchical views
		subscriptions.GET("/:subscriptionId/:scope/:resourceGroup/virtual-machines/", ac.ListVirtualMachines)
		subscriptions.GET("/:subscriptionId/:scope/:resourceGroup/virtual-machines/:vmName", ac.GetVirtualMachineDetail)

		// Route table views
		subscriptions.GET("/:subscriptionId/:scope/:resourceGroup/routetables/:routeTableName", ac.GetRouteTableDetail)
		subscriptions.GET("/:subscriptionId/:scope/:resourceGroup/virtualmachines/:vmName/routes", ac.GetVMEffectiveRoutes)
		subscriptions.GET("/:subscriptionId/:scope/:resourceGroup/networkinterfaces/:nicName/routes", ac.GetNicEffectiveRoutes)
	}
}

// dispatchSubscriptionRoot serves GET /subscriptions/{segment}/ where the
// segment names one of the flattened views. A bare subscription ID has no
// resource at this level.
func (ac *AzureController) dispatchSubscriptionRoot(c *gin.Context) {
	switch c.Param("subscriptionId") {
	case segmentAllVirtualMachines:
		ac.ListAllVirtualMachines(c)
	case segmentHostnames:
		ac.ListHostnames(c)
	default:
		util.RespondWithError(c, http.StatusNotFound, "Resource not found", proxy_errors.ErrResourceNotFound)
	}
}

// dispatchSubscriptionScope serves GET /subscriptions/{segment}/{scope}
// for the shortcut VM-by-name lookup and the two-segment hierarchical
// collections.
func (ac *AzureController) dispatchSubscriptionScope(c *gin.Context) {
	if c.Param("subscriptionId") == segmentAllVirtualMachines {
		ac.GetVirtualMachineByName(c)
		return
	}
	switch c.Param("scope") {
	case "resource-groups":
		ac.ListResourceGroups(c)
	case "routetables":
		ac.ListRouteTables(c)
	default:
		util.RespondWithError(c, http.StatusNotFound, "Resource not found", proxy_errors.ErrResourceNotFound)
	}
}

// Ping endpoint, liveness check
func (ac *AzureController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// ListSubscriptions endpoint
func (ac *AzureController) ListSubscriptions(c *gin.Context) {
	subscriptions, err := ac.azureService.ListSubscriptions(c, util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to list subscriptions", err)
		return
	}
	c.JSON(http.StatusOK, subscriptions)
}

// ListResourceGroups endpoint
func (ac *AzureController) ListResourceGroups(c *gin.Context) {
	groups, err := ac.azureService.ListResourceGroups(c, c.Param("subscriptionId"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to list resource groups", err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// requireScope rejects requests whose :scope segment does not spell the
// literal the route shape expects, e.g. /x/oops/rg/virtual-machines/.
func requireScope(c *gin.Context, literal string) bool {
	if c.Param("scope") != literal {
		util.RespondWithError(c, http.StatusNotFound, "Resource not found", proxy_errors.ErrResourceNotFound)
		return false
	}
	return true
}

// ListVirtualMachines endpoint
func (ac *AzureController) ListVirtualMachines(c *gin.Context) {
	if !requireScope(c, "resource-groups") {
		return
	}
	vms, err := ac.azureService.ListVirtualMachines(c, c.Param("subscriptionId"), c.Param("resourceGroup"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to list virtual machines", err)
		return
	}
	c.JSON(http.StatusOK, vms)
}

// GetVirtualMachineDetail endpoint
func (ac *AzureController) GetVirtualMachineDetail(c *gin.Context) {
	if !requireScope(c, "resource-groups") {
		return
	}
	detail, err := ac.azureService.GetVirtualMachineDetail(c, c.Param("subscriptionId"), c.Param("resourceGroup"), c.Param("vmName"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to get virtual machine detail", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListAllVirtualMachines endpoint
func (ac *AzureController) ListAllVirtualMachines(c *gin.Context) {
	vms, err := ac.projectionService.ListAllVirtualMachines(c, util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to list all virtual machines", err)
		return
	}
	c.JSON(http.StatusOK, vms)
}

// GetVirtualMachineByName endpoint. The VM name arrives in the :scope
// position because the route is shared with the hierarchical shapes.
func (ac *AzureController) GetVirtualMachineByName(c *gin.Context) {
	detail, err := ac.projectionService.GetVirtualMachineByName(c, c.Param("scope"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to find virtual machine", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListHostnames endpoint
func (ac *AzureController) ListHostnames(c *gin.Context) {
	hostnames, err := ac.projectionService.ListHostnames(c, util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to list hostnames", err)
		return
	}
	c.JSON(http.StatusOK, hostnames)
}

// GetVirtualMachineReport endpoint
func (ac *AzureController) GetVirtualMachineReport(c *gin.Context) {
	report, err := ac.projectionService.GetVirtualMachineReport(c, util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to build virtual machine report", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListRouteTables endpoint
func (ac *AzureController) ListRouteTables(c *gin.Context) {
	tables, err := ac.azureService.ListRouteTables(c, c.Param("subscriptionId"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to list route tables", err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

// GetRouteTableDetail endpoint
func (ac *AzureController) GetRouteTableDetail(c *gin.Context) {
	if !requireScope(c, "resourcegroups") {
		return
	}
	table, err := ac.azureService.GetRouteTableDetail(c, c.Param("subscriptionId"), c.Param("resourceGroup"), c.Param("routeTableName"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to get route table detail", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// GetVMEffectiveRoutes endpoint
func (ac *AzureController) GetVMEffectiveRoutes(c *gin.Context) {
	if !requireScope(c, "resourcegroups") {
		return
	}
	routes, err := ac.azureService.GetVMEffectiveRoutes(c, c.Param("subscriptionId"), c.Param("resourceGroup"), c.Param("vmName"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to get VM effective routes", err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

// GetNicEffectiveRoutes endpoint
func (ac *AzureController) GetNicEffectiveRoutes(c *gin.Context) {
	if !requireScope(c, "resourcegroups") {
		return
	}
	routes, err := ac.azureService.GetNicEffectiveRoutes(c, c.Param("subscriptionId"), c.Param("resourceGroup"), c.Param("nicName"), util.RefreshRequested(c))
	if err != nil {
		respondWithServiceError(c, "Failed to get NIC effective routes", err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

// respondWithServiceError maps a classified core error to a response status.
func respondWithServiceError(c *gin.Context, message string, err error) {
	switch proxy_errors.Classify(err) {
	case proxy_errors.KindNotFound:
		util.RespondWithError(c, http.StatusNotFound, "Resource not found", err)
	case proxy_errors.KindValidation:
		util.RespondWithError(c, http.StatusBadRequest, "Invalid resource identifier", err)
	case proxy_errors.KindTimeout:
		util.RespondWithError(c, http.StatusGatewayTimeout, "Upstream fetch timed out", err)
	case proxy_errors.KindUpstreamUnavailable:
		util.RespondWithError(c, http.StatusBadGateway, "Upstream management API unavailable", err)
	default:
		util.RespondWithError(c, http.StatusInternalServerError, message, err)
	}
}
