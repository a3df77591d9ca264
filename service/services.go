// api/service/services.go
package service

import (
	"github.com/cloudscope/armproxy/api/cache"
	"github.com/cloudscope/armproxy/api/upstream"
	"github.com/cloudscope/armproxy/api/util"
)

type Services struct {
	Azure      IAzureService
	Projection IProjectionService
}

func InitializeServices(
	provider upstream.Provider,
	store *cache.Store,
	validationUtil *util.ValidationUtil,
	eventBus *util.EventBus,
) *Services {
	azureService := NewAzureResourceService(provider, store, validationUtil, eventBus)

	return &Services{
		Azure:      azureService,
		Projection: NewProjectionService(azureService),
	}
}
