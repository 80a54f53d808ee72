package srv

import (
	"context"

	"github.com/zhouzirui/med-assist/backend/pkg/log"
)

// Service is a long-running component with an explicit lifecycle.
type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// StartServices launches every service on its own goroutine. A service whose
// Start returns an error reports it on errCh.
func StartServices(ctx context.Context, services []Service, errCh chan<- error) {
	logger := log.FromCtx(ctx)
	for _, service := range services {
		go func(service Service) {
			if err := service.Start(ctx); err != nil {
				logger.Error().Err(err).Msgf("%T failed to start", service)
				select {
				case errCh <- err:
				default:
				}
			}
		}(service)
	}
}

// ShutdownServices stops services in reverse start order.
func ShutdownServices(ctx context.Context, services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
	}
}
