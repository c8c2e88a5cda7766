package tracker

import (
	"context"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
)

// retryingService returns RATE_LIMITED from GetOperation for every call
// before the successAfter'th, then reports done. It exists to exercise the
// tracker's retry-ceiling and backoff behaviour independent of the fake
// package's richer scripting.
type retryingService struct {
	successAfter int
	calls        int
}

func (s *retryingService) List(context.Context, string, string) ([]entity.InstanceSnapshot, error) {
	panic("not used")
}
func (s *retryingService) Get(context.Context, string) (entity.InstanceSnapshot, error) {
	panic("not used")
}
func (s *retryingService) Start(context.Context, string) (instanceservice.OperationHandle, error) {
	panic("not used")
}
func (s *retryingService) BeginUpgrade(context.Context, string) (instanceservice.OperationHandle, error) {
	panic("not used")
}
func (s *retryingService) BeginRollback(context.Context, string) (instanceservice.OperationHandle, error) {
	panic("not used")
}
func (s *retryingService) CheckUpgradable(context.Context, string) (instanceservice.UpgradabilityInfo, error) {
	panic("not used")
}

func (s *retryingService) GetOperation(context.Context, instanceservice.OperationHandle) (instanceservice.OperationOutcome, error) {
	s.calls++
	if s.calls >= s.successAfter {
		return instanceservice.OperationOutcome{Done: true}, nil
	}
	return instanceservice.OperationOutcome{}, entity.NewServiceError(entity.ErrorKindRateLimited, "throttled")
}

var _ instanceservice.InstanceService = (*retryingService)(nil)
