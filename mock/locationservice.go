package mock

import (
	"context"

	"github.com/vigneshmr/flagup"
)

var _ flagup.LocationService = (*LocationService)(nil)

// LocationService is a mock implementation of flagup.LocationService.
type LocationService struct {
	LookupFn func(ctx context.Context, handle string) (flagup.Location, error)
}

func (s *LocationService) Lookup(ctx context.Context, handle string) (flagup.Location, error) {
	return s.LookupFn(ctx, handle)
}
