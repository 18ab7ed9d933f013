package mock

import (
	"context"

	"github.com/vigneshmr/flagup"
)

var _ flagup.HeaderSource = (*HeaderSource)(nil)

// HeaderSource is a mock implementation of flagup.HeaderSource.
type HeaderSource struct {
	HeadersFn func(ctx context.Context) (map[string]string, error)
}

func (s *HeaderSource) Headers(ctx context.Context) (map[string]string, error) {
	return s.HeadersFn(ctx)
}
