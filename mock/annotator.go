package mock

import (
	"context"

	"github.com/vigneshmr/flagup"
)

var _ flagup.Annotator = (*Annotator)(nil)

// Annotator is a mock implementation of flagup.Annotator.
type Annotator struct {
	AnnotateFn func(ctx context.Context, html string) (string, *flagup.ScanReport, error)
}

func (a *Annotator) Annotate(ctx context.Context, html string) (string, *flagup.ScanReport, error) {
	return a.AnnotateFn(ctx, html)
}
