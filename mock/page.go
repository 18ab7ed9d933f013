package mock

import (
	"context"

	"github.com/vigneshmr/flagup"
)

var _ flagup.Page = (*Page)(nil)

// Page is a mock implementation of flagup.Page.
type Page struct {
	HTMLFn       func(ctx context.Context) (string, error)
	InsertFlagFn func(ctx context.Context, handle, glyph string) (bool, error)
	MarkStateFn  func(ctx context.Context, handle, state string) error
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.HTMLFn(ctx)
}

func (p *Page) InsertFlag(ctx context.Context, handle, glyph string) (bool, error) {
	return p.InsertFlagFn(ctx, handle, glyph)
}

func (p *Page) MarkState(ctx context.Context, handle, state string) error {
	return p.MarkStateFn(ctx, handle, state)
}
