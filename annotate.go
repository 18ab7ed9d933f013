package flagup

import "context"

// Processing states recorded on scanned containers. The state lives in the
// StateAttr attribute of the container element so that repeat scan passes
// over the same markup can tell what work remains.
//
// StateDone is terminal: the flag is present and the container is never
// reprocessed. StateFailed is retryable; after RetryLimit failed attempts a
// container moves to StateFailedPermanent and is never retried.
const (
	StateProcessing      = "processing"
	StateDone            = "done"
	StateFailed          = "failed"
	StateFailedPermanent = "failed-permanent"
)

// Attributes written into the host page's markup. These are owned by this
// system; everything else about the markup is an external dependency.
const (
	// StateAttr tags a container with its processing state.
	StateAttr = "data-flagup-state"

	// GlyphAttr marks an inserted flag span so repeat passes can detect an
	// annotation that is already present.
	GlyphAttr = "data-flagup-glyph"
)

// RetryLimit is the number of failed annotation attempts allowed per handle
// before the container is marked StateFailedPermanent.
const RetryLimit = 3

// ScanReport summarizes one annotation pass.
type ScanReport struct {
	// Containers is the number of candidate elements examined.
	Containers int

	// Annotated is the number of flag glyphs inserted.
	Annotated int

	// Skipped counts containers already done or without a usable handle.
	Skipped int

	// Failed counts containers with no location or no flag mapping.
	Failed int
}

// Annotator rewrites an HTML document, inserting a flag glyph after each
// username whose account location maps to a known flag.
type Annotator interface {
	// Annotate scans the document, resolves locations for the handles it
	// finds, and returns the annotated HTML. Annotation is idempotent:
	// containers marked done are untouched regardless of cache state.
	Annotate(ctx context.Context, html string) (string, *ScanReport, error)
}

// Page is a live, mutable view of the host site in a browser. It is the
// narrow interface between annotation logic and browser automation.
type Page interface {
	// HTML returns a snapshot of the page's current markup.
	HTML(ctx context.Context) (string, error)

	// InsertFlag inserts a glyph span after the anchor for the handle and
	// marks the container done. Returns false if no matching anchor was
	// found or a glyph is already present.
	InsertFlag(ctx context.Context, handle, glyph string) (bool, error)

	// MarkState sets the processing state on the handle's container.
	MarkState(ctx context.Context, handle, state string) error
}
