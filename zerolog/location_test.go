package zerolog_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshmr/flagup"
	"github.com/vigneshmr/flagup/mock"
	flagzerolog "github.com/vigneshmr/flagup/zerolog"
)

func TestLoggingLocationService_Lookup(t *testing.T) {
	t.Parallel()

	t.Run("logs handle, outcome, and duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := zerolog.New(&buf)
		inner := &mock.LocationService{
			LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
				return flagup.Location{Text: "France", Found: true}, nil
			},
		}

		svc := flagzerolog.NewLoggingLocationService(inner, log)
		loc, err := svc.Lookup(context.Background(), "alice")

		require.NoError(t, err)
		assert.Equal(t, "France", loc.Text)
		output := buf.String()
		assert.Contains(t, output, `"message":"lookup"`)
		assert.Contains(t, output, `"handle":"alice"`)
		assert.Contains(t, output, `"location":"France"`)
		assert.Contains(t, output, `"found":true`)
		assert.Contains(t, output, `"duration"`)
	})

	t.Run("logs error on failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := zerolog.New(&buf)
		inner := &mock.LocationService{
			LookupFn: func(ctx context.Context, handle string) (flagup.Location, error) {
				return flagup.Location{}, flagup.Errorf(flagup.EUNAVAILABLE, "network error")
			},
		}

		svc := flagzerolog.NewLoggingLocationService(inner, log)
		_, err := svc.Lookup(context.Background(), "alice")

		require.Error(t, err)
		assert.Contains(t, buf.String(), `"error"`)
	})
}

func TestLoggingAnnotator_Annotate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	inner := &mock.Annotator{
		AnnotateFn: func(ctx context.Context, html string) (string, *flagup.ScanReport, error) {
			return html, &flagup.ScanReport{Containers: 2, Annotated: 1, Skipped: 1}, nil
		},
	}

	a := flagzerolog.NewLoggingAnnotator(inner, log)
	out, report, err := a.Annotate(context.Background(), "<html></html>")

	require.NoError(t, err)
	assert.Equal(t, "<html></html>", out)
	assert.Equal(t, 1, report.Annotated)
	output := buf.String()
	assert.Contains(t, output, `"message":"annotate"`)
	assert.Contains(t, output, `"containers":2`)
	assert.Contains(t, output, `"annotated":1`)
}
