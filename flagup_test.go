package flagup_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigneshmr/flagup"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := flagup.Errorf(flagup.ENOTFOUND, "handle %q not found", "alice")

	assert.Equal(t, flagup.ENOTFOUND, flagup.ErrorCode(err))
	assert.Equal(t, "handle \"alice\" not found", flagup.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, flagup.ErrorCode(nil))
}

func TestErrorCode_NonApplicationError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, flagup.EINTERNAL, flagup.ErrorCode(errors.New("boom")))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, flagup.ErrorMessage(nil))
}

func TestErrorMessage_NonApplicationError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Internal error.", flagup.ErrorMessage(errors.New("boom")))
}
