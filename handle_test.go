package flagup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vigneshmr/flagup"
)

func TestValidHandle(t *testing.T) {
	t.Parallel()

	valid := []string{"alice", "Alice_99", "a", "x_ae_a_12", "ABCDEFGHIJKLMNO"}
	for _, h := range valid {
		assert.True(t, flagup.ValidHandle(h), h)
	}

	invalid := []string{"", "@alice", "alice bob", "way_too_long_handle", "a/b", "héllo"}
	for _, h := range invalid {
		assert.False(t, flagup.ValidHandle(h), h)
	}
}

func TestReservedRoutes(t *testing.T) {
	t.Parallel()

	// Route segments that collide with the handle grammar must be reserved,
	// otherwise navigation links get annotated as users.
	for _, seg := range []string{"home", "explore", "notifications", "i", "hashtag"} {
		assert.True(t, flagup.ReservedRoutes[seg], seg)
	}
	assert.False(t, flagup.ReservedRoutes["alice"])
}
