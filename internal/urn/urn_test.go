package urn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	u, err := Parse("health:Health")
	require.NoError(t, err)
	assert.Equal(t, URN{Module: "health", Name: "Health"}, u)
	assert.Equal(t, "health:Health", u.String())

	for _, bad := range []string{"", "health", ":Health", "health:", "a:b:c"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", bad)
	}
}

func TestEqualIgnoresCase(t *testing.T) {
	assert.True(t, New("Core", "Location").Equal(New("core", "location")))
	assert.False(t, New("core", "Location").Equal(New("health", "Location")))
	assert.True(t, URN{}.IsZero())
}
