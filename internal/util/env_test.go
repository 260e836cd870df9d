package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("LINK_TEST_VALUE", "")
	assert.Equal(t, "fallback", EnvOrDefault("LINK_TEST_VALUE", "fallback"))
	t.Setenv("LINK_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOrDefault("LINK_TEST_VALUE", "fallback"))
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("LINK_TEST_DELAY", "")
	d, err := EnvDuration("LINK_TEST_DELAY", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	t.Setenv("LINK_TEST_DELAY", "250ms")
	d, err = EnvDuration("LINK_TEST_DELAY", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	t.Setenv("LINK_TEST_DELAY", "soon")
	_, err = EnvDuration("LINK_TEST_DELAY", time.Second)
	assert.Error(t, err)
}

func TestEnvBool(t *testing.T) {
	t.Setenv("LINK_TEST_FLAG", "false")
	b, err := EnvBool("LINK_TEST_FLAG", true)
	require.NoError(t, err)
	assert.False(t, b)

	t.Setenv("LINK_TEST_FLAG", "maybe")
	_, err = EnvBool("LINK_TEST_FLAG", true)
	assert.Error(t, err)
}

func TestEnvInt(t *testing.T) {
	t.Setenv("LINK_TEST_COUNT", "")
	n, err := EnvInt("LINK_TEST_COUNT", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	t.Setenv("LINK_TEST_COUNT", "42")
	n, err = EnvInt("LINK_TEST_COUNT", 7)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	t.Setenv("LINK_TEST_COUNT", "lots")
	_, err = EnvInt("LINK_TEST_COUNT", 7)
	assert.Error(t, err)
}
