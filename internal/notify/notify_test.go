package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainClearsQueue(t *testing.T) {
	n := New(0, nil)
	n.Error("Failed to load tasks. Please try again later.")
	n.Success("Task completed! Points awarded.")

	got := n.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, KindError, got[0].Kind)
	assert.Equal(t, KindSuccess, got[1].Kind)
	assert.Empty(t, n.Drain())
}

func TestLimitDropsOldest(t *testing.T) {
	n := New(2, nil)
	n.Error("one")
	n.Error("two")
	n.Error("three")

	got := n.Pending()
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Message)
	assert.Equal(t, "three", got[1].Message)
	assert.Len(t, n.Pending(), 2)
}
