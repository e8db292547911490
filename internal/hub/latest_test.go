package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestTableInstallsOnlyNewerFixes(t *testing.T) {
	table := newLatestTable()

	assert.True(t, table.Apply(fixAt("drv-1", "order-1", 100)))
	assert.False(t, table.Apply(fixAt("drv-1", "order-1", 50)), "older fix")
	assert.False(t, table.Apply(fixAt("drv-1", "order-1", 100)), "equal timestamp")
	assert.True(t, table.Apply(fixAt("drv-1", "order-1", 150)))

	latest, ok := table.Latest("drv-1", "order-1")
	require.True(t, ok)
	assert.Equal(t, time.Unix(150, 0), latest.RecordedAt)
}

func TestLatestTableKeysPerDriverOrderPair(t *testing.T) {
	table := newLatestTable()

	require.True(t, table.Apply(fixAt("drv-1", "order-1", 100)))
	require.True(t, table.Apply(fixAt("drv-1", "order-2", 10)))
	require.True(t, table.Apply(fixAt("drv-2", "order-1", 10)))

	_, ok := table.Latest("drv-1", "order-2")
	assert.True(t, ok)
}

func TestLatestTableDropOrder(t *testing.T) {
	table := newLatestTable()

	require.True(t, table.Apply(fixAt("drv-1", "order-1", 100)))
	require.True(t, table.Apply(fixAt("drv-2", "order-1", 100)))
	require.True(t, table.Apply(fixAt("drv-1", "order-2", 100)))

	table.DropOrder("order-1")

	_, ok := table.Latest("drv-1", "order-1")
	assert.False(t, ok)
	_, ok = table.Latest("drv-2", "order-1")
	assert.False(t, ok)
	_, ok = table.Latest("drv-1", "order-2")
	assert.True(t, ok, "other orders keep their fixes")
}
