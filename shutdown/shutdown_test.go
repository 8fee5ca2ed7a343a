package shutdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsHooksInPriorityOrder(t *testing.T) {
	var order []string
	AddHookWithPriority("temp", PriorityTempDirs, func() { order = append(order, "temp") })
	AddHookWithPriority("output", PriorityOutput, func() { order = append(order, "output") })
	AddHookWithPriority("renders", PriorityRenders, func() { order = append(order, "renders") })
	AddHook("panics", func() { panic("boom") })

	Shutdown()
	assert.Equal(t, []string{"renders", "output", "temp"}, order)
	assert.Equal(t, 0, Pending())

	Shutdown()
	assert.Len(t, order, 3, "hooks run once")
}

func TestRemoveHook(t *testing.T) {
	ran := map[string]bool{}
	removeA := AddHook("a", func() { ran["a"] = true })
	AddHook("b", func() { ran["b"] = true })
	removeA()
	removeA()
	assert.Equal(t, 1, Pending())

	Shutdown()
	assert.Equal(t, map[string]bool{"b": true}, ran)
}

func TestWithSignalsStop(t *testing.T) {
	ctx, stop := WithSignals(context.Background())
	assert.NoError(t, ctx.Err())
	stop()
	stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
