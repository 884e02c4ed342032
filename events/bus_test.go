package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/plugin"
)

func TestBus_PublishAndSubscribe(t *testing.T) {
	bus := NewBus(16, zap.NewNop())
	defer bus.Close()

	var called atomic.Int32
	bus.Subscribe(plugin.Topic(plugin.ActionRelease), func(ctx context.Context, e plugin.Event) error {
		called.Add(1)
		return nil
	})

	err := bus.Publish(context.Background(), plugin.Event{Action: plugin.ActionRelease, Plugin: "reports"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return called.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBus_WildcardReceivesEverything(t *testing.T) {
	bus := NewBus(16, zap.NewNop())
	defer bus.Close()

	var count atomic.Int32
	bus.Subscribe(plugin.TopicAll, func(ctx context.Context, e plugin.Event) error {
		count.Add(1)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), plugin.Event{Action: plugin.ActionEnable}))
	require.NoError(t, bus.Publish(context.Background(), plugin.Event{Action: plugin.ActionDisable}))

	assert.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(16, zap.NewNop())

	var count atomic.Int32
	sub := bus.Subscribe("plugin.reload", func(ctx context.Context, e plugin.Event) error {
		count.Add(1)
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), plugin.Event{Action: plugin.ActionReload}))
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(0), count.Load())
}

func TestBus_CloseDrainsPending(t *testing.T) {
	bus := NewBus(64, zap.NewNop())

	var count atomic.Int32
	bus.Subscribe(plugin.TopicAll, func(ctx context.Context, e plugin.Event) error {
		count.Add(1)
		return nil
	})

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(context.Background(), plugin.Event{Action: plugin.ActionReload}))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(20), count.Load())
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus(4, zap.NewNop())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), plugin.Event{Action: plugin.ActionEnable})
	assert.ErrorIs(t, err, plugin.ErrBusClosed)
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := NewBus(4, zap.NewNop())

	var after atomic.Int32
	bus.Subscribe(plugin.TopicAll, func(ctx context.Context, e plugin.Event) error {
		panic("subscriber bug")
	})
	bus.Subscribe(plugin.TopicAll, func(ctx context.Context, e plugin.Event) error {
		after.Add(1)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), plugin.Event{Action: plugin.ActionCreate}))
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(1), after.Load())
}
