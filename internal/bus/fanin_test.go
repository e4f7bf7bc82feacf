// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubscribeAllMergesEveryTopic(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := SubscribeAll(ctx, b, "topic.a", "topic.b", "topic.c")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	require.NoError(t, b.Publish(context.Background(), "topic.a", "msg-a"))
	require.NoError(t, b.Publish(context.Background(), "topic.b", "msg-b"))
	require.NoError(t, b.Publish(context.Background(), "topic.c", "msg-c"))

	got := map[Message]bool{}
	for i := 0; i < 3; i++ {
		select {
		case msg := <-sub.C():
			got[msg] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fanned-in message")
		}
	}
	require.True(t, got["msg-a"])
	require.True(t, got["msg-b"])
	require.True(t, got["msg-c"])
}

func TestSubscribeAllCloseStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	sub, err := SubscribeAll(context.Background(), b, "topic.a")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, b.Publish(context.Background(), "topic.a", "msg"))

	select {
	case _, ok := <-sub.C():
		require.False(t, ok, "channel should be closed after Close")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("fan-in channel was not closed after Close")
	}
}

func TestSubscribeAllClosesUnderlyingSubscriptionsOnClose(t *testing.T) {
	b := NewMemoryBus()
	sub, err := SubscribeAll(context.Background(), b, "topic.a", "topic.b")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "Close must be idempotent")
}
