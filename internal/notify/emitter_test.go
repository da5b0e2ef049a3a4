package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketplace/internal/models"
	"marketplace/internal/notify"
)

func TestEmitterDeliversToSubscriber(t *testing.T) {
	emitter := notify.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := emitter.Subscribe(ctx, "user1")
	emitter.Emit(models.Notification{ID: "n1", UserID: "user1", Message: "hello"})

	select {
	case n := <-ch:
		assert.Equal(t, "n1", n.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestEmitterScopesByUser(t *testing.T) {
	emitter := notify.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chA := emitter.Subscribe(ctx, "userA")
	chB := emitter.Subscribe(ctx, "userB")

	emitter.Emit(models.Notification{ID: "n1", UserID: "userA", Message: "for A"})

	select {
	case n := <-chA:
		assert.Equal(t, "n1", n.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber A did not receive the notification")
	}

	select {
	case n := <-chB:
		t.Fatalf("subscriber B received %s, expected nothing", n.ID)
	default:
	}
}

func TestEmitterFullBufferDropsInsteadOfBlocking(t *testing.T) {
	emitter := notify.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emitter.Subscribe(ctx, "user1")

	// Channel buffer is bounded; pushing past it must not block the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			emitter.Emit(models.Notification{ID: "n", UserID: "user1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a slow subscriber")
	}
}

func TestEmitterClosesChannelOnDisconnect(t *testing.T) {
	emitter := notify.NewEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := emitter.Subscribe(ctx, "user1")
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel should be closed after context cancellation")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after disconnect")
	}
}
