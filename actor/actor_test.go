package actor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-auth-flow/actor"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefDeliversInSendOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	ref := actor.Spawn(context.Background(), func(_ context.Context, n int) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		if n == 99 {
			close(done)
		}
	})
	defer ref.Stop()

	for i := 0; i < 100; i++ {
		require.NoError(t, ref.Send(i))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("messages were not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, n := range got {
		assert.Equal(t, i, n)
	}
}

func TestRefProcessesOneMessageAtATime(t *testing.T) {
	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(20)

	ref := actor.Spawn(context.Background(), func(_ context.Context, _ struct{}) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		wg.Done()
	})
	defer ref.Stop()

	for i := 0; i < 20; i++ {
		go func() { _ = ref.Send(struct{}{}) }()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
}

func TestRefSendAfterStop(t *testing.T) {
	ref := actor.Spawn(context.Background(), func(context.Context, string) {}, actor.WithID("child"))
	assert.Equal(t, "child", ref.ID())

	ref.Stop()
	ref.Stop()

	assert.True(t, ref.Stopped())
	err := ref.Send("late")
	assert.ErrorIs(t, err, actor.ErrStopped)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, actor.TextCodeStopped, rich.TextCode)
}

func TestRefStopsWithParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ref := actor.Spawn(parent, func(context.Context, int) {})

	cancel()

	select {
	case <-ref.Done():
	case <-time.After(time.Second):
		t.Fatal("actor did not stop with parent")
	}
	assert.True(t, ref.Stopped())
}

func TestRefRecoversPanicsWithHook(t *testing.T) {
	recovered := make(chan any, 1)
	ref := actor.Spawn(context.Background(), func(_ context.Context, msg string) {
		if msg == "boom" {
			panic("boom")
		}
	}, actor.WithHooks(actor.Hooks{
		OnPanic: func(_ string, rec any) { recovered <- rec },
	}))
	defer ref.Stop()

	require.NoError(t, ref.Send("boom"))

	select {
	case rec := <-recovered:
		assert.Equal(t, "boom", rec)
	case <-time.After(time.Second):
		t.Fatal("panic hook not called")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := actor.NewRegistry()
	ref := actor.Spawn(context.Background(), func(context.Context, int) {})
	defer ref.Stop()

	require.NoError(t, actor.Register(reg, "shared", ref))

	err := actor.Register(reg, "shared", ref)
	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, actor.TextCodeAlreadyRegistered, rich.TextCode)
	assert.Equal(t, "shared", rich.Metadata["id"])
	assert.Nil(t, actor.ErrAlreadyRegistered.Metadata)

	err = actor.Register[int](reg, "other", nil)
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, actor.TextCodeInvalidRegistration, rich.TextCode)

	found, ok := actor.Lookup[int](reg, "shared")
	require.True(t, ok)
	assert.Same(t, ref, found)

	_, ok = actor.Lookup[string](reg, "shared")
	assert.False(t, ok)

	reg.Unregister("shared")
	_, ok = actor.Lookup[int](reg, "shared")
	assert.False(t, ok)
}
