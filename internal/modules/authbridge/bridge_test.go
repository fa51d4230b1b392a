package authbridge

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VNZray/capstone-project-sub008/internal/events"
)

type fakeLauncher struct {
	launched atomic.Int32
	closed   atomic.Int32
	err      error
	onLaunch func(Request)
}

func (f *fakeLauncher) Launch(_ context.Context, req Request) (Window, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.launched.Add(1)
	if f.onLaunch != nil {
		go f.onLaunch(req)
	}
	return closer{f}, nil
}

type closer struct{ f *fakeLauncher }

func (c closer) Close() error {
	c.f.closed.Add(1)
	return nil
}

func TestOpen_ResolvedOutcomes(t *testing.T) {
	for _, want := range []ResultType{Success, Cancel, Dismiss} {
		var b *Bridge
		l := &fakeLauncher{}
		l.onLaunch = func(req Request) { b.Resolve(req.Key, want) }
		b = New(l, time.Second)

		res, err := b.Open(context.Background(), Request{Key: "s1", URL: "https://pay.example/auth"})
		require.NoError(t, err)
		assert.Equal(t, want, res.Type)
		assert.Equal(t, int32(1), l.closed.Load(), "window closed for %s", want)
		assert.False(t, b.Pending("s1"))
	}
}

func TestOpen_TimeoutIsDismiss(t *testing.T) {
	l := &fakeLauncher{}
	b := New(l, 10*time.Millisecond)

	res, err := b.Open(context.Background(), Request{Key: "s1", URL: "https://pay.example/auth"})
	require.NoError(t, err)
	assert.Equal(t, Dismiss, res.Type)
	assert.False(t, IsConfirmedCancel(res))
	assert.Equal(t, int32(1), l.closed.Load())
}

func TestOpen_ContextDoneIsDismiss(t *testing.T) {
	l := &fakeLauncher{}
	b := New(l, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := b.Open(ctx, Request{Key: "s1", URL: "https://pay.example/auth"})
	require.NoError(t, err)
	assert.Equal(t, Dismiss, res.Type)
	assert.Equal(t, int32(1), l.closed.Load())
}

func TestOpen_Busy(t *testing.T) {
	l := &fakeLauncher{}
	b := New(l, time.Minute)
	started := make(chan struct{})
	l.onLaunch = func(Request) { close(started) }

	done := make(chan Result)
	go func() {
		res, _ := b.Open(context.Background(), Request{Key: "s1", URL: "https://pay.example/auth"})
		done <- res
	}()
	<-started

	_, err := b.Open(context.Background(), Request{Key: "s1", URL: "https://pay.example/other"})
	assert.ErrorIs(t, err, ErrBusy)

	assert.True(t, b.Resolve("s1", Cancel))
	assert.Equal(t, Cancel, (<-done).Type)
}

func TestOpen_LaunchErrorUnregisters(t *testing.T) {
	boom := errors.New("boom")
	b := New(&fakeLauncher{err: boom}, time.Minute)

	_, err := b.Open(context.Background(), Request{Key: "s1", URL: "https://pay.example/auth"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, b.Pending("s1"))
}

func TestOpen_NoURL(t *testing.T) {
	_, err := New(&fakeLauncher{}, time.Minute).Open(context.Background(), Request{Key: "s1"})
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestResolve_NoWaiter(t *testing.T) {
	assert.False(t, New(&fakeLauncher{}, time.Minute).Resolve("nobody", Success))
}

func TestParseResultType(t *testing.T) {
	rt, ok := ParseResultType("cancel")
	assert.True(t, ok)
	assert.Equal(t, Cancel, rt)
	_, ok = ParseResultType("closed")
	assert.False(t, ok)
}

type capture struct{ types []string }

func (c *capture) Publish(_ context.Context, ev events.Event) error {
	c.types = append(c.types, ev.Type)
	return nil
}

func TestEventLauncher(t *testing.T) {
	pub := &capture{}
	b := New(EventLauncher{Publisher: pub}, 10*time.Millisecond)

	_, err := b.Open(context.Background(), Request{Key: "s1", URL: "https://pay.example/auth"})
	require.NoError(t, err)
	assert.Equal(t, []string{events.TypeRedirectOpened, events.TypeRedirectClosed}, pub.types)
}

func TestOpen_ReadyRunsOnceResolvable(t *testing.T) {
	l := &fakeLauncher{}
	b := New(l, time.Second)

	var pendingAtReady bool
	res, err := b.Open(context.Background(), Request{
		Key: "s1",
		URL: "https://pay.example/auth",
		Ready: func() {
			pendingAtReady = b.Pending("s1")
			assert.Equal(t, int32(0), l.launched.Load(), "ready runs before launch")
			assert.True(t, b.Resolve("s1", Cancel))
		},
	})
	require.NoError(t, err)
	assert.True(t, pendingAtReady)
	assert.True(t, IsConfirmedCancel(res))
}
