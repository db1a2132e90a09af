package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/protocol"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Push(editor.CmdMsg{Cmd: protocol.Scroll{Lines: i}})
	}
	require.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		msg, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, protocol.Scroll{Lines: i}, msg.(editor.CmdMsg).Cmd)
	}
	_, ok := q.TryPop()
	require.False(t, ok)
	require.Zero(t, q.Len())
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := NewQueue()
	got := make(chan editor.Msg, 1)
	go func() {
		msg, err := q.Pop(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(editor.CmdMsg{Cmd: protocol.Quit{}})
	select {
	case msg := <-got:
		require.Equal(t, protocol.Quit{}, msg.(editor.CmdMsg).Cmd)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueuePopHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewQueue().Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers, each = 8, 200
	done := make(chan struct{})
	for p := 0; p < producers; p++ {
		go func() {
			for i := 0; i < each; i++ {
				q.Push(editor.CmdMsg{Cmd: protocol.Scroll{Lines: i}})
			}
			done <- struct{}{}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for n := 0; n < producers*each; n++ {
		_, err := q.Pop(ctx)
		require.NoError(t, err)
	}
	for p := 0; p < producers; p++ {
		<-done
	}
	require.Zero(t, q.Len())
}
