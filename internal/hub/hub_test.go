package hub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-tracker-api/internal/logging"
)

func TestRegistry_PublishReachesEveryClientOfUser(t *testing.T) {
	r := NewRegistry(logging.Discard())
	first := NewClient(1, 4)
	second := NewClient(1, 4)
	other := NewClient(2, 4)
	r.Register(first)
	r.Register(second)
	r.Register(other)

	assert.Equal(t, 2, r.Connections(1))

	n := r.PublishToUser(1, Frame{Type: "ReceiveNotification", Payload: "hello"})
	assert.Equal(t, 2, n)

	for _, c := range []*Client{first, second} {
		select {
		case f := <-c.Send():
			assert.Equal(t, "hello", f.Payload)
		default:
			t.Fatal("frame not queued")
		}
	}
	assert.Len(t, other.Send(), 0)
}

func TestRegistry_PublishWithoutConnections(t *testing.T) {
	r := NewRegistry(logging.Discard())
	assert.Equal(t, 0, r.PublishToUser(42, Frame{Type: "x"}))
}

func TestRegistry_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	r := NewRegistry(logging.Discard())
	c := NewClient(1, 1)
	r.Register(c)

	assert.Equal(t, 1, r.PublishToUser(1, Frame{Type: "a"}))
	assert.Equal(t, 0, r.PublishToUser(1, Frame{Type: "b"}))

	f := <-c.Send()
	assert.Equal(t, "a", f.Type)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(logging.Discard())
	c := NewClient(7, 1)
	r.Register(c)

	r.Unregister(c)
	r.Unregister(c)

	assert.Equal(t, 0, r.Connections(7))
	assert.Equal(t, 0, r.PublishToUser(7, Frame{Type: "late"}))

	select {
	case <-c.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient(1, 2)
			r.Register(c)
			r.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			r.PublishToUser(1, Frame{Type: "x"})
		}()
	}
	wg.Wait()

	require.Equal(t, 0, r.Connections(1))
}
