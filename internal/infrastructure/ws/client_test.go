package ws

import (
	"sync"
	"testing"

	"github.com/tabsync/tabsync/internal/domain"
)

// A disconnect can land between two sends from the hub loop; hammering
// TrySend while Close runs concurrently must never panic on the send
// channel.
func TestTrySend_ConcurrentWithClose(t *testing.T) {
	env := NewError("noise")

	for i := 0; i < 500; i++ {
		cl := newTestClient("c1", staffIdentity("t1", domain.RoleWaiter))

		var wg sync.WaitGroup
		wg.Add(3)

		for s := 0; s < 2; s++ {
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					cl.TrySend(env)
				}
			}()
		}

		go func() {
			defer wg.Done()
			cl.Close()
		}()

		wg.Wait()

		if cl.TrySend(env) {
			t.Fatal("send after close must report failure")
		}
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	cl := newTestClient("c1", staffIdentity("t1", domain.RoleChef))
	cl.Close()
	cl.Close()

	if !cl.IsClosed() {
		t.Error("client should report closed")
	}
}
