package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSiteLocks_SameKeySerializes(t *testing.T) {
	locks := newSiteLocks()
	release := locks.lock("https://drift.example")

	acquired := make(chan struct{})
	go func() {
		r := locks.lock("https://drift.example")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must wait for the holder")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire must proceed after release")
	}
}

func TestSiteLocks_DistinctKeysDoNotContend(t *testing.T) {
	locks := newSiteLocks()
	release := locks.lock("https://drift.example")
	defer release()

	done := make(chan struct{})
	go func() {
		r := locks.lock("https://other.example")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different sites must not contend")
	}
}

func TestSiteLocks_ReleasedKeysLeaveNoResidue(t *testing.T) {
	locks := newSiteLocks()
	r1 := locks.lock("https://drift.example")
	r1()
	r2 := locks.lock("https://other.example")
	r2()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
