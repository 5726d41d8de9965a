package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert.NotNil(t, New())
}

func TestSleep(t *testing.T) {
	assert.NotPanics(t, func() {
		clock{}.Sleep(1 * time.Microsecond)
	})
}

func TestNow(t *testing.T) {
	before := time.Now()
	now := clock{}.Now()
	assert.False(t, now.Before(before))
}

func TestAfter(t *testing.T) {
	select {
	case <-clock{}.After(1 * time.Microsecond):
	case <-time.After(5 * time.Second):
		t.Fatal("After did not fire")
	}
}
