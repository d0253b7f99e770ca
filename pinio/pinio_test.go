package pinio

import (
	"testing"
	"time"
)

func TestSpin(t *testing.T) {
	for _, us := range []uint32{0, 50, 500} {
		start := time.Now()
		Spin(us)
		if got := time.Since(start); got < time.Duration(us)*time.Microsecond {
			t.Errorf("Spin(%d) returned after %v", us, got)
		}
	}
}

func TestPinName(t *testing.T) {
	if got := PinName(17); got != "GPIO17" {
		t.Errorf("PinName(17) = %q", got)
	}
}
