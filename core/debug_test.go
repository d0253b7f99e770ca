package core

import (
	"testing"
	"time"

	"ps2kbd/ps2/ps2test"
)

func TestAsyncDebugTrace(t *testing.T) {
	got := make(chan string, 64)
	SetDebugWriter(func(s string) { got <- s })
	SetDebugEnabled(true)
	t.Cleanup(func() {
		SetDebugEnabled(false)
		SetDebugWriter(nil)
	})

	InitAsyncDebug()
	InitAsyncDebug()

	DebugAsync("queued")
	select {
	case msg := <-got:
		if msg != "queued" {
			t.Errorf("async message = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("async message never written")
	}

	// a configured link traces through the queue
	kb := ps2test.NewKeyboard()
	s := NewServer(kb)
	if err := s.Configure(kb.Pins()); err != nil {
		t.Fatal(err)
	}
	k, _ := s.Keyboard()
	if _, err := k.Echo(); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-got:
			if msg == "ps2: rx 0xEE" {
				return
			}
		case <-deadline:
			t.Fatal("link trace never reached the debug writer")
		}
	}
}

func TestEventRingDumpOnRecover(t *testing.T) {
	s, _ := configuredServer(t)
	var lines []string
	func() {
		defer func() {
			if recover() != nil {
				s.Events().Dump(func(l string) { lines = append(lines, l) })
			}
		}()
		panic("handler crashed")
	}()
	// header, config_keyboard event, footer
	if len(lines) != 3 || lines[1] != "[EVENTS] seq=16 cmd=1 status=ok" {
		t.Errorf("dump = %q", lines)
	}
}
