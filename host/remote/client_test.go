package remote_test

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"ps2kbd/core"
	"ps2kbd/host/remote"
	"ps2kbd/protocol"
	"ps2kbd/ps2"
	"ps2kbd/ps2/ps2test"
)

// newRemote connects a client to a firmware server driving a simulated
// keyboard, over an in-memory pipe.
func newRemote(t *testing.T, configure bool) (*remote.Client, *ps2test.Keyboard) {
	t.Helper()
	kb := ps2test.NewKeyboard()
	srv := core.NewServer(kb)

	hostEnd, fwEnd := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(fwEnd, fwEnd) }()

	c := remote.New(hostEnd, remote.WithTimeout(time.Second))
	t.Cleanup(func() {
		c.Close()
		fwEnd.Close()
		<-done
	})

	if configure {
		if err := c.Configure(kb.Pins(), 0, 0); err != nil {
			t.Fatalf("Configure: %v", err)
		}
	}
	return c, kb
}

func newLocal(t *testing.T) (ps2.Controller, *ps2test.Keyboard) {
	t.Helper()
	kb := ps2test.NewKeyboard()
	link, err := ps2.NewLink(kb, kb.Pins())
	if err != nil {
		t.Fatal(err)
	}
	return ps2.NewKeyboard(link), kb
}

// exercise runs the same operations against any controller
func exercise(t *testing.T, ctl ps2.Controller, kb *ps2test.Keyboard) {
	t.Helper()

	if err := ctl.SetLEDs(true, true, false); err != nil {
		t.Fatalf("SetLEDs: %v", err)
	}
	if got := kb.KeyboardState().LEDs; got != ps2.LEDNum|ps2.LEDCaps {
		t.Errorf("LEDs = 0x%02X", got)
	}

	rate, delay, err := ctl.SetRepeatRateAndDelay(300, 250)
	if err != nil || rate != 300 || delay != 250 {
		t.Errorf("SetRepeatRateAndDelay = %d, %d, %v", rate, delay, err)
	}
	if kb.KeyboardState().Typematic != 0x00 {
		t.Errorf("typematic = 0x%02X", kb.KeyboardState().Typematic)
	}

	if err := ctl.SetScanCodeSet(1); err != nil {
		t.Errorf("SetScanCodeSet: %v", err)
	}
	if err := ctl.SetScanCodeSet(7); !errors.Is(err, ps2.ErrInvalidArgument) {
		t.Errorf("SetScanCodeSet(7) error = %v", err)
	}

	if err := ctl.ConfigureKeyEvents([]byte{0x12, 0x59}, true, false); err != nil {
		t.Errorf("ConfigureKeyEvents: %v", err)
	}
	if kb.KeyboardState().KeyTypes[0x59] != ps2.CmdKeyMakeType {
		t.Error("key type not applied")
	}
	if err := ctl.ConfigureKeyEvents([]byte{0x12}, false, false); !errors.Is(err, ps2.ErrInvalidArgument) {
		t.Errorf("ConfigureKeyEvents(false, false) error = %v", err)
	}
	if err := ctl.ConfigureAllKeyEvents(false, true); err != nil {
		t.Errorf("ConfigureAllKeyEvents: %v", err)
	}

	if err := ctl.Disable(); err != nil {
		t.Errorf("Disable: %v", err)
	}
	if err := ctl.Enable(); err != nil {
		t.Errorf("Enable: %v", err)
	}
	if err := ctl.ResetToDefault(); err != nil {
		t.Errorf("ResetToDefault: %v", err)
	}

	if b, err := ctl.Echo(); err != nil || b != ps2.ECHO {
		t.Errorf("Echo = 0x%02X, %v", b, err)
	}
	if b, err := ctl.Reset(); err != nil || b != ps2.ACK {
		t.Errorf("Reset = 0x%02X, %v", b, err)
	}
	if b, err := ctl.Receive(); err != nil || b != ps2.BATPassed {
		t.Errorf("Receive after reset = 0x%02X, %v", b, err)
	}

	p := ps2.PolicyFromFlags(ps2.Ignore, ps2.Ignore, ps2.Use)
	if err := ctl.SetValidation(p); err != nil {
		t.Fatal(err)
	}
	if got, err := ctl.Validation(); err != nil || got != p {
		t.Errorf("Validation = %+v, %v", got, err)
	}
}

func TestLocalController(t *testing.T) {
	ctl, kb := newLocal(t)
	exercise(t, ctl, kb)
}

func TestRemoteController(t *testing.T) {
	c, kb := newRemote(t, true)
	exercise(t, c, kb)
}

func TestIdentify(t *testing.T) {
	c, _ := newRemote(t, false)
	v, err := c.Identify()
	if err != nil || v != protocol.Version {
		t.Errorf("Identify = %q, %v", v, err)
	}
}

func TestNotConfigured(t *testing.T) {
	c, _ := newRemote(t, false)
	if _, err := c.Echo(); !errors.Is(err, ps2.ErrNotConfigured) {
		t.Errorf("Echo error = %v, want ErrNotConfigured", err)
	}
	st, err := c.KeyboardStatus()
	if err != nil || st.Configured {
		t.Errorf("KeyboardStatus = %+v, %v", st, err)
	}
}

func TestKeyboardStatus(t *testing.T) {
	c, _ := newRemote(t, true)
	if err := c.Enable(); err != nil {
		t.Fatal(err)
	}
	st, err := c.KeyboardStatus()
	if err != nil {
		t.Fatal(err)
	}
	if !st.Configured || st.State != ps2.StateIdle || !st.LastSendAcked {
		t.Errorf("KeyboardStatus = %+v", st)
	}
}

func TestRemoteAbort(t *testing.T) {
	c, kb := newRemote(t, true)
	kb.Intercept = func(n int, b byte) ([]byte, bool) {
		// the configure request sends nothing; byte 1 is the first key
		if n == 1 {
			return []byte{ps2.RespAgain}, true
		}
		return nil, false
	}

	err := c.ConfigureKeyEvents([]byte{0x1C, 0x32}, true, true)
	var abort *ps2.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("error = %v, want *ps2.AbortError", err)
	}
	if abort.Command != ps2.CmdKeyMakeOnly || abort.Step != 1 || abort.Got != ps2.RespAgain || abort.Err != nil {
		t.Errorf("abort = %+v", abort)
	}
}

func TestRemoteFraming(t *testing.T) {
	c, kb := newRemote(t, true)
	kb.QueueFrame(ps2.NewFrame(0x1C) | 1) // start bit set

	_, err := c.Receive()
	var fe *ps2.FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *ps2.FramingError", err)
	}
	if !fe.BadStart || fe.BadParity || fe.BadStop || fe.Frame.Data() != 0x1C {
		t.Errorf("framing error = %+v", fe)
	}
	if !errors.Is(err, ps2.ErrFraming) {
		t.Error("framing error does not match ErrFraming")
	}
}

func TestTooManyKeys(t *testing.T) {
	c, kb := newRemote(t, true)
	keys := make([]byte, protocol.MessagePayloadMax)
	err := c.ConfigureKeyEvents(keys, true, true)
	if !errors.Is(err, ps2.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
	if len(kb.ReceivedBytes()) != 0 {
		t.Error("oversized request reached the keyboard")
	}
}

func TestUnknownCommand(t *testing.T) {
	c, _ := newRemote(t, false)
	if _, err := c.Call(120, nil); !errors.Is(err, remote.ErrUnknownCommand) {
		t.Errorf("error = %v, want ErrUnknownCommand", err)
	}
}

func TestReplyTimeout(t *testing.T) {
	hostEnd, fwEnd := net.Pipe()
	go io.Copy(io.Discard, fwEnd)
	defer fwEnd.Close()

	c := remote.New(hostEnd, remote.WithTimeout(20*time.Millisecond))
	defer c.Close()

	_, err := c.Identify()
	if !errors.Is(err, remote.ErrReplyTimeout) {
		t.Fatalf("error = %v, want ErrReplyTimeout", err)
	}
	if !strings.Contains(err.Error(), "command 0") {
		t.Errorf("error text %q does not name the command", err)
	}
}

func TestDictionary(t *testing.T) {
	c, _ := newRemote(t, false)
	d, err := c.Dictionary()
	if err != nil {
		t.Fatalf("Dictionary: %v", err)
	}
	if d.Version != protocol.Version {
		t.Errorf("version = %q", d.Version)
	}
	if id, ok := d.Commands["get_keyboard_status"]; !ok || id != int(protocol.CmdGetKeyboardStatus) {
		t.Errorf("get_keyboard_status = %d, %v", id, ok)
	}
	if d.Enumerations["status"]["not_configured"] != int(protocol.StatusNotConfigured) {
		t.Errorf("status enumeration = %v", d.Enumerations["status"])
	}
}

func TestConcurrentClose(t *testing.T) {
	c, _ := newRemote(t, false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()
	if _, err := c.Identify(); err == nil {
		t.Error("Identify succeeded on a closed client")
	}
}
