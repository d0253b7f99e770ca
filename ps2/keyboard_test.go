package ps2_test

import (
	"bytes"
	"errors"
	"testing"

	"ps2kbd/ps2"
	"ps2kbd/ps2/ps2test"
)

func newKeyboard(t *testing.T) (*ps2.Keyboard, *ps2test.Keyboard) {
	t.Helper()
	link, kb := newLink(t)
	return ps2.NewKeyboard(link), kb
}

func expectBytes(t *testing.T, kb *ps2test.Keyboard, want ...byte) {
	t.Helper()
	if got := kb.ReceivedBytes(); !bytes.Equal(got, want) {
		t.Errorf("keyboard received % X, want % X", got, want)
	}
}

func TestAllKeyEventsSelector(t *testing.T) {
	tests := []struct {
		ignoreBreak, ignoreTypematic bool
		want                         byte
	}{
		{true, true, ps2.CmdAllMakeOnly},
		{true, false, ps2.CmdAllMakeType},
		{false, true, ps2.CmdAllMakeBreak},
		{false, false, ps2.CmdAllMakeBreakTyp},
	}
	for _, tt := range tests {
		if got := ps2.AllKeyEventsCode(tt.ignoreBreak, tt.ignoreTypematic); got != tt.want {
			t.Errorf("AllKeyEventsCode(%v, %v) = 0x%02X, want 0x%02X", tt.ignoreBreak, tt.ignoreTypematic, got, tt.want)
		}

		k, kb := newKeyboard(t)
		if err := k.ConfigureAllKeyEvents(tt.ignoreBreak, tt.ignoreTypematic); err != nil {
			t.Fatalf("ConfigureAllKeyEvents(%v, %v): %v", tt.ignoreBreak, tt.ignoreTypematic, err)
		}
		expectBytes(t, kb, tt.want, ps2.CmdEcho)
		if got := kb.KeyboardState().AllKeys; got != tt.want {
			t.Errorf("keyboard all-keys type = 0x%02X, want 0x%02X", got, tt.want)
		}
		if kb.Pending() != 0 {
			t.Errorf("echo reply left unread")
		}
	}
}

func TestKeyEventsSelector(t *testing.T) {
	keys := []byte{0x1C, 0x32, 0x21}
	tests := []struct {
		ignoreBreak, ignoreTypematic bool
		want                         byte
		ok                           bool
	}{
		{true, true, ps2.CmdKeyMakeOnly, true},
		{true, false, ps2.CmdKeyMakeType, true},
		{false, true, ps2.CmdKeyMakeBreak, true},
		{false, false, 0, false},
	}
	for _, tt := range tests {
		code, ok := ps2.KeyEventsCode(tt.ignoreBreak, tt.ignoreTypematic)
		if code != tt.want || ok != tt.ok {
			t.Errorf("KeyEventsCode(%v, %v) = 0x%02X, %v", tt.ignoreBreak, tt.ignoreTypematic, code, ok)
		}

		k, kb := newKeyboard(t)
		err := k.ConfigureKeyEvents(keys, tt.ignoreBreak, tt.ignoreTypematic)
		if !tt.ok {
			if !errors.Is(err, ps2.ErrInvalidArgument) {
				t.Errorf("ConfigureKeyEvents(false, false) error = %v, want ErrInvalidArgument", err)
			}
			expectBytes(t, kb)
			if len(kb.Inhibits()) != 0 {
				t.Error("rejected command touched the bus")
			}
			continue
		}
		if err != nil {
			t.Fatalf("ConfigureKeyEvents(%v, %v): %v", tt.ignoreBreak, tt.ignoreTypematic, err)
		}
		expectBytes(t, kb, tt.want, 0x1C, 0x32, 0x21, ps2.CmdEcho)
		types := kb.KeyboardState().KeyTypes
		for _, key := range keys {
			if types[key] != tt.want {
				t.Errorf("key 0x%02X type = 0x%02X, want 0x%02X", key, types[key], tt.want)
			}
		}
	}
}

func TestKeyEventsAbortsOnMissingAck(t *testing.T) {
	k, kb := newKeyboard(t)
	// byte 0 is the command, byte 2 the second key code
	kb.Intercept = func(n int, b byte) ([]byte, bool) {
		if n == 2 {
			return []byte{ps2.RespAgain}, true
		}
		return nil, false
	}

	err := k.ConfigureKeyEvents([]byte{0x1C, 0x32, 0x21}, true, true)
	if !errors.Is(err, ps2.ErrAbort) {
		t.Fatalf("error = %v, want ErrAbort", err)
	}
	var abort *ps2.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("error %T is not an *AbortError", err)
	}
	if abort.Command != ps2.CmdKeyMakeOnly || abort.Step != 2 || abort.Got != ps2.RespAgain {
		t.Errorf("abort = %+v", abort)
	}

	// neither the third key nor the terminating echo went out
	expectBytes(t, kb, ps2.CmdKeyMakeOnly, 0x1C, 0x32)
	if k.State() != ps2.StateIdle {
		t.Errorf("state after abort = %v, want idle", k.State())
	}
}

func TestKeyEventsAbortsOnFirstAck(t *testing.T) {
	k, kb := newKeyboard(t)
	kb.Intercept = func(n int, b byte) ([]byte, bool) {
		if n == 0 {
			return []byte{ps2.RespError}, true
		}
		return nil, false
	}

	err := k.ConfigureKeyEvents([]byte{0x1C}, false, true)
	var abort *ps2.AbortError
	if !errors.As(err, &abort) || abort.Step != 0 || abort.Got != ps2.RespError {
		t.Fatalf("error = %v, want abort at step 0", err)
	}
	expectBytes(t, kb, ps2.CmdKeyMakeBreak)
}

func TestAllKeyEventsAbortOnFramingError(t *testing.T) {
	k, kb := newKeyboard(t)
	kb.CorruptReply = func(n int) bool { return n == 0 }

	err := k.ConfigureAllKeyEvents(true, true)
	if !errors.Is(err, ps2.ErrAbort) || !errors.Is(err, ps2.ErrFraming) {
		t.Fatalf("error = %v, want abort caused by a framing error", err)
	}
	expectBytes(t, kb, ps2.CmdAllMakeOnly)
}

func TestKeyEventsEmptyList(t *testing.T) {
	k, kb := newKeyboard(t)
	if err := k.ConfigureKeyEvents(nil, true, false); err != nil {
		t.Fatal(err)
	}
	expectBytes(t, kb, ps2.CmdKeyMakeType, ps2.CmdEcho)
}

func TestSetScanCodeSet(t *testing.T) {
	for _, set := range []int{0, 4, -1, 255} {
		k, kb := newKeyboard(t)
		if err := k.SetScanCodeSet(set); !errors.Is(err, ps2.ErrInvalidArgument) {
			t.Errorf("SetScanCodeSet(%d) error = %v, want ErrInvalidArgument", set, err)
		}
		expectBytes(t, kb)
		if len(kb.Inhibits()) != 0 {
			t.Errorf("SetScanCodeSet(%d) touched the bus", set)
		}
	}

	for _, set := range []int{1, 2, 3} {
		k, kb := newKeyboard(t)
		if err := k.SetScanCodeSet(set); err != nil {
			t.Fatalf("SetScanCodeSet(%d): %v", set, err)
		}
		expectBytes(t, kb, ps2.CmdSetScanCodeSet, byte(set))
		if got := kb.KeyboardState().ScanCodeSet; got != set {
			t.Errorf("keyboard scan code set = %d, want %d", got, set)
		}
	}
}

func TestSetScanCodeSetNoAck(t *testing.T) {
	k, kb := newKeyboard(t)
	kb.Intercept = func(n int, b byte) ([]byte, bool) {
		return []byte{ps2.RespAgain}, n == 0
	}
	err := k.SetScanCodeSet(3)
	var abort *ps2.AbortError
	if !errors.As(err, &abort) || abort.Command != ps2.CmdSetScanCodeSet || abort.Step != 0 {
		t.Fatalf("error = %v, want abort on the command ACK", err)
	}
	// the parameter was never sent
	expectBytes(t, kb, ps2.CmdSetScanCodeSet)
	if kb.KeyboardState().ScanCodeSet != 2 {
		t.Error("scan code set changed")
	}
}

func TestSetRepeatRateAndDelay(t *testing.T) {
	tests := []struct {
		rate, delay         int
		wantRate, wantDelay int
	}{
		{300, 250, 300, 250},
		{0, 250, 20, 250},
		{300, 600, 300, 500},
		{109, 1000, 109, 1000},
	}
	for _, tt := range tests {
		k, kb := newKeyboard(t)
		r, d, err := k.SetRepeatRateAndDelay(tt.rate, tt.delay)
		if err != nil {
			t.Fatal(err)
		}
		if r != tt.wantRate || d != tt.wantDelay {
			t.Errorf("SetRepeatRateAndDelay(%d, %d) = (%d, %d), want (%d, %d)", tt.rate, tt.delay, r, d, tt.wantRate, tt.wantDelay)
		}
		code, _, _ := ps2.SelectTypematic(tt.rate, tt.delay)
		expectBytes(t, kb, ps2.CmdSetTypematic, code)
		if kb.KeyboardState().Typematic != code {
			t.Errorf("keyboard typematic = 0x%02X, want 0x%02X", kb.KeyboardState().Typematic, code)
		}
	}
}

func TestSetLEDs(t *testing.T) {
	tests := []struct {
		num, caps, scroll bool
		want              byte
	}{
		{false, false, false, 0x00},
		{false, false, true, 0x01},
		{true, false, false, 0x02},
		{false, true, false, 0x04},
		{true, true, true, 0x07},
	}
	for _, tt := range tests {
		k, kb := newKeyboard(t)
		if err := k.SetLEDs(tt.num, tt.caps, tt.scroll); err != nil {
			t.Fatal(err)
		}
		expectBytes(t, kb, ps2.CmdSetLEDs, tt.want)
		if got := kb.KeyboardState().LEDs; got != tt.want {
			t.Errorf("LEDs = 0x%02X, want 0x%02X", got, tt.want)
		}
	}
}

func TestSingleByteCommands(t *testing.T) {
	tests := []struct {
		name string
		run  func(*ps2.Keyboard) error
		code byte
	}{
		{"enable", (*ps2.Keyboard).Enable, ps2.CmdEnable},
		{"disable", (*ps2.Keyboard).Disable, ps2.CmdDisable},
		{"default", (*ps2.Keyboard).ResetToDefault, ps2.CmdDefault},
		{"send", func(k *ps2.Keyboard) error { return k.Send(0xF2) }, 0xF2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, kb := newKeyboard(t)
			if err := tt.run(k); err != nil {
				t.Fatal(err)
			}
			expectBytes(t, kb, tt.code)
		})
	}
}

func TestDisableEnable(t *testing.T) {
	k, kb := newKeyboard(t)
	if err := k.Disable(); err != nil {
		t.Fatal(err)
	}
	if kb.KeyboardState().Enabled {
		t.Error("keyboard still enabled")
	}
	if err := k.Enable(); err != nil {
		t.Fatal(err)
	}
	if !kb.KeyboardState().Enabled {
		t.Error("keyboard not enabled")
	}
}

func TestQueries(t *testing.T) {
	k, kb := newKeyboard(t)

	if b, err := k.Echo(); err != nil || b != ps2.ECHO {
		t.Errorf("Echo() = 0x%02X, %v", b, err)
	}
	if b, err := k.Resend(); err != nil || b != ps2.ECHO {
		t.Errorf("Resend() after echo = 0x%02X, %v", b, err)
	}
	if b, err := k.Reset(); err != nil || b != ps2.ACK {
		t.Errorf("Reset() = 0x%02X, %v", b, err)
	}
	// the self test result follows the ACK
	if b, err := k.Receive(); err != nil || b != ps2.BATPassed {
		t.Errorf("Receive() after reset = 0x%02X, %v", b, err)
	}
	if kb.KeyboardState().Resets != 1 {
		t.Error("keyboard was not reset")
	}
	expectBytes(t, kb, ps2.CmdEcho, ps2.CmdResend, ps2.CmdReset)
}

func TestReceiveScanCodes(t *testing.T) {
	k, kb := newKeyboard(t)
	codes := []byte{0x1C, 0xF0, 0x1C, 0xE0, 0x75}
	kb.Queue(codes...)
	for _, want := range codes {
		b, err := k.Receive()
		if err != nil {
			t.Fatal(err)
		}
		if b != want {
			t.Errorf("Receive() = 0x%02X, want 0x%02X", b, want)
		}
	}
}

func TestValidationRoundTrip(t *testing.T) {
	k, kb := newKeyboard(t)
	p := ps2.PolicyFromFlags(ps2.Ignore, ps2.Use, ps2.Ignore)
	if err := k.SetValidation(p); err != nil {
		t.Fatal(err)
	}
	got, err := k.Validation()
	if err != nil || got != p {
		t.Fatalf("Validation() = %+v, %v", got, err)
	}

	kb.QueueFrame(ps2.NewFrame(0x42) ^ 1<<9)
	if b, err := k.Receive(); err != nil || b != 0x42 {
		t.Errorf("Receive() with parity ignored = 0x%02X, %v", b, err)
	}
}

func TestStateTrace(t *testing.T) {
	k, _ := newKeyboard(t)
	var trace []string
	k.SetDebugWriter(func(s string) { trace = append(trace, s) })

	if err := k.ConfigureKeyEvents([]byte{0x1C}, true, true); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"ps2: state awaiting-first-ack",
		"ps2: state sending-list-items",
		"ps2: state awaiting-item-ack",
		"ps2: state sending-terminator",
		"ps2: state idle",
	}
	if len(trace) != len(want) {
		t.Fatalf("trace = %q", trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d] = %q, want %q", i, trace[i], want[i])
		}
	}
}
