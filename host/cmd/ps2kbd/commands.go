package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"ps2kbd/host/remote"
	"ps2kbd/ps2"
)

// parseByte reads a scan code written in hex, with or without 0x
func parseByte(s string) (byte, error) {
	t := strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(t, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("bad byte %q", s)
	}
	return byte(v), nil
}

func parseBytes(args []string) ([]byte, error) {
	out := make([]byte, 0, len(args))
	for _, a := range args {
		b, err := parseByte(a)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// run opens a session, hands its controller to fn and closes it
func (e *env) run(g *Globals, fn func(ctl ps2.Controller) error) error {
	s, _, err := e.session(g)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s.ctl)
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

type initCmd struct{}

func (c *initCmd) Run(g *Globals, e *env) error {
	s, cfg, err := e.session(g)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.client != nil {
		version, err := s.client.Identify()
		if err != nil {
			return err
		}
		e.printf("firmware %s on %s\n", version, cfg.Device)
	} else {
		e.printf("local %s GPIO\n", cfg.Backend)
	}
	e.printf("clock %d data %d clock_pd %d data_pd %d\n",
		cfg.Pins.Clock, cfg.Pins.Data, cfg.Pins.ClockPulldown, cfg.Pins.DataPulldown)
	return nil
}

type flagsCmd struct {
	Start  string `enum:",use,ignore" default:"" help:"Start bit check: use or ignore."`
	Stop   string `enum:",use,ignore" default:"" help:"Stop bit check: use or ignore."`
	Parity string `enum:",use,ignore" default:"" help:"Parity check: use or ignore."`
}

func (c *flagsCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error {
		p, err := ctl.Validation()
		if err != nil {
			return err
		}
		if c.Start != "" || c.Stop != "" || c.Parity != "" {
			apply(&p.ValidateStart, c.Start)
			apply(&p.ValidateStop, c.Stop)
			apply(&p.ValidateParity, c.Parity)
			if err := ctl.SetValidation(p); err != nil {
				return err
			}
		}
		start, stop, parity := p.Flags()
		e.printf("start %d stop %d parity %d\n", start, stop, parity)
		return nil
	})
}

func apply(check *bool, flag string) {
	switch flag {
	case "use":
		*check = true
	case "ignore":
		*check = false
	}
}

type receiveCmd struct {
	Count int `short:"n" default:"1" help:"Number of bytes to receive."`
}

func (c *receiveCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error {
		for i := 0; i < c.Count; i++ {
			b, err := ctl.Receive()
			if err != nil {
				return err
			}
			e.printf("0x%02X\n", b)
		}
		return nil
	})
}

type monitorCmd struct {
	Poll int `default:"100" help:"Edge timeout used when none is configured, in milliseconds."`
}

func (c *monitorCmd) Run(g *Globals, e *env) error {
	g.idleEdgeTimeout = c.Poll
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return e.run(g, func(ctl ps2.Controller) error {
		return e.monitor(ctx, ctl)
	})
}

// monitor prints bytes until ctx ends and the last Receive has returned.
// Framing errors are reported and skipped.
func (e *env) monitor(ctx context.Context, ctl ps2.Controller) error {
	done := make(chan error, 1)
	go func() {
		for ctx.Err() == nil {
			b, err := ctl.Receive()
			switch {
			case err == nil:
				e.printf("0x%02X\n", b)
			case errors.Is(err, ps2.ErrFraming):
				e.printf("framing: %v\n", err)
			case errors.Is(err, ps2.ErrTimeout), errors.Is(err, remote.ErrReplyTimeout):
			default:
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case <-ctx.Done():
		<-done
		return nil
	case err := <-done:
		return err
	}
}

type sendCmd struct {
	Byte string `arg:"" help:"Byte to send, in hex."`
}

func (c *sendCmd) Run(g *Globals, e *env) error {
	b, err := parseByte(c.Byte)
	if err != nil {
		return err
	}
	return e.run(g, func(ctl ps2.Controller) error {
		return ctl.Send(b)
	})
}

type ledsCmd struct {
	Num    bool `help:"Light Num Lock."`
	Caps   bool `help:"Light Caps Lock."`
	Scroll bool `help:"Light Scroll Lock."`
}

func (c *ledsCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error {
		return ctl.SetLEDs(c.Num, c.Caps, c.Scroll)
	})
}

type keyEventsCmd struct {
	IgnoreBreak     bool     `name:"ignore-break" help:"Suppress break codes."`
	IgnoreTypematic bool     `name:"ignore-typematic" help:"Suppress typematic repeats."`
	Keys            []string `arg:"" help:"Set 3 scan codes, in hex."`
}

func (c *keyEventsCmd) Run(g *Globals, e *env) error {
	keys, err := parseBytes(c.Keys)
	if err != nil {
		return err
	}
	return e.run(g, func(ctl ps2.Controller) error {
		return ctl.ConfigureKeyEvents(keys, c.IgnoreBreak, c.IgnoreTypematic)
	})
}

type allKeyEventsCmd struct {
	IgnoreBreak     bool `name:"ignore-break" help:"Suppress break codes."`
	IgnoreTypematic bool `name:"ignore-typematic" help:"Suppress typematic repeats."`
}

func (c *allKeyEventsCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error {
		return ctl.ConfigureAllKeyEvents(c.IgnoreBreak, c.IgnoreTypematic)
	})
}

type typematicCmd struct {
	Rate  int `default:"109" help:"Repeat rate in tenths of a character per second."`
	Delay int `default:"500" help:"Delay before repeating, in milliseconds."`
}

func (c *typematicCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error {
		rate, delay, err := ctl.SetRepeatRateAndDelay(c.Rate, c.Delay)
		if err != nil {
			return err
		}
		e.printf("rate %d delay %d\n", rate, delay)
		return nil
	})
}

type scanSetCmd struct {
	Set int `arg:"" help:"Scan code set, 1 to 3."`
}

func (c *scanSetCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error {
		return ctl.SetScanCodeSet(c.Set)
	})
}

type enableCmd struct{}

func (c *enableCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error { return ctl.Enable() })
}

type disableCmd struct{}

func (c *disableCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error { return ctl.Disable() })
}

type defaultCmd struct{}

func (c *defaultCmd) Run(g *Globals, e *env) error {
	return e.run(g, func(ctl ps2.Controller) error { return ctl.ResetToDefault() })
}

type resetCmd struct{}

func (c *resetCmd) Run(g *Globals, e *env) error {
	return e.query(g, ps2.Controller.Reset)
}

type resendCmd struct{}

func (c *resendCmd) Run(g *Globals, e *env) error {
	return e.query(g, ps2.Controller.Resend)
}

type echoCmd struct{}

func (c *echoCmd) Run(g *Globals, e *env) error {
	return e.query(g, ps2.Controller.Echo)
}

func (e *env) query(g *Globals, fn func(ps2.Controller) (byte, error)) error {
	return e.run(g, func(ctl ps2.Controller) error {
		b, err := fn(ctl)
		if err != nil {
			return err
		}
		e.printf("0x%02X\n", b)
		return nil
	})
}

type dictionaryCmd struct{}

func (c *dictionaryCmd) Run(g *Globals, e *env) error {
	s, _, err := e.session(g)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.client == nil {
		return errors.New("dictionary needs the serial backend")
	}
	d, err := s.client.Dictionary()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(d.Commands))
	for name := range d.Commands {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return d.Commands[names[i]] < d.Commands[names[j]] })

	e.printf("version %s\n", d.Version)
	for _, name := range names {
		e.printf("%3d %s\n", d.Commands[name], name)
	}
	return nil
}
