package main

import (
	"fmt"
	"io"
	"log"

	"ps2kbd/config"
	"ps2kbd/host/remote"
	"ps2kbd/host/serial"
	"ps2kbd/pinio"
	"ps2kbd/ps2"
)

// env carries what subcommands need besides flags
type env struct {
	out    io.Writer
	logger *log.Logger

	// open replaces backend selection in tests
	open func(cfg *config.Config) (*session, error)
}

// session is an open keyboard
type session struct {
	ctl    ps2.Controller
	client *remote.Client // serial backend only
	close  func() error
}

func (s *session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// loadConfig reads the configuration file and applies flag overrides
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if g.Config != "" {
		var err error
		if cfg, err = config.Load(g.Config); err != nil {
			return nil, err
		}
	}
	if g.Backend != "" {
		cfg.Backend = g.Backend
	}
	if g.Device != "" {
		cfg.Device = g.Device
	}
	if g.Baud != 0 {
		cfg.Baud = g.Baud
	}
	if g.EdgeTimeout != 0 {
		cfg.EdgeTimeoutMs = g.EdgeTimeout
	}
	if cfg.EdgeTimeoutMs == 0 {
		cfg.EdgeTimeoutMs = g.idleEdgeTimeout
	}
	if g.Verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *env) session(g *Globals) (*session, *config.Config, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	open := e.open
	if open == nil {
		open = e.openBackend
	}
	s, err := open(cfg)
	if err != nil {
		return nil, nil, err
	}
	e.logger.Printf("%s backend ready, pins %+v", cfg.Backend, cfg.Pins)
	return s, cfg, nil
}

func (e *env) openBackend(cfg *config.Config) (*session, error) {
	switch cfg.Backend {
	case config.BackendSerial:
		return e.openSerial(cfg)
	case config.BackendPeriph:
		drv, err := pinio.NewPeriph()
		if err != nil {
			return nil, err
		}
		return openLocal(drv, cfg, drv.Release)
	case config.BackendRPIO:
		drv, err := pinio.OpenRPIO()
		if err != nil {
			return nil, err
		}
		return openLocal(drv, cfg, drv.Close)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func (e *env) openSerial(cfg *config.Config) (*session, error) {
	port, err := serial.Open(cfg.SerialConfig())
	if err != nil {
		return nil, err
	}
	_ = port.Flush()

	opts := []remote.Option{remote.WithTimeout(cfg.ReplyTimeout())}
	if cfg.Verbose {
		opts = append(opts, remote.WithLogger(e.logger))
	}
	c := remote.New(port, opts...)
	if err := configureRemote(c, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return &session{ctl: c, client: c, close: c.Close}, nil
}

func configureRemote(c *remote.Client, cfg *config.Config) error {
	if err := c.Configure(cfg.PS2Pins(), cfg.EdgeTimeout(), uint32(cfg.InhibitUs)); err != nil {
		return fmt.Errorf("configure firmware: %w", err)
	}
	return c.SetValidation(cfg.Policy())
}

func openLocal(drv ps2.GPIODriver, cfg *config.Config, release func() error) (*session, error) {
	link, err := ps2.NewLink(drv, cfg.PS2Pins(), cfg.LinkOptions()...)
	if err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	return &session{ctl: ps2.NewKeyboard(link), close: release}, nil
}
