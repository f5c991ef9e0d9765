package main

import (
	"context"
	"math/rand"
	"sort"
	"strings"

	"zyberhero/internal/constants"
	"zyberhero/internal/logger"
)

type window struct {
	app   string
	title string
}

var catalogue = []window{
	{"chrome", "YouTube - Minecraft speedrun"},
	{"chrome", "Khan Academy | Fractions"},
	{"chrome", "Instagram"},
	{"msedge", "YouTube - music mix"},
	{"discord", "#general - Friends"},
	{"minecraft", "Minecraft 1.21"},
	{"code", "main.go - homework"},
	{"chrome", "Suspicious download - free robux"},
}

// Options drive one simulated device.
type Options struct {
	MAC         string
	MachineName string
	UserName    string
	OS          string
	Latitude    float64
	Longitude   float64
	TickSeconds int
}

// Simulator plays one device against the API.
type Simulator struct {
	client  *Client
	opts    Options
	rng     *rand.Rand
	uuid    string
	running map[string]window
	blocked map[string]bool
}

func NewSimulator(client *Client, opts Options, seed int64) *Simulator {
	if opts.TickSeconds <= 0 {
		opts.TickSeconds = 30
	}
	return &Simulator{
		client:  client,
		opts:    opts,
		rng:     rand.New(rand.NewSource(seed)),
		running: make(map[string]window),
		blocked: make(map[string]bool),
	}
}

// Register checks the device in and keeps its uuid for later calls.
func (s *Simulator) Register(ctx context.Context) error {
	reg, err := s.client.Register(ctx, s.opts.MAC, s.opts.MachineName, s.opts.UserName, s.opts.OS)
	if err != nil {
		return err
	}
	s.uuid = reg.DeviceUUID
	logger.Device.Info().Uint("device_id", reg.DeviceID).Str("device_uuid", reg.DeviceUUID).Msg("registered")
	return nil
}

// Tick runs one reporting cycle: focus one window, report the running set,
// then apply pending commands.
func (s *Simulator) Tick(ctx context.Context) error {
	w := s.pick()
	if w.app != "" {
		s.running[w.app] = w
		if err := s.client.Activity(ctx, s.uuid, Activity{
			AppName:         w.app,
			WindowTitle:     w.title,
			DurationSeconds: s.opts.TickSeconds,
			ScreenTime:      s.rng.Intn(4) == 0,
		}); err != nil {
			return err
		}
		if strings.Contains(strings.ToLower(w.title), "suspicious") {
			if err := s.client.Alert(ctx, s.uuid, "suspicious_download", w.app, w.title); err != nil {
				return err
			}
		}
	}

	if err := s.client.LiveStatus(ctx, s.uuid, s.live()); err != nil {
		return err
	}
	if err := s.client.Location(ctx, s.opts.MAC, s.jitter(s.opts.Latitude), s.jitter(s.opts.Longitude), 15); err != nil {
		return err
	}
	return s.applyCommands(ctx)
}

func (s *Simulator) applyCommands(ctx context.Context) error {
	cmds, err := s.client.Pending(ctx, s.uuid)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		switch c.Action {
		case constants.ActionKill:
			// a kill stays pending until countermanded
			s.blocked[c.AppName] = true
			delete(s.running, c.AppName)
			logger.Command.Info().Str("app", c.AppName).Msg("app blocked")
		case constants.ActionRelaunch:
			delete(s.blocked, c.AppName)
			logger.Command.Info().Str("app", c.AppName).Msg("app unblocked")
		case constants.ActionSchedule:
			sched := ""
			if c.Schedule != nil {
				sched = *c.Schedule
			}
			logger.Command.Info().Str("app", c.AppName).Str("schedule", sched).Msg("schedule received")
			if err := s.client.Ack(ctx, c.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// pick chooses a window whose app is not blocked; the zero window when all are.
func (s *Simulator) pick() window {
	for range catalogue {
		w := catalogue[s.rng.Intn(len(catalogue))]
		if !s.blocked[w.app] {
			return w
		}
	}
	return window{}
}

func (s *Simulator) live() []LiveApp {
	apps := make([]LiveApp, 0, len(s.running))
	for _, w := range s.running {
		apps = append(apps, LiveApp{AppName: w.app, WindowTitle: w.title})
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].AppName < apps[j].AppName })
	return apps
}

func (s *Simulator) jitter(v float64) float64 {
	return v + (s.rng.Float64()-0.5)*0.001
}
