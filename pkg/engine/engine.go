package engine

import (
	"github.com/justyntemme/umidi20go/internal/backend/alsa"
	"github.com/justyntemme/umidi20go/internal/backend/chardev"
	"github.com/justyntemme/umidi20go/internal/backend/coremidi"
	"github.com/justyntemme/umidi20go/internal/backend/jack"
	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/config"
	"github.com/justyntemme/umidi20go/pkg/device"
	"github.com/justyntemme/umidi20go/pkg/scheduler"
	"github.com/justyntemme/umidi20go/pkg/song"
)

// Engine is the composition root: one Root, one Scheduler driving it, one
// backend.Registry feeding the scheduler's file-refresh worker, and one
// SongWorker for the currently loaded song.
type Engine struct {
	Root       *device.Root
	Scheduler  *scheduler.Scheduler
	Backends   backend.Registry
	Song       *song.Song
	SongWorker *song.Worker

	ConfigPath string
}

// New builds an Engine with every backend registered and, if configPath
// names an existing file, its device configuration applied immediately.
func New(clientName, configPath string) (*Engine, error) {
	root := device.NewRoot()

	registry := backend.NewRegistry()
	registry.Register(backend.CharDev, chardev.New())
	registry.Register(backend.JACK, jack.New())
	registry.Register(backend.ALSA, alsa.New())
	registry.Register(backend.CoreMIDI, coremidi.New())

	for _, b := range registry {
		_ = b.Init(clientName) // best-effort: a backend with no live server just stays unusable until config selects another kind
	}

	e := &Engine{
		Root:       root,
		Scheduler:  scheduler.New(root, registry),
		Backends:   registry,
		ConfigPath: configPath,
	}

	if configPath != "" {
		if cfg, err := config.Load(configPath); err == nil {
			config.Import(root, cfg)
		}
	}

	return e, nil
}

// LoadSong installs s as the engine's current song and starts its worker.
func (e *Engine) LoadSong(s *song.Song) {
	if e.SongWorker != nil {
		e.SongWorker.Stop()
	}
	e.Song = s
	e.SongWorker = song.NewWorker(s, e.Root, e.Root.Pool)
	e.SongWorker.Start()
}

// Start launches the scheduler's background workers.
func (e *Engine) Start() {
	e.Scheduler.Start()
}

// Stop halts the song worker (if any) and the scheduler.
func (e *Engine) Stop() {
	if e.SongWorker != nil {
		e.SongWorker.Stop()
	}
	e.Scheduler.Stop()
}

// SaveConfig exports the engine's current device configuration to
// ConfigPath.
func (e *Engine) SaveConfig() error {
	if e.ConfigPath == "" {
		return nil
	}
	cfg := config.Export(e.Root)
	return config.Save(e.ConfigPath, cfg)
}
