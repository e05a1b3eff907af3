// Package config persists the engine's per-device backend configuration
// (record/play path and backend kind) to and from YAML, and applies it to a
// live device.Root, flagging exactly the devices whose settings actually
// changed for reopening. Grounded on umidi20_config_export/umidi20_config_import
// in original_source/umidi20.c.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/justyntemme/umidi20go/pkg/backend"
	"github.com/justyntemme/umidi20go/pkg/device"
)

// DeviceConfig is one device's on-disk {record, play} x {path, backend kind}
// settings, matching spec.md §6 "Configuration structure".
type DeviceConfig struct {
	RecordPath    string        `yaml:"record_path"`
	RecordKind    backend.Kind  `yaml:"record_kind"`
	RecordEnabled bool          `yaml:"record_enabled"`
	PlayPath      string        `yaml:"play_path"`
	PlayKind      backend.Kind  `yaml:"play_kind"`
	PlayEnabled   bool          `yaml:"play_enabled"`
	Effects       device.Effect `yaml:"effects"`
}

// Config is the whole-engine on-disk configuration: one DeviceConfig per
// device number, matching umidi20_config.cfg_dev[UMIDI20_N_DEVICES].
type Config struct {
	Devices [device.NumDevices]DeviceConfig `yaml:"devices"`
}

// Load reads and parses a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save serializes cfg as YAML and writes it to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Export snapshots every device's current configuration out of a live Root.
// Grounded on umidi20_config_export.
func Export(r *device.Root) *Config {
	var cfg Config
	for i := 0; i < device.NumDevices; i++ {
		rx := r.RX[i]
		tx := r.TX[i]
		cfg.Devices[i] = DeviceConfig{
			RecordPath:    rx.Path,
			RecordKind:    rx.Kind,
			RecordEnabled: rx.EnabledByConfig,
			PlayPath:      tx.Path,
			PlayKind:      tx.Kind,
			PlayEnabled:   tx.EnabledByConfig,
			Effects:       rx.Effects,
		}
	}
	return &cfg
}

// Import applies cfg to a live Root, setting NeedsReopen on exactly the RX
// or TX devices whose path, backend kind, effects, or enabled flag actually
// changed — mirroring umidi20_config_import's per-field dirty check, which
// avoids tearing down and reopening a device whose settings were unchanged.
func Import(r *device.Root, cfg *Config) {
	for i := 0; i < device.NumDevices; i++ {
		dc := cfg.Devices[i]
		applyRx(r.RX[i], dc)
		applyTx(r.TX[i], dc)
	}
}

func applyRx(d *device.Device, dc DeviceConfig) {
	dirty := d.Path != dc.RecordPath ||
		d.Kind != dc.RecordKind ||
		d.EnabledByConfig != dc.RecordEnabled ||
		d.Effects != dc.Effects
	d.Path = dc.RecordPath
	d.Kind = dc.RecordKind
	d.EnabledByConfig = dc.RecordEnabled
	d.Effects = dc.Effects
	if dirty {
		d.NeedsReopen = true
	}
}

func applyTx(d *device.Device, dc DeviceConfig) {
	dirty := d.Path != dc.PlayPath ||
		d.Kind != dc.PlayKind ||
		d.EnabledByConfig != dc.PlayEnabled
	d.Path = dc.PlayPath
	d.Kind = dc.PlayKind
	d.EnabledByConfig = dc.PlayEnabled
	if dirty {
		d.NeedsReopen = true
	}
}
