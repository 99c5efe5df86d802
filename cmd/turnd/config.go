package main

import (
	"net"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/cydev/turnd/turn"
)

// fileConfig is the on-disk TOML shape loaded by the serve command,
// mirroring bamgate's config-struct-with-toml-tags convention.
type fileConfig struct {
	Listen struct {
		Addr       string `toml:"addr"`
		ExternalIP string `toml:"external_ip"`
	} `toml:"listen"`

	Relay struct {
		Realm    string `toml:"realm"`
		PortMin  uint16 `toml:"port_min"`
		PortMax  uint16 `toml:"port_max"`
		Workers  int    `toml:"workers"`
		Lifetime struct {
			Default uint32 `toml:"default"`
			Max     uint32 `toml:"max"`
		} `toml:"lifetime"`
	} `toml:"relay"`

	Users map[string]string `toml:"users"`

	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fc, errors.Wrapf(err, "decode config file %s", path)
	}
	if fc.Listen.ExternalIP != "" && net.ParseIP(fc.Listen.ExternalIP) == nil {
		return fc, errors.Errorf("listen.external_ip %q is not a valid IP address", fc.Listen.ExternalIP)
	}
	return fc, nil
}

func (fc fileConfig) toTurnConfig() turn.Config {
	return turn.Config{
		ListenAddr:      fc.Listen.Addr,
		ExternalIP:      net.ParseIP(fc.Listen.ExternalIP),
		Realm:           fc.Relay.Realm,
		Threads:         fc.Relay.Workers,
		RelayedPorts:    turn.PortRange{Min: fc.Relay.PortMin, Max: fc.Relay.PortMax},
		DefaultLifetime: fc.Relay.Lifetime.Default,
		MaxLifetime:     fc.Relay.Lifetime.Max,
		Auth:            turn.StaticAuth(fc.Users),
	}
}
