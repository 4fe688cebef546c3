package mlgw

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credentials authenticates to the hub's MLGW and (optionally) ML trace
// protocols (§6 Configuration surface).
type Credentials struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
	UseMLLog bool   `yaml:"use_mllog"`
}

// SelectCmd is one command in a Source's select_cmds list.
type SelectCmd struct {
	Cmd    byte   `yaml:"cmd"`
	Format string `yaml:"format"`
	Unit   byte   `yaml:"unit,omitempty"`
}

// Channel is a named favourite inside a Source (§3).
type Channel struct {
	Name      string   `yaml:"name"`
	Icon      string   `yaml:"icon"`
	SelectSeq []string `yaml:"select_seq"`
}

// digits returns the decimal digit tokens of the favourite's select
// sequence, in order, as the channel number the tracker compares against a
// reported channel_track value.
func (c Channel) digits() string {
	out := make([]byte, 0, len(c.SelectSeq))
	for _, tok := range c.SelectSeq {
		if len(tok) == 1 && tok[0] >= '0' && tok[0] <= '9' {
			out = append(out, tok[0])
		}
	}
	return string(out)
}

// Source describes one selectable input on a Product (§3).
type Source struct {
	StatusID    byte        `yaml:"status_id"`
	SelectID    byte        `yaml:"select_id"`
	Name        string      `yaml:"name"`
	Destination byte        `yaml:"destination"`
	Format      string      `yaml:"format"` // "F0" (Beo4) or "F20" (BeoRemote One)
	Secondary   byte        `yaml:"secondary"`
	Link        byte        `yaml:"link"`
	SelectCmds  []SelectCmd `yaml:"select_cmds"`
	NetworkBit  bool        `yaml:"network_bit,omitempty"`
	Unit        byte        `yaml:"unit,omitempty"`
	Channels    []Channel   `yaml:"channels,omitempty"`
}

// isAudio, isVideo, isAudioPausable, isVideoPausable classify this source's
// status_id via C1's sourceGroups (§4.6 supported_extras rule).
func (s Source) isAudio() bool         { return sourceInGroup(s.StatusID, groupAudio) }
func (s Source) isVideo() bool         { return sourceInGroup(s.StatusID, groupVideo) }
func (s Source) isAudioPausable() bool { return sourceInGroup(s.StatusID, groupAudioPausable) }
func (s Source) isVideoPausable() bool { return sourceInGroup(s.StatusID, groupVideoPausable) }

// isChannelBased reports whether this source's favourites are addressed by
// a broadcast channel number (TV, DTV, RADIO, N.RADIO) as opposed to a
// track number (DVD, DVD2, CD, N.MUSIC) (§4.6).
func (s Source) isChannelBased() bool {
	switch s.StatusID {
	case 0x0B, 0x1F, 0x6F, 0xA1: // TV, DTV, RADIO, N.RADIO
		return true
	default:
		return false
	}
}

// Product is one addressable device/entity (§3).
type Product struct {
	MLN        byte     `yaml:"mln"`
	Name       string   `yaml:"name"`
	ZoneNumber int      `yaml:"zone_number"`
	ZoneName   string   `yaml:"zone_name"`
	Sources    []Source `yaml:"sources"`
	Serial     string   `yaml:"sn,omitempty"`
}

// isNetworkLinked reports whether this product has a serial number and
// therefore never appears on the ML bus — discovery skips these (§4.7).
func (p Product) isNetworkLinked() bool { return p.Serial != "" }

// findSource returns the Source matching status_id or (failing that) the
// Source whose select_id equals the Beo4 key derived from status_id's name,
// mirroring statusID_to_selectID / matchSource from the original component.
func (p Product) findSource(statusID byte) (Source, bool) {
	for _, s := range p.Sources {
		if s.StatusID == statusID {
			return s, true
		}
	}
	selectID, ok := Beo4Key.Code(SourceID.Name(statusID))
	if !ok {
		return Source{}, false
	}
	for _, s := range p.Sources {
		if s.SelectID == selectID {
			return s, true
		}
	}
	return Source{}, false
}

func (p Product) findSourceByName(name string) (Source, bool) {
	for _, s := range p.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// Zone groups Products in the hub's configuration document (§3).
type Zone struct {
	Number   int       `yaml:"number"`
	Name     string    `yaml:"name"`
	Products []Product `yaml:"products"`
}

// GatewayConfig is the parsed shape of the hub's zone/product JSON document
// (§6). Retrieval over HTTP (Digest, falling back to Basic on 401) is an
// external collaborator's job; this module only defines the shape it
// produces and consumes it read-only.
type GatewayConfig struct {
	Port    int    `yaml:"port"`
	Project string `yaml:"project"`
	Serial  string `yaml:"sn"`
	Version string `yaml:"version"`
	Zones   []Zone `yaml:"zones"`
}

// Products flattens every zone's product list into one slice keyed
// implicitly by MLN, as GatewayState will require (§3 invariant 1: every
// product has a unique mln).
func (c GatewayConfig) Products() []Product {
	var out []Product
	for _, z := range c.Zones {
		for _, p := range z.Products {
			p.ZoneNumber = z.Number
			p.ZoneName = z.Name
			out = append(out, p)
		}
	}
	return out
}

// LocalConfig is the on-disk settings document read at startup: hub
// credentials plus the already-fetched GatewayConfig. Unlike the teacher's
// config.yaml (which the running process rewrites as it learns new device
// names), this is read-only input — the core does not persist entity state
// across restarts (§1 Non-goals; §3 Lifecycle).
type LocalConfig struct {
	Credentials Credentials   `yaml:"credentials"`
	Gateway     GatewayConfig `yaml:"gateway"`
}

// LoadLocalConfig reads and decodes a YAML configuration document from fn.
func LoadLocalConfig(fn string) (LocalConfig, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return LocalConfig{}, fmt.Errorf("mlgw: reading config %s: %w", fn, err)
	}
	var c LocalConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return LocalConfig{}, fmt.Errorf("mlgw: parsing config %s: %w", fn, err)
	}
	return c, nil
}
