package mlgw

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// MediaInfo is the media metadata half of an EntityState (§3).
type MediaInfo struct {
	ContentType string
	Track       int
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Channel     string
	ImageURL    string
}

// EntityState is the per-Product state the tracker mutates (§3).
type EntityState struct {
	PowerOn          bool
	Playing          bool
	HasCurrentSource bool
	CurrentSource    string // symbolic SourceID name, e.g. "RADIO"
	CurrentSourceID  byte
	Media            MediaInfo
	SupportedExtras  map[string]bool
}

// standby resets the state the way All Standby and RELEASE do: power off,
// not playing, media info cleared. CurrentSource is left untouched — the
// product still remembers what it was last playing (§4.7 turn_on policy
// re-selects a remembered source).
func (e *EntityState) standby() {
	e.PowerOn = false
	e.Playing = false
	e.Media = MediaInfo{}
}

// trackedProduct pairs a configured Product with its learned ML address and
// live EntityState.
type trackedProduct struct {
	Product
	MLAddress    byte
	HasMLAddress bool
	State        EntityState
}

// GatewayState is the shared, mutex-protected state the two session loops
// and the command path all touch (§3, §5 Shared resources).
type GatewayState struct {
	mu sync.RWMutex

	hasBeolinkSource bool
	beolinkSource    string

	connectedMLGW bool
	connectedML   bool
	serial        string

	products   map[byte]*trackedProduct
	mlnOrder   []byte // preserves configuration order for discovery (§4.7)
	stopped    bool
	broken     bool
}

// NewGatewayState builds a GatewayState from the hub's product list. Product
// entries are produced once at setup and never added to or removed for the
// life of the engine (§3 Lifecycle).
func NewGatewayState(products []Product) *GatewayState {
	g := &GatewayState{products: make(map[byte]*trackedProduct, len(products))}
	for _, p := range products {
		g.products[p.MLN] = &trackedProduct{Product: p, State: EntityState{SupportedExtras: map[string]bool{}}}
		g.mlnOrder = append(g.mlnOrder, p.MLN)
	}
	return g
}

// String renders a deep dump of the gateway state for debugging, in the
// teacher's spew.Sprintf style (lwl.Client.String).
func (g *GatewayState) String() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return spewGatewayState(g)
}

func (g *GatewayState) setStopped()        { g.mu.Lock(); g.stopped = true; g.mu.Unlock() }
func (g *GatewayState) Stopped() bool      { g.mu.RLock(); defer g.mu.RUnlock(); return g.stopped }
func (g *GatewayState) setBroken()         { g.mu.Lock(); g.broken = true; g.mu.Unlock() }
func (g *GatewayState) Broken() bool       { g.mu.RLock(); defer g.mu.RUnlock(); return g.broken }
func (g *GatewayState) clearBroken()       { g.mu.Lock(); g.broken = false; g.mu.Unlock() }

func (g *GatewayState) setConnectedMLGW(v bool) { g.mu.Lock(); g.connectedMLGW = v; g.mu.Unlock() }
func (g *GatewayState) setConnectedML(v bool)   { g.mu.Lock(); g.connectedML = v; g.mu.Unlock() }

func (g *GatewayState) ConnectedMLGW() bool { g.mu.RLock(); defer g.mu.RUnlock(); return g.connectedMLGW }
func (g *GatewayState) ConnectedML() bool   { g.mu.RLock(); defer g.mu.RUnlock(); return g.connectedML }

func (g *GatewayState) setSerial(s string) { g.mu.Lock(); g.serial = s; g.mu.Unlock() }
func (g *GatewayState) Serial() string     { g.mu.RLock(); defer g.mu.RUnlock(); return g.serial }

// BeolinkSource returns the bus-wide active source, if any has been seen.
func (g *GatewayState) BeolinkSource() (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.beolinkSource, g.hasBeolinkSource
}

// setBeolinkSource implements invariant 2: never set from Standby/Unknown.
func (g *GatewayState) setBeolinkSource(activity, source string) {
	if activity == "Standby" || activity == "Unknown" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.beolinkSource = source
	g.hasBeolinkSource = true
}

// setBeolinkSourceDirect sets beolink_source unconditionally, for the
// command path (select_source) rather than an observed activity transition.
func (g *GatewayState) setBeolinkSourceDirect(source string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.beolinkSource = source
	g.hasBeolinkSource = true
}

// EntityState returns a copy of the current state for mln, and whether mln
// is a known product.
func (g *GatewayState) EntityState(mln byte) (EntityState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.products[mln]
	if !ok {
		return EntityState{}, false
	}
	return p.State, true
}

// SetMLAddress records a learned ml_address for mln (§4.7 discovery).
func (g *GatewayState) SetMLAddress(mln, addr byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.products[mln]; ok {
		p.MLAddress = addr
		p.HasMLAddress = true
	}
}

// MLAddress returns the learned ml_address for mln, if any.
func (g *GatewayState) MLAddress(mln byte) (byte, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.products[mln]
	if !ok || !p.HasMLAddress {
		return 0, false
	}
	return p.MLAddress, true
}

// Product returns the static configuration record for mln.
func (g *GatewayState) Product(mln byte) (Product, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.products[mln]
	if !ok {
		return Product{}, false
	}
	return p.Product, true
}

// DiscoveryOrder returns the MLNs of every product eligible for discovery
// (skipping network-linked products that carry a serial number, §4.7), in
// the order they appear in the configuration.
func (g *GatewayState) DiscoveryOrder() []byte {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []byte
	for _, mln := range g.mlnOrder {
		if p := g.products[mln]; !p.isNetworkLinked() {
			out = append(out, mln)
		}
	}
	return out
}

func (g *GatewayState) withProduct(mln byte, f func(p *trackedProduct)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.products[mln]; ok {
		f(p)
	}
}

func (g *GatewayState) forEachProduct(f func(p *trackedProduct)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, mln := range g.mlnOrder {
		f(g.products[mln])
	}
}

// productByMLAddressLocked returns the tracked product bound to addr, if any.
// Caller must hold g.mu.
func (g *GatewayState) productByMLAddressLocked(addr byte) *trackedProduct {
	for _, mln := range g.mlnOrder {
		p := g.products[mln]
		if p.HasMLAddress && p.MLAddress == addr {
			return p
		}
	}
	return nil
}

// ---- MLGW-level rules (§4.6) ----

// ApplySourceStatus applies an MLGW Source Status frame, keyed by mln.
func (g *GatewayState) ApplySourceStatus(s SourceStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.products[s.MLN]
	if !ok {
		return
	}
	if s.Activity != "Standby" && s.Activity != "Unknown" && s.PositionInt > 0 {
		p.State.HasCurrentSource = true
		p.State.CurrentSource = s.Source
		p.State.CurrentSourceID = s.SourceID
		g.recomputeSupportedExtrasLocked(p)
	}
	if s.Activity != "Standby" && s.Activity != "Unknown" {
		g.beolinkSource = s.Source
		g.hasBeolinkSource = true
	}
}

// ApplyPictSoundStatus applies an MLGW Pict&Snd frame, keyed by mln.
func (g *GatewayState) ApplyPictSoundStatus(s PictSoundStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.products[s.MLN]
	if !ok {
		return
	}
	if s.Screen1Active == "active" || s.Screen2Active == "active" {
		p.State.PowerOn = true
		p.State.Playing = true
	}
}

// ApplyAllStandby applies an MLGW All Standby frame to every product.
// Idempotent: applying it twice in a row leaves the same state (§8 law 5).
func (g *GatewayState) ApplyAllStandby() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, mln := range g.mlnOrder {
		g.products[mln].State.standby()
	}
}

// recomputeSupportedExtrasLocked re-derives supported_extras for p from its
// current source's status_id group (§4.6 supported features rule from
// media_player.py). Caller must hold g.mu.
func (g *GatewayState) recomputeSupportedExtrasLocked(p *trackedProduct) {
	extras := map[string]bool{}
	src, ok := p.findSource(p.State.CurrentSourceID)
	if ok && (src.isAudioPausable() || src.isVideoPausable()) {
		extras["STOP"] = true
		extras["PLAY"] = true
		extras["PAUSE"] = true
		extras["SHUFFLE"] = true
		extras["REPEAT"] = true
	}
	p.State.SupportedExtras = extras
}

// ---- Bus-level (ML) rules (§4.6) ----

// dvdStatusID is the STATUS_INFO DVD carve-out named in Open Question 1:
// exposed separately so tests can probe it directly without constructing a
// full telegram.
const dvdStatusID byte = 0x29 // DVD

// statusInfoDVDCarveOut reports whether the source-info (media metadata)
// part of a STATUS_INFO update is suppressed by the undocumented DVD carve
// out (§9 Open Question 1): when the reported source is DVD, source info is
// only updated if local_source is non-zero. The current source itself is
// still set.
func statusInfoDVDCarveOut(payload MLPayload) bool {
	return payload.SourceID == dvdStatusID && payload.LocalSource == 0
}

// ApplyML applies a decoded ML telegram to every bound product it concerns,
// and to GatewayState.beolink_source where the rule is bus-wide (§4.6).
func (g *GatewayState) ApplyML(t MLTelegram) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Any GOTO_SOURCE, addressed to whichever product or not, updates the
	// bus-wide active source.
	if t.PayloadType == 0x45 {
		g.beolinkSource = t.Payload.Source
		g.hasBeolinkSource = true
	}

	from := g.productByMLAddressLocked(t.FromDevice)
	to := g.productByMLAddressLocked(t.ToDevice)

	if from != nil {
		g.applyFromMeLocked(from, t)
	}
	if to != nil {
		g.applyToMeLocked(to, t)
	}
}

func (g *GatewayState) applyFromMeLocked(p *trackedProduct, t MLTelegram) {
	switch t.PayloadType {
	case 0x11: // RELEASE
		p.State.standby()

	case 0x45: // GOTO_SOURCE
		p.State.PowerOn = true
		p.State.Playing = true
		p.State.HasCurrentSource = true
		p.State.CurrentSource = t.Payload.Source
		p.State.CurrentSourceID = t.Payload.SourceID
		p.State.Media.Track = t.Payload.ChannelTrack
		g.recomputeSupportedExtrasLocked(p)

	case 0x87: // STATUS_INFO
		isVideoMaster := p.MLAddress == DeviceVideoMaster
		isAudioMaster := p.MLAddress == DeviceAudioMaster
		accept := t.ToDevice == DeviceMLGW ||
			(isVideoMaster && t.Payload.ChannelTrack > 0 && t.Payload.ChannelTrack < 0xFFFF && t.Payload.LocalSource == 0)
		if accept {
			g.setCurrentSourceLocked(p, t.Payload)
			// The DVD carve-out (Open Question 1) only withholds the
			// source-info update, not the source itself — matches the
			// original component's "source != DVD or local_source != 0"
			// guard around set_source_info(), not around the whole branch.
			if !statusInfoDVDCarveOut(t.Payload) {
				g.updateSourceInfoLocked(p, t.Payload.ChannelTrack, t.Payload.Activity)
			}
		}
		if isAudioMaster {
			g.setCurrentSourceLocked(p, t.Payload)
			g.updateSourceInfoLocked(p, t.Payload.ChannelTrack, t.Payload.Activity)
		}

	case 0x94: // VIDEO_TRACK_INFO
		if t.Payload.ChannelTrack > 0 && t.Payload.ChannelTrack < 0xFF {
			g.updateSourceInfoLocked(p, t.Payload.ChannelTrack, t.Payload.Activity)
		}

	case 0x06: // DISPLAY_SOURCE
		if p.MLAddress == DeviceAudioMaster && p.State.HasCurrentSource {
			if src, ok := p.findSource(p.State.CurrentSourceID); ok && src.isAudio() {
				p.State.Media = MediaInfo{ContentType: "MUSIC"}
			}
		}

	case 0x0B: // EXTENDED_SOURCE_INFORMATION
		if p.MLAddress == DeviceAudioMaster && p.State.HasCurrentSource && p.State.CurrentSourceID != 0x97 {
			if src, ok := p.findSource(p.State.CurrentSourceID); ok && src.isAudio() {
				g.applyExtendedSourceInfoLocked(p, t)
			}
		}
	}
}

func (g *GatewayState) applyToMeLocked(p *trackedProduct, t MLTelegram) {
	switch t.PayloadType {
	case 0x44: // TRACK_INFO
		if t.Payload.Subtype == "Change Source" {
			p.State.Media = MediaInfo{}
			p.State.HasCurrentSource = true
			p.State.CurrentSource = t.Payload.Source
			p.State.CurrentSourceID = t.Payload.SourceID
			g.recomputeSupportedExtrasLocked(p)
		}

	case 0x82: // TRACK_INFO_LONG
		if (t.Payload.ChannelTrack > 0 && t.Payload.ChannelTrack < 0xFF) || t.Payload.Activity == "Playing" {
			g.updateSourceInfoLocked(p, t.Payload.ChannelTrack, t.Payload.Activity)
		}

	case 0x0D: // BEO4_KEY
		if p.MLAddress == DeviceAudioMaster && p.State.HasCurrentSource && t.Payload.SourceID == p.State.CurrentSourceID {
			switch t.Payload.Command {
			case "Go / Play":
				p.State.Playing = true
			case "Stop":
				p.State.Playing = false
			}
		}
	}
}

func (g *GatewayState) setCurrentSourceLocked(p *trackedProduct, payload MLPayload) {
	p.State.HasCurrentSource = true
	p.State.CurrentSource = payload.Source
	p.State.CurrentSourceID = payload.SourceID
	g.recomputeSupportedExtrasLocked(p)
}

// updateSourceInfoLocked implements the favourite/track media-metadata rule
// (§4.6 "Source-info update"): channel-based sources resolve a favourite by
// walking each Channel's select_seq and comparing the assembled digits to
// channelTrack; track-based sources just record the track number.
func (g *GatewayState) updateSourceInfoLocked(p *trackedProduct, channelTrack int, activity string) {
	if !p.State.HasCurrentSource {
		return
	}
	src, ok := p.findSource(p.State.CurrentSourceID)
	if !ok {
		return
	}
	if src.isChannelBased() {
		for _, ch := range src.Channels {
			n, err := strconv.Atoi(ch.digits())
			if err != nil {
				continue
			}
			if n == channelTrack {
				p.State.Media.Channel = ch.Name
				p.State.Media.Title = fmt.Sprintf("%d - %s", n, ch.Name)
				p.State.Media.ImageURL = ch.Icon
				return
			}
		}
		return
	}
	p.State.Media.Track = channelTrack
	p.State.Media.Title = fmt.Sprintf("Track %d", channelTrack)
}

// applyExtendedSourceInfoLocked implements the EXTENDED_SOURCE_INFORMATION
// artist/title/album rules, keyed by the telegram's orig_src (§4.6).
func (g *GatewayState) applyExtendedSourceInfoLocked(p *trackedProduct, t MLTelegram) {
	origSrc := t.OrigSrcName()
	infoType := t.Payload.InfoType
	value := strings.TrimRight(t.Payload.InfoValue, " \x00")

	switch origSrc {
	case "RADIO", "N.RADIO":
		switch infoType {
		case 2:
			p.State.Media.Artist = value
		case 3:
			if p.State.Media.Artist != "" {
				p.State.Media.Artist = p.State.Media.Artist + " / " + value
			} else {
				p.State.Media.Artist = value
			}
		case 4:
			p.State.Media.Title = value
		}
	case "A.MEM", "N.MUSIC", "CD":
		switch infoType {
		case 2:
			p.State.Media.Album = value
		case 3:
			p.State.Media.Artist = value
		case 4:
			p.State.Media.Title = value
		}
	}
}
