package mlgw

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	readyTimeout    = 20 * time.Second
	mlIDTimeout     = 10 * time.Second
	beo4LightTimeout byte = 0x58 // "Light Timeout" — probe key used by discovery (§4.7)
	audioSourceDest byte = 0x01  // DestSelector "Audio Source"
)

// Gateway is the facade the host drives: it owns the two sessions and the
// tracker, exposes the command API, and runs MLN↔ML discovery (C7).
type Gateway struct {
	state     *GatewayState
	publisher *Publisher

	mlgw *MLGWSession
	ml   *MLSession // nil if ML trace is not eligible for this account

	logger *slog.Logger
}

// NewGateway constructs a Gateway from hub credentials and an already
// fetched GatewayConfig (§4.7 Construction). The HTTP retrieval of that
// document, and the XMPP serial probe, are external collaborators (§6) —
// this constructor only consumes their already-parsed output.
func NewGateway(creds Credentials, cfg GatewayConfig) *Gateway {
	state := NewGatewayState(cfg.Products())
	publisher := NewPublisher()

	port := creds.Port
	if port == 0 {
		port = 9000
	}
	addr := fmt.Sprintf("%s:%d", creds.Host, port)
	mlgwSess := NewMLGWSession(addr, creds, state, publisher)

	g := &Gateway{
		state:     state,
		publisher: publisher,
		mlgw:      mlgwSess,
		logger:    slog.Default(),
	}

	if Eligible(creds.Username, creds.UseMLLog) {
		mlAddr := fmt.Sprintf("%s:23", creds.Host)
		g.ml = NewMLSession(mlAddr, creds.Username, creds.Password, state, publisher)
	}

	return g
}

// State returns the shared gateway state.
func (g *Gateway) State() *GatewayState { return g.state }

// Events returns the event publisher subscribers attach to.
func (g *Gateway) Events() *Publisher { return g.publisher }

// Debug renders a deep dump of the engine's internal state for diagnostics.
func (g *Gateway) Debug() string { return g.state.String() }

// Start launches both sessions and waits up to readyTimeout for the MLGW
// session to reach Ready and, if the ML trace is eligible, for it to be
// attached too. Failure to reach that within the timeout fails the whole
// startup (§4.7).
func (g *Gateway) Start(ctx context.Context) error {
	go g.mlgw.Run(ctx)
	if g.ml != nil {
		go g.ml.Run(ctx)
	}

	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		if g.mlgw.State() == StateReady && (g.ml == nil || g.ml.State() == StateReady) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: gateway not ready after %s", ErrTimeout, readyTimeout)
}

// Stop requests both sessions to drain and close.
func (g *Gateway) Stop() {
	g.mlgw.Stop()
	if g.ml != nil {
		g.ml.Stop()
	}
}

// Discover runs the MLN↔ML address binding algorithm (§4.7): for each
// eligible product (those without a serial number), send a Beo4
// "Light Timeout" probe to its mln and wait for the matching
// MLGW_REMOTE_BEO4 trace response. Probes are issued and matched strictly
// in order (§8 law 4) — this is a serial protocol, not something to
// parallelise.
func (g *Gateway) Discover(ctx context.Context) error {
	if g.ml == nil {
		return nil // no trace stream available; discovery cannot run
	}

	order := g.state.DiscoveryOrder()
	if len(order) == 0 {
		return nil
	}

	events := make(chan Event, 16)
	token := g.publisher.Subscribe(events)
	defer g.publisher.Unsubscribe(token)

	ctx, cancel := context.WithTimeout(ctx, mlIDTimeout)
	defer cancel()

	for _, mln := range order {
		probeID := uuid.New().String()
		g.logger.Debug("mlgw: discovery probe", "mln", mln, "probe_id", probeID)
		if err := g.mlgw.SendBeo4(mln, audioSourceDest, beo4LightTimeout, 0x00, 0x00); err != nil {
			return err
		}

		if !waitForDiscoveryResponse(ctx, events, g.state, mln) {
			return nil // unmatched products retain ml_address=None
		}
	}
	return nil
}

// waitForDiscoveryResponse blocks until it sees the MLGW_REMOTE_BEO4
// "Light Timeout" trace response that matches the probe just sent for mln,
// binding ml_address from its to_device, or ctx expires.
func waitForDiscoveryResponse(ctx context.Context, events chan Event, state *GatewayState, mln byte) bool {
	for {
		select {
		case ev := <-events:
			if ev.ML == nil {
				continue
			}
			t := ev.ML.Telegram
			if t.FromDevice != DeviceMLGW || t.PayloadType != 0x20 || t.Payload.Command != "Light Timeout" {
				continue
			}
			state.SetMLAddress(mln, t.ToDevice)
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// ---- Command API (§4.7) ----

// TurnOn implements the turn_on policy: prefer the bus-wide active source
// if this product can play it, else the product's remembered source, else
// its first configured source.
func (g *Gateway) TurnOn(mln byte) error {
	product, ok := g.state.Product(mln)
	if !ok {
		return fmt.Errorf("mlgw: unknown mln %d", mln)
	}
	if beolink, ok := g.state.BeolinkSource(); ok {
		if code, ok := SourceID.Code(beolink); ok {
			if src, ok := product.findSource(code); ok {
				return g.SelectSource(mln, src.Name)
			}
		}
	}
	if st, ok := g.state.EntityState(mln); ok && st.HasCurrentSource {
		if src, ok := product.findSource(st.CurrentSourceID); ok {
			return g.SelectSource(mln, src.Name)
		}
	}
	if len(product.Sources) > 0 {
		return g.SelectSource(mln, product.Sources[0].Name)
	}
	return fmt.Errorf("mlgw: product %d has no configured sources", mln)
}

// TurnOff sends Beo4 Standby to the product's audio source destination
// (supplemented from original_source/media_player.py's turn_off).
func (g *Gateway) TurnOff(mln byte) error {
	return g.SendBeo4Cmd(mln, audioSourceDest, standbyBeo4Code, 0, 0)
}

const standbyBeo4Code byte = 0x0C // Beo4Key "Standby"

// SelectSource implements select_source(mln, name) (§4.7).
func (g *Gateway) SelectSource(mln byte, name string) error {
	product, ok := g.state.Product(mln)
	if !ok {
		return fmt.Errorf("mlgw: unknown mln %d", mln)
	}
	src, ok := product.findSourceByName(name)
	if !ok {
		return fmt.Errorf("mlgw: unknown source %q for mln %d", name, mln)
	}
	switch src.Format {
	case "F0":
		if len(src.SelectCmds) == 0 {
			return fmt.Errorf("mlgw: source %q has no select_cmds", name)
		}
		if err := g.mlgw.SendBeo4(mln, src.Destination, src.SelectCmds[0].Cmd, src.Secondary, src.Link); err != nil {
			return err
		}
		g.state.setBeolinkSourceDirect(src.Name)
		return nil
	case "F20":
		if len(src.SelectCmds) == 0 {
			return fmt.Errorf("mlgw: source %q has no select_cmds", name)
		}
		return g.mlgw.SendBeoRemoteOneSelect(mln, src.SelectCmds[0].Cmd, src.Unit, netBit(src.NetworkBit))
	default:
		return fmt.Errorf("mlgw: source %q has unknown format %q", name, src.Format)
	}
}

func netBit(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

// VolumeUp/VolumeDown/Mute resolve their destination from the product's
// currently selected source, not a fixed destination (supplemented from
// original_source/media_player.py).
func (g *Gateway) VolumeUp(mln byte) error   { return g.sourceDestBeo4(mln, beo4VolumeUp) }
func (g *Gateway) VolumeDown(mln byte) error { return g.sourceDestBeo4(mln, beo4VolumeDown) }
func (g *Gateway) Mute(mln byte) error       { return g.sourceDestBeo4(mln, beo4Mute) }
func (g *Gateway) Play(mln byte) error       { return g.sourceDestBeo4(mln, beo4Play) }
func (g *Gateway) StopPlayback(mln byte) error { return g.sourceDestBeo4(mln, beo4Stop) }
func (g *Gateway) PreviousTrack(mln byte) error { return g.sourceDestBeo4(mln, beo4Rewind) }
func (g *Gateway) NextTrack(mln byte) error     { return g.sourceDestBeo4(mln, beo4Wind) }

const (
	beo4VolumeUp   byte = 0x60
	beo4VolumeDown byte = 0x64
	beo4Mute       byte = 0x0D
	beo4Play       byte = 0x35
	beo4Stop       byte = 0x36
	beo4Rewind     byte = 0x32
	beo4Wind       byte = 0x34
)

func (g *Gateway) sourceDestBeo4(mln byte, cmd byte) error {
	product, ok := g.state.Product(mln)
	if !ok {
		return fmt.Errorf("mlgw: unknown mln %d", mln)
	}
	dest := audioSourceDest
	if st, ok := g.state.EntityState(mln); ok && st.HasCurrentSource {
		if src, ok := product.findSource(st.CurrentSourceID); ok {
			dest = src.Destination
		}
	}
	return g.mlgw.SendBeo4(mln, dest, cmd, 0, 0)
}

// Pause has no dedicated Beo4 key in the original dictionary; Stop serves
// the same purpose on MasterLink sources.
func (g *Gateway) Pause(mln byte) error { return g.StopPlayback(mln) }

// Shuffle/Repeat always return an error and send nothing: the Beo4 key
// table has no shuffle or repeat key.
func (g *Gateway) Shuffle(mln byte) error { return fmt.Errorf("mlgw: shuffle not supported by mln %d's source", mln) }
func (g *Gateway) Repeat(mln byte) error  { return fmt.Errorf("mlgw: repeat not supported by mln %d's source", mln) }

// AllStandby sends the 0x05 All Standby frame.
func (g *Gateway) AllStandby() error {
	return g.mlgw.SendAllStandby()
}

// VirtualButton sends an 0x20 Virtual Button frame. An unrecognised action
// defaults to PRESS (supplemented from original_source/__init__.py).
func (g *Gateway) VirtualButton(code byte, action string) error {
	a, ok := VirtualButtonAction.Code(action)
	if !ok {
		a, _ = VirtualButtonAction.Code("PRESS")
	}
	return g.mlgw.SendVirtualButton(code, a)
}

// SendBeo4Cmd exposes the raw 0x01 Beo4 Command encoder.
func (g *Gateway) SendBeo4Cmd(mln, dest, cmd, sec, link byte) error {
	return g.mlgw.SendBeo4(mln, dest, cmd, sec, link)
}

// SendBeoRemoteOneCmd exposes the raw 0x06 BeoRemote-One encoder.
func (g *Gateway) SendBeoRemoteOneCmd(mln, cmd, netBit byte) error {
	return g.mlgw.SendBeoRemoteOne(mln, cmd, netBit)
}
