package mlgw

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// SessionState is one state of the C4/C5 connection state machine (§4.4).
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateDraining
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateReady:
		return "Ready"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

const (
	defaultRecvTimeout   = 5 * time.Second
	defaultIdleTimeout   = 600 * time.Second
	defaultBackoff       = 60 * time.Second
	defaultMaxAttempts   = 10 // §9 Open Question 3: left configurable
	defaultSendsPerSecond = 20
)

// MLGWSession owns the persistent TCP connection to the hub's binary
// command protocol on port 9000 (C4).
type MLGWSession struct {
	addr  string
	creds Credentials

	logger    *slog.Logger
	tracker   *GatewayState
	publisher *Publisher

	// OnConfigChange is invoked when an 0x38 Configuration Change
	// notification arrives; the core does not rehydrate Product records
	// itself (§7 Propagation) — this is the hook an external collaborator
	// uses to do so.
	OnConfigChange func()

	RecvTimeout time.Duration
	IdleTimeout time.Duration
	Backoff     time.Duration
	MaxAttempts int

	stateMu sync.RWMutex
	state   SessionState

	connMu sync.Mutex
	conn   net.Conn

	sendMu  sync.Mutex
	limiter *rate.Limiter

	stopCh   chan struct{}
	stopOnce sync.Once

	stats             *CommandStats
	serialRequestedAt atomic.Value // time.Time
	loginStartedAt    atomic.Value // time.Time
}

// NewMLGWSession constructs a session for addr ("host:port") with creds. The
// tracker and publisher are shared with the rest of the engine.
func NewMLGWSession(addr string, creds Credentials, tracker *GatewayState, publisher *Publisher) *MLGWSession {
	return &MLGWSession{
		addr:        addr,
		creds:       creds,
		logger:      slog.Default(),
		tracker:     tracker,
		publisher:   publisher,
		RecvTimeout: defaultRecvTimeout,
		IdleTimeout: defaultIdleTimeout,
		Backoff:     defaultBackoff,
		MaxAttempts: defaultMaxAttempts,
		state:       StateIdle,
		limiter:     rate.NewLimiter(rate.Limit(defaultSendsPerSecond), 1),
		stopCh:      make(chan struct{}),
		stats:       NewCommandStats(),
	}
}

func (s *MLGWSession) setState(st SessionState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	s.logger.Debug("mlgw session state", "state", st.String())
}

// State returns the session's current state.
func (s *MLGWSession) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Stop requests the session to drain and close. Safe to call more than
// once and from any goroutine.
func (s *MLGWSession) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Run drives the Idle→Connecting→Authenticating→Ready→Draining→Closed state
// machine until Stop is called, ctx is cancelled, or the reconnect budget is
// exhausted. It never returns a non-nil error for a clean stop.
func (s *MLGWSession) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	attempts := 0
	for {
		select {
		case <-s.stopCh:
			s.setState(StateClosed)
			return nil
		case <-ctx.Done():
			s.setState(StateClosed)
			return ctx.Err()
		default:
		}

		conn, err := s.connect(ctx)
		if err != nil {
			attempts++
			s.logger.Warn("mlgw: connect failed", "attempt", attempts, "err", err)
			if attempts >= s.MaxAttempts {
				s.setState(StateClosed)
				return fmt.Errorf("%w: %d attempts", ErrCannotConnect, attempts)
			}
			if !s.sleepOrStop(ctx, s.Backoff) {
				s.setState(StateClosed)
				return nil
			}
			continue
		}
		attempts = 0

		s.setState(StateAuthenticating)
		err = s.serve(ctx, conn)
		s.closeConn()
		s.tracker.setConnectedMLGW(false)

		if errors.Is(err, ErrAuthRetryExhausted) {
			s.setState(StateClosed)
			return err
		}
		if err == errStoppedOrDone {
			s.setState(StateDraining)
			s.setState(StateClosed)
			return nil
		}

		s.logger.Warn("mlgw: session broken, reconnecting", "err", err)
		if !s.sleepOrStop(ctx, s.Backoff) {
			s.setState(StateClosed)
			return nil
		}
	}
}

var errStoppedOrDone = errors.New("mlgw: stopped")

func (s *MLGWSession) sleepOrStop(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *MLGWSession) connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.loginStartedAt.Store(time.Now())
	return conn, nil
}

func (s *MLGWSession) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// serve runs the login handshake and then the Ready dispatch loop for one
// live connection. It returns errStoppedOrDone on a clean shutdown, or the
// I/O / protocol error that ended the connection otherwise.
func (s *MLGWSession) serve(ctx context.Context, conn net.Conn) error {
	r := bufio.NewReader(conn)
	lastActivity := time.Now()
	failCount := 0

	if err := s.writeFrame(conn, mlgwTypePing, EncodePing()); err != nil {
		return err
	}

	for {
		select {
		case <-s.stopCh:
			return errStoppedOrDone
		case <-ctx.Done():
			return errStoppedOrDone
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.RecvTimeout))
		frame, err := readMLGWFrame(r)
		if err != nil {
			if isTimeoutErr(err) {
				if time.Since(lastActivity) >= s.IdleTimeout {
					if err := s.writeFrame(conn, mlgwTypePing, EncodePing()); err != nil {
						return err
					}
					lastActivity = time.Now()
				}
				continue
			}
			return err
		}
		lastActivity = time.Now()

		switch frame.Type {
		case mlgwTypeLoginStatus:
			status, _ := DecodeLoginStatus(frame.Payload)
			switch status {
			case "OK":
				s.setState(StateReady)
				s.tracker.setConnectedMLGW(true)
				if v, ok := s.loginStartedAt.Load().(time.Time); ok {
					s.stats.Sample("login", time.Since(v))
				}
				s.serialRequestedAt.Store(time.Now())
				if err := s.writeFrame(conn, mlgwTypeRequestSerial, EncodeRequestSerial()); err != nil {
					return err
				}
			case "FAIL":
				failCount++
				if failCount >= 2 {
					return ErrAuthRetryExhausted
				}
				if err := s.writeFrame(conn, mlgwTypeLoginRequest, EncodeLogin(s.creds.Username, s.creds.Password)); err != nil {
					return err
				}
			}

		case mlgwTypeSerialNumber:
			serial := DecodeSerialNumber(frame.Payload)
			s.tracker.setSerial(serial)
			if v, ok := s.serialRequestedAt.Load().(time.Time); ok {
				s.stats.Sample("request_serial_number", time.Since(v))
			}

		case mlgwTypeSourceStatus:
			if ss, err := DecodeSourceStatus(frame.Payload); err == nil {
				s.tracker.ApplySourceStatus(ss)
				s.publisher.PublishMLGW(MLGWTelegramEvent{PayloadType: "source_status", SourceStatus: &ss})
			} else {
				s.logger.Warn("mlgw: parse failure", "frame", frame.TypeName(), "err", err)
			}

		case mlgwTypePictSoundStatus:
			if ps, err := DecodePictSoundStatus(frame.Payload); err == nil {
				s.tracker.ApplyPictSoundStatus(ps)
				s.publisher.PublishMLGW(MLGWTelegramEvent{PayloadType: "pict_sound_status", PictSoundStatus: &ps})
			} else {
				s.logger.Warn("mlgw: parse failure", "frame", frame.TypeName(), "err", err)
			}

		case mlgwTypeLightControl:
			if lc, err := DecodeLightControl(frame.Payload); err == nil {
				s.publisher.PublishMLGW(MLGWTelegramEvent{PayloadType: "light_control_event", LightControl: &lc})
			} else {
				s.logger.Warn("mlgw: parse failure", "frame", frame.TypeName(), "err", err)
			}

		case mlgwTypeAllStandby:
			s.tracker.ApplyAllStandby()
			s.publisher.PublishMLGW(MLGWTelegramEvent{PayloadType: "all_standby"})

		case mlgwTypeVirtualButton:
			if vb, err := DecodeVirtualButton(frame.Payload); err == nil {
				s.publisher.PublishMLGW(MLGWTelegramEvent{PayloadType: "virtual_button", VirtualButton: &vb})
			}

		case mlgwTypeConfigChange:
			if s.OnConfigChange != nil {
				s.OnConfigChange()
			}

		case mlgwTypePong:
			// Acknowledged keep-alive; nothing to do.
		}
	}
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// readMLGWFrame reads exactly one frame from r: a fixed 4-byte header
// followed by length payload bytes (§4.3).
func readMLGWFrame(r *bufio.Reader) (MLGWFrame, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return MLGWFrame{}, err
	}
	if header[0] != soh {
		return MLGWFrame{}, fmt.Errorf("%w: bad sync byte 0x%02X", ErrProtocolMalformed, header[0])
	}
	length := int(header[2])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return MLGWFrame{}, err
		}
	}
	return MLGWFrame{Type: header[1], Payload: payload}, nil
}

func (s *MLGWSession) writeFrame(conn net.Conn, frameType byte, payload []byte) error {
	if err := s.limiter.Wait(context.Background()); err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	frame, err := EncodeMLGWFrame(frameType, payload)
	if err != nil {
		return err
	}
	if _, err := conn.Write(frame); err != nil {
		s.tracker.setBroken()
		return err
	}
	return nil
}

// send writes a frame on the session's current connection, if any. Returns
// an error if the session is not currently connected.
func (s *MLGWSession) send(frameType byte, payload []byte) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: mlgw session not connected", ErrCannotConnect)
	}
	return s.writeFrame(conn, frameType, payload)
}

// SendBeo4 sends an 0x01 Beo4 Command frame.
func (s *MLGWSession) SendBeo4(mln, dest, cmd, secondary, link byte) error {
	return s.send(mlgwTypeBeo4Command, EncodeBeo4(mln, dest, cmd, secondary, link))
}

// SendBeoRemoteOne sends an 0x06 BeoRemote-One control command frame.
func (s *MLGWSession) SendBeoRemoteOne(mln, cmd, netBit byte) error {
	return s.send(mlgwTypeBeoRemoteOne, EncodeBeoRemoteOne(mln, cmd, netBit))
}

// SendBeoRemoteOneSelect sends an 0x07 BeoRemote-One source-select frame.
func (s *MLGWSession) SendBeoRemoteOneSelect(mln, cmd, unit, netBit byte) error {
	return s.send(mlgwTypeBeoRemoteOneSelect, EncodeBeoRemoteOneSelect(mln, cmd, unit, netBit))
}

// SendVirtualButton sends an 0x20 Virtual Button frame.
func (s *MLGWSession) SendVirtualButton(button, action byte) error {
	return s.send(mlgwTypeVirtualButton, EncodeVirtualButton(button, action))
}

// SendAllStandby sends an 0x05 All Standby frame (no payload).
func (s *MLGWSession) SendAllStandby() error {
	return s.send(mlgwTypeAllStandby, nil)
}

// Stats reports round-trip latency for the session's reply-bearing
// commands: the login handshake and Request Serial Number.
func (s *MLGWSession) Stats() string { return s.stats.String() }
