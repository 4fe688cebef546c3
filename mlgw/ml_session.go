package mlgw

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const mlLoginPromptTimeout = 3 * time.Second
const mlCommandPromptRetries = 3
const mlCommandPromptSpacing = 500 * time.Millisecond

// mlTimestampLayout parses the trace line's leading timestamp,
// YYYYMMDD-HH:MM:SS:µs (§4.5), once parseMLTraceLine has turned the colon
// before the microseconds into a period.
const mlTimestampLayout = "20060102-15:04:05.999999"

// MLSession owns the persistent telnet connection used to read the hub's
// undocumented `_MLLOG ONLINE` MasterLink trace stream (C5). Only attempted
// when the configured account is "admin" (§4.5).
type MLSession struct {
	addr     string
	username string
	password string

	logger  *slog.Logger
	tracker *GatewayState
	publisher *Publisher

	RecvTimeout time.Duration
	IdleTimeout time.Duration
	Backoff     time.Duration
	MaxAttempts int

	stateMu sync.RWMutex
	state   SessionState

	connMu sync.Mutex
	conn   net.Conn

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMLSession constructs an ML trace session for addr ("host:23").
func NewMLSession(addr, username, password string, tracker *GatewayState, publisher *Publisher) *MLSession {
	return &MLSession{
		addr:        addr,
		username:    username,
		password:    password,
		logger:      slog.Default(),
		tracker:     tracker,
		publisher:   publisher,
		RecvTimeout: defaultRecvTimeout,
		IdleTimeout: defaultIdleTimeout,
		Backoff:     defaultBackoff,
		MaxAttempts: defaultMaxAttempts,
		state:       StateIdle,
		stopCh:      make(chan struct{}),
	}
}

func (s *MLSession) setState(st SessionState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	s.logger.Debug("ml trace session state", "state", st.String())
}

// State returns the session's current state.
func (s *MLSession) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Stop requests the session to drain and close.
func (s *MLSession) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Eligible reports whether this account may open the trace stream: the hub
// requires admin privileges for it (§4.5).
func Eligible(username string, useMLLog bool) bool {
	return useMLLog && username == "admin"
}

// Run drives the session's reconnect loop, identically to MLGWSession.Run.
func (s *MLSession) Run(ctx context.Context) error {
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
			s.logger.Warn("ml trace: connect failed", "attempt", attempts, "err", err)
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
		err = s.serve(conn)
		s.closeConn()
		s.tracker.setConnectedML(false)

		if err == errStoppedOrDone {
			s.setState(StateDraining)
			s.setState(StateClosed)
			return nil
		}

		s.logger.Warn("ml trace: session broken, reconnecting", "err", err)
		if !s.sleepOrStop(ctx, s.Backoff) {
			s.setState(StateClosed)
			return nil
		}
	}
}

func (s *MLSession) sleepOrStop(ctx context.Context, d time.Duration) bool {
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

func (s *MLSession) connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return conn, nil
}

func (s *MLSession) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// serve performs the login handshake, activates the trace stream, then
// parses and dispatches trace lines until the connection drops or the
// session is asked to stop.
func (s *MLSession) serve(conn net.Conn) error {
	r := bufio.NewReader(conn)

	if err := s.login(conn, r); err != nil {
		return err
	}

	if _, err := conn.Write([]byte("_MLLOG ONLINE\r\n")); err != nil {
		return err
	}

	s.setState(StateReady)
	s.tracker.setConnectedML(true)

	lastActivity := time.Now()
	for {
		select {
		case <-s.stopCh:
			return errStoppedOrDone
		default:
		}

		conn.SetReadDeadline(time.Now().Add(s.RecvTimeout))
		line, err := r.ReadString('\n')
		if err != nil {
			if isTimeoutErr(err) {
				if time.Since(lastActivity) >= s.IdleTimeout {
					if _, err := conn.Write([]byte{0x00}); err != nil {
						return err
					}
					lastActivity = time.Now()
				}
				continue
			}
			return err
		}
		lastActivity = time.Now()

		raw, ts, err := parseMLTraceLine(line)
		if err != nil {
			s.logger.Warn("ml trace: unparsable line", "line", line, "err", err)
			continue
		}
		telegram, err := DecodeML(raw, ts)
		if err != nil {
			s.logger.Warn("ml trace: decode failure", "err", err)
			continue
		}
		s.tracker.ApplyML(telegram)
		ev := MLTelegramEvent{Telegram: telegram}
		s.tracker.mu.RLock()
		if p := s.tracker.productByMLAddressLocked(telegram.FromDevice); p != nil {
			ev.FromMLN, ev.FromName, ev.HasFrom = p.MLN, p.Name, true
		}
		if p := s.tracker.productByMLAddressLocked(telegram.ToDevice); p != nil {
			ev.ToMLN, ev.ToName, ev.HasTo = p.MLN, p.Name, true
		}
		s.tracker.mu.RUnlock()
		s.publisher.PublishML(ev)
	}
}

// login performs the telnet login/password/prompt handshake described in
// §4.5: wait for "login: ", send the password, then wait for a prompt
// ending in "LGW >" (MLGW or BLGW), retrying the password line up to 3
// times with 0.5 s spacing.
func (s *MLSession) login(conn net.Conn, r *bufio.Reader) error {
	conn.SetReadDeadline(time.Now().Add(mlLoginPromptTimeout))
	if err := readUntil(r, "login: "); err != nil {
		return fmt.Errorf("%w: no login prompt: %v", ErrCannotConnect, err)
	}

	for attempt := 0; attempt < mlCommandPromptRetries; attempt++ {
		if _, err := conn.Write([]byte(s.password + "\n")); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(mlLoginPromptTimeout))
		if err := readUntilAny(r, "MLGW >", "BLGW >"); err == nil {
			return nil
		}
		time.Sleep(mlCommandPromptSpacing)
	}
	return fmt.Errorf("%w: command prompt never appeared", ErrAuthInvalid)
}

// readUntil consumes bytes from r until it has seen substr, or returns an
// error (including on timeout).
func readUntil(r *bufio.Reader, substr string) error {
	return readUntilAny(r, substr)
}

func readUntilAny(r *bufio.Reader, substrs ...string) error {
	var buf strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		buf.WriteByte(b)
		s := buf.String()
		for _, sub := range substrs {
			if strings.HasSuffix(s, sub) {
				return nil
			}
		}
		if buf.Len() > 4096 {
			return errors.New("mlgw: prompt not found within buffer limit")
		}
	}
}

// parseMLTraceLine parses one trace line of the shape
// "YYYYMMDD-HH:MM:SS:µs: BB, BB, … BB,\n" into the assembled byte array and
// the parsed arrival timestamp (§4.5). Parse failures are returned as an
// error; the caller logs and skips rather than treating this as fatal.
func parseMLTraceLine(line string) ([]byte, time.Time, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, time.Time{}, fmt.Errorf("%w: too few fields", ErrParseFailure)
	}
	tsField := strings.TrimSuffix(fields[0], ":")
	if i := strings.LastIndex(tsField, ":"); i >= 0 {
		tsField = tsField[:i] + "." + tsField[i+1:]
	}
	ts, err := time.Parse(mlTimestampLayout, tsField)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: bad timestamp %q: %v", ErrParseFailure, tsField, err)
	}

	raw := make([]byte, 0, len(fields)-1)
	for _, tok := range fields[1:] {
		tok = strings.TrimSuffix(tok, ",")
		if tok == "" {
			continue
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: bad byte %q: %v", ErrParseFailure, tok, err)
		}
		raw = append(raw, byte(b))
	}
	return raw, ts, nil
}
