package mlgw_test

import (
	"bytes"
	"testing"

	"github.com/giachello/mlgw/mlgw"
)

// TestFrameRoundTrip is §8 law 2: DecodeMLGWFrame(EncodeMLGWFrame(type,
// payload)) == (type, payload) for a spread of payload lengths across the
// range the wire format allows (0..255 bytes), including both ends.
func TestFrameRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 16, 127, 128, 254, 255} {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i)
		}
		wire, err := mlgw.EncodeMLGWFrame(0x02, payload)
		if err != nil {
			t.Fatalf("EncodeMLGWFrame(n=%d): %v", n, err)
		}
		frame, consumed, err := mlgw.DecodeMLGWFrame(wire)
		if err != nil {
			t.Fatalf("DecodeMLGWFrame(n=%d): %v", n, err)
		}
		if consumed != len(wire) {
			t.Fatalf("consumed = %d, want %d", consumed, len(wire))
		}
		if frame.Type != 0x02 {
			t.Fatalf("Type = 0x%02X, want 0x02", frame.Type)
		}
		if !bytes.Equal(frame.Payload, payload) {
			t.Fatalf("Payload = %v, want %v", frame.Payload, payload)
		}
	}
}

func TestEncodeMLGWFrameRejectsOversizePayload(t *testing.T) {
	if _, err := mlgw.EncodeMLGWFrame(0x01, make([]byte, 256)); err == nil {
		t.Fatal("EncodeMLGWFrame(256 bytes) = nil error, want error")
	}
}

func TestDecodeMLGWFrameIncomplete(t *testing.T) {
	wire, _ := mlgw.EncodeMLGWFrame(0x01, []byte{0x01, 0x02, 0x03})
	if _, _, err := mlgw.DecodeMLGWFrame(wire[:len(wire)-1]); err == nil {
		t.Fatal("DecodeMLGWFrame(truncated) = nil error, want error")
	}
}

func TestDecodeMLGWFrameBadSync(t *testing.T) {
	if _, _, err := mlgw.DecodeMLGWFrame([]byte{0x02, 0x36, 0x00, 0x00}); err == nil {
		t.Fatal("DecodeMLGWFrame(bad sync) = nil error, want error")
	}
}

// TestScenarioS1PingPong: Ping and Pong are empty-payload frames.
func TestScenarioS1PingPong(t *testing.T) {
	ping, err := mlgw.EncodeMLGWFrame(0x36, mlgw.EncodePing())
	if err != nil {
		t.Fatalf("EncodeMLGWFrame(ping): %v", err)
	}
	if !bytes.Equal(ping, []byte{0x01, 0x36, 0x00, 0x00}) {
		t.Fatalf("ping wire = % X, want 01 36 00 00", ping)
	}

	pong := []byte{0x01, 0x37, 0x00, 0x00}
	frame, _, err := mlgw.DecodeMLGWFrame(pong)
	if err != nil {
		t.Fatalf("DecodeMLGWFrame(pong): %v", err)
	}
	if frame.TypeName() != "Pong" {
		t.Fatalf("TypeName() = %q, want Pong", frame.TypeName())
	}
}

// TestScenarioS2LoginSequence walks the login handshake byte sequence:
// Login FAIL, a Login request, then Login OK, then Request Serial Number.
func TestScenarioS2LoginSequence(t *testing.T) {
	fail := []byte{0x01, 0x31, 0x01, 0x00, 0x01}
	frame, _, err := mlgw.DecodeMLGWFrame(fail)
	if err != nil {
		t.Fatalf("DecodeMLGWFrame(fail): %v", err)
	}
	status, err := mlgw.DecodeLoginStatus(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeLoginStatus: %v", err)
	}
	if status != "FAIL" {
		t.Fatalf("status = %q, want FAIL", status)
	}

	login, err := mlgw.EncodeMLGWFrame(0x30, mlgw.EncodeLogin("admin", "secret"))
	if err != nil {
		t.Fatalf("EncodeMLGWFrame(login): %v", err)
	}
	want := []byte{0x01, 0x30, 0x0c, 0x00, 'a', 'd', 'm', 'i', 'n', 0x00, 's', 'e', 'c', 'r', 'e', 't'}
	if !bytes.Equal(login, want) {
		t.Fatalf("login wire = % X, want % X", login, want)
	}

	ok := []byte{0x01, 0x31, 0x01, 0x00, 0x00}
	frame, _, err = mlgw.DecodeMLGWFrame(ok)
	if err != nil {
		t.Fatalf("DecodeMLGWFrame(ok): %v", err)
	}
	status, err = mlgw.DecodeLoginStatus(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeLoginStatus: %v", err)
	}
	if status != "OK" {
		t.Fatalf("status = %q, want OK", status)
	}

	reqSerial, err := mlgw.EncodeMLGWFrame(0x39, mlgw.EncodeRequestSerial())
	if err != nil {
		t.Fatalf("EncodeMLGWFrame(request serial): %v", err)
	}
	if !bytes.Equal(reqSerial, []byte{0x01, 0x39, 0x00, 0x00}) {
		t.Fatalf("request serial wire = % X, want 01 39 00 00", reqSerial)
	}
}

// TestScenarioS5AllStandbyFrame: the All Standby notification is an
// empty-payload 0x05 frame.
func TestScenarioS5AllStandbyFrame(t *testing.T) {
	wire := []byte{0x01, 0x05, 0x00, 0x00}
	frame, _, err := mlgw.DecodeMLGWFrame(wire)
	if err != nil {
		t.Fatalf("DecodeMLGWFrame: %v", err)
	}
	if frame.TypeName() != "All standby notification" {
		t.Fatalf("TypeName() = %q, want %q", frame.TypeName(), "All standby notification")
	}
	if len(frame.Payload) != 0 {
		t.Fatalf("Payload = %v, want empty", frame.Payload)
	}
}

// TestScenarioS6VirtualButtonPress decodes a Virtual Button frame for button
// 7 that carries no action byte; the action defaults to PRESS.
func TestScenarioS6VirtualButtonPress(t *testing.T) {
	wire := []byte{0x01, 0x20, 0x01, 0x00, 0x07}
	frame, _, err := mlgw.DecodeMLGWFrame(wire)
	if err != nil {
		t.Fatalf("DecodeMLGWFrame: %v", err)
	}
	btn, err := mlgw.DecodeVirtualButton(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeVirtualButton: %v", err)
	}
	if btn.Button != 7 {
		t.Fatalf("Button = %d, want 7", btn.Button)
	}
	if btn.Action != "PRESS" {
		t.Fatalf("Action = %q, want PRESS", btn.Action)
	}
}

func TestDecodeSourceStatus(t *testing.T) {
	p := []byte{0x01, 0x6F, 0x00, 0x00, 0x00, 0x02, 0x02, 0x03}
	s, err := mlgw.DecodeSourceStatus(p)
	if err != nil {
		t.Fatalf("DecodeSourceStatus: %v", err)
	}
	if s.Source != "RADIO" {
		t.Fatalf("Source = %q, want RADIO", s.Source)
	}
	if s.Activity != "Playing" {
		t.Fatalf("Activity = %q, want Playing", s.Activity)
	}
	if s.PositionInt != 2 {
		t.Fatalf("PositionInt = %d, want 2", s.PositionInt)
	}
}

func TestDecodeSourceStatusShortIsError(t *testing.T) {
	if _, err := mlgw.DecodeSourceStatus([]byte{0x01}); err == nil {
		t.Fatal("DecodeSourceStatus(short) = nil error, want error")
	}
}

func TestDecodeVirtualButtonDefaultsToPress(t *testing.T) {
	btn, err := mlgw.DecodeVirtualButton([]byte{0x05})
	if err != nil {
		t.Fatalf("DecodeVirtualButton: %v", err)
	}
	if btn.Action != "PRESS" {
		t.Fatalf("Action = %q, want PRESS", btn.Action)
	}
}
