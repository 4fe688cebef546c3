package mlgw

import "fmt"

// MLGW frame type bytes (§4.3, §4.6).
const (
	mlgwTypeBeo4Command        byte = 0x01
	mlgwTypeSourceStatus       byte = 0x02
	mlgwTypePictSoundStatus    byte = 0x03
	mlgwTypeLightControl       byte = 0x04
	mlgwTypeAllStandby         byte = 0x05
	mlgwTypeBeoRemoteOne       byte = 0x06
	mlgwTypeBeoRemoteOneSelect byte = 0x07
	mlgwTypeVirtualButton      byte = 0x20
	mlgwTypeLoginRequest       byte = 0x30
	mlgwTypeLoginStatus        byte = 0x31
	mlgwTypePing               byte = 0x36
	mlgwTypePong               byte = 0x37
	mlgwTypeConfigChange       byte = 0x38
	mlgwTypeRequestSerial      byte = 0x39
	mlgwTypeSerialNumber       byte = 0x3A
)

// soh is the fixed start-of-header byte of every MLGW frame.
const soh = 0x01

// MLGWFrame is a decoded `[SOH][type][len][0x00][payload...]` frame (§3).
type MLGWFrame struct {
	Type    byte
	Payload []byte
}

// TypeName renders Type's symbolic name.
func (f MLGWFrame) TypeName() string { return MLGWPayloadType.Name(f.Type) }

// EncodeMLGWFrame builds the wire bytes for an MLGW frame: a fixed 4-byte
// header followed by the payload. Payload length must fit in a byte; the
// protocol has no mechanism for longer frames.
func EncodeMLGWFrame(frameType byte, payload []byte) ([]byte, error) {
	if len(payload) > 0xFF {
		return nil, fmt.Errorf("mlgw: payload too long for MLGW frame: %d bytes", len(payload))
	}
	out := make([]byte, 4+len(payload))
	out[0] = soh
	out[1] = frameType
	out[2] = byte(len(payload))
	out[3] = 0x00
	copy(out[4:], payload)
	return out, nil
}

// DecodeMLGWFrame reads exactly one frame from the front of raw. It returns
// the decoded frame and the number of bytes consumed, or an error if raw
// does not hold a complete frame yet (callers should wait for more bytes,
// not treat this as fatal).
func DecodeMLGWFrame(raw []byte) (MLGWFrame, int, error) {
	if len(raw) < 4 {
		return MLGWFrame{}, 0, fmt.Errorf("mlgw: short MLGW header: %d bytes", len(raw))
	}
	if raw[0] != soh {
		return MLGWFrame{}, 0, fmt.Errorf("mlgw: bad MLGW frame sync byte 0x%02X", raw[0])
	}
	length := int(raw[2])
	total := 4 + length
	if len(raw) < total {
		return MLGWFrame{}, 0, fmt.Errorf("mlgw: incomplete MLGW frame: have %d, need %d", len(raw), total)
	}
	f := MLGWFrame{Type: raw[1], Payload: raw[4:total]}
	return f, total, nil
}

// SourceStatus is the decoded payload of an 0x02 Source Status frame.
type SourceStatus struct {
	MLN             byte
	Source          string
	SourceID        byte
	MediumPosition  string
	Position        string
	Activity        string
	PictureFormat   string
	PositionInt     int
}

// DecodeSourceStatus decodes an 0x02 frame payload per §4.3.
func DecodeSourceStatus(p []byte) (SourceStatus, error) {
	if len(p) < 8 {
		return SourceStatus{}, fmt.Errorf("mlgw: short Source Status payload: %d bytes", len(p))
	}
	return SourceStatus{
		MLN:            p[0],
		Source:         SourceID.Name(p[1]),
		SourceID:       p[1],
		MediumPosition: hexWord(p[2], p[3]),
		Position:       hexWord(p[4], p[5]),
		Activity:       MLState.Name(p[6]),
		PictureFormat:  PictureFormat.Name(p[7]),
		PositionInt:    int(p[4])<<8 | int(p[5]),
	}, nil
}

// PictSoundStatus is the decoded payload of an 0x03 Pict&Snd frame.
type PictSoundStatus struct {
	MLN           byte
	SoundStatus   string
	SpeakerMode   string
	Volume        int
	Screen1Mute   string
	Screen1Active string
	Screen2Mute   string
	Screen2Active string
	CinemaMode    string
	StereoMode    string
}

// DecodePictSoundStatus decodes an 0x03 frame payload per §4.3.
func DecodePictSoundStatus(p []byte) (PictSoundStatus, error) {
	if len(p) < 10 {
		return PictSoundStatus{}, fmt.Errorf("mlgw: short Pict&Snd payload: %d bytes", len(p))
	}
	return PictSoundStatus{
		MLN:           p[0],
		SoundStatus:   SoundStatus.Name(p[1]),
		SpeakerMode:   SpeakerMode.Name(p[2]),
		Volume:        int(p[3]),
		Screen1Mute:   ScreenMute.Name(p[4]),
		Screen1Active: ScreenActive.Name(p[5]),
		Screen2Mute:   ScreenMute.Name(p[6]),
		Screen2Active: ScreenActive.Name(p[7]),
		CinemaMode:    CinemaMode.Name(p[8]),
		StereoMode:    StereoIndicator.Name(p[9]),
	}, nil
}

// LightControl is the decoded payload of an 0x04 Light/Control frame.
type LightControl struct {
	Room    byte
	Type    string
	Command string
}

// DecodeLightControl decodes an 0x04 frame payload per §4.3.
func DecodeLightControl(p []byte) (LightControl, error) {
	if len(p) < 3 {
		return LightControl{}, fmt.Errorf("mlgw: short Light/Control payload: %d bytes", len(p))
	}
	return LightControl{
		Room:    p[0],
		Type:    LCType.Name(p[1]),
		Command: Beo4Key.Name(p[2]),
	}, nil
}

// VirtualButton is the decoded payload of an 0x20 Virtual Button frame.
type VirtualButton struct {
	Button byte
	Action string
}

// DecodeVirtualButton decodes an 0x20 frame payload. A missing action byte
// defaults to PRESS (§4.3, S6).
func DecodeVirtualButton(p []byte) (VirtualButton, error) {
	if len(p) < 1 {
		return VirtualButton{}, fmt.Errorf("mlgw: empty Virtual Button payload")
	}
	action := byte(0x01)
	if len(p) >= 2 {
		action = p[1]
	}
	return VirtualButton{Button: p[0], Action: VirtualButtonAction.Name(action)}, nil
}

// DecodeLoginStatus decodes an 0x31 Login Status frame payload.
func DecodeLoginStatus(p []byte) (string, error) {
	if len(p) < 1 {
		return "", fmt.Errorf("mlgw: empty Login Status payload")
	}
	return LoginStatus.Name(p[0]), nil
}

// DecodeSerialNumber decodes an 0x3A Serial Number frame payload as ASCII.
func DecodeSerialNumber(p []byte) string {
	return string(p)
}

// EncodeBeo4 builds an 0x01 Beo4 Command payload: (mln, dest, cmd, sec, link).
func EncodeBeo4(mln, dest, cmd, secondary, link byte) []byte {
	return []byte{mln, dest, cmd, secondary, link}
}

// EncodeBeoRemoteOne builds an 0x06 BeoRemote-One control command payload:
// (mln, cmd, 0x00, net_bit).
func EncodeBeoRemoteOne(mln, cmd, netBit byte) []byte {
	return []byte{mln, cmd, 0x00, netBit}
}

// EncodeBeoRemoteOneSelect builds an 0x07 BeoRemote-One source-select
// payload: (mln, cmd, unit, 0x00, net_bit).
func EncodeBeoRemoteOneSelect(mln, cmd, unit, netBit byte) []byte {
	return []byte{mln, cmd, unit, 0x00, netBit}
}

// EncodeVirtualButton builds an 0x20 Virtual Button payload: (btn, action).
func EncodeVirtualButton(button, action byte) []byte {
	return []byte{button, action}
}

// EncodeLogin builds an 0x30 Login payload: user || 0x00 || password, raw
// bytes, no terminator after password (§3).
func EncodeLogin(user, password string) []byte {
	out := make([]byte, 0, len(user)+1+len(password))
	out = append(out, []byte(user)...)
	out = append(out, 0x00)
	out = append(out, []byte(password)...)
	return out
}

// EncodePing builds an 0x36 Ping payload (empty).
func EncodePing() []byte { return nil }

// EncodeRequestSerial builds an 0x39 Request Serial Number payload (empty).
func EncodeRequestSerial() []byte { return nil }
