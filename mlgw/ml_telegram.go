package mlgw

import (
	"fmt"
	"log/slog"
	"time"
)

// minMLTelegramLen is the minimum length of a well-formed ML telegram: 9
// bytes of header plus a (possibly zero-length) payload.
const minMLTelegramLen = 9

// MLTelegram is a decoded MasterLink bus packet (§3, §4.2).
type MLTelegram struct {
	Raw         []byte
	Timestamp   time.Time
	FromDevice  byte
	ToDevice    byte
	Type        byte
	SrcDest     byte
	OrigSrc     byte
	PayloadType byte
	PayloadLen  byte
	Payload     MLPayload
}

// FromDeviceName, ToDeviceName, TypeName, SrcDestName, OrigSrcName,
// PayloadTypeName render the symbolic names for their respective fields.
func (t MLTelegram) FromDeviceName() string  { return DeviceName(t.FromDevice) }
func (t MLTelegram) ToDeviceName() string    { return DeviceName(t.ToDevice) }
func (t MLTelegram) TypeName() string        { return MLTelegramType.Name(t.Type) }
func (t MLTelegram) SrcDestName() string     { return SourceID.Name(t.SrcDest) }
func (t MLTelegram) OrigSrcName() string     { return SourceID.Name(t.OrigSrc) }
func (t MLTelegram) PayloadTypeName() string { return MLPayloadType.Name(t.PayloadType) }

// LogValue implements slog.LogValuer so logging a telegram on the hot path
// doesn't pay formatting cost unless the active handler actually emits it.
func (t MLTelegram) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("from", t.FromDeviceName()),
		slog.String("to", t.ToDeviceName()),
		slog.String("payload_type", t.PayloadTypeName()),
	)
}

// MLPayload holds the payload sub-record for whichever payload_type the
// telegram carries. Only the fields relevant to PayloadType are populated;
// the rest are zero values.
type MLPayload struct {
	// STATUS_INFO (0x87)
	Source            string
	SourceID          byte
	LocalSource       byte
	SourceMedium      string
	ChannelTrack      int
	Activity          string
	SourceType        byte
	PictureIdentifier string

	// DISPLAY_SOURCE (0x06)
	DisplaySource string

	// EXTENDED_SOURCE_INFORMATION (0x0B)
	InfoType  byte
	InfoValue string

	// BEO4_KEY (0x0D)
	Command string

	// TRACK_INFO (0x44)
	Subtype    string
	PrevSource string
	PrevSourceID byte

	// MLGW_REMOTE_BEO4 (0x20)
	DestSelector string
}

// DecodeML parses a raw MasterLink telegram into an MLTelegram. It never
// panics (§8 law 3); telegrams shorter than the minimum header are rejected
// with an error rather than decoded partially.
func DecodeML(raw []byte, arrival time.Time) (MLTelegram, error) {
	if len(raw) < minMLTelegramLen {
		return MLTelegram{}, fmt.Errorf("mlgw: ML telegram too short: %d bytes, need at least %d", len(raw), minMLTelegramLen)
	}

	t := MLTelegram{
		Raw:         raw,
		Timestamp:   arrival,
		ToDevice:    raw[0],
		FromDevice:  raw[1],
		Type:        raw[3],
		SrcDest:     raw[4],
		OrigSrc:     raw[5],
		PayloadType: raw[7],
		PayloadLen:  raw[8],
	}

	// Payload offsets below index into the telegram as a whole, not into
	// the payload sub-slice, per spec §4.2. Guard every offset so a
	// truncated or malformed telegram degrades to a partially-populated
	// payload instead of panicking.
	at := func(i int) (byte, bool) {
		if i < 0 || i >= len(raw) {
			return 0, false
		}
		return raw[i], true
	}

	switch t.PayloadType {
	case 0x87: // STATUS_INFO
		if src, ok := at(10); ok {
			t.Payload.SourceID = src
			t.Payload.Source = SourceID.Name(src)
		}
		if ls, ok := at(13); ok {
			t.Payload.LocalSource = ls
		}
		b18, ok18 := at(18)
		b17, ok17 := at(17)
		if ok18 && ok17 {
			t.Payload.SourceMedium = hexWord(b18, b17)
		}
		if int(t.PayloadLen) < 27 {
			if ct, ok := at(19); ok {
				t.Payload.ChannelTrack = int(ct)
			}
		} else {
			hi, okHi := at(36)
			lo, okLo := at(37)
			if okHi && okLo {
				t.Payload.ChannelTrack = int(hi)<<8 | int(lo)
			}
		}
		if act, ok := at(21); ok {
			t.Payload.Activity = MLState.Name(act)
		}
		if st, ok := at(22); ok {
			t.Payload.SourceType = st
		}
		if pic, ok := at(23); ok {
			t.Payload.PictureIdentifier = PictureFormat.Name(pic)
		}

	case 0x06: // DISPLAY_SOURCE
		n := int(t.PayloadLen) - 5
		t.Payload.DisplaySource = rightTrim(extractASCII(raw, 15, n))

	case 0x0B: // EXTENDED_SOURCE_INFORMATION
		if it, ok := at(10); ok {
			t.Payload.InfoType = it
		}
		n := int(t.PayloadLen) - 14
		t.Payload.InfoValue = extractASCII(raw, 24, n)

	case 0x0D: // BEO4_KEY
		if src, ok := at(10); ok {
			t.Payload.SourceID = src
			t.Payload.Source = SourceID.Name(src)
		}
		if cmd, ok := at(11); ok {
			t.Payload.Command = Beo4Key.Name(cmd)
		}

	case 0x82: // TRACK_INFO_LONG
		if src, ok := at(11); ok {
			t.Payload.SourceID = src
			t.Payload.Source = SourceID.Name(src)
		}
		if ct, ok := at(12); ok {
			t.Payload.ChannelTrack = int(ct)
		}
		if act, ok := at(13); ok {
			t.Payload.Activity = MLState.Name(act)
		}

	case 0x94: // VIDEO_TRACK_INFO
		if src, ok := at(13); ok {
			t.Payload.SourceID = src
			t.Payload.Source = SourceID.Name(src)
		}
		hi, okHi := at(11)
		lo, okLo := at(12)
		if okHi && okLo {
			t.Payload.ChannelTrack = int(hi)<<8 | int(lo)
		}
		if act, ok := at(14); ok {
			t.Payload.Activity = MLState.Name(act)
		}

	case 0x44: // TRACK_INFO
		sub, _ := at(9)
		switch sub {
		case 0x07:
			t.Payload.Subtype = "Change Source"
			if prev, ok := at(11); ok {
				t.Payload.PrevSourceID = prev
				t.Payload.PrevSource = SourceID.Name(prev)
			}
			if src, ok := at(22); ok {
				t.Payload.SourceID = src
				t.Payload.Source = SourceID.Name(src)
			}
		case 0x05:
			t.Payload.Subtype = "Current Source"
			if src, ok := at(11); ok {
				t.Payload.SourceID = src
				t.Payload.Source = SourceID.Name(src)
			}
		default:
			t.Payload.Subtype = "Undefined"
		}

	case 0x45: // GOTO_SOURCE
		if src, ok := at(11); ok {
			t.Payload.SourceID = src
			t.Payload.Source = SourceID.Name(src)
		}
		if ct, ok := at(12); ok {
			t.Payload.ChannelTrack = int(ct)
		}

	case 0x20: // MLGW_REMOTE_BEO4
		if cmd, ok := at(14); ok {
			t.Payload.Command = Beo4Key.Name(cmd)
		}
		if ds, ok := at(11); ok {
			t.Payload.DestSelector = DestSelector.Name(ds)
		}

	case 0x5C: // LOCK_MANAGER_COMMAND
		sub, _ := at(9)
		switch sub {
		case 0x01:
			t.Payload.Subtype = "Request Key"
		case 0x02:
			t.Payload.Subtype = "Transfer Key"
		case 0x04:
			t.Payload.Subtype = "Key Received"
		case 0x05:
			t.Payload.Subtype = "Timeout"
		default:
			t.Payload.Subtype = "Undefined"
		}

	case 0x08: // REQUEST_DISTRIBUTED_SOURCE
		sub, _ := at(9)
		switch sub {
		case 0x01:
			t.Payload.Subtype = "Request Source"
		case 0x04:
			t.Payload.Subtype = "No Source"
		case 0x06:
			t.Payload.Subtype = "Source Active"
			if src, ok := at(13); ok {
				t.Payload.SourceID = src
				t.Payload.Source = SourceID.Name(src)
			}
		default:
			t.Payload.Subtype = "Undefined"
		}

	case 0x30: // REQUEST_LOCAL_SOURCE
		sub, _ := at(9)
		switch sub {
		case 0x02:
			t.Payload.Subtype = "Request Source"
		case 0x04:
			t.Payload.Subtype = "No Source"
		case 0x06:
			t.Payload.Subtype = "Source Active"
			if src, ok := at(11); ok {
				t.Payload.SourceID = src
				t.Payload.Source = SourceID.Name(src)
			}
		default:
			t.Payload.Subtype = "Undefined"
		}
	}

	return t, nil
}

// extractASCII reads n bytes from raw starting at offset, clamping to the
// slice bounds, and renders them as a string.
func extractASCII(raw []byte, offset, n int) string {
	if n <= 0 || offset >= len(raw) {
		return ""
	}
	end := offset + n
	if end > len(raw) {
		end = len(raw)
	}
	return string(raw[offset:end])
}

func rightTrim(s string) string {
	i := len(s)
	for i > 0 && (s[i-1] == ' ' || s[i-1] == 0x00) {
		i--
	}
	return s[:i]
}
