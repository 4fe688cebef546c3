package mlgw

import "fmt"

// codeTable is a small bidirectional lookup between a byte code and its
// canonical (upper-case) symbolic name. Unknown codes never fail a lookup:
// Name returns a sentinel string instead of an error, matching the MLGW and
// ML protocols' own tolerance for codes the documentation never enumerated.
type codeTable struct {
	forward map[byte]string
	reverse map[string]byte
}

func newCodeTable(pairs ...struct {
	code byte
	name string
}) *codeTable {
	t := &codeTable{
		forward: make(map[byte]string, len(pairs)),
		reverse: make(map[string]byte, len(pairs)),
	}
	for _, p := range pairs {
		t.forward[p.code] = p.name
		t.reverse[upper(p.name)] = p.code
	}
	return t
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// unknownSentinel renders a code this table doesn't recognise.
func unknownSentinel(code byte) string {
	return fmt.Sprintf("UNKNOWN (type=0x%02X)", code)
}

// Name returns the canonical name for code, or the UNKNOWN sentinel.
func (t *codeTable) Name(code byte) string {
	if name, ok := t.forward[code]; ok {
		return name
	}
	return unknownSentinel(code)
}

// Code returns the code for name (case-insensitive) and whether it was found.
func (t *codeTable) Code(name string) (byte, bool) {
	c, ok := t.reverse[upper(name)]
	return c, ok
}

func pair(code byte, name string) struct {
	code byte
	name string
} {
	return struct {
		code byte
		name string
	}{code, name}
}

// MLTelegramType is the `type` byte (offset 3) of an ML telegram.
var MLTelegramType = newCodeTable(
	pair(0x0A, "COMMAND"),
	pair(0x0B, "REQUEST"),
	pair(0x14, "RESPONSE"),
	pair(0x2C, "INFO"),
)

// MLPayloadType is the `payload_type` byte (offset 7) of an ML telegram.
var MLPayloadType = newCodeTable(
	pair(0x45, "GOTO_SOURCE"),
	pair(0x6C, "DISTRIBUTION_REQUEST"),
	pair(0x10, "STANDBY"),
	pair(0x11, "RELEASE"),
	pair(0x3C, "TIMER"),
	pair(0x0D, "BEO4_KEY"),
	pair(0x04, "MASTER_PRESENT"),
	pair(0x5C, "LOCK_MANAGER_COMMAND"),
	pair(0x30, "REQUEST_LOCAL_SOURCE"),
	pair(0x08, "REQUEST_DISTRIBUTED_SOURCE"),
	pair(0x40, "CLOCK"),
	pair(0x44, "TRACK_INFO"),
	pair(0x82, "TRACK_INFO_LONG"),
	pair(0x87, "STATUS_INFO"),
	pair(0x94, "VIDEO_TRACK_INFO"),
	pair(0x20, "MLGW_REMOTE_BEO4"),
	pair(0x06, "DISPLAY_SOURCE"),
	pair(0x0B, "EXTENDED_SOURCE_INFORMATION"),
	pair(0x96, "PC_PRESENT"),
	pair(0x98, "PICTURE_STATUS_INFO"),
)

// Beo4Key maps a Beo4 remote-control key byte to its symbolic name.
//
// 0x0D is ambiguous in the original hub firmware: it is used both as the
// Beo4 "Doorcam"/"Mute" key and, in a different table, reused by ML payload
// type 0x0D (BEO4_KEY). We preserve that overload (REDESIGN FLAGS / Open
// Question 2) rather than resolve it — callers disambiguate by which
// table they consult, exactly as the original component does.
var Beo4Key = newCodeTable(
	pair(0x0C, "Standby"),
	pair(0x47, "Sleep"),
	pair(0x80, "TV"),
	pair(0x81, "Radio"),
	pair(0x82, "DTV2"),
	pair(0x83, "Aux_A"),
	pair(0x85, "V.Mem"),
	pair(0x86, "DVD"),
	pair(0x87, "Camera"),
	pair(0x88, "Text"),
	pair(0x8A, "DTV"),
	pair(0x8B, "PC"),
	pair(0x0D, "Doorcam"),
	pair(0x91, "A.Mem"),
	pair(0x92, "CD"),
	pair(0x93, "N.Radio"),
	pair(0x94, "N.Music"),
	pair(0x97, "CD2"),
	pair(0x96, "Spotify"),
	pair(0xBF, "AV"),
	pair(0x00, "Digit-0"),
	pair(0x01, "Digit-1"),
	pair(0x02, "Digit-2"),
	pair(0x03, "Digit-3"),
	pair(0x04, "Digit-4"),
	pair(0x05, "Digit-5"),
	pair(0x06, "Digit-6"),
	pair(0x07, "Digit-7"),
	pair(0x08, "Digit-8"),
	pair(0x09, "Digit-9"),
	pair(0x1E, "STEP_UP"),
	pair(0x1F, "STEP_DW"),
	pair(0x32, "REWIND"),
	pair(0x33, "RETURN"),
	pair(0x34, "WIND"),
	pair(0x35, "Go / Play"),
	pair(0x36, "Stop"),
	pair(0xD4, "Yellow"),
	pair(0xD5, "Green"),
	pair(0xD8, "Blue"),
	pair(0xD9, "Red"),
	pair(0x1C, "P.Mute"),
	pair(0x2A, "Format"),
	pair(0x44, "Sound / Speaker"),
	pair(0x5C, "Menu"),
	pair(0x60, "Volume UP"),
	pair(0x64, "Volume DOWN"),
	pair(0xDA, "Cinema_On"),
	pair(0xDB, "Cinema_Off"),
	pair(0x14, "BACK"),
	pair(0x7F, "Exit"),
	pair(0x70, "Rewind Repeat"),
	pair(0x71, "Wind Repeat"),
	pair(0x72, "Step_UP Repeat"),
	pair(0x73, "Step_DW Repeat"),
	pair(0x75, "Go Repeat"),
	pair(0x76, "Green Repeat"),
	pair(0x77, "Yellow Repeat"),
	pair(0x78, "Blue Repeat"),
	pair(0x79, "Red Repeat"),
	pair(0x7E, "Key Release"),
	pair(0x40, "Guide"),
	pair(0x43, "Info"),
	pair(0x13, "SELECT"),
	pair(0xCA, "Cursor_Up"),
	pair(0xCB, "Cursor_Down"),
	pair(0xCC, "Cursor_Left"),
	pair(0xCD, "Cursor_Right"),
	pair(0x9B, "Light"),
	pair(0x9C, "Command"),
	pair(0x58, "Light Timeout"),
	pair(0xFF, "<all>"),
)

// SourceID maps a source status_id byte to its symbolic name.
var SourceID = newCodeTable(
	pair(0x00, "NONE"),
	pair(0x0B, "TV"),
	pair(0x15, "V.MEM"),
	pair(0x16, "DVD_2"),
	pair(0x1F, "DTV"),
	pair(0x29, "DVD"),
	pair(0x33, "V_AUX"),
	pair(0x3E, "V_AUX2"),
	pair(0x47, "PC"),
	pair(0x6F, "RADIO"),
	pair(0x79, "A.MEM"),
	pair(0x7A, "N.MUSIC"),
	pair(0x8D, "CD"),
	pair(0x97, "A_AUX"),
	pair(0xA1, "N.RADIO"),
	pair(0xFE, "<ALL>"),
)

// sourceGroup classifies a subset of source status_id values, mirroring
// `ml_selectedsource_type_dict` in the original component.
type sourceGroup int

const (
	groupNone sourceGroup = iota
	groupAudio
	groupVideo
	groupAudioPausable
	groupVideoPausable
)

var sourceGroups = map[byte][]sourceGroup{
	0x6F: {groupAudio},                 // RADIO
	0x79: {groupAudio},                 // A.MEM
	0x7A: {groupAudio, groupAudioPausable}, // N.MUSIC
	0x8D: {groupAudio, groupAudioPausable}, // CD
	0x97: {groupAudio},                 // A_AUX
	0xA1: {groupAudio},                 // N.RADIO
	0x0B: {groupVideo},                 // TV
	0x1F: {groupVideo},                 // DTV
	0x29: {groupVideo, groupVideoPausable}, // DVD
	0x16: {groupVideo, groupVideoPausable}, // DVD_2
	0x15: {groupVideo},                 // V.MEM
	0x33: {groupVideo},                 // V_AUX
	0x3E: {groupVideo},                 // V_AUX2
}

func sourceInGroup(statusID byte, g sourceGroup) bool {
	for _, have := range sourceGroups[statusID] {
		if have == g {
			return true
		}
	}
	return false
}

// DestSelector maps a Beo4 destination-selector byte.
var DestSelector = newCodeTable(
	pair(0x00, "Video Source"),
	pair(0x01, "Audio Source"),
	pair(0x05, "V.TAPE/V.MEM"),
	pair(0x0F, "All Products"),
	pair(0x1B, "MLGW"),
)

// PictureFormat maps the picture-format/picture-identifier byte.
var PictureFormat = newCodeTable(
	pair(0x00, "Not known"),
	pair(0x01, "Known by decoder"),
	pair(0x02, "4:3"),
	pair(0x03, "16:9"),
	pair(0x04, "4:3 Letterbox middle"),
	pair(0x05, "4:3 Letterbox top"),
	pair(0x06, "4:3 Letterbox bottom"),
	pair(0xFF, "Blank picture"),
)

// MLState maps the state/activity byte used by STATUS_INFO, TRACK_INFO_LONG
// and MLGW source-status frames alike.
var MLState = newCodeTable(
	pair(0x00, "Unknown"),
	pair(0x01, "Stop"),
	pair(0x02, "Playing"),
	pair(0x03, "Fast Forward"),
	pair(0x04, "Rewind"),
	pair(0x05, "Record Lock"),
	pair(0x06, "Standby"),
	pair(0x07, "Load / No Media"),
	pair(0x08, "Still Picture"),
	pair(0x14, "Scan Forward"),
	pair(0x15, "Scan Reverse"),
	pair(0xFF, "Blank Status"),
)

// MLGWPayloadType maps an MLGW frame's type byte (byte[1]).
var MLGWPayloadType = newCodeTable(
	pair(0x01, "Beo4 Command"),
	pair(0x02, "Source Status"),
	pair(0x03, "Pict&Snd Status"),
	pair(0x04, "Light and Control command"),
	pair(0x05, "All standby notification"),
	pair(0x06, "BeoRemote One control command"),
	pair(0x07, "BeoRemote One source selection"),
	pair(0x20, "MLGW virtual button event"),
	pair(0x30, "Login request"),
	pair(0x31, "Login status"),
	pair(0x32, "Change password request"),
	pair(0x33, "Change password response"),
	pair(0x34, "Secure login request"),
	pair(0x36, "Ping"),
	pair(0x37, "Pong"),
	pair(0x38, "Configuration change notification"),
	pair(0x39, "Request Serial Number"),
	pair(0x3A, "Serial Number"),
	pair(0x40, "Location based event"),
)

// VirtualButtonAction maps the MLGW virtual-button action byte.
var VirtualButtonAction = newCodeTable(
	pair(0x01, "PRESS"),
	pair(0x02, "HOLD"),
	pair(0x03, "RELEASE"),
)

// SoundStatus maps the Pict&Snd sound-status byte.
var SoundStatus = newCodeTable(
	pair(0x00, "Not muted"),
	pair(0x01, "Muted"),
)

// SpeakerMode maps the Pict&Snd speaker-mode byte.
var SpeakerMode = newCodeTable(
	pair(0x01, "Center channel"),
	pair(0x02, "2ch stereo"),
	pair(0x03, "Front surround"),
	pair(0x04, "4ch stereo"),
	pair(0x05, "Full surround"),
	pair(0xFD, "<all>"),
)

// ScreenMute maps a Pict&Snd screen-mute byte.
var ScreenMute = newCodeTable(
	pair(0x00, "not muted"),
	pair(0x01, "muted"),
)

// ScreenActive maps a Pict&Snd screen-active byte.
var ScreenActive = newCodeTable(
	pair(0x00, "not active"),
	pair(0x01, "active"),
)

// CinemaMode maps the Pict&Snd cinema-mode byte.
var CinemaMode = newCodeTable(
	pair(0x00, "Cinemamode=off"),
	pair(0x01, "Cinemamode=on"),
)

// StereoIndicator maps the Pict&Snd stereo-indicator byte.
var StereoIndicator = newCodeTable(
	pair(0x00, "Mono"),
	pair(0x01, "Stereo"),
)

// LCType maps a Light/Control frame's type byte.
var LCType = newCodeTable(
	pair(0x01, "LIGHT"),
	pair(0x02, "CONTROL"),
)

// LoginStatus maps the MLGW login-status byte.
var LoginStatus = newCodeTable(
	pair(0x00, "OK"),
	pair(0x01, "FAIL"),
)

// deviceCode is the closed-ish set of ML bus device addresses named in §3.
const (
	DeviceVideoMaster        byte = 0xC0
	DeviceAudioMaster        byte = 0xC1
	DeviceSourceCenter       byte = 0xC2
	DeviceAllAudioLinkDevices byte = 0x81
	DeviceAllVideoLinkDevices byte = 0x82
	DeviceAllLinkDevices      byte = 0x83
	DeviceAll                 byte = 0x80
	DeviceMLGW                byte = 0xF0
)

var deviceNames = map[byte]string{
	DeviceVideoMaster:        "VIDEO_MASTER",
	DeviceAudioMaster:        "AUDIO_MASTER",
	DeviceSourceCenter:       "SOURCE_CENTER",
	DeviceAllAudioLinkDevices: "ALL_AUDIO_LINK_DEVICES",
	DeviceAllVideoLinkDevices: "ALL_VIDEO_LINK_DEVICES",
	DeviceAllLinkDevices:      "ALL_LINK_DEVICES",
	DeviceAll:                 "ALL",
	DeviceMLGW:                "MLGW",
}

var deviceCodesByName = func() map[string]byte {
	m := make(map[string]byte, len(deviceNames))
	for code, name := range deviceNames {
		m[name] = code
	}
	return m
}()

// DeviceName renders an ML device address byte as its symbolic name, or as
// "0xNN" for a numeric (room-addressed) device that has no fixed name.
func DeviceName(code byte) string {
	if name, ok := deviceNames[code]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", code)
}

// DeviceCode resolves a symbolic device name back to its byte, if any.
func DeviceCode(name string) (byte, bool) {
	c, ok := deviceCodesByName[upper(name)]
	return c, ok
}

// hexWord renders two bytes (hi, lo order as passed) as a 4-digit hex word,
// mirroring the original component's `_hexword(byte1, byte2)`.
func hexWord(hi, lo byte) string {
	return fmt.Sprintf("%02x%02x", hi, lo)
}
