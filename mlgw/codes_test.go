package mlgw_test

import (
	"strings"
	"testing"

	"github.com/giachello/mlgw/mlgw"
)

// roundTripTables lists every exported codeTable-backed lookup along with
// its (code, name) pairs, drawn directly from codes.go's table literals (all
// pairs, except Beo4Key, for which a selection is listed). Law 1 (§8): lookup(name) then lookup_code(code)
// returns the original name, case-normalised.
var roundTripTables = []struct {
	name  string
	table interface {
		Name(byte) string
		Code(string) (byte, bool)
	}
	pairs map[byte]string
}{
	{"MLTelegramType", mlgw.MLTelegramType, map[byte]string{
		0x0A: "COMMAND", 0x0B: "REQUEST", 0x14: "RESPONSE", 0x2C: "INFO",
	}},
	{"MLPayloadType", mlgw.MLPayloadType, map[byte]string{
		0x45: "GOTO_SOURCE", 0x6C: "DISTRIBUTION_REQUEST", 0x10: "STANDBY",
		0x11: "RELEASE", 0x3C: "TIMER", 0x0D: "BEO4_KEY", 0x04: "MASTER_PRESENT",
		0x5C: "LOCK_MANAGER_COMMAND", 0x30: "REQUEST_LOCAL_SOURCE",
		0x08: "REQUEST_DISTRIBUTED_SOURCE", 0x40: "CLOCK", 0x44: "TRACK_INFO",
		0x82: "TRACK_INFO_LONG", 0x87: "STATUS_INFO", 0x94: "VIDEO_TRACK_INFO",
		0x20: "MLGW_REMOTE_BEO4", 0x06: "DISPLAY_SOURCE",
		0x0B: "EXTENDED_SOURCE_INFORMATION", 0x96: "PC_PRESENT",
		0x98: "PICTURE_STATUS_INFO",
	}},
	{"Beo4Key", mlgw.Beo4Key, map[byte]string{
		0x0C: "Standby", 0x47: "Sleep", 0x80: "TV", 0x81: "Radio",
		0x86: "DVD", 0x92: "CD", 0x0D: "Doorcam", 0x35: "Go / Play",
		0x36: "Stop", 0x60: "Volume UP", 0x64: "Volume DOWN",
		0x58: "Light Timeout", 0xFF: "<all>",
	}},
	{"SourceID", mlgw.SourceID, map[byte]string{
		0x00: "NONE", 0x0B: "TV", 0x15: "V.MEM", 0x16: "DVD_2", 0x1F: "DTV",
		0x29: "DVD", 0x33: "V_AUX", 0x3E: "V_AUX2", 0x47: "PC", 0x6F: "RADIO",
		0x79: "A.MEM", 0x7A: "N.MUSIC", 0x8D: "CD", 0x97: "A_AUX",
		0xA1: "N.RADIO", 0xFE: "<ALL>",
	}},
	{"DestSelector", mlgw.DestSelector, map[byte]string{
		0x00: "Video Source", 0x01: "Audio Source", 0x05: "V.TAPE/V.MEM",
		0x0F: "All Products", 0x1B: "MLGW",
	}},
	{"PictureFormat", mlgw.PictureFormat, map[byte]string{
		0x00: "Not known", 0x01: "Known by decoder", 0x02: "4:3", 0x03: "16:9",
		0x04: "4:3 Letterbox middle", 0x05: "4:3 Letterbox top",
		0x06: "4:3 Letterbox bottom", 0xFF: "Blank picture",
	}},
	{"MLState", mlgw.MLState, map[byte]string{
		0x00: "Unknown", 0x01: "Stop", 0x02: "Playing", 0x03: "Fast Forward",
		0x04: "Rewind", 0x05: "Record Lock", 0x06: "Standby",
		0x07: "Load / No Media", 0x08: "Still Picture", 0x14: "Scan Forward",
		0x15: "Scan Reverse", 0xFF: "Blank Status",
	}},
	{"MLGWPayloadType", mlgw.MLGWPayloadType, map[byte]string{
		0x01: "Beo4 Command", 0x02: "Source Status", 0x03: "Pict&Snd Status",
		0x04: "Light and Control command", 0x05: "All standby notification",
		0x06: "BeoRemote One control command",
		0x07: "BeoRemote One source selection",
		0x20: "MLGW virtual button event", 0x30: "Login request",
		0x31: "Login status", 0x32: "Change password request",
		0x33: "Change password response", 0x34: "Secure login request",
		0x36: "Ping", 0x37: "Pong", 0x38: "Configuration change notification",
		0x39: "Request Serial Number", 0x3A: "Serial Number",
		0x40: "Location based event",
	}},
	{"VirtualButtonAction", mlgw.VirtualButtonAction, map[byte]string{
		0x01: "PRESS", 0x02: "HOLD", 0x03: "RELEASE",
	}},
	{"SoundStatus", mlgw.SoundStatus, map[byte]string{0x00: "Not muted", 0x01: "Muted"}},
	{"SpeakerMode", mlgw.SpeakerMode, map[byte]string{
		0x01: "Center channel", 0x02: "2ch stereo", 0x03: "Front surround",
		0x04: "4ch stereo", 0x05: "Full surround", 0xFD: "<all>",
	}},
	{"ScreenMute", mlgw.ScreenMute, map[byte]string{0x00: "not muted", 0x01: "muted"}},
	{"ScreenActive", mlgw.ScreenActive, map[byte]string{0x00: "not active", 0x01: "active"}},
	{"CinemaMode", mlgw.CinemaMode, map[byte]string{0x00: "Cinemamode=off", 0x01: "Cinemamode=on"}},
	{"StereoIndicator", mlgw.StereoIndicator, map[byte]string{0x00: "Mono", 0x01: "Stereo"}},
	{"LCType", mlgw.LCType, map[byte]string{0x01: "LIGHT", 0x02: "CONTROL"}},
	{"LoginStatus", mlgw.LoginStatus, map[byte]string{0x00: "OK", 0x01: "FAIL"}},
}

func TestCodeTableRoundTrip(t *testing.T) {
	for _, tc := range roundTripTables {
		t.Run(tc.name, func(t *testing.T) {
			for code, name := range tc.pairs {
				got := tc.table.Name(code)
				if got != name {
					t.Fatalf("Name(0x%02X) = %q, want %q", code, got, name)
				}
				gotCode, ok := tc.table.Code(name)
				if !ok {
					t.Fatalf("Code(%q) not found", name)
				}
				if gotCode != code {
					t.Fatalf("Code(%q) = 0x%02X, want 0x%02X", name, gotCode, code)
				}

				// Case-insensitivity of the reverse lookup.
				mixed := strings.ToLower(name)
				if mixed == name {
					mixed = strings.ToUpper(name)
				}
				if gotCode2, ok := tc.table.Code(mixed); !ok || gotCode2 != code {
					t.Fatalf("Code(%q) (case-folded) = 0x%02X,%v, want 0x%02X,true", mixed, gotCode2, ok, code)
				}
			}
		})
	}
}

func TestCodeTableUnknownSentinel(t *testing.T) {
	// 0xEE is not assigned in MLPayloadType.
	got := mlgw.MLPayloadType.Name(0xEE)
	want := "UNKNOWN (type=0xEE)"
	if got != want {
		t.Fatalf("Name(0xEE) = %q, want %q", got, want)
	}
	if _, ok := mlgw.MLPayloadType.Code("NOT_A_REAL_NAME"); ok {
		t.Fatalf("Code(%q) unexpectedly found", "NOT_A_REAL_NAME")
	}
}

func TestBeo4KeyAmbiguousDoorcamMute(t *testing.T) {
	// 0x0D is deliberately overloaded (Open Question 2 / REDESIGN FLAGS):
	// it is both the Beo4 "Doorcam" key and ML payload type BEO4_KEY.
	if got := mlgw.Beo4Key.Name(0x0D); got != "Doorcam" {
		t.Fatalf("Beo4Key.Name(0x0D) = %q, want %q", got, "Doorcam")
	}
	if got := mlgw.MLPayloadType.Name(0x0D); got != "BEO4_KEY" {
		t.Fatalf("MLPayloadType.Name(0x0D) = %q, want %q", got, "BEO4_KEY")
	}
}

func TestDeviceNameRoundTrip(t *testing.T) {
	cases := map[byte]string{
		mlgw.DeviceVideoMaster:         "VIDEO_MASTER",
		mlgw.DeviceAudioMaster:         "AUDIO_MASTER",
		mlgw.DeviceSourceCenter:        "SOURCE_CENTER",
		mlgw.DeviceAllAudioLinkDevices: "ALL_AUDIO_LINK_DEVICES",
		mlgw.DeviceAllVideoLinkDevices: "ALL_VIDEO_LINK_DEVICES",
		mlgw.DeviceAllLinkDevices:      "ALL_LINK_DEVICES",
		mlgw.DeviceAll:                 "ALL",
		mlgw.DeviceMLGW:                "MLGW",
	}
	for code, name := range cases {
		if got := mlgw.DeviceName(code); got != name {
			t.Fatalf("DeviceName(0x%02X) = %q, want %q", code, got, name)
		}
		gotCode, ok := mlgw.DeviceCode(name)
		if !ok || gotCode != code {
			t.Fatalf("DeviceCode(%q) = 0x%02X,%v, want 0x%02X,true", name, gotCode, ok, code)
		}
		// Case-insensitive reverse lookup.
		if gotCode, ok := mlgw.DeviceCode(strings.ToLower(name)); !ok || gotCode != code {
			t.Fatalf("DeviceCode(%q) = 0x%02X,%v, want 0x%02X,true", strings.ToLower(name), gotCode, ok, code)
		}
	}
}

func TestDeviceNameUnknownFallsBackToHex(t *testing.T) {
	// Room-addressed devices have no fixed name: DeviceName falls back to a
	// bare "0xNN" rendering rather than the UNKNOWN sentinel other tables use.
	got := mlgw.DeviceName(0x05)
	want := "0x05"
	if got != want {
		t.Fatalf("DeviceName(0x05) = %q, want %q", got, want)
	}
	if strings.Contains(got, "UNKNOWN") {
		t.Fatalf("DeviceName(0x05) unexpectedly used the UNKNOWN sentinel: %q", got)
	}
	if _, ok := mlgw.DeviceCode("NOT_A_DEVICE"); ok {
		t.Fatalf("DeviceCode(%q) unexpectedly found", "NOT_A_DEVICE")
	}
}
