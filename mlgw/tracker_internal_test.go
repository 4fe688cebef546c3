package mlgw

import "testing"

// TestStatusInfoDVDCarveOut exercises the Open Question 1 test hook
// directly, in-package, since the carve-out rule itself is not exported.
func TestStatusInfoDVDCarveOut(t *testing.T) {
	carved := MLPayload{SourceID: dvdStatusID, LocalSource: 0}
	if !statusInfoDVDCarveOut(carved) {
		t.Fatal("expected carve-out for DVD with local_source=0")
	}
	notCarved := MLPayload{SourceID: dvdStatusID, LocalSource: 1}
	if statusInfoDVDCarveOut(notCarved) {
		t.Fatal("did not expect carve-out for DVD with local_source=1")
	}
	otherSource := MLPayload{SourceID: 0x6F, LocalSource: 0}
	if statusInfoDVDCarveOut(otherSource) {
		t.Fatal("did not expect carve-out for non-DVD source")
	}
}
