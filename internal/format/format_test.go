package format

import "testing"

// TestFormatRoundTrip mirrors spec invariant 7:
// Format::from_str(s).to_string() == s for every defined format name.
func TestFormatRoundTrip(t *testing.T) {
	for _, name := range []string{"default", "ragged", "image"} {
		f, err := FromString(name)
		if err != nil {
			t.Fatalf("FromString(%q): %v", name, err)
		}
		if f.String() != name {
			t.Errorf("round trip failed: %q -> %q", name, f.String())
		}
	}
}

func TestFormatFromStringRejectsUnknown(t *testing.T) {
	if _, err := FromString("bogus"); err == nil {
		t.Error("expected error for unknown format name")
	}
}

func TestRaggedAndImagePolicy(t *testing.T) {
	for _, f := range []Format{Ragged, Image} {
		if !f.DictionaryDisabled() {
			t.Errorf("%s should disable dictionary encoding", f)
		}
		if !f.BodyStatisticsDisabled() {
			t.Errorf("%s should disable body statistics", f)
		}
		if !f.TimestampUncompressed() {
			t.Errorf("%s should leave the timestamp column uncompressed", f)
		}
		if len(f.WriterOptions()) == 0 {
			t.Errorf("%s should configure writer options", f)
		}
	}
}

func TestDefaultPolicyIsPermissive(t *testing.T) {
	if Default.DictionaryDisabled() {
		t.Error("Default format should allow dictionary encoding")
	}
	if Default.BodyStatisticsDisabled() {
		t.Error("Default format should not disable body statistics")
	}
}
