package ontology

import "testing"

func TestFieldSplit(t *testing.T) {
	f, err := New("image.info.height")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Tag() != "image" {
		t.Errorf("Tag() = %q, want %q", f.Tag(), "image")
	}
	if f.Remainder() != "info.height" {
		t.Errorf("Remainder() = %q, want %q", f.Remainder(), "info.height")
	}
	if f.String() != "image.info.height" {
		t.Errorf("String() = %q, want %q", f.String(), "image.info.height")
	}
}

func TestFieldPath(t *testing.T) {
	f, err := New("imu.acceleration.x")
	if err != nil {
		t.Fatal(err)
	}
	got := f.Path()
	want := []string{"acceleration", "x"}
	if len(got) != len(want) {
		t.Fatalf("Path() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Path()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFieldRejectsMalformedPaths(t *testing.T) {
	for _, bad := range []string{"", "notag", "tag.", ".field"} {
		if _, err := New(bad); err == nil {
			t.Errorf("New(%q) should fail", bad)
		}
	}
}
