package fileid

import (
	"strings"
	"testing"
)

func TestPathID(t *testing.T) {
	id := PathID("/inbox/hu/batch-1.json")
	if id != PathID("/inbox/hu/batch-1.json") {
		t.Error("same path should give same ID")
	}
	if !strings.HasPrefix(id, pathPrefix) {
		t.Errorf("ID should have prefix %q: got %q", pathPrefix, id)
	}
	if id == PathID("/inbox/hu/batch-2.json") {
		t.Error("different paths should give different IDs")
	}
}

func TestPathID_normalized(t *testing.T) {
	tests := []string{"/inbox/hu/", "/inbox/./hu", "/inbox/x/../hu"}
	want := PathID("/inbox/hu")
	for _, p := range tests {
		if got := PathID(p); got != want {
			t.Errorf("PathID(%q) = %q, want %q", p, got, want)
		}
	}
}

func TestContentID(t *testing.T) {
	a := ContentID([]byte(`{"family":"hu"}`))
	if a != ContentID([]byte(`{"family":"hu"}`)) {
		t.Error("same content should give same ID")
	}
	if !strings.HasPrefix(a, contentPrefix) {
		t.Errorf("ID should have prefix %q: got %q", contentPrefix, a)
	}
	if a == ContentID([]byte(`{"family":"hog"}`)) {
		t.Error("different content should give different IDs")
	}
	if ContentID(nil) != ContentID([]byte{}) {
		t.Error("nil and empty content should match")
	}
}
