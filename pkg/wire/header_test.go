package wire

import "testing"

func TestHeaderCaseInsensitive(t *testing.T) {
	h := NewHeader()
	h.Set("content-type", "text/plain")
	if got := h.Get("Content-Type"); got != "text/plain" {
		t.Errorf("got %q", got)
	}
	if !h.Has("CONTENT-TYPE") {
		t.Error("expected Has to be case-insensitive")
	}
}

func TestHeaderPreservesOrderAndCase(t *testing.T) {
	h := NewHeader()
	h.Set("X-First", "1")
	h.Set("Accept", "*/*")
	h.Set("X-Last", "2")

	fields := h.Fields()
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	wantNames := []string{"X-First", "Accept", "X-Last"}
	for i, want := range wantNames {
		if fields[i].Name != want {
			t.Errorf("field %d name = %q, want %q", i, fields[i].Name, want)
		}
	}
}

func TestHeaderStripSensitive(t *testing.T) {
	h := NewHeader()
	h.Set("Authorization", "Bearer token")
	h.Set("Cookie", "a=b")
	h.Set("X-Keep", "yes")
	h.StripSensitive()

	if h.Has("Authorization") || h.Has("Cookie") {
		t.Error("expected sensitive headers to be stripped")
	}
	if !h.Has("X-Keep") {
		t.Error("expected unrelated headers to survive")
	}
}

func TestIsSensitiveHeader(t *testing.T) {
	for _, name := range []string{"Authorization", "cookie", "Proxy-Authorization"} {
		if !IsSensitiveHeader(name) {
			t.Errorf("expected %q to be sensitive", name)
		}
	}
	if IsSensitiveHeader("X-Custom") {
		t.Error("expected X-Custom not to be sensitive")
	}
}

func TestHeaderClone(t *testing.T) {
	h := NewHeader()
	h.Add("X-A", "1")
	clone := h.Clone()
	clone.Add("X-A", "2")

	if len(h.Values("X-A")) != 1 {
		t.Error("mutating the clone should not affect the original")
	}
}

func TestHeaderSetCollapsesDuplicates(t *testing.T) {
	h := NewHeader()
	h.Add("X-Dup", "1")
	h.Add("X-Dup", "2")
	h.Set("X-Dup", "3")

	if got := h.Values("X-Dup"); len(got) != 1 || got[0] != "3" {
		t.Errorf("Values(X-Dup) = %v, want [3]", got)
	}
}
