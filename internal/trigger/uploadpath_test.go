package trigger

import (
	"strings"
	"testing"
)

func TestParseUploadPath(t *testing.T) {
	cases := []struct {
		name string
		key  string
		ok   bool
		want UploadRef
	}{
		{
			name: "valid",
			key:  "orgs/org_1/cards/card_9/uploads/up_k1/notes.txt",
			ok:   true,
			want: UploadRef{OrgID: "org_1", CardID: "card_9", UploadKey: "up_k1", Filename: "notes.txt"},
		},
		{name: "too few segments", key: "orgs/org_1/cards/card_9/uploads/up_k1", ok: false},
		{name: "nested filename", key: "orgs/org_1/cards/card_9/uploads/up_k1/a/b.txt", ok: false},
		{name: "wrong root", key: "users/org_1/cards/card_9/uploads/up_k1/a.txt", ok: false},
		{name: "wrong cards literal", key: "orgs/org_1/card/card_9/uploads/up_k1/a.txt", ok: false},
		{name: "wrong uploads literal", key: "orgs/org_1/cards/card_9/files/up_k1/a.txt", ok: false},
		{name: "empty org segment", key: "orgs//cards/card_9/uploads/up_k1/a.txt", ok: false},
		{name: "empty filename", key: "orgs/org_1/cards/card_9/uploads/up_k1/", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ref, ok := ParseUploadPath(tc.key)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && ref != tc.want {
				t.Fatalf("ref = %+v, want %+v", ref, tc.want)
			}
		})
	}
}

func TestNewUploadPathRoundTrips(t *testing.T) {
	key := NewUploadPath("org_1", "card_2", "deck.pdf")
	if !strings.HasPrefix(key, UploadPrefix("org_1", "card_2")) {
		t.Fatalf("key %q outside upload prefix", key)
	}
	ref, ok := ParseUploadPath(key)
	if !ok {
		t.Fatalf("generated key %q does not parse", key)
	}
	if ref.OrgID != "org_1" || ref.CardID != "card_2" || ref.Filename != "deck.pdf" {
		t.Fatalf("round trip mismatch: %+v", ref)
	}
}

func TestFileTypeFor(t *testing.T) {
	cases := map[string]string{
		"image/png":       "image",
		"video/mp4":       "video",
		"audio/mpeg":      "audio",
		"application/pdf": "document",
		"text/plain":      "document",
		"":                "other",
		"weird/thing":     "other",
	}
	for ct, want := range cases {
		if got := FileTypeFor(ct); got != want {
			t.Errorf("FileTypeFor(%q) = %q, want %q", ct, got, want)
		}
	}
}
