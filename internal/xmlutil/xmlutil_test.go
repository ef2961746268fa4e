package xmlutil

import (
	"strings"
	"testing"
)

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	inputs := []string{
		`Tom & Jerry`,
		`<script>`,
		`"quoted"`,
		`it's`,
		`a & b < c > d " e ' f`,
	}
	for _, in := range inputs {
		escaped := Escape(in)
		for _, bad := range []string{"&", "<", ">", `"`, "'"} {
			if bad == "&" {
				continue // '&' legitimately appears as part of entities
			}
			if containsRaw(escaped, bad) {
				t.Errorf("Escape(%q) = %q still contains raw %q", in, escaped, bad)
			}
		}
		unescaped := strings.NewReplacer(
			"&amp;", "&",
			"&lt;", "<",
			"&gt;", ">",
			"&quot;", `"`,
			"&apos;", "'",
		).Replace(escaped)
		if unescaped != in {
			t.Errorf("unescape(Escape(%q)) = %q, want the input back", in, unescaped)
		}
	}
}

func containsRaw(s, ch string) bool {
	for i := 0; i < len(s); i++ {
		if string(s[i]) == ch {
			return true
		}
	}
	return false
}

func TestBetween(t *testing.T) {
	doc := `<envelope><foo attr="1">hello</foo></envelope>`
	got, ok := Between(doc, "foo", "foo")
	if !ok || got != "hello" {
		t.Fatalf("Between = %q, %v; want hello, true", got, ok)
	}

	_, ok = Between(doc, "missing", "missing")
	if ok {
		t.Fatalf("Between should fail for a missing landmark")
	}
}

func TestChildren(t *testing.T) {
	doc := `<GetPositionInfoResponse><Track>0</Track><RelTime>00:01:02</RelTime><TrackDuration>01:00:00</TrackDuration></GetPositionInfoResponse>`
	children := Children(doc, "GetPositionInfoResponse")
	if children["RelTime"] != "00:01:02" {
		t.Errorf("RelTime = %q", children["RelTime"])
	}
	if children["TrackDuration"] != "01:00:00" {
		t.Errorf("TrackDuration = %q", children["TrackDuration"])
	}
	if children["Track"] != "0" {
		t.Errorf("Track = %q", children["Track"])
	}
}

func TestChildrenMissingElement(t *testing.T) {
	children := Children(`<Envelope></Envelope>`, "NoSuchElement")
	if len(children) != 0 {
		t.Errorf("expected empty map, got %v", children)
	}
}
