package timefmt

import (
	"regexp"
	"testing"
)

var pattern = regexp.MustCompile(`^\d{2,}:\d{2}:\d{2}$`)

func TestRoundTrip(t *testing.T) {
	for n := int64(0); n < 100*3600; n += 997 {
		enc := Encode(n)
		if !pattern.MatchString(enc) {
			t.Fatalf("Encode(%d) = %q does not match %s", n, enc, pattern)
		}
		if got := Decode(enc); got != n {
			t.Fatalf("Decode(Encode(%d)) = %d, want %d", n, got, n)
		}
	}
}

func TestDecodeTolerance(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1:02:03.456", 3723},
		{"00:00:00", 0},
		{"garbage", 0},
		{"", 0},
		{"  01:00:00  ", 3600},
		{"100:00:00", 360000},
	}
	for _, c := range cases {
		if got := Decode(c.in); got != c.want {
			t.Errorf("Decode(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestEncodeHoursOverflow(t *testing.T) {
	got := Encode(100 * 3600)
	want := "100:00:00"
	if got != want {
		t.Fatalf("Encode(360000) = %q, want %q", got, want)
	}
}

func TestEncodeNegativeClampsToZero(t *testing.T) {
	if got := Encode(-5); got != "00:00:00" {
		t.Fatalf("Encode(-5) = %q, want 00:00:00", got)
	}
}
