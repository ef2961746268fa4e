package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nullstream/dlnacast/internal/apperrors"
	"github.com/nullstream/dlnacast/internal/dlna"
)

// newFakeRenderer starts an httptest server that answers every AVTransport
// action with a bare, successful response element, except the actions named
// in fail, which get a SOAP fault instead.
func newFakeRenderer(fail map[string]bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		action := actionNameFromEnvelope(string(body))

		if fail[action] {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault><faultstring>boom</faultstring></s:Fault></s:Body></s:Envelope>`)
			return
		}

		switch action {
		case "GetPositionInfo":
			io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:GetPositionInfoResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><RelTime>00:00:10</RelTime><TrackDuration>00:02:00</TrackDuration></u:GetPositionInfoResponse></s:Body></s:Envelope>`)
		case "GetTransportInfo":
			io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:GetTransportInfoResponse xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"><CurrentTransportState>PLAYING</CurrentTransportState></u:GetTransportInfoResponse></s:Body></s:Envelope>`)
		default:
			w.Header().Set("Content-Type", "text/xml")
			io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:`+action+`Response xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"></u:`+action+`Response></s:Body></s:Envelope>`)
		}
	}))
}

func actionNameFromEnvelope(body string) string {
	start := strings.Index(body, "<u:")
	if start == -1 {
		return ""
	}
	rest := body[start+len("<u:"):]
	end := strings.IndexAny(rest, " >")
	if end == -1 {
		return ""
	}
	return rest[:end]
}

func writeTempMedia(t *testing.T, name string, size int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c := New(WithPort(0), WithDiscoveryTimeout(50*time.Millisecond))
	t.Cleanup(func() {
		c.mu.Lock()
		server := c.mediaServer
		c.mu.Unlock()
		if server != nil {
			server.Stop(context.Background())
		}
	})
	return c
}

func TestSelectFileRejectsUnsupportedExtension(t *testing.T) {
	c := newTestController(t)
	path := writeTempMedia(t, "clip.txt", 10)

	_, err := c.SelectFile(path)
	if !apperrors.Is(err, apperrors.UnsupportedFormat) {
		t.Fatalf("expected UnsupportedFormat, got %v", err)
	}
}

func TestSelectFileRejectsMissingPath(t *testing.T) {
	c := newTestController(t)
	_, err := c.SelectFile("/does/not/exist/clip.mp4")
	if !apperrors.Is(err, apperrors.FileNotFound) {
		t.Fatalf("expected FileNotFound, got %v", err)
	}
}

func TestCastWithoutDeviceIsInvalidArgument(t *testing.T) {
	c := newTestController(t)
	path := writeTempMedia(t, "clip.mp4", 1024)
	if _, err := c.SelectFile(path); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if err := c.Cast(); !apperrors.Is(err, apperrors.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestHappyPathCast(t *testing.T) {
	renderer := newFakeRenderer(nil)
	defer renderer.Close()

	c := newTestController(t)
	path := writeTempMedia(t, "clip.mp4", 10*1024*1024)
	if _, err := c.SelectFile(path); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}

	c.mu.Lock()
	c.devices = []dlna.Device{{
		ID:                 "fake-1",
		FriendlyName:       "Fake TV",
		DescriptionURL:     renderer.URL + "/description.xml",
		ServiceType:        dlna.AVTransportServiceType,
		ResolvedControlURL: renderer.URL,
	}}
	c.mu.Unlock()

	if err := c.SelectDevice(0); err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if err := c.Cast(); err != nil {
		t.Fatalf("Cast: %v", err)
	}

	status := c.Status()
	if status.State != StateCasting {
		t.Errorf("state = %v, want Casting", status.State)
	}
	if status.PlaybackLabel != "Playing" {
		t.Errorf("playback label = %q, want Playing", status.PlaybackLabel)
	}
	if status.DeviceName != "Fake TV" {
		t.Errorf("device name = %q", status.DeviceName)
	}

	c.mu.Lock()
	cancel := c.pollerCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func TestMetadataHostileRendererFallsBackAndCasts(t *testing.T) {
	renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		text := string(body)
		action := actionNameFromEnvelope(text)
		if action == "SetAVTransportURI" && !strings.Contains(text, "<CurrentURIMetaData></CurrentURIMetaData>") {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><s:Fault><faultstring>714 Illegal MIME-type</faultstring></s:Fault></s:Body></s:Envelope>`)
			return
		}
		io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:`+action+`Response xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"></u:`+action+`Response></s:Body></s:Envelope>`)
	}))
	defer renderer.Close()

	c := newTestController(t)
	path := writeTempMedia(t, "clip.mp4", 2048)
	if _, err := c.SelectFile(path); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	c.mu.Lock()
	c.devices = []dlna.Device{{FriendlyName: "Hostile TV", ResolvedControlURL: renderer.URL, DescriptionURL: renderer.URL + "/d.xml"}}
	c.mu.Unlock()
	if err := c.SelectDevice(0); err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if err := c.Cast(); err != nil {
		t.Fatalf("Cast: %v", err)
	}

	status := c.Status()
	if status.State != StateCasting {
		t.Errorf("state = %v, want Casting", status.State)
	}

	c.mu.Lock()
	cancel := c.pollerCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func TestSeekClampsToDuration(t *testing.T) {
	var gotTarget string
	renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		text := string(body)
		action := actionNameFromEnvelope(text)
		if action == "Seek" {
			if i := strings.Index(text, "<Target>"); i != -1 {
				rest := text[i+len("<Target>"):]
				gotTarget = rest[:strings.Index(rest, "</Target>")]
			}
		}
		io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body><u:`+action+`Response xmlns:u="urn:schemas-upnp-org:service:AVTransport:1"></u:`+action+`Response></s:Body></s:Envelope>`)
	}))
	defer renderer.Close()

	c := newTestController(t)
	path := writeTempMedia(t, "clip.mp4", 2048)
	if _, err := c.SelectFile(path); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	c.mu.Lock()
	c.devices = []dlna.Device{{FriendlyName: "TV", ResolvedControlURL: renderer.URL, DescriptionURL: renderer.URL + "/d.xml"}}
	c.mu.Unlock()
	if err := c.SelectDevice(0); err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if err := c.Cast(); err != nil {
		t.Fatalf("Cast: %v", err)
	}
	c.mu.Lock()
	c.position.DurationSeconds = 120
	cancel := c.pollerCancel
	c.mu.Unlock()
	defer cancel()

	if err := c.SeekRelative(1_000_000_000); err != nil {
		t.Fatalf("SeekRelative: %v", err)
	}
	if gotTarget != "00:02:00" {
		t.Errorf("Seek Target = %q, want 00:02:00 (clamped to the 120s duration)", gotTarget)
	}
}

func TestStopCancelsPoller(t *testing.T) {
	renderer := newFakeRenderer(nil)
	defer renderer.Close()

	c := newTestController(t)
	path := writeTempMedia(t, "clip.mp4", 2048)
	if _, err := c.SelectFile(path); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	c.mu.Lock()
	c.devices = []dlna.Device{{FriendlyName: "TV", ResolvedControlURL: renderer.URL, DescriptionURL: renderer.URL + "/d.xml"}}
	c.mu.Unlock()
	if err := c.SelectDevice(0); err != nil {
		t.Fatalf("SelectDevice: %v", err)
	}
	if err := c.Cast(); err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	c.mu.Lock()
	cancel := c.pollerCancel
	state := c.state
	c.mu.Unlock()
	if cancel != nil {
		t.Error("expected poller to be cancelled after Stop")
	}
	if state != StateDeviceSelected {
		t.Errorf("state = %v, want DeviceSelected", state)
	}
}

func TestPollerResilienceSurvivesTransportErrors(t *testing.T) {
	renderer := newFakeRenderer(map[string]bool{"GetPositionInfo": true, "GetTransportInfo": true})
	defer renderer.Close()

	c := newTestController(t)
	p := &poller{controller: c, controlURL: renderer.URL, log: c.log}

	for i := 0; i < 3; i++ {
		p.tick()
	}

	status := c.Status()
	if status.ElapsedSeconds != 0 {
		t.Errorf("expected position to stay at zero through failing polls, got %d", status.ElapsedSeconds)
	}
}
