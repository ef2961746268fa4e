package dlna

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nullstream/dlnacast/internal/apperrors"
	"github.com/nullstream/dlnacast/internal/xmlutil"
)

const ssdpMulticastAddr = "239.255.255.250:1900"

// Discoverer runs SSDP M-SEARCH discovery for MediaRenderer devices.
type Discoverer struct {
	httpClient *http.Client
	log        *log.Logger
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithHTTPClient overrides the HTTP client used to fetch device descriptions.
func WithHTTPClient(c *http.Client) DiscovererOption {
	return func(d *Discoverer) { d.httpClient = c }
}

// WithLogger overrides the default stderr logger.
func WithLogger(l *log.Logger) DiscovererOption {
	return func(d *Discoverer) { d.log = l }
}

// NewDiscoverer constructs a Discoverer with sensible defaults.
func NewDiscoverer(opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log.New(os.Stderr, "[ssdp] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover sends an M-SEARCH datagram and collects unicast responses until
// timeout elapses, returning a deduplicated list of devices that advertise
// MediaRenderer:1 and expose AVTransport:1. An empty list is a valid result.
// The call fails only if no datagram could be sent at all.
func (d *Discoverer) Discover(timeout time.Duration) ([]Device, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkError, "open SSDP socket", err)
	}
	defer conn.Close()

	mx := int(timeout.Seconds())
	if mx < 1 {
		mx = 1
	}

	dest, err := net.ResolveUDPAddr("udp4", ssdpMulticastAddr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkError, "resolve SSDP multicast address", err)
	}

	search := fmt.Sprintf(
		"M-SEARCH * HTTP/1.1\r\n"+
			"HOST: %s\r\n"+
			"MAN: \"ssdp:discover\"\r\n"+
			"MX: %d\r\n"+
			"ST: %s\r\n"+
			"\r\n",
		ssdpMulticastAddr, mx, MediaRendererDeviceType,
	)

	if _, err := conn.WriteToUDP([]byte(search), dest); err != nil {
		return nil, apperrors.Wrap(apperrors.NetworkError, "send M-SEARCH", err)
	}

	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)

	seen := make(map[string]bool)
	var devices []Device

	buf := make([]byte, 65535)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			break
		}

		location, ok := parseHeader(buf[:n], "LOCATION")
		if !ok || seen[location] {
			continue
		}
		seen[location] = true

		usn, _ := parseHeader(buf[:n], "USN")

		device, err := d.fetchDevice(location, usn)
		if err != nil {
			d.log.Printf("skip device at %s: %v", location, err)
			continue
		}
		if device != nil {
			devices = append(devices, *device)
		}
	}

	return devices, nil
}

// parseLocation extracts the LOCATION header from a raw SSDP HTTP-like
// unicast response.
func parseLocation(raw []byte) (string, bool) {
	return parseHeader(raw, "LOCATION")
}

// parseHeader extracts the value of the named header (case-insensitive)
// from a raw SSDP HTTP-like unicast response.
func parseHeader(raw []byte, name string) (string, bool) {
	reader := bufio.NewReader(strings.NewReader(string(raw)))
	if _, err := reader.ReadString('\n'); err != nil {
		return "", false
	}
	want := strings.ToUpper(name)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil {
				return "", false
			}
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx == -1 {
			if err != nil {
				break
			}
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if key == want {
			return value, value != ""
		}
		if err != nil {
			break
		}
	}
	return "", false
}

// deviceIDFromUSN extracts the device UDN out of an SSDP USN header value of
// the form "uuid:device-UUID::urn:...", returning ok=false if usn doesn't
// carry a usable uuid: prefix.
func deviceIDFromUSN(usn string) (string, bool) {
	if idx := strings.Index(usn, "::"); idx != -1 {
		usn = usn[:idx]
	}
	usn = strings.TrimSpace(usn)
	if !strings.HasPrefix(usn, "uuid:") {
		return "", false
	}
	usn = strings.TrimSpace(strings.TrimPrefix(usn, "uuid:"))
	return usn, usn != ""
}

// fetchDevice downloads and parses a device description, returning nil (no
// error) if the device doesn't expose AVTransport:1. usn is the SSDP
// response's USN header value, if any; it takes priority over a generated ID.
func (d *Discoverer) fetchDevice(location, usn string) (*Device, error) {
	resp, err := d.httpClient.Get(location)
	if err != nil {
		return nil, fmt.Errorf("fetch description: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("description HTTP status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}

	text := string(body)
	if !strings.Contains(text, AVTransportServiceType) {
		return nil, nil
	}

	friendlyName := extractFriendlyName(text)

	id, ok := deviceIDFromUSN(usn)
	if !ok {
		id, ok = xmlutil.Between(text, "UDN", "UDN")
		id = strings.TrimSpace(strings.TrimPrefix(id, "uuid:"))
	}
	if !ok || id == "" {
		id = newDeviceID()
	}

	device := &Device{
		ID:             id,
		FriendlyName:   friendlyName,
		DescriptionURL: location,
		ServiceType:    AVTransportServiceType,
	}

	// Eagerly resolve the control URL since we already have the description
	// body in hand; callers may re-resolve later but needn't.
	if controlURL, err := controlURLFromDescription(text, location); err == nil {
		device.ResolvedControlURL = controlURL
	}

	return device, nil
}

func extractFriendlyName(description string) string {
	start := strings.Index(description, "<friendlyName>")
	if start == -1 {
		return "Unknown Renderer"
	}
	start += len("<friendlyName>")
	end := strings.Index(description[start:], "</friendlyName>")
	if end == -1 {
		return "Unknown Renderer"
	}
	return strings.TrimSpace(description[start : start+end])
}
