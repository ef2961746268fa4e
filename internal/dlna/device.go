// Package dlna implements SSDP discovery, device-description parsing, and
// the SOAP/AVTransport control client used to drive a MediaRenderer.
package dlna

import "github.com/google/uuid"

// MediaRendererDeviceType is the UPnP device URN this module discovers.
const MediaRendererDeviceType = "urn:schemas-upnp-org:device:MediaRenderer:1"

// AVTransportServiceType is the UPnP service URN for AVTransport:1.
const AVTransportServiceType = "urn:schemas-upnp-org:service:AVTransport:1"

// Device is an immutable record of a discovered MediaRenderer. Clone it
// freely; it carries no live connection.
type Device struct {
	// ID is a stable key for this device within a single Discover call,
	// taken from the SSDP USN header, else from the description's <UDN>.
	// When neither yields a usable identifier, one is generated.
	ID string

	FriendlyName     string
	DescriptionURL   string
	ServiceType      string // always AVTransportServiceType for now
	ResolvedControlURL string // empty until ResolveControlURL succeeds
}

func newDeviceID() string {
	return uuid.New().String()
}
