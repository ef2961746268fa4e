// Package didl builds the DIDL-Lite metadata document required as the
// CurrentURIMetaData argument of SetAVTransportURI.
package didl

import (
	"fmt"

	"github.com/nullstream/dlnacast/internal/xmlutil"
)

// dlnaFlags asserts byte-seek support (DLNA.ORG_OP=01) and the streaming
// feature set most renderer families expect. The exact bit combination isn't
// standardised across devices; this reproduces the working combination seen
// in practice. Kept as a single named constant for easy patching.
const dlnaFlags = "DLNA.ORG_FLAGS=01700000000000000000000000000000"

// BuildItem assembles a single-line DIDL-Lite document containing one
// videoItem res pointing at mediaURL. Title and mediaURL are XML-escaped
// before interpolation.
func BuildItem(title, mediaURL, mime string, sizeBytes int64) string {
	protocolInfo := fmt.Sprintf("http-get:*:%s:DLNA.ORG_OP=01;%s", mime, dlnaFlags)

	return fmt.Sprintf(
		`<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">`+
			`<item id="0" parentID="-1" restricted="1">`+
			`<dc:title>%s</dc:title>`+
			`<upnp:class>object.item.videoItem</upnp:class>`+
			`<res protocolInfo="%s" size="%d">%s</res>`+
			`</item></DIDL-Lite>`,
		xmlutil.Escape(title),
		protocolInfo,
		sizeBytes,
		xmlutil.Escape(mediaURL),
	)
}
