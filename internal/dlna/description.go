package dlna

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nullstream/dlnacast/internal/apperrors"
)

// ResolveControlURL fetches device's description document and extracts its
// AVTransport:1 control URL. Use this when a Device's ResolvedControlURL
// wasn't populated at discovery time.
func ResolveControlURL(client *http.Client, device Device) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(device.DescriptionURL)
	if err != nil {
		return "", apperrors.Wrap(apperrors.NetworkError, "fetch device description", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(apperrors.NetworkError, "read device description", err)
	}

	controlURL, err := controlURLFromDescription(string(body), device.DescriptionURL)
	if err != nil {
		return "", apperrors.Wrap(apperrors.InvalidArgument, "resolve control URL", err)
	}
	return controlURL, nil
}

// controlURLFromDescription extracts the absolute control URL for
// AVTransport:1 out of a device description XML document. descriptionURL is
// the location the document was fetched from, used both as the absolute-URL
// base and as a fallback URLBase when the document doesn't declare one.
func controlURLFromDescription(description, descriptionURL string) (string, error) {
	base, err := urlBase(description, descriptionURL)
	if err != nil {
		return "", fmt.Errorf("resolve URLBase: %w", err)
	}

	serviceBlock, ok := findServiceBlock(description, AVTransportServiceType)
	if !ok {
		return "", fmt.Errorf("no %s service block in description", AVTransportServiceType)
	}

	controlPath, ok := extractTag(serviceBlock, "controlURL")
	if !ok || controlPath == "" {
		return "", fmt.Errorf("service block has no controlURL")
	}

	return absolutize(base, controlPath)
}

// urlBase returns the base URL service paths are resolved against: the
// document's own <URLBase> if present, else scheme://authority of the
// description URL itself.
func urlBase(description, descriptionURL string) (string, error) {
	if raw, ok := extractTag(description, "URLBase"); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/"), nil
	}

	u, err := url.Parse(descriptionURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// findServiceBlock locates the <service>...</service> block whose
// <serviceType> equals serviceType.
func findServiceBlock(description, serviceType string) (string, bool) {
	remaining := description
	for {
		start := strings.Index(remaining, "<service>")
		if start == -1 {
			start = strings.Index(remaining, "<service ")
		}
		if start == -1 {
			return "", false
		}
		remaining = remaining[start:]

		end := strings.Index(remaining, "</service>")
		if end == -1 {
			return "", false
		}
		block := remaining[:end+len("</service>")]

		if st, ok := extractTag(block, "serviceType"); ok && strings.TrimSpace(st) == serviceType {
			return block, true
		}

		remaining = remaining[end+len("</service>"):]
	}
}

// extractTag returns the text content of the first <tag>...</tag> in s,
// tolerant of attributes on the opening tag.
func extractTag(s, tag string) (string, bool) {
	openPrefix := "<" + tag
	closeTag := "</" + tag + ">"

	openStart := strings.Index(s, openPrefix)
	if openStart == -1 {
		return "", false
	}
	afterOpen := s[openStart:]
	gt := strings.IndexByte(afterOpen, '>')
	if gt == -1 {
		return "", false
	}
	contentStart := openStart + gt + 1

	closeStart := strings.Index(s[contentStart:], closeTag)
	if closeStart == -1 {
		return "", false
	}

	return s[contentStart : contentStart+closeStart], true
}

// absolutize resolves a controlURL value against base the way UPnP devices
// expect: already-absolute URLs pass through, "/"-prefixed paths attach
// directly to the authority, anything else is joined with a single slash.
func absolutize(base, path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		u, err := url.Parse(base)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path), nil
	}
	return base + "/" + path, nil
}
