// Package xmlutil provides the narrow, tolerant XML scraping this module
// needs for SOAP bodies and UPnP device descriptions. It is deliberately not
// a conforming XML parser: the wire forms it reads are fixed and small, and
// a full parser buys nothing but complexity for them.
package xmlutil

import "strings"

// Escape replaces & < > " ' with their named XML entities. The replacer
// makes a single pass and never rescans its own output, so the '&' of an
// inserted entity is not escaped again.
func Escape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// Between returns the text between the first "<openTag...>" and the
// following "</closeTag>", ok=false if either landmark is missing. openTag
// is matched as a bare tag name; any attributes on the opening tag are
// tolerated by scanning to the next '>'.
func Between(s, openTag, closeTag string) (string, bool) {
	startMarker := "<" + openTag
	start := strings.Index(s, startMarker)
	if start == -1 {
		return "", false
	}
	rest := s[start+len(startMarker):]
	gt := strings.IndexByte(rest, '>')
	if gt == -1 {
		return "", false
	}
	rest = rest[gt+1:]

	endMarker := "</" + closeTag + ">"
	end := strings.Index(rest, endMarker)
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}

// Children walks the direct children of the first element found between
// "<elementTag...>" and "</elementTag>" and returns a name->text map of its
// simple text children. A child whose content contains nested markup is
// skipped; attributes on a child's opening tag are ignored. Best-effort
// only, per package doc.
func Children(s, elementTag string) map[string]string {
	body, ok := Between(s, elementTag, elementTag)
	out := map[string]string{}
	if !ok {
		return out
	}

	pos := 0
	for pos < len(body) {
		lt := strings.IndexByte(body[pos:], '<')
		if lt == -1 {
			break
		}
		tagStart := pos + lt
		if strings.HasPrefix(body[tagStart:], "</") {
			break
		}
		gt := strings.IndexByte(body[tagStart:], '>')
		if gt == -1 {
			break
		}
		tagEnd := tagStart + gt
		rawName := body[tagStart+1 : tagEnd]
		name := strings.Fields(rawName)
		if len(name) == 0 {
			break
		}
		tagName := name[0]
		if strings.HasSuffix(tagName, "/") {
			// self-closing empty element
			out[strings.TrimSuffix(tagName, "/")] = ""
			pos = tagEnd + 1
			continue
		}

		closeMarker := "</" + tagName + ">"
		closeIdx := strings.Index(body[tagEnd+1:], closeMarker)
		if closeIdx == -1 {
			break
		}
		value := body[tagEnd+1 : tagEnd+1+closeIdx]
		if !strings.Contains(value, "<") {
			out[tagName] = value
		}
		pos = tagEnd + 1 + closeIdx + len(closeMarker)
	}

	return out
}
