package dlna

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nullstream/dlnacast/internal/apperrors"
	"github.com/nullstream/dlnacast/internal/xmlutil"
)

// soapClient posts AVTransport:1 actions to a control URL and parses the
// response, surfacing faults and malformed bodies as apperrors.
type soapClient struct {
	httpClient *http.Client
}

func newSOAPClient(c *http.Client) *soapClient {
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	return &soapClient{httpClient: c}
}

// invoke sends action against controlURL with the given argument pairs (in
// order) and returns the decoded <actionResponse> children, or a fault-typed
// error.
func (c *soapClient) invoke(controlURL, action string, args [][2]string) (map[string]string, error) {
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	body.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`)
	body.WriteString(`<s:Body>`)
	fmt.Fprintf(&body, `<u:%s xmlns:u="%s">`, action, AVTransportServiceType)
	for _, kv := range args {
		fmt.Fprintf(&body, "<%s>%s</%s>", kv[0], xmlutil.Escape(kv[1]), kv[0])
	}
	fmt.Fprintf(&body, `</u:%s>`, action)
	body.WriteString(`</s:Body></s:Envelope>`)

	req, err := http.NewRequest(http.MethodPost, controlURL, bytes.NewBufferString(body.String()))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ActionTransport, "build SOAP request", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", fmt.Sprintf(`"%s#%s"`, AVTransportServiceType, action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ActionTransport, fmt.Sprintf("%s request failed", action), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ActionTransport, fmt.Sprintf("%s read response", action), err)
	}
	text := string(respBody)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
		return nil, apperrors.New(apperrors.ActionTransport,
			fmt.Sprintf("%s returned HTTP %d: %s", action, resp.StatusCode, text))
	}

	return parseSOAPResponse(action, text)
}

// parseSOAPResponse extracts the action's response values, or, if the body
// carries a SOAP fault, returns apperrors.ActionFault with the fault detail.
func parseSOAPResponse(action, body string) (map[string]string, error) {
	if faultString, ok := xmlutil.Between(body, "faultstring", "faultstring"); ok {
		errorCode, _ := xmlutil.Between(body, "errorCode", "errorCode")
		errorDescription, _ := xmlutil.Between(body, "errorDescription", "errorDescription")
		return nil, apperrors.Fault(faultString, errorCode, errorDescription)
	}

	responseTag := action + "Response"
	elementName := ""
	if strings.Contains(body, "<"+responseTag) {
		elementName = responseTag
	} else if i := strings.Index(body, ":"+responseTag); i != -1 {
		// Namespace-prefixed element such as <u:PlayResponse>.
		if lt := strings.LastIndexByte(body[:i], '<'); lt != -1 && !strings.ContainsAny(body[lt+1:i], " />") {
			elementName = body[lt+1:i] + ":" + responseTag
		}
	}
	if elementName == "" {
		return nil, apperrors.New(apperrors.ActionMalformed,
			fmt.Sprintf("no %s element in response", responseTag))
	}

	return xmlutil.Children(body, elementName), nil
}
