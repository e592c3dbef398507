package payments

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// encodeXML renders a flat parameter map as the provider's <xml> document
// with every value wrapped in CDATA. Keys are sorted for deterministic
// output.
func encodeXML(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("<xml>")
	for _, key := range keys {
		fmt.Fprintf(&sb, "<%s><![CDATA[%s]]></%s>", key, params[key], key)
	}
	sb.WriteString("</xml>")
	return sb.String()
}

// decodeXML parses the provider's flat <xml> document into a map. Nested
// elements never occur in this protocol.
func decodeXML(data []byte) (map[string]string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(data)))
	params := make(map[string]string)

	var current string
	depth := 0
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing xml: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				current = t.Name.Local
			}
		case xml.CharData:
			if depth == 2 && current != "" {
				params[current] += string(t)
			}
		case xml.EndElement:
			if depth == 2 {
				current = ""
			}
			depth--
		}
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("empty xml document")
	}
	return params, nil
}

// notifyAck builds the acknowledgement document the provider expects in the
// webhook response body, regardless of processing outcome.
func notifyAck(returnCode, returnMsg string) []byte {
	return []byte(fmt.Sprintf(
		"<xml><return_code><![CDATA[%s]]></return_code><return_msg><![CDATA[%s]]></return_msg></xml>",
		returnCode, returnMsg,
	))
}
