package payments

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// signParams builds the provider's MD5 signature: parameters sorted by key,
// empty values and the sign field itself excluded, joined as key=value pairs
// with &, the merchant key appended, digested and upper-hexed.
func signParams(params map[string]string, mchKey string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if key == "sign" || value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(params[key])
		sb.WriteByte('&')
	}
	sb.WriteString("key=")
	sb.WriteString(mchKey)

	sum := md5.Sum([]byte(sb.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// verifySign checks the sign field carried in a notification against a
// recomputation over the remaining fields. The comparison is constant time
// so a caller cannot probe the expected signature byte by byte.
func verifySign(params map[string]string, mchKey string) bool {
	provided, ok := params["sign"]
	if !ok || provided == "" {
		return false
	}
	expected := signParams(params, mchKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
