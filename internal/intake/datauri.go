package intake

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const dataURIPrefix = "data:"

// ParseDataURI decodes "data:image/<subtype>;base64,<payload>". Only image
// media types with base64 encoding are accepted. Whitespace inside the
// payload (line-wrapped base64) is tolerated.
func ParseDataURI(s string) (mimeType string, data []byte, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), dataURIPrefix+"image/") {
		return "", nil, newError(KindBadDataURI, "", errors.New("expected a data:image/... URI"))
	}
	header, payload, ok := strings.Cut(s[len(dataURIPrefix):], ",")
	if !ok {
		return "", nil, newError(KindBadDataURI, "", errors.New("missing ',' separator"))
	}

	params := strings.Split(header, ";")
	mimeType = strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return "", nil, newError(KindBadDataURI, "", errors.New("payload must be base64 encoded"))
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders omit padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(payload); rawErr == nil {
			return mimeType, raw, nil
		}
		return "", nil, newError(KindBadDataURI, "", fmt.Errorf("decode base64: %w", err))
	}
	return mimeType, data, nil
}

// EncodeDataURI is the inverse of ParseDataURI.
func EncodeDataURI(mimeType string, data []byte) string {
	return dataURIPrefix + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
