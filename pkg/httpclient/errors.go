package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind classifies a transport failure.
type Kind string

const (
	KindNetwork Kind = "network"
	KindStatus  Kind = "status"
	KindDecode  Kind = "decode"

	maxErrorBodyBytes = 512
)

// TransportError is the single error type surfaced by Client implementations.
type TransportError struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport ")
	b.WriteString(string(e.Kind))
	if e.Method != "" || e.URL != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, " body: %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err carries a *TransportError of the given kind.
// An empty kind matches any transport error.
func IsTransportError(err error, kind Kind) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return kind == "" || te.Kind == kind
}

// DecodeJSON unmarshals the response body of the method/url request into v.
// Numbers are kept as json.Number so payloads round-trip without float
// conversion. An empty body (or a bare null) leaves v untouched; anything
// after the first JSON value is a decode failure.
func DecodeJSON(method, url string, resp Response, v any) error {
	if resp == nil {
		return &TransportError{Kind: KindDecode, Method: method, URL: url, Err: errors.New("nil response")}
	}
	body := resp.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	err := dec.Decode(v)
	if err == nil {
		if _, tokErr := dec.Token(); tokErr != io.EOF {
			err = errTrailingData
		}
	}
	if err != nil {
		return &TransportError{
			Kind:       KindDecode,
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode(),
			Body:       bodySnippet(body),
			Err:        err,
		}
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON value")

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "..."
	}
	return s
}
