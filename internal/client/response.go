package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"golang.org/x/exp/slices"
	"io"
	"mime"
	"net/http"
	"strings"
)

const diagnosticLimit = 100

var noContentStatuses = []int{http.StatusNoContent, http.StatusResetContent}

// Response is a normalized successful reply.
type Response struct {
	Status int
	Header http.Header
	Body   json.RawMessage
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if v == nil || r == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{
			Kind:       KindMalformedResponse,
			Status:     r.Status,
			Message:    msgMalformedResponse,
			Diagnostic: truncate(string(r.Body)),
			Err:        err,
		}
	}
	return nil
}

type bodyDecoder func(raw []byte) (json.RawMessage, string)

// decoderFor picks a parse strategy from the declared content type.
func decoderFor(contentType string) bodyDecoder {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && isJSONMediaType(mediaType) {
		return decodeJSON
	}
	return decodeFallback
}

func isJSONMediaType(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func decodeJSON(raw []byte) (json.RawMessage, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, fmt.Sprintf("Server returned invalid JSON: %s", truncate(string(raw)))
	}
	return json.RawMessage(trimmed), ""
}

func decodeFallback(raw []byte) (json.RawMessage, string) {
	return nil, fmt.Sprintf("Server returned non-JSON response: %s", truncate(string(raw)))
}

// normalize reads and closes resp.Body. Non-2xx becomes a KindHTTP error with
// the parsed body; a 2xx that cannot be parsed becomes KindMalformedResponse.
func normalize(resp *http.Response) (*Response, error) {
	defer resp.Body.Close()

	var (
		body       json.RawMessage
		diagnostic string
	)

	raw, err := io.ReadAll(resp.Body)
	switch {
	case err != nil:
		diagnostic = fmt.Sprintf("read response body: %v", err)
	case slices.Contains(noContentStatuses, resp.StatusCode):
		body = json.RawMessage("null")
	default:
		body, diagnostic = decoderFor(resp.Header.Get("Content-Type"))(raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindHTTP,
			Status:     resp.StatusCode,
			Message:    failureMessage(body, resp.StatusCode),
			Body:       body,
			Diagnostic: diagnostic,
		}
	}

	if body == nil {
		return nil, &Error{
			Kind:       KindMalformedResponse,
			Status:     resp.StatusCode,
			Message:    msgMalformedResponse,
			Diagnostic: diagnostic,
		}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func failureMessage(body json.RawMessage, status int) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return envelope.Error
	}
	return fmt.Sprintf("Request failed with status %d", status)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= diagnosticLimit {
		return s
	}
	return string(r[:diagnosticLimit])
}
