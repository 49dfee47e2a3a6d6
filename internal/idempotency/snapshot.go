package idempotency

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// HeaderPair is a single response header entry. Snapshots keep headers as an
// ordered list rather than a map: duplicates and insertion order survive the
// round trip through the store, so a replayed response is byte-identical.
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ResponseSnapshot is an immutable capture of an HTTP outcome. Once a snapshot
// has been committed for a claim it never changes; every replay for the same
// (user, key) pair serves exactly these bytes.
type ResponseSnapshot struct {
	StatusCode int
	Headers    []HeaderPair
	Body       []byte
}

// Header appends a header pair and returns the snapshot for chaining during
// construction. It must not be called after the snapshot is committed.
func (s ResponseSnapshot) Header(name, value string) ResponseSnapshot {
	s.Headers = append(s.Headers, HeaderPair{Name: name, Value: value})
	return s
}

// Write replays the snapshot onto w: headers in recorded order, then status,
// then body.
func (s ResponseSnapshot) Write(w http.ResponseWriter) error {
	for _, h := range s.Headers {
		w.Header().Add(h.Name, h.Value)
	}
	w.WriteHeader(s.StatusCode)
	if _, err := w.Write(s.Body); err != nil {
		return fmt.Errorf("write snapshot body: %w", err)
	}
	return nil
}

// Equal reports whether two snapshots would produce identical responses.
func (s ResponseSnapshot) Equal(other ResponseSnapshot) bool {
	if s.StatusCode != other.StatusCode {
		return false
	}
	if len(s.Headers) != len(other.Headers) {
		return false
	}
	for i := range s.Headers {
		if s.Headers[i] != other.Headers[i] {
			return false
		}
	}
	return bytes.Equal(s.Body, other.Body)
}

// MarshalHeaders serializes the ordered header list for storage.
func MarshalHeaders(headers []HeaderPair) ([]byte, error) {
	data, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("marshal response headers: %w", err)
	}
	return data, nil
}

// UnmarshalHeaders restores a header list serialized by MarshalHeaders.
func UnmarshalHeaders(data []byte) ([]HeaderPair, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var headers []HeaderPair
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("unmarshal response headers: %w", err)
	}
	return headers, nil
}
