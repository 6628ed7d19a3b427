// Package host speaks the browser's native-messaging protocol: JSON
// documents framed by a 32-bit little-endian length, request/response over
// stdio. Each request is tagged by a type string.
package host

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/felixgeelhaar/dejaview/internal/infer"
	"github.com/felixgeelhaar/dejaview/internal/search"
	"github.com/felixgeelhaar/dejaview/internal/store"
)

// MaxMessageSize bounds a single inbound frame, matching Chrome's own 1 MB
// native-messaging limit. It keeps a corrupt length prefix from allocating
// gigabytes.
const MaxMessageSize = 1 << 20

// Request type strings, matching what the extension sends.
const (
	TypePing             = "PING"
	TypeCapture          = "CAPTURE_MEMORY"
	TypeSearch           = "SEARCH_MEMORIES"
	TypeGetAll           = "GET_ALL_MEMORIES"
	TypeGetCount         = "GET_MEMORY_COUNT"
	TypeGetUnlockedCount = "GET_UNLOCKED_COUNT"
	TypeClearAll         = "CLEAR_ALL"
	TypeTrackUnlock      = "TRACK_UNLOCK"
	TypeGetAIStatus      = "GET_AI_STATUS"
)

// Request is one inbound message. Fields beyond Type are populated per type.
type Request struct {
	Type  string          `json:"type"`
	Query string          `json:"query,omitempty"`
	URL   string          `json:"url,omitempty"`
	Data  *store.Snapshot `json:"data,omitempty"`
}

// Response is the envelope for every reply. A request always gets a
// well-formed response, even when storage or inference is down.
type Response struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Results  []*search.Result `json:"results,omitempty"`
	Memories []*store.Memory  `json:"memories,omitempty"`
	Count    *int             `json:"count,omitempty"`
	AI       *infer.Status    `json:"ai,omitempty"`
}

// ReadFrame reads one length-prefixed JSON frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes one length-prefixed JSON frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WriteResponse frames and writes a response.
func WriteResponse(w io.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return WriteFrame(w, payload)
}
