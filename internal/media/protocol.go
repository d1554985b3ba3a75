package media

import "encoding/json"

// Observed property ids.
const (
	propTimePos = iota + 1
	propDuration
	propEOFReached
)

// ipcCommand is one line sent to mpv's input socket.
type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

// ipcMessage is one line read from mpv: either a reply carrying request_id or
// an asynchronous event.
type ipcMessage struct {
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID *int            `json:"request_id,omitempty"`
	Event     string          `json:"event,omitempty"`
	ID        int             `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

func (m ipcMessage) isReply() bool {
	return m.Event == "" && m.RequestID != nil
}

// float decodes Data as a number. A null or missing value reports false.
func (m ipcMessage) float() (float64, bool) {
	if len(m.Data) == 0 {
		return 0, false
	}
	var f *float64
	if err := json.Unmarshal(m.Data, &f); err != nil || f == nil {
		return 0, false
	}
	return *f, true
}

func (m ipcMessage) bool() bool {
	var b bool
	_ = json.Unmarshal(m.Data, &b)
	return b
}
