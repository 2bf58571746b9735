package v1alpha1

// Frame types exchanged on the realtime websocket.
const (
	FrameAuth        = "auth"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameReplay      = "replay"
	FrameEvent       = "event"
	FrameAck         = "ack"
	FrameError       = "error"
)

// StreamFrame is the single wire envelope of the realtime protocol. The first
// frame of every connection must be an auth frame; subscriptions sent before
// that are rejected.
type StreamFrame struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Cursor  int64  `json:"cursor,omitempty"`
	Event   *Event `json:"event,omitempty"`
	Message string `json:"message,omitempty"`
}
