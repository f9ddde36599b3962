package bridge

import "github.com/veloform/activity-enhancer-go/internal/dom"

// Inbound message types from the page client.
const (
	MsgInit     = "init"
	MsgNavigate = "navigate"
	MsgMutation = "mutation"
	MsgAction   = "action"
)

// Action kinds carried by MsgAction.
const (
	ActionEnhance = "enhance"
	ActionApply   = "apply"
	ActionDiscard = "discard"
	ActionReset   = "reset"
	ActionRetry   = "retry"
	ActionDismiss = "dismiss"
)

// Outbound frame types toward the page client.
const (
	FrameCommand = "command"
	FramePreview = "preview"
	FrameError   = "error"
	FrameState   = "state"
)

// ClientMessage is the single inbound envelope. Fields are populated per
// message type; unknown types are logged and dropped.
type ClientMessage struct {
	Type string `json:"type"`

	// init, navigate
	URL  string `json:"url,omitempty"`
	HTML string `json:"html,omitempty"`

	// mutation
	NodeHTML string `json:"nodeHtml,omitempty"`

	// action
	Action string `json:"action,omitempty"`
	Field  string `json:"field,omitempty"`
}

// ServerFrame is the single outbound envelope.
type ServerFrame struct {
	Type string `json:"type"`

	Command *dom.Command `json:"command,omitempty"`

	// preview
	Field    string `json:"field,omitempty"`
	Selector string `json:"selector,omitempty"`
	Original string `json:"original,omitempty"`
	Enhanced string `json:"enhanced,omitempty"`

	// error
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	// state
	State string `json:"state,omitempty"`
}
