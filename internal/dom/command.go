package dom

// Standard DOM notification events dispatched after a field write so the host
// page's reactive framework observes the change.
const (
	EventInput  = "input"
	EventChange = "change"
	EventBlur   = "blur"
)

// Command types emitted toward the page client.
const (
	CommandSetField     = "set_field"
	CommandInjectButton = "inject_button"
	CommandClick        = "click"
)

// Command is one DOM instruction for the in-page client. The service mutates
// its own snapshot in lockstep, so state stays consistent even if commands are
// replayed on reconnect.
type Command struct {
	Type     string   `json:"type"`
	Selector string   `json:"selector,omitempty"`
	Value    string   `json:"value,omitempty"`
	Events   []string `json:"events,omitempty"`
	Marker   string   `json:"marker,omitempty"`
	Class    string   `json:"class,omitempty"`
	Label    string   `json:"label,omitempty"`
}

// CommandSink receives DOM commands. A nil sink is valid for pure extraction
// paths and tests; writes then only touch the snapshot.
type CommandSink interface {
	Emit(cmd Command)
}

// SinkFunc adapts a function to the CommandSink interface.
type SinkFunc func(cmd Command)

func (f SinkFunc) Emit(cmd Command) {
	f(cmd)
}

// RecordingSink collects emitted commands; used by tests.
type RecordingSink struct {
	Commands []Command
}

func (r *RecordingSink) Emit(cmd Command) {
	r.Commands = append(r.Commands, cmd)
}
