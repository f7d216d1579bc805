// Package command defines the Command/Event wire schema shared by every
// adapter and the coordinator: what a client can ask for, and what the
// session reports back. JSON shapes here are load-bearing — clients
// depend on the exact field names.
package command

import "encoding/json"

// Command is what the coordinator's command channel carries.
type Command struct {
	Input     []InputSeq
	Snapshot  bool
	Resize    *ResizeArgs
	Debug     string
	Completed string // fifo path
	Exit      bool
}

// ResizeArgs is the payload of a Resize command.
type ResizeArgs struct {
	Cols, Rows int
}

// InputKind distinguishes a literal byte sequence from a cursor key that
// must be encoded relative to cursor-key application mode.
type InputKind int

const (
	// InputStandard passes Text through unchanged.
	InputStandard InputKind = iota
	// InputCursorKey encodes Key ("Up"/"Down"/"Left"/"Right") as CSI or
	// SS3 depending on cursor_key_app_mode.
	InputCursorKey
)

// InputSeq is one element of an Input command.
type InputSeq struct {
	Kind InputKind
	Text string // InputStandard: literal bytes to send
	Key  byte   // InputCursorKey: 'A' up, 'B' down, 'C' right, 'D' left
}

// Standard builds a literal pass-through input sequence.
func Standard(text string) InputSeq {
	return InputSeq{Kind: InputStandard, Text: text}
}

// CursorKey builds a cursor-key input sequence. key must be one of
// 'A' (up), 'B' (down), 'C' (right), 'D' (left).
func CursorKey(key byte) InputSeq {
	return InputSeq{Kind: InputCursorKey, Key: key}
}

// Encode renders seq to the bytes actually sent to the child, given
// whether the VT is currently in cursor-key application mode.
func (seq InputSeq) Encode(appMode bool) []byte {
	switch seq.Kind {
	case InputCursorKey:
		if appMode {
			return []byte{0x1b, 'O', seq.Key}
		}
		return []byte{0x1b, '[', seq.Key}
	default:
		return []byte(seq.Text)
	}
}

// namedKeys maps the stdio/HTTP adapters' named-key vocabulary (see
// SPEC_FULL.md §7.2) to input sequences. Arrow keys become InputCursorKey
// so their final encoding depends on the VT's current mode, not the
// adapter's.
var namedKeys = map[string]InputSeq{
	"Enter":     Standard("\r"),
	"Tab":       Standard("\t"),
	"Backspace": Standard("\x7f"),
	"Escape":    Standard("\x1b"),
	"Space":     Standard(" "),
	"Up":        CursorKey('A'),
	"Down":      CursorKey('B'),
	"Right":     CursorKey('C'),
	"Left":      CursorKey('D'),
	"C-c":       Standard("\x03"),
	"C-d":       Standard("\x04"),
	"C-a":       Standard("\x01"),
	"C-e":       Standard("\x05"),
	"C-u":       Standard("\x15"),
	"C-w":       Standard("\x17"),
	"C-l":       Standard("\x0c"),
	"C-z":       Standard("\x1a"),
}

// ParseKey maps one adapter-facing key string to an InputSeq: a named
// key from the vocabulary above, or a literal passthrough otherwise.
func ParseKey(s string) InputSeq {
	if seq, ok := namedKeys[s]; ok {
		return seq
	}
	return Standard(s)
}

// EventType names the tagged variants of Event in the external schema.
type EventType string

const (
	EventInit             EventType = "init"
	EventOutput           EventType = "output"
	EventResize           EventType = "resize"
	EventSnapshot         EventType = "snapshot"
	EventPid              EventType = "pid"
	EventExitCode         EventType = "exitCode"
	EventDebug            EventType = "debug"
	EventCommandCompleted EventType = "commandCompleted"
)

// Event is the session's typed output. Only the fields relevant to Type
// are populated; ToWire strips the rest.
type Event struct {
	Type           EventType
	ElapsedSeconds float64

	// init / snapshot
	Cols, Rows int
	Pid        int // init only
	Dump       string
	Text       string
	CharMap    [][]string     // styled only, one rune per cell string
	StyleMap   [][]int        // styled only
	Styles     map[int]*Style // styled only

	// output
	Seq string

	// resize — reuses Cols, Rows above

	// pid — reuses Pid above

	// exitCode
	ExitCode int

	// debug
	Message string

	// commandCompleted carries only elapsed time, already on Event.
}

// Color is the style palette's fg/bg representation.
type Color struct {
	Indexed  *uint8 `json:"indexed,omitempty"`
	RGB      *[3]uint8 `json:"rgb,omitempty"`
}

// Style is one style-palette entry.
type Style struct {
	Fg    *Color   `json:"fg,omitempty"`
	Bg    *Color   `json:"bg,omitempty"`
	Attrs []string `json:"attrs,omitempty"`
}

// Filter decides which event types an adapter forwards to its client,
// driven by the --subscribe flag (spec.md §6). A nil or empty Filter
// allows everything.
type Filter map[EventType]bool

// Allows reports whether t passes f.
func (f Filter) Allows(t EventType) bool {
	if len(f) == 0 {
		return true
	}
	return f[t]
}

// ParseFilter builds a Filter from the comma-separated --subscribe
// flag value (e.g. "output,exitCode"). An empty string yields a nil
// Filter (allow everything).
func ParseFilter(spec string) Filter {
	if spec == "" {
		return nil
	}
	f := make(Filter)
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i == len(spec) || spec[i] == ',' {
			if name := spec[start:i]; name != "" {
				f[EventType(name)] = true
			}
			start = i + 1
		}
	}
	return f
}

// wireEnvelope is the outer `{"type":...,"data":{...}}` shape every
// event takes on the wire, per spec.md §6.
type wireEnvelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ToWire serializes e to the exact JSON shape spec.md §6 documents.
func (e Event) ToWire() ([]byte, error) {
	data, err := e.wireData()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Type: e.Type, Data: data})
}

func (e Event) wireData() (json.RawMessage, error) {
	switch e.Type {
	case EventInit:
		return json.Marshal(snapshotData{
			Cols: e.Cols, Rows: e.Rows, Pid: &e.Pid,
			Seq: e.Dump, Text: e.Text,
			CharMap: e.CharMap, StyleMap: e.StyleMap, Styles: e.Styles,
		})
	case EventSnapshot:
		return json.Marshal(snapshotData{
			Cols: e.Cols, Rows: e.Rows,
			Seq: e.Dump, Text: e.Text,
			CharMap: e.CharMap, StyleMap: e.StyleMap, Styles: e.Styles,
		})
	case EventOutput:
		return json.Marshal(struct {
			Seq string `json:"seq"`
		}{e.Seq})
	case EventResize:
		return json.Marshal(struct {
			Cols int `json:"cols"`
			Rows int `json:"rows"`
		}{e.Cols, e.Rows})
	case EventPid:
		return json.Marshal(struct {
			Pid int `json:"pid"`
		}{e.Pid})
	case EventExitCode:
		return json.Marshal(struct {
			ExitCode int `json:"exitCode"`
		}{e.ExitCode})
	case EventDebug:
		return json.Marshal(struct {
			Message string `json:"message"`
		}{e.Message})
	case EventCommandCompleted:
		return json.Marshal(struct {
			Time float64 `json:"time"`
		}{e.ElapsedSeconds})
	default:
		return json.Marshal(struct{}{})
	}
}

type snapshotData struct {
	Cols     int             `json:"cols"`
	Rows     int             `json:"rows"`
	Pid      *int            `json:"pid,omitempty"`
	Seq      string          `json:"seq"`
	Text     string          `json:"text"`
	CharMap  [][]string      `json:"charMap,omitempty"`
	StyleMap [][]int         `json:"styleMap,omitempty"`
	Styles   map[int]*Style  `json:"styles,omitempty"`
}
