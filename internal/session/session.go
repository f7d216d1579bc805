// Package session holds the virtual terminal and the session clock, and
// turns state changes into typed events fanned out to subscribers. It is
// the only component that mutates the VT.
package session

import (
	"sync"
	"time"

	"ht/internal/command"
	"ht/internal/vt"
)

const backlogSize = 1024

// StyleMode controls whether snapshots carry the style palette.
type StyleMode int

const (
	Plain StyleMode = iota
	Styled
)

// Session owns the VT, the session clock, and the broadcast bus. All
// methods must be called from a single goroutine (the coordinator) —
// there is no internal locking around VT mutation, only around the
// subscriber map, which Subscription.Close may also touch from an
// adapter's goroutine.
type Session struct {
	vt *vt.VT

	startTime     time.Time
	lastEventTime time.Time
	streamTime    float64

	pendingPid int
	havePid    bool
	styleMode  StyleMode

	mu   sync.Mutex
	subs map[chan command.Event]struct{}
}

// New creates a Session with a VT of the given size, in Plain style mode.
func New(cols, rows int) *Session {
	now := time.Now()
	return &Session{
		vt:            vt.New(cols, rows),
		startTime:     now,
		lastEventTime: now,
		subs:          make(map[chan command.Event]struct{}),
	}
}

// SetStyleMode switches whether future snapshots carry a style palette.
func (s *Session) SetStyleMode(mode StyleMode) {
	s.styleMode = mode
}

// CursorKeyAppMode reports the VT's current DECCKM state, used by the
// coordinator to encode Input commands.
func (s *Session) CursorKeyAppMode() bool {
	return s.vt.CursorKeyAppMode()
}

func (s *Session) elapsed() float64 {
	return s.streamTime + time.Since(s.lastEventTime).Seconds()
}

func (s *Session) publish(e command.Event) {
	e.ElapsedSeconds = s.elapsed()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		for {
			select {
			case ch <- e:
			default:
				// Full: evict the oldest queued event to make room,
				// rather than dropping the new one. The subscriber
				// observes a gap, not a crash — see spec.md §3.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (s *Session) tick(e command.Event) {
	now := time.Now()
	s.streamTime = s.streamTime + now.Sub(s.lastEventTime).Seconds()
	s.lastEventTime = now
	s.publish(e)
}

// Output feeds bytes into the VT and publishes an Output event.
func (s *Session) Output(text string) {
	s.vt.Feed([]byte(text))
	s.tick(command.Event{Type: command.EventOutput, Seq: text})
}

// Resize resizes the VT and publishes a Resize event.
func (s *Session) Resize(cols, rows int) {
	s.vt.Resize(cols, rows)
	s.tick(command.Event{Type: command.EventResize, Cols: cols, Rows: rows})
}

// Snapshot publishes the current VT state as a Snapshot event.
func (s *Session) Snapshot() {
	e := s.buildSnapshot(command.EventSnapshot)
	s.tick(e)
}

// EmitPid records the child PID and publishes a Pid event.
func (s *Session) EmitPid(pid int) {
	s.pendingPid = pid
	s.havePid = true
	s.tick(command.Event{Type: command.EventPid, Pid: pid})
}

// EmitExitCode publishes an ExitCode event.
func (s *Session) EmitExitCode(code int) {
	s.tick(command.Event{Type: command.EventExitCode, ExitCode: code})
}

// EmitCommandCompleted publishes a CommandCompleted event.
func (s *Session) EmitCommandCompleted() {
	s.tick(command.Event{Type: command.EventCommandCompleted})
}

// EmitDebugEvent publishes a Debug event.
func (s *Session) EmitDebugEvent(message string) {
	s.tick(command.Event{Type: command.EventDebug, Message: message})
}

// Subscription is handed to one client: an Init event describing the
// state at subscribe time, followed by a live stream on Events.
type Subscription struct {
	Init   command.Event
	Events <-chan command.Event
	cancel func()
}

// Close detaches the subscription from the broadcast bus. Safe to call
// more than once.
func (sub Subscription) Close() {
	if sub.cancel != nil {
		sub.cancel()
	}
}

// Subscribe atomically computes an Init snapshot, registers a fresh
// receiver, and — if a PID is already known — re-publishes it so the new
// subscriber (and every other live subscriber) sees it.
func (s *Session) Subscribe() Subscription {
	init := s.buildSnapshot(command.EventInit)
	init.Pid = s.pendingPid
	init.ElapsedSeconds = s.elapsed()

	ch := make(chan command.Event, backlogSize)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	if s.havePid {
		// Re-published so every subscriber sees it, but — unlike EmitPid
		// — this does not advance the session clock; it replays a fact
		// that was already true.
		s.publish(command.Event{Type: command.EventPid, Pid: s.pendingPid})
	}

	return Subscription{
		Init:   init,
		Events: ch,
		cancel: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		},
	}
}

func (s *Session) buildSnapshot(typ command.EventType) command.Event {
	cols, rows := s.vt.Size()
	e := command.Event{
		Type: typ,
		Cols: cols,
		Rows: rows,
		Dump: s.vt.Dump(),
		Text: s.vt.TextView(),
	}
	if s.styleMode == Styled {
		charMap, styleMap, styles := s.buildStyleData()
		e.CharMap = charMap
		e.StyleMap = styleMap
		e.Styles = styles
	}
	return e
}

// buildStyleData builds the pen palette and the per-cell char/style maps
// in one pass over the current view, in row-major encounter order. ID 0
// is reserved for the default (zero-value) pen regardless of whether any
// cell actually uses it.
func (s *Session) buildStyleData() ([][]string, [][]int, map[int]*command.Style) {
	rows := s.vt.View()
	cols, _ := s.vt.Size()

	penToID := make(map[string]int)
	styles := make(map[int]*command.Style)

	defaultPen := vt.Pen{}
	penToID[defaultPen.Key()] = 0
	styles[0] = styleToWire(defaultPen)
	nextID := 1

	charMap := make([][]string, len(rows))
	styleMap := make([][]int, len(rows))

	for r, row := range rows {
		chars := make([]string, cols)
		ids := make([]int, cols)
		for c := 0; c < cols; c++ {
			var cell vt.Cell
			if c < len(row) {
				cell = row[c]
			} else {
				cell = vt.Cell{Char: ' ', Width: 1}
			}
			chars[c] = string(cell.Char)

			if cell.Width > 0 {
				key := cell.Pen.Key()
				id, ok := penToID[key]
				if !ok {
					id = nextID
					penToID[key] = id
					styles[id] = styleToWire(cell.Pen)
					nextID++
				}
				ids[c] = id
			} else {
				ids[c] = 0
			}
		}
		charMap[r] = chars
		styleMap[r] = ids
	}

	return charMap, styleMap, styles
}

func styleToWire(p vt.Pen) *command.Style {
	style := &command.Style{Attrs: p.Attrs()}
	if p.Fg.HasColor {
		style.Fg = colorToWire(p.Fg)
	}
	if p.Bg.HasColor {
		style.Bg = colorToWire(p.Bg)
	}
	return style
}

func colorToWire(c vt.Color) *command.Color {
	if c.Indexed {
		idx := c.Index
		return &command.Color{Indexed: &idx}
	}
	rgb := [3]uint8{c.R, c.G, c.B}
	return &command.Color{RGB: &rgb}
}
