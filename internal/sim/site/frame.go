package site

import (
	"github.com/shamaton/msgpack/v2"
)

type TaskFrame struct {
	Pos      [3]int `msgpack:"pos"`
	Progress uint64 `msgpack:"progress"`
	Target   uint64 `msgpack:"target"`
}

type ItemFrame struct {
	Task TaskFrame  `msgpack:"task"`
	Item string     `msgpack:"item"`
	At   [3]float64 `msgpack:"at"`
}

// Frame is the observer view of one tick.
type Frame struct {
	Tick        uint64      `msgpack:"tick"`
	Stored      uint64      `msgpack:"stored"`
	Capacity    uint64      `msgpack:"capacity"`
	LeftToClear int         `msgpack:"left_to_clear"`
	LeftToPlace int         `msgpack:"left_to_place"`
	Done        bool        `msgpack:"done"`
	Cancelled   bool        `msgpack:"cancelled"`
	HasRobot    bool        `msgpack:"has_robot"`
	Robot       [3]float64  `msgpack:"robot"`
	Clearing    []TaskFrame `msgpack:"clearing"`
	Placing     []ItemFrame `msgpack:"placing"`
}

func EncodeFrame(f Frame) ([]byte, error) { return msgpack.Marshal(f) }

func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	err := msgpack.Unmarshal(b, &f)
	return f, err
}

// Frame builds the current observer frame. It must run on the site goroutine.
func (s *Site) Frame() Frame {
	f := Frame{
		Tick:        s.tick.Load(),
		Stored:      s.bat.Stored(),
		Capacity:    s.bat.Capacity(),
		LeftToClear: s.b.LeftToClear(),
		LeftToPlace: s.b.LeftToPlace(),
		Done:        s.done.Load(),
		Cancelled:   s.cancelled.Load(),
	}
	if p, ok := s.b.RobotPos(); ok {
		f.HasRobot = true
		f.Robot = [3]float64{p.X(), p.Y(), p.Z()}
	}
	for _, t := range s.b.ActiveClear() {
		f.Clearing = append(f.Clearing, TaskFrame{Pos: t.Pos.Array(), Progress: t.Progress, Target: s.grid.Resistance(t.Pos)})
	}
	origin := s.b.Origin()
	for _, t := range s.b.ActivePlace() {
		at := s.b.ItemPos(t)
		it := ItemFrame{
			Task: TaskFrame{Pos: t.Pos.Array(), Progress: t.Progress, Target: t.Target(origin)},
			At:   [3]float64{at.X(), at.Y(), at.Z()},
		}
		if len(t.Items) > 0 {
			it.Item = t.Items[0].Item
		}
		f.Placing = append(f.Placing, it)
	}
	return f
}

// Subscribe registers a frame stream. The channel keeps only the newest
// frames when the reader falls behind and is closed when the site stops.
func (s *Site) Subscribe(buf int) (uint64, <-chan []byte) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan []byte, buf)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subClosed {
		close(ch)
		return 0, ch
	}
	id := s.nextSub.Inc()
	s.subs[id] = ch
	return id, ch
}

func (s *Site) Unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Site) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Site) publish(tick uint64) {
	if s.Subscribers() == 0 {
		return
	}
	b, err := EncodeFrame(s.Frame())
	if err != nil {
		s.log.Warn().Err(err).Uint64("tick", tick).Msg("frame encode failed")
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		sendLatest(ch, b)
	}
}

func (s *Site) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subClosed = true
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
