package ring

import (
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/memview"
)

// Direction is the traversal direction of a Stream.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Stream is a lazy cursor over one ring region (spec §4.4's "L4.stream"),
// reading through a memview.View in page-aligned packets no larger than
// MaxPacket. Regardless of traversal direction, each Read(n) call returns
// its n bytes in ascending (logical, device-generated) address order;
// Backward fetches lower and lower address packets to do this, but
// inverts the *accumulation* order across packets (spec §4.4: "invert the
// copy direction so that consecutive reads yield the logical byte
// order") rather than reversing any byte's position within a packet.
type Stream struct {
	view       *memview.View
	begin, end int
	pageSize   int
	maxPacket  int
	dir        Direction

	addr        int // forward: next fetch start; backward: exclusive upper bound of next fetch
	pendingSkip int // bytes to discard from the very first fetched packet

	buf []byte
	pos int // forward: next unread index from the head; backward: next unread boundary from the tail

	onProgress func(fetched int)
}

// NewStream builds a ring cursor over [begin, end), starting logically at
// address start and reading in dir. pageSize and maxPacket must be
// positive, maxPacket a multiple of pageSize. onProgress, if non-nil, is
// called once per underlying L3 fetch with the number of bytes fetched
// (spec §4.4: "progress events are emitted per fetched packet").
func NewStream(view *memview.View, begin, end, pageSize, maxPacket int, dir Direction, start int, onProgress func(int)) *Stream {
	n := end - begin
	rel := mod(start-begin, n)
	alignedRel := (rel / pageSize) * pageSize
	aligned := begin + alignedRel
	within := rel - alignedRel

	s := &Stream{
		view: view, begin: begin, end: end, pageSize: pageSize, maxPacket: maxPacket,
		dir: dir, onProgress: onProgress,
	}
	if dir == Forward {
		s.addr = aligned
		s.pendingSkip = within
	} else {
		s.addr = aligned + pageSize // exclusive upper bound; discard the tail of the first packet
		s.pendingSkip = pageSize - within - 1
	}
	return s
}

func (s *Stream) fetchForward() error {
	if s.addr == s.end {
		s.addr = s.begin
	}
	packetSize := s.maxPacket
	if remaining := s.end - s.addr; packetSize > remaining {
		packetSize = remaining
	}
	if packetSize <= 0 {
		return dcerr.New(dcerr.DataFormat, "ring.Stream", nil)
	}
	data, err := s.view.Read(s.addr, packetSize)
	if err != nil {
		return err
	}
	s.addr += packetSize
	s.buf = data
	s.pos = 0
	if s.pendingSkip > 0 {
		s.pos = s.pendingSkip
		s.pendingSkip = 0
	}
	if s.onProgress != nil {
		s.onProgress(packetSize)
	}
	return nil
}

// fetchBackward fetches the next (lower-address) packet in natural
// ascending order and positions the tail cursor s.pos just past the
// highest byte this stream is still allowed to serve.
func (s *Stream) fetchBackward() error {
	if s.addr == s.begin {
		s.addr = s.end
	}
	packetSize := s.maxPacket
	if distToBegin := s.addr - s.begin; packetSize > distToBegin {
		packetSize = distToBegin
	}
	if packetSize <= 0 {
		return dcerr.New(dcerr.DataFormat, "ring.Stream", nil)
	}
	s.addr -= packetSize
	data, err := s.view.Read(s.addr, packetSize)
	if err != nil {
		return err
	}
	s.buf = data
	s.pos = len(data)
	if s.pendingSkip > 0 {
		s.pos -= s.pendingSkip
		s.pendingSkip = 0
	}
	if s.onProgress != nil {
		s.onProgress(packetSize)
	}
	return nil
}

// Read returns the next n bytes in ascending address order for this
// cursor, fetching through L3 as needed.
func (s *Stream) Read(n int) ([]byte, error) {
	if s.dir == Forward {
		return s.readForward(n)
	}
	return s.readBackward(n)
}

func (s *Stream) readForward(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if s.pos >= len(s.buf) {
			if err := s.fetchForward(); err != nil {
				return nil, err
			}
		}
		avail := len(s.buf) - s.pos
		need := n - len(out)
		take := avail
		if take > need {
			take = need
		}
		out = append(out, s.buf[s.pos:s.pos+take]...)
		s.pos += take
	}
	return out, nil
}

// readBackward consumes from the tail of each freshly fetched (ascending)
// packet backward, accumulating chunks in consumption order and then
// concatenating them oldest-chunk-first so the final result reads in
// ascending address order end to end.
func (s *Stream) readBackward(n int) ([]byte, error) {
	var chunks [][]byte
	remaining := n
	for remaining > 0 {
		if s.pos <= 0 {
			if err := s.fetchBackward(); err != nil {
				return nil, err
			}
		}
		take := s.pos
		if take > remaining {
			take = remaining
		}
		chunks = append(chunks, s.buf[s.pos-take:s.pos])
		s.pos -= take
		remaining -= take
	}
	out := make([]byte, 0, n)
	for i := len(chunks) - 1; i >= 0; i-- {
		out = append(out, chunks[i]...)
	}
	return out, nil
}

// Close releases the stream's buffers.
func (s *Stream) Close() {
	s.buf = nil
}
