// Package divelog is L5 of the download engine: opening a transport
// under a registered family's line settings, handshaking and matching
// the device's version against that family's model table, installing
// the resulting Layout, and driving L2-L4 to enumerate dives into the
// caller's sink (spec §4.5).
package divelog

import (
	"bytes"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
	"github.com/daedaluz/divelog/memview"
	"github.com/daedaluz/divelog/ring"
)

// Session is a per-download state: the owned transport, the matched
// family and layout, the stored fingerprint, and bookkeeping for
// protocol features (inter-packet delay, handshake-refresh counter,
// the page cache behind View). Created by Open, destroyed by Close;
// single-threaded use per spec §5, except Cancel which is safe to call
// from any goroutine.
type Session struct {
	transport iostream.Stream
	family    *Family
	layout    *Layout
	events    Events
	logger    *slog.Logger

	model    string
	firmware []byte
	serial   string
	raw      []byte

	fingerprint []byte

	view     *memview.View
	packetFn framing.PacketFunc

	cancelled atomic.Bool

	interPacketDelay time.Duration
	readsSinceRefresh int
}

// Open configures the transport per familyName's line settings,
// handshakes, reads and matches the version record, and installs the
// resulting layout (spec §4.5). fingerprint, if non-empty, is the
// previously stored cutoff value for Download's incremental walk.
func Open(transport iostream.Stream, familyName string, fingerprint []byte, events Events) (*Session, error) {
	fam := LookupFamily(familyName)
	if fam == nil {
		return nil, dcerr.New(dcerr.Unsupported, "divelog.Open", nil)
	}

	if err := transport.Configure(fam.LineConfig); err != nil {
		return nil, err
	}
	if fam.InitialSleep > 0 {
		transport.Sleep(fam.InitialSleep)
	}
	if err := transport.Purge(fam.Purge); err != nil {
		return nil, err
	}

	logger := events.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{transport: transport, family: fam, fingerprint: fingerprint, events: events, logger: logger}
	s.packetFn = fam.NewPacket(transport)

	raw, err := fam.Handshake(transport)
	if err != nil {
		logger.Warn("divelog: handshake failed", "family", familyName, "error", err)
		transport.Close()
		return nil, err
	}
	s.raw = raw
	if events.OnVendor != nil {
		events.OnVendor(raw)
	}

	model, firmware, layout, err := MatchVersion(raw, fam.VersionTable)
	if err != nil {
		logger.Warn("divelog: no version pattern matched", "family", familyName)
		transport.Close()
		return nil, err
	}
	s.model, s.firmware, s.layout = model, firmware, layout

	if layout.DecodeSerial != nil {
		s.serial = layout.DecodeSerial(raw)
	}
	if events.OnDevInfo != nil {
		events.OnDevInfo(model, firmware, s.serial)
	}
	logger.Info("divelog: session opened", "family", familyName, "model", model, "serial", s.serial)

	s.view = memview.NewView(memview.Config{
		PageSize:           layout.PageSize,
		MultiPage:          layout.MultiPagePages,
		HighMemoryStart:    layout.HighMemoryStart,
		HighMemoryPageSize: layout.HighMemoryPageSize,
	}, s.fetch, nil)

	return s, nil
}

// Cancel requests cancellation of the in-progress (or next) operation
// (spec §5, §8 P6). Safe to call from any goroutine.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

func (s *Session) isCancelled() bool {
	return s.cancelled.Load()
}

func (s *Session) growDelay() {
	s.interPacketDelay += s.family.AdaptiveDelayStep
	if s.family.AdaptiveDelayCap > 0 && s.interPacketDelay > s.family.AdaptiveDelayCap {
		s.interPacketDelay = s.family.AdaptiveDelayCap
	}
}

// fetch is the memview.Fetcher built from this session's family:
// encode a read command, run it through framing.Transfer with the
// family's retry policy, honouring a half-duplex RTS flip around the
// whole (possibly-retried) exchange when the layout calls for one. Every
// attempt is preceded by the session's adaptive inter-packet delay, which
// growDelay lengthens on each protocol failure up to the family's cap.
func (s *Session) fetch(address, size int) ([]byte, error) {
	if s.family.HandshakeRefreshEvery > 0 {
		s.readsSinceRefresh++
		if s.readsSinceRefresh >= s.family.HandshakeRefreshEvery {
			s.readsSinceRefresh = 0
			if _, err := s.family.Handshake(s.transport); err != nil {
				return nil, err
			}
		}
	}

	cmd := s.family.BuildReadCommand(address, size)
	opts := &framing.Options{
		Policy:            s.family.RetryPolicy(),
		Cancelled:         s.isCancelled,
		OnProtocolFailure: s.growDelay,
	}

	if s.layout.HalfDuplex.Enabled {
		if err := s.transport.SetRTS(true); err != nil {
			return nil, err
		}
		s.transport.Sleep(s.layout.HalfDuplex.RTSPreDelay)
	}
	packet := func(cmd []byte) ([]byte, error) {
		if s.interPacketDelay > 0 {
			s.transport.Sleep(s.interPacketDelay)
		}
		return s.packetFn(cmd)
	}
	resp, err := framing.Transfer(cmd, opts, packet)
	if s.layout.HalfDuplex.Enabled {
		s.transport.Sleep(s.layout.HalfDuplex.RTSPostDelay)
		s.transport.SetRTS(false)
	}
	return resp, err
}

// Download drives the two-pass ring walk (spec §4.4) for this
// session's layout, delivering dives to events.OnDive most-recent-first
// and reporting progress via events.OnProgress.
func (s *Session) Download() error {
	first, last, eop, err := s.layout.ReadPointers(s.view)
	if err != nil {
		return err
	}

	stride := s.layout.EntrySize + s.layout.LogbookPadding
	entryCount := (s.layout.LogbookEnd - s.layout.LogbookBegin) / stride

	if first < 0 || first >= entryCount || last < 0 || last >= entryCount {
		if last == s.layout.DecodePointer(bytes.Repeat([]byte{0xFF}, s.layout.PointerSize)) {
			return nil // empty device: all-0xFF last pointer, zero dives
		}
		return dcerr.New(dcerr.DataFormat, "divelog.Session.Download", nil)
	}

	lastIdx := last
	if s.layout.EndPointerMode == EndPointerLastPlusOne {
		lastIdx = ring.Increment(last, 1, 0, entryCount)
	}

	maxPacket := s.layout.MultiPagePages * s.layout.PageSize
	if maxPacket <= 0 {
		maxPacket = s.layout.PageSize
	}

	params := ring.WalkParams{
		EntryCount: entryCount,
		EntrySize:  s.layout.EntrySize,
		First:      first,
		Last:       lastIdx,

		ProfileRingBegin: s.layout.ProfileBegin,
		ProfileRingEnd:   s.layout.ProfileEnd,
		EOP:              eop,

		ReadLogbookEntry: func(index int) ([]byte, error) {
			return s.readLogbookEntry(index, stride)
		},
		ProfileStartOf:  s.layout.ProfileStartOf,
		ProfileEndOf:    s.layout.ProfileEndOf,
		IsUninitialised: s.layout.IsUninitialised,

		FingerprintOffset: s.layout.FingerprintOffset,
		FingerprintLength: s.layout.FingerprintLength,
		Fingerprint:       s.fingerprint,

		NewProfileStream: func(eop int) *ring.Stream {
			// ring.Stream's start is the address of the last reachable
			// byte (inclusive), while EOP is the one-past-the-end
			// pointer Distance already treats as exclusive everywhere
			// else in this walk; step it back by one byte here rather
			// than changing Distance's convention.
			last := ring.Decrement(eop, 1, s.layout.ProfileBegin, s.layout.ProfileEnd)
			return ring.NewStream(s.view, s.layout.ProfileBegin, s.layout.ProfileEnd,
				s.layout.PageSize, maxPacket, ring.Backward, last, nil)
		},

		OnWarning: s.warn,
		Sink: func(record, fp []byte) bool {
			if s.events.OnDive == nil {
				return true
			}
			return s.events.OnDive(Dive{Record: record, Fingerprint: fp})
		},
		OnProgress: s.events.OnProgress,
	}

	s.logger.Info("divelog: download starting", "model", s.model)
	err = ring.Walk(params)
	if err != nil {
		s.logger.Warn("divelog: download stopped early", "model", s.model, "error", err)
	} else {
		s.logger.Info("divelog: download complete", "model", s.model)
	}
	return err
}

// warn is ring.Walk's OnWarning sink: the caller's own callback if set,
// otherwise the session's logger, so a warning is never simply dropped.
func (s *Session) warn(msg string) {
	if s.events.OnWarning != nil {
		s.events.OnWarning(msg)
		return
	}
	s.logger.Warn("divelog: " + msg)
}

// readLogbookEntry returns the EntrySize-byte logbook entry at index,
// discarding any LogbookPadding bytes that follow it within the stride
// (spec §9 Open Question 3). memview.View.Read requires a page-aligned
// address and a page-multiple size, but index*stride rarely lands on a
// page boundary, so this fetches the page(s) spanning the entry and
// slices the result down to just the entry's own bytes.
func (s *Session) readLogbookEntry(index, stride int) ([]byte, error) {
	pageSize := s.layout.PageSize
	addr := s.layout.LogbookBegin + index*stride
	pageAddr := (addr / pageSize) * pageSize
	entryEnd := addr + s.layout.EntrySize
	pageEnd := ((entryEnd + pageSize - 1) / pageSize) * pageSize

	page, err := s.view.Read(pageAddr, pageEnd-pageAddr)
	if err != nil {
		return nil, err
	}
	off := addr - pageAddr
	return page[off : off+s.layout.EntrySize], nil
}

// TimeSync sends the current wall-clock components and validates the
// single-byte response code (spec §4.5).
func (s *Session) TimeSync(t time.Time) error {
	if s.family.TimeSync == nil {
		return dcerr.New(dcerr.Unsupported, "divelog.Session.TimeSync", nil)
	}
	err := s.family.TimeSync(s.transport, t)
	s.view.Invalidate()
	if err == nil && s.events.OnClock != nil {
		s.events.OnClock(time.Now().UnixNano(), t.UnixNano())
	}
	return err
}

// Close sends the family's quit frame, if any, then tears down the
// transport (spec §4.5).
func (s *Session) Close() error {
	var quitErr error
	if s.family.Quit != nil {
		quitErr = s.family.Quit(s.transport)
	}
	closeErr := s.transport.Close()
	if quitErr != nil {
		return quitErr
	}
	return closeErr
}

// Model, Firmware, Serial report the handshake's matched identity.
func (s *Session) Model() string    { return s.model }
func (s *Session) Firmware() []byte { return s.firmware }
func (s *Session) Serial() string   { return s.serial }
