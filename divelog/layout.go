package divelog

import (
	"time"

	"github.com/daedaluz/divelog/memview"
)

// Direction is the logbook ring's traversal direction flag (spec §3):
// whether the ring's own index order already runs newest-first, or
// whether it is stored in entry order and must be walked backward by
// the session. Session.Download does not read this field: it walks every
// layout's logbook backward from Last.
type Direction int

const (
	StoredOrder Direction = iota
	NewestFirstIndexed
)

// EndPointerMode is spec §9 Open Question 1: some families compute the
// logbook's "end" pointer as last+1 (wrap-aware), others take last
// as-is. This is never unified across families — it is carried as data
// on Layout and read by the session when it derives Last for ring.Walk.
type EndPointerMode int

const (
	EndPointerLast EndPointerMode = iota
	EndPointerLastPlusOne
)

// SerialMode selects how a decoded serial number's raw bytes are
// interpreted (spec §3 "serial mode flag").
type SerialMode int

const (
	SerialBinary SerialMode = iota
	SerialBCD
	SerialPackedBCD
)

// HalfDuplex carries the RTS-flip pre/post-send sleep durations a small
// number of families require between writing a command and reading its
// response (spec §9 Open Question 4). Zero value means no RTS flip.
type HalfDuplex struct {
	Enabled      bool
	RTSPreDelay  time.Duration
	RTSPostDelay time.Duration
}

// Layout is the constant per-model descriptor of spec §3: everything
// ring.Walk and memview.View need to interpret one device's flash that
// isn't itself protocol framing (that lives on Family). Layout values
// are immutable and shared by pointer from a family's version table.
type Layout struct {
	Name string

	TotalSize int

	LogbookBegin, LogbookEnd int
	ProfileBegin, ProfileEnd int
	EntrySize                int

	Direction      Direction
	EndPointerMode EndPointerMode
	SerialMode     SerialMode

	// LogbookPadding is spec §9 Open Question 3: a per-model constant
	// number of bytes that follow every logbook entry and are skipped:
	// the session steps through the logbook ring with a stride of
	// EntrySize+LogbookPadding. Padding that occurs only at page
	// boundaries is not modelled. Zero (the default) means no padding.
	LogbookPadding int

	PageSize       int
	MultiPagePages int

	// HighMemoryStart/HighMemoryPageSize configure memview.Config's
	// high-memory split; zero HighMemoryStart means no split.
	HighMemoryStart    int
	HighMemoryPageSize int

	HalfDuplex HalfDuplex

	// FingerprintOffset/Length locate the cutoff slice within a dive
	// record (logbook entry ++ profile bytes), per spec §3.
	FingerprintOffset, FingerprintLength int

	// ProfileStartOf/ProfileEndOf/IsUninitialised decode one logbook
	// entry; ProfileEndOf may be nil if the family never lets Walk
	// cross-check continuity.
	ProfileStartOf  func(entry []byte) int
	ProfileEndOf    func(entry []byte) int
	IsUninitialised func(entry []byte) bool

	// DecodeSerial turns the raw version record read by Open's handshake
	// into a human-readable serial number string; nil means no serial.
	DecodeSerial func(raw []byte) string

	// Ring pointers (first/last/EOP) live at a fixed offset inside one
	// config page, per spec §3's "location and encoding of ring
	// pointers (offset inside a config page ...)". PointerSize is the
	// byte width of one pointer field; DecodePointer turns PointerSize
	// raw bytes into an address.
	ConfigPageAddress                  int
	ConfigPageSize                     int
	FirstOffset, LastOffset, EOPOffset int
	PointerSize                        int
	DecodePointer                      func(raw []byte) int
}

// ReadPointers reads this layout's config page through view and decodes
// the first/last/EOP ring pointers from it.
func (l *Layout) ReadPointers(view *memview.View) (first, last, eop int, err error) {
	page, err := view.Read(l.ConfigPageAddress, l.ConfigPageSize)
	if err != nil {
		return 0, 0, 0, err
	}
	first = l.DecodePointer(page[l.FirstOffset : l.FirstOffset+l.PointerSize])
	last = l.DecodePointer(page[l.LastOffset : l.LastOffset+l.PointerSize])
	eop = l.DecodePointer(page[l.EOPOffset : l.EOPOffset+l.PointerSize])
	return first, last, eop, nil
}
