package ring

import (
	"bytes"

	"github.com/daedaluz/divelog/dcerr"
)

// WalkParams configures the two-pass backward dive enumeration of spec
// §4.4. First and Last are logbook entry *indices* (not addresses) in
// [0, EntryCount); EntryCount is the number of entry slots in the
// logbook ring (the ring's byte size divided by the entry stride). The caller (the device session) is responsible for spec
// §4.4 step 1: reading the configuration page, extracting First/Last/EOP
// and rejecting out-of-range-or-sentinel-only inputs before calling Walk
// (an all-sentinel, empty device is "success with zero dives" handled by
// the caller simply not calling Walk, or calling it with a zero count).
type WalkParams struct {
	EntryCount int
	EntrySize  int
	First, Last int

	ProfileRingBegin, ProfileRingEnd int
	EOP                              int

	// ReadLogbookEntry reads the EntrySize-byte logbook entry at index.
	ReadLogbookEntry func(index int) ([]byte, error)
	// ProfileStartOf extracts a dive's profile start pointer from its
	// logbook entry.
	ProfileStartOf func(entry []byte) int
	// ProfileEndOf, if set, extracts the entry's own declared profile
	// end pointer, compared against the running cursor purely to detect
	// and warn about broken continuity; it does not affect how many
	// bytes are actually read (the running cursor always wins, which is
	// what tolerates the gap - spec §4.4).
	ProfileEndOf func(entry []byte) int
	// IsUninitialised reports an all-0xFF (stale, zeroed) entry, skipped
	// with a warning in both passes.
	IsUninitialised func(entry []byte) bool

	// FingerprintOffset/Length locate the cutoff slice within the
	// concatenated (entry ++ profile) record.
	FingerprintOffset, FingerprintLength int
	// Fingerprint is the session's stored cutoff value; empty means no
	// cutoff (download everything the ring holds).
	Fingerprint []byte

	// NewProfileStream builds the backward ring.Stream anchored at EOP,
	// deferring ownership of its L3 view/page-size/max-packet wiring to
	// the caller.
	NewProfileStream func(eop int) *Stream

	OnWarning func(msg string)
	// Sink is the dive_sink contract: returning false stops the walk.
	Sink func(record, fingerprint []byte) bool

	// OnProgress, if set, reports monotone current/maximum byte counts
	// (spec §6's on_progress): once with (0, totalBytes) as soon as
	// pass A has sized the download, then once per delivered dive with
	// the cumulative bytes downloaded so far.
	OnProgress func(current, maximum int)
}

// indexBegin: the index-space ring Walk decrements
// through is always [0, EntryCount).
func (p WalkParams) indexBegin() int { return 0 }

// Walk runs the two-pass backward dive enumeration described in spec
// §4.4: Pass A sizes the profile buffer without downloading, Pass B
// downloads and delivers dives newest-first via Sink. A DataFormat error
// met in pass B after at least one dive was delivered is reported through
// OnWarning and Walk returns nil.
func Walk(p WalkParams) error {
	if p.EntryCount <= 0 {
		return nil
	}
	profileN := p.ProfileRingEnd - p.ProfileRingBegin
	count := Distance(p.First, p.Last, p.EntryCount, Empty) + 1

	actual, totalBytes := walkPassA(p, count, profileN)
	if actual == 0 {
		return nil
	}
	if p.OnProgress != nil {
		p.OnProgress(0, totalBytes)
	}

	return walkPassB(p, actual, totalBytes, profileN)
}

func (p WalkParams) inProfileRange(addr int) bool {
	return addr >= p.ProfileRingBegin && addr < p.ProfileRingEnd
}

// walkPassA sizes the download: how many of the newest `count` logbook
// entries actually fit within the profile ring's capacity.
func walkPassA(p WalkParams, count, profileN int) (actual, totalBytes int) {
	idx := p.Last
	previous := p.EOP
	for i := 0; i < count; i++ {
		entry, err := p.ReadLogbookEntry(idx)
		if err != nil {
			return actual, totalBytes
		}
		if p.IsUninitialised != nil && p.IsUninitialised(entry) {
			if p.OnWarning != nil {
				p.OnWarning("ring: skipping uninitialised logbook entry during sizing")
			}
			idx = Decrement(idx, 1, p.indexBegin(), p.EntryCount)
			continue
		}
		start := p.ProfileStartOf(entry)
		if !p.inProfileRange(start) {
			// Out-of-range pointer while sizing: stop here, keep what
			// fit so far (spec §8 P9's overflow truncation covers the
			// symmetric "ring is smaller than claimed" case the same
			// way).
			return actual, totalBytes
		}
		length := Distance(start, previous, profileN, Full)
		if totalBytes+length > profileN {
			return actual, totalBytes
		}
		totalBytes += length
		previous = start
		actual++
		idx = Decrement(idx, 1, p.indexBegin(), p.EntryCount)
	}
	return actual, totalBytes
}

// walkPassB re-walks the same `actual` newest logbook entries, this time
// downloading and delivering each dive to Sink.
func walkPassB(p WalkParams, actual, totalBytes, profileN int) error {
	buf := make([]byte, totalBytes)
	writePos := len(buf)
	stream := p.NewProfileStream(p.EOP)
	defer stream.Close()

	idx := p.Last
	previous := p.EOP
	delivered := 0
	var walkErr error

	for delivered < actual {
		entry, err := p.ReadLogbookEntry(idx)
		if err != nil {
			walkErr = err
			break
		}
		if p.IsUninitialised != nil && p.IsUninitialised(entry) {
			if p.OnWarning != nil {
				p.OnWarning("ring: skipping uninitialised logbook entry during download")
			}
			idx = Decrement(idx, 1, p.indexBegin(), p.EntryCount)
			continue
		}

		start := p.ProfileStartOf(entry)
		if !p.inProfileRange(start) {
			walkErr = dcerr.New(dcerr.DataFormat, "ring.Walk", nil)
			if p.OnWarning != nil {
				p.OnWarning("ring: out-of-range profile pointer, stopping")
			}
			break
		}
		if p.ProfileEndOf != nil {
			if end := p.ProfileEndOf(entry); end != previous && p.OnWarning != nil {
				p.OnWarning("ring: broken profile continuity, gap tolerated")
			}
		}

		length := Distance(start, previous, profileN, Full)
		if length > writePos {
			walkErr = dcerr.New(dcerr.DataFormat, "ring.Walk", nil)
			if p.OnWarning != nil {
				p.OnWarning("ring: profile buffer underrun, stopping")
			}
			break
		}

		data, err := stream.Read(length)
		if err != nil {
			walkErr = err
			break
		}
		writePos -= length
		copy(buf[writePos:writePos+length], data)

		record := make([]byte, 0, len(entry)+length)
		record = append(record, entry...)
		record = append(record, buf[writePos:writePos+length]...)

		var fp []byte
		if p.FingerprintLength > 0 && p.FingerprintOffset+p.FingerprintLength <= len(record) {
			fp = record[p.FingerprintOffset : p.FingerprintOffset+p.FingerprintLength]
		}
		if len(p.Fingerprint) > 0 && bytes.Equal(fp, p.Fingerprint) {
			break // fingerprint cutoff: this dive (and all older) already seen
		}

		if p.Sink != nil && !p.Sink(record, fp) {
			break
		}
		if p.OnProgress != nil {
			p.OnProgress(totalBytes-writePos, totalBytes)
		}
		previous = start
		delivered++
		idx = Decrement(idx, 1, p.indexBegin(), p.EntryCount)
	}
	if walkErr != nil && delivered > 0 && dcerr.KindOf(walkErr) == dcerr.DataFormat {
		// Dives already handed to Sink stay valid, so a late data-format
		// problem ends the walk with a warning rather than an error.
		if p.OnWarning != nil {
			p.OnWarning("ring: data format error after delivering dives: " + walkErr.Error())
		}
		return nil
	}
	return walkErr
}
