package divelog

import (
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
)

// VersionPattern matches a device's raw version record against one
// entry of a family's model table (spec §4.5): Pattern bytes equal to
// 0x00 are wildcards, matching any byte of raw at that position; the
// first contiguous run of wildcard positions is taken as the encoded
// firmware version.
type VersionPattern struct {
	Pattern     []byte
	Model       string
	Layout      *Layout
	FirmwareMin uint32
}

// MatchVersion finds the first entry of table whose Pattern matches
// raw (same length, non-wildcard bytes equal), returning its model
// name, layout, and the firmware bytes carried in the pattern's first
// wildcard run.
func MatchVersion(raw []byte, table []VersionPattern) (model string, firmware []byte, layout *Layout, err error) {
	for _, p := range table {
		if len(p.Pattern) != len(raw) {
			continue
		}
		ok := true
		wildStart, wildLen := -1, 0
		curStart, curLen := -1, 0
		for i, b := range p.Pattern {
			if b == 0x00 {
				if curStart < 0 {
					curStart = i
				}
				curLen++
				continue
			}
			if raw[i] != b {
				ok = false
				break
			}
			if curStart >= 0 && wildStart < 0 {
				wildStart, wildLen = curStart, curLen
			}
			curStart, curLen = -1, 0
		}
		if !ok {
			continue
		}
		if curStart >= 0 && wildStart < 0 {
			wildStart, wildLen = curStart, curLen
		}
		var fw []byte
		if wildStart >= 0 {
			fw = raw[wildStart : wildStart+wildLen]
		}
		return p.Model, fw, p.Layout, nil
	}
	return "", nil, nil, dcerr.New(dcerr.Unsupported, "divelog.MatchVersion", nil)
}

// Family is the table-driven description of one vendor protocol (spec
// §9: "reify each family as a data table plus a small set of closures
// rather than a type hierarchy"). A Family is immutable, built once at
// package-init time by one of the family_*.go files and handed to
// Open by name via LookupFamily.
type Family struct {
	Name string

	LineConfig   iostream.Config
	InitialSleep time.Duration
	Purge        iostream.PurgeDirection

	VersionTable []VersionPattern

	// Handshake sends whatever init frame(s) this family requires and
	// returns the raw version record.
	Handshake func(s iostream.Stream) ([]byte, error)

	// NewPacket builds the framing.PacketFunc used for every memory
	// read of the session. Called once per Session at Open time, not
	// per read, so a family whose coder carries cross-read state (the
	// BLE command sequence counter, for instance) keeps that state for
	// the life of the session instead of resetting on every fetch.
	NewPacket func(s iostream.Stream) framing.PacketFunc

	// RetryPolicy builds a fresh backoff.BackOff for one Transfer call;
	// families configure their own bounded retry count here (spec
	// §4.2), Transfer itself has no notion of a count.
	RetryPolicy func() backoff.BackOff

	// BuildReadCommand encodes a memory read of size bytes at address
	// into this family's command bytes.
	BuildReadCommand func(address, size int) []byte

	// Quit sends the family's close/quit frame, if any; nil means
	// none is required.
	Quit func(s iostream.Stream) error

	// TimeSync sends the current wall-clock components and validates
	// the response code (spec §4.5).
	TimeSync func(s iostream.Stream, t time.Time) error

	// HandshakeRefreshEvery, if non-zero, re-runs Handshake every N
	// reads during a download to keep a BLE link alive (spec §4.5).
	HandshakeRefreshEvery int

	// AdaptiveDelayCap bounds the inter-packet delay growth Transfer's
	// OnProtocolFailure hook drives (spec §4.2).
	AdaptiveDelayCap time.Duration
	// AdaptiveDelayStep is added to the session's inter-packet delay on
	// every Protocol failure, capped at AdaptiveDelayCap.
	AdaptiveDelayStep time.Duration
}

var familyRegistry = map[string]*Family{}

// RegisterFamily adds f to the package-level registry under f.Name,
// matching spec §9's "new families can be added as data without
// touching the engine" design note.
func RegisterFamily(f *Family) {
	familyRegistry[f.Name] = f
}

// LookupFamily returns the registered family named name, or nil.
func LookupFamily(name string) *Family {
	return familyRegistry[name]
}
