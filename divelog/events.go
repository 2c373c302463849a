package divelog

import "log/slog"

// Events bundles the sink contract exposed to the caller (spec §6).
// Every field is optional; a nil callback is simply not invoked.
type Events struct {
	// Logger receives structured diagnostics the session itself emits
	// (handshake/model match, download start and completion) and, when
	// OnWarning is nil, the warnings ring.Walk would otherwise have
	// nowhere to go. Defaults to slog.Default().
	Logger *slog.Logger

	// OnDevInfo reports the matched model, firmware bytes, and decoded
	// serial number once per session, after the handshake.
	OnDevInfo func(model string, firmware []byte, serial string)

	// OnVendor reports the raw version record bytes as received,
	// before model matching.
	OnVendor func(raw []byte)

	// OnProgress reports monotone current/maximum byte counts;
	// maximum may increase as ring-extraction planning refines it.
	OnProgress func(current, maximum int)

	// OnWaiting is emitted while the session is stalled waiting for the
	// first byte of an unsolicited-push family.
	OnWaiting func()

	// OnClock is emitted once when a family exposes device time,
	// reporting the host's and device's tick counts.
	OnClock func(systemTicks, deviceTicks int64)

	// OnWarning surfaces non-fatal diagnostics from ring.Walk
	// (uninitialised entries, broken continuity, padding skips).
	OnWarning func(msg string)

	// OnDive is the dive_sink contract of spec §6: called once per
	// assembled dive record in most-recent-first order. Returning false
	// stops the walk cleanly; dives already delivered remain valid.
	OnDive Sink
}

// Dive is one assembled dive record handed to the caller's sink:
// record is (logbook entry ++ profile bytes), fingerprint is the
// designated cutoff slice within it (spec §3).
type Dive struct {
	Record      []byte
	Fingerprint []byte
}

// Sink is the dive_sink contract of spec §6: returning false stops the
// walk cleanly, with dives already delivered remaining valid.
type Sink func(d Dive) bool
