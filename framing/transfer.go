// Package framing is L2 of the download engine: a cancellable, retrying
// request/response exchange (spec §4.2) built over an iostream.Stream.
// Transfer is the shared contract; the per-family packet encoders/decoders
// (echo.go, acknak.go, lengthprefixed.go, ble.go, pelagic.go) are the
// single-attempt "packet" subroutines it retries.
package framing

import (
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/dcerr"
)

// PacketFunc performs one single-attempt encode-send-decode-receive cycle
// and returns the response payload, or an error classified as one of the
// dcerr.Kind values.
type PacketFunc func(cmd []byte) ([]byte, error)

// Options configures Transfer's retry behaviour. Policy must already be
// bounded (e.g. backoff.WithMaxRetries(backoff.NewConstantBackOff(d), n));
// Transfer stops retrying the moment Policy.NextBackOff returns
// backoff.Stop, which is how the "family-defined limit" of spec §4.2 is
// expressed without Transfer itself knowing a retry count.
type Options struct {
	// Policy supplies the sleep duration between retries, or
	// backoff.Stop to end the attempt loop.
	Policy backoff.BackOff

	// Cancelled is polled at the start of every send attempt (spec §5, §8
	// P6); a true result aborts immediately with dcerr.Cancelled.
	Cancelled func() bool

	// Purge, if set, discards pending input before each retry.
	Purge func() error

	// OnProtocolFailure is invoked once per Protocol-kind failure, before
	// the retry sleep, so the caller can grow its adaptive inter-packet
	// delay up to its own cap (spec §4.2). May be nil.
	OnProtocolFailure func()
}

// Transfer runs packet, retrying on Timeout and Protocol failures per
// opts.Policy; any other error kind (IO, Unsupported, DataFormat, ...) is
// returned immediately without retry, and a Cancelled check always takes
// precedence (spec §4.2, §7).
func Transfer(cmd []byte, opts *Options, packet PacketFunc) ([]byte, error) {
	for {
		if opts.Cancelled != nil && opts.Cancelled() {
			return nil, dcerr.New(dcerr.Cancelled, "framing.Transfer", nil)
		}

		resp, err := packet(cmd)
		if err == nil {
			return resp, nil
		}

		kind := dcerr.KindOf(err)
		if kind != dcerr.Timeout && kind != dcerr.Protocol {
			return nil, err
		}
		if kind == dcerr.Protocol && opts.OnProtocolFailure != nil {
			opts.OnProtocolFailure()
		}

		next := opts.Policy.NextBackOff()
		if next == backoff.Stop {
			return nil, err
		}
		if opts.Cancelled != nil && opts.Cancelled() {
			return nil, dcerr.New(dcerr.Cancelled, "framing.Transfer", nil)
		}
		if opts.Purge != nil {
			if perr := opts.Purge(); perr != nil {
				return nil, perr
			}
		}
		sleep(next)
	}
}

// sleep is a var so tests can make retry delays instant.
var sleep = time.Sleep

// NewRetryPolicy builds the bounded constant-interval backoff policy every
// family uses: sleep d between attempts, stop after maxRetries retries.
func NewRetryPolicy(d time.Duration, maxRetries int) backoff.BackOff {
	c := backoff.NewConstantBackOff(d)
	return backoff.WithMaxRetries(c, uint64(maxRetries))
}
