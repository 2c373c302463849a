// HIDStream is a second, minimal Stream implementation: a USB-HID adapter
// built on github.com/google/gousb. Per spec §1 transport drivers are
// external collaborators consumed only through the Stream contract, so this
// stays deliberately thin (interrupt IN/OUT transfers, no report parsing)
// rather than a full HID stack.
package iostream

import (
	"context"
	"time"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/google/gousb"
)

// HIDStream wraps one USB-HID interface's interrupt IN/OUT endpoints as a
// Stream. Line-control operations (DTR/RTS/break) are Unsupported: HID has
// no analogue.
type HIDStream struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	cfg     *gousb.Config
	intf    *gousb.Interface
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	timeout time.Duration
}

// OpenHID opens the first device matching vid/pid, claims ifaceNum, and
// binds the IN endpoint numbered inEP and the OUT endpoint numbered outEP.
func OpenHID(vid, pid gousb.ID, ifaceNum, inEP, outEP int) (*HIDStream, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, dcerr.New(dcerr.IO, "iostream.OpenHID", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, dcerr.New(dcerr.IO, "iostream.OpenHID", gousb.ErrorNotFound)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, dcerr.New(dcerr.IO, "iostream.OpenHID", err)
	}
	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, dcerr.New(dcerr.IO, "iostream.OpenHID", err)
	}
	intf, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, dcerr.New(dcerr.IO, "iostream.OpenHID", err)
	}
	in, err := intf.InEndpoint(inEP)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, dcerr.New(dcerr.IO, "iostream.OpenHID", err)
	}
	out, err := intf.OutEndpoint(outEP)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, dcerr.New(dcerr.IO, "iostream.OpenHID", err)
	}
	return &HIDStream{ctx: ctx, dev: dev, cfg: cfg, intf: intf, in: in, out: out, timeout: BlockForever}, nil
}

func (h *HIDStream) Configure(cfg Config) error { return nil }

func (h *HIDStream) SetTimeout(d time.Duration) error {
	h.timeout = d
	return nil
}

func (h *HIDStream) SetDTR(on bool) error   { return dcerr.New(dcerr.Unsupported, "iostream.HIDStream.SetDTR", nil) }
func (h *HIDStream) SetRTS(on bool) error   { return dcerr.New(dcerr.Unsupported, "iostream.HIDStream.SetRTS", nil) }
func (h *HIDStream) SetBreak(on bool) error { return dcerr.New(dcerr.Unsupported, "iostream.HIDStream.SetBreak", nil) }

func (h *HIDStream) GetLines() (Lines, error) { return Lines{}, nil }

func (h *HIDStream) Poll(d time.Duration) error { return nil }

func (h *HIDStream) readCtx() (context.Context, context.CancelFunc) {
	if h.timeout < 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), h.timeout)
}

func (h *HIDStream) Read(p []byte) (int, error) {
	ctx, cancel := h.readCtx()
	defer cancel()
	n, err := h.in.ReadContext(ctx, p)
	if err != nil {
		return n, dcerr.New(dcerr.IO, "iostream.HIDStream.Read", err)
	}
	return n, nil
}

func (h *HIDStream) Write(p []byte) (int, error) {
	n, err := h.out.Write(p)
	if err != nil {
		return n, dcerr.New(dcerr.IO, "iostream.HIDStream.Write", err)
	}
	return n, nil
}

func (h *HIDStream) Flush() error                    { return nil }
func (h *HIDStream) Purge(dir PurgeDirection) error   { return nil }
func (h *HIDStream) Sleep(d time.Duration)            { time.Sleep(d) }
func (h *HIDStream) Available() (int, error)          { return 0, nil }
func (h *HIDStream) Ioctl(req uintptr, data []byte) error {
	return dcerr.New(dcerr.Unsupported, "iostream.HIDStream.Ioctl", nil)
}

func (h *HIDStream) Close() error {
	h.intf.Close()
	h.cfg.Close()
	h.dev.Close()
	h.ctx.Close()
	return nil
}
