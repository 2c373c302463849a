// Package memview is L3 of the download engine: a paged, cached view over
// device flash (spec §4.3), built on top of whatever L2 transfer a family
// wires in as its Fetcher.
package memview

import (
	"github.com/daedaluz/divelog/dcerr"
)

// Fetcher performs one L2-backed read of size bytes starting at address,
// where size is an exact multiple of the page size governing that
// address (spec §4.3: "reads are satisfied by one or more L2 transfers").
// It is supplied by the device session, built from a family's framing.
type Fetcher func(address, size int) ([]byte, error)

// FastFetcher is the optional "fast" multi-page read a family may expose:
// like Fetcher, but additionally returns each page's checksum as read off
// the wire, so View can verify them individually rather than trusting the
// whole batch (spec §4.3).
type FastFetcher func(address, size int) (data []byte, pageChecksums [][]byte, err error)

// Config describes one device's paging.
type Config struct {
	PageSize int
	// MultiPage bounds how many pages one Fetcher call may request.
	MultiPage int

	// HighMemoryStart, if non-zero, is the address at which the device
	// switches to its high memory region (spec §4.3's "high memory
	// split"). HighMemoryPageSize is that region's page size; 0 means no
	// split and every address is RegionLow.
	HighMemoryStart    int
	HighMemoryPageSize int

	// PageChecksum, required only when a FastFetcher is passed to
	// NewView, computes the
	// checksum of one fetched page for comparison against the
	// checksum FastFetcher reports for it.
	PageChecksum func(page []byte) []byte
}

// View is the L3 paged memory view.
type View struct {
	cfg   Config
	fetch Fetcher
	fast  FastFetcher
	cache pageCache
}

// NewView builds a View. fast may be nil; fetch must not be.
func NewView(cfg Config, fetch Fetcher, fast FastFetcher) *View {
	return &View{cfg: cfg, fetch: fetch, fast: fast}
}

// Invalidate drops the page cache; called by the session after any write
// to the device.
func (v *View) Invalidate() { v.cache.invalidate() }

func (v *View) region(address int) Region {
	if v.cfg.HighMemoryStart != 0 && address >= v.cfg.HighMemoryStart {
		return RegionHigh
	}
	return RegionLow
}

func (v *View) pageSize(region Region) int {
	if region == RegionHigh && v.cfg.HighMemoryPageSize != 0 {
		return v.cfg.HighMemoryPageSize
	}
	return v.cfg.PageSize
}

// Read returns size bytes starting at address. Both must be aligned to the
// page size governing address's region.
func (v *View) Read(address, size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	region := v.region(address)
	pageSize := v.pageSize(region)
	if pageSize <= 0 || address%pageSize != 0 || size%pageSize != 0 {
		return nil, dcerr.New(dcerr.InvalidArgs, "memview.View.Read", nil)
	}

	out := make([]byte, 0, size)
	off := 0
	for off < size {
		addr := address + off
		if v.region(addr) != region {
			// A read must not cross the high-memory split in one call;
			// callers size their requests accordingly.
			return nil, dcerr.New(dcerr.InvalidArgs, "memview.View.Read", nil)
		}
		pageIndex := addr / pageSize

		if cached, ok := v.cache.get(region, pageIndex); ok {
			out = append(out, cached...)
			off += pageSize
			continue
		}

		batchPages := 1
		max := v.cfg.MultiPage
		if max < 1 {
			max = 1
		}
		for batchPages < max && off+batchPages*pageSize < size {
			nextAddr := addr + batchPages*pageSize
			if v.region(nextAddr) != region {
				break
			}
			if _, ok := v.cache.get(region, pageIndex+batchPages); ok {
				break
			}
			batchPages++
		}
		batchSize := batchPages * pageSize

		data, err := v.fetchBatch(addr, batchSize, pageSize)
		if err != nil {
			return nil, err
		}
		v.cache.put(region, pageIndex, pageSize, data)
		out = append(out, data...)
		off += batchSize
	}
	return out, nil
}

func (v *View) fetchBatch(address, size, pageSize int) ([]byte, error) {
	if v.fast == nil {
		return v.fetch(address, size)
	}
	data, checksums, err := v.fast(address, size)
	if err != nil {
		return nil, err
	}
	if len(data) != size || len(checksums) != size/pageSize {
		return nil, dcerr.New(dcerr.Protocol, "memview.View.fetchBatch", nil)
	}
	if v.cfg.PageChecksum != nil {
		for i, want := range checksums {
			page := data[i*pageSize : (i+1)*pageSize]
			if string(v.cfg.PageChecksum(page)) != string(want) {
				return nil, dcerr.New(dcerr.Protocol, "memview.View.fetchBatch", nil)
			}
		}
	}
	return data, nil
}
