package framing

import (
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/iostream"
)

// readFull reads exactly len(buf) bytes from s, looping over short reads the
// way every family's packet decoder needs to (a Stream's Read has the same
// "maybe less than requested" contract as io.Reader).
func readFull(s iostream.Stream, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := s.Read(buf[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			return dcerr.New(dcerr.IO, "framing.readFull", nil)
		}
		total += n
	}
	return nil
}

func writeFull(s iostream.Stream, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := s.Write(buf[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			return dcerr.New(dcerr.IO, "framing.writeFull", nil)
		}
		total += n
	}
	return nil
}
