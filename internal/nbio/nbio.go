// Package nbio classifies non-blocking fd reads and writes into a small
// algebra: ready, would-block, or EOF. It is the only place in the host
// that looks at errno — every other layer treats the result of Read/Write
// as data, not as a syscall outcome.
package nbio

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// SetNonblock puts f's underlying fd into non-blocking mode.
func SetNonblock(f *os.File) error {
	return unix.SetNonblock(int(f.Fd()), true)
}

// Read reads from f into buf without blocking.
//
//   - n > 0:    n bytes were read
//   - n == 0, err == nil: EOF
//   - n == 0, err == ErrWouldBlock: no data available right now
//
// Any other error is fatal and must be propagated by the caller.
func Read(f *os.File, buf []byte) (int, error) {
	n, err := unix.Read(int(f.Fd()), buf)
	if err != nil {
		if isWouldBlock(err) {
			return 0, ErrWouldBlock
		}
		if errors.Is(err, unix.EIO) {
			// Linux PTY masters return EIO, not a 0-byte read, once the
			// slave side has no more writers. Treat it as ordinary EOF.
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// Write writes buf to f without blocking. Same algebra as Read: a
// positive n means bytes were accepted, ErrWouldBlock means try again
// later, and a 0,nil return means the write accepted nothing (rare, but
// distinct from would-block).
func Write(f *os.File, buf []byte) (int, error) {
	n, err := unix.Write(int(f.Fd()), buf)
	if err != nil {
		if isWouldBlock(err) {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

// ErrWouldBlock is returned by Read/Write when the operation would have
// blocked. It is the Go equivalent of the Rust driver's `None` case.
var ErrWouldBlock = errors.New("nbio: would block")

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
