// Package circularbuf implements the fixed-capacity ring buffer that the
// HTTP worker multiplexes between a socket, a destination file, and an
// optional MD5 accumulator. It is the lowest-level primitive in the
// acquire-method HTTP transport: everything above it (ServerState, the
// readiness pump, the worker loop) moves bytes only through Buffer values.
package circularbuf

import (
	"crypto/md5" //nolint:gosec // digest is a protocol requirement, not used for security
	"encoding/hex"
	"errors"
	"hash"
	"time"

	"golang.org/x/sys/unix"
)

// Buffer is a fixed-size ring with logical, monotonically increasing
// read/write cursors. InP-OutP is always in [0, Size]; InP==OutP means
// empty, InP-OutP==Size means full.
type Buffer struct {
	buf  []byte
	size uint64

	inP  uint64
	outP uint64

	outQueue []byte
	strPos   int

	hasLimit bool
	maxGet   uint64

	md5 hash.Hash

	// Start is set the instant InP first advances from 0, so callers can
	// compute a transfer rate over the life of the buffer.
	Start time.Time
}

// New allocates a ring of the given capacity. withMD5 attaches an MD5
// accumulator that is fed every byte drained by WriteToFD.
func New(size int, withMD5 bool) *Buffer {
	b := &Buffer{
		buf:  make([]byte, size),
		size: uint64(size),
	}
	if withMD5 {
		b.md5 = md5.New() //nolint:gosec
	}
	b.Reset()
	return b
}

// Reset returns the buffer to its default empty state. If an MD5
// accumulator is attached, it is replaced with a fresh one.
func (b *Buffer) Reset() {
	b.inP = 0
	b.outP = 0
	b.strPos = 0
	b.hasLimit = false
	b.maxGet = 0
	b.outQueue = nil
	b.Start = time.Time{}
	if b.md5 != nil {
		b.md5 = md5.New() //nolint:gosec
	}
}

// ResetMD5 discards any bytes already hashed and starts a fresh digest.
// Used when the worker loop begins a new destination file.
func (b *Buffer) ResetMD5() {
	b.md5 = md5.New() //nolint:gosec
}

// MD5Sum returns the hex digest of everything drained through WriteToFD
// since the buffer (or its digest) was last reset. Returns "" if no
// accumulator is attached.
func (b *Buffer) MD5Sum() string {
	if b.md5 == nil {
		return ""
	}
	return hex.EncodeToString(b.md5.Sum(nil))
}

// HashBytes feeds bytes directly into the MD5 accumulator without going
// through the ring. Used to pre-seed the digest with the on-disk prefix of
// a file being resumed.
func (b *Buffer) HashBytes(p []byte) {
	if b.md5 != nil {
		b.md5.Write(p) //nolint:errcheck // hash.Hash.Write never fails
	}
}

// leftRead returns the number of contiguous bytes available to fill
// starting at InP, bounded by capacity and by the physical wrap point.
func (b *Buffer) leftRead() uint64 {
	limit := b.size - (b.inP - b.outP)
	space := b.size - (b.inP % b.size)
	if space < limit {
		return space
	}
	return limit
}

// leftWrite returns the number of contiguous bytes available to drain
// starting at OutP, bounded by what is logically present, by the
// physical wrap point, and, when a limit is set, by MaxGet — otherwise a
// single write could carry OutP straight past MaxGet without IsLimit ever
// seeing the exact-equality point.
func (b *Buffer) leftWrite() uint64 {
	avail := b.inP - b.outP
	if b.hasLimit && b.maxGet-b.outP < avail {
		avail = b.maxGet - b.outP
	}
	space := b.size - (b.outP % b.size)
	if space < avail {
		return space
	}
	return avail
}

// ReadSpace reports whether the ring has unused capacity.
func (b *Buffer) ReadSpace() bool {
	return b.inP-b.outP != b.size
}

// WriteSpace reports whether there are drainable bytes, counting both the
// ring itself and any pending output-queue bytes not yet copied in.
func (b *Buffer) WriteSpace() bool {
	return b.outP != b.inP || len(b.outQueue) != b.strPos
}

// ReadFromFD performs one non-blocking drain of fd into the ring, looping
// until the ring fills or the fd would block. Returns an error for which
// IsEOF is true when the peer has closed its end, or another error on a
// hard I/O failure. A nil error
// covers both "read some bytes" and "would block with no progress".
func (b *Buffer) ReadFromFD(fd int) error {
	for {
		if b.inP-b.outP == b.size {
			return nil
		}
		n, err := unix.Read(fd, b.buf[b.inP%b.size:b.inP%b.size+b.leftRead()])
		if n == 0 && err == nil {
			return errEOF
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return nil
			}
			return err
		}
		if b.inP == 0 {
			b.Start = time.Now()
		}
		b.inP += uint64(n)
	}
}

// errEOF is returned by ReadFromFD when the peer closed the connection
// (read returned 0 with no error), mirroring CircleBuf::Read's false
// return for a graceful close.
var errEOF = errors.New("circularbuf: eof")

// IsEOF reports whether err is the sentinel ReadFromFD returns on a
// graceful peer close.
func IsEOF(err error) bool { return errors.Is(err, errEOF) }

// EnqueueString appends s to the pending output queue and immediately
// copies as much of it into the ring as fits; any remainder stays queued
// for the next call to fillOut (triggered by WriteToFD or another
// EnqueueString).
func (b *Buffer) EnqueueString(s string) {
	b.outQueue = append(b.outQueue, s...)
	b.fillOut()
}

func (b *Buffer) fillOut() {
	if b.strPos >= len(b.outQueue) {
		return
	}
	for {
		if b.inP-b.outP == b.size {
			return
		}
		sz := b.leftRead()
		remaining := uint64(len(b.outQueue) - b.strPos)
		if remaining < sz {
			sz = remaining
		}
		copy(b.buf[b.inP%b.size:], b.outQueue[b.strPos:b.strPos+int(sz)])
		b.strPos += int(sz)
		b.inP += sz
		if b.strPos == len(b.outQueue) {
			b.outQueue = nil
			b.strPos = 0
			return
		}
	}
}

// WriteToFD drains the ring (after first pulling in any pending queued
// string) into fd, stopping when the ring is empty, when OutP reaches the
// configured limit, or when fd would block. Every drained byte is fed to
// the MD5 accumulator if one is attached.
func (b *Buffer) WriteToFD(fd int) error {
	for {
		b.fillOut()

		if b.outP == b.inP {
			return nil
		}
		if b.hasLimit && b.outP == b.maxGet {
			return nil
		}

		start := b.outP % b.size
		n, err := unix.Write(fd, b.buf[start:start+b.leftWrite()])
		if n == 0 && err == nil {
			return errEOF
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return nil
			}
			return err
		}
		if b.md5 != nil {
			b.md5.Write(b.buf[start : start+uint64(n)]) //nolint:errcheck
		}
		b.outP += uint64(n)
	}
}

// WriteTillEl pops bytes up to and including a line terminator: a single
// line when single is true (used for chunk-size lines and trailers), or an
// empty line (a blank CRLF/LF) when single is false (used for a complete
// header block). Returns ("", false) when no full terminator is present
// yet.
func (b *Buffer) WriteTillEl(single bool) (string, bool) {
	for i := b.outP; i < b.inP; i++ {
		if b.buf[i%b.size] != '\n' {
			continue
		}
		j := i + 1
		for j < b.inP && b.buf[j%b.size] == '\r' {
			j++
		}
		if !single {
			if j >= b.inP || b.buf[j%b.size] != '\n' {
				continue
			}
			j++
			for j < b.inP && b.buf[j%b.size] == '\r' {
				j++
			}
		}
		if j > b.inP {
			j = b.inP
		}

		out := make([]byte, 0, j-b.outP)
		for b.outP < j {
			sz := b.leftWrite()
			if sz == 0 {
				return "", false
			}
			if j-b.outP < sz {
				sz = j - b.outP
			}
			out = append(out, b.buf[b.outP%b.size:b.outP%b.size+sz]...)
			b.outP += sz
		}
		return string(out), true
	}
	return "", false
}

// Limit sets MaxGet to OutP+n, so IsLimit becomes true once n more bytes
// have been drained. A negative n removes the limit.
func (b *Buffer) Limit(n int64) {
	if n < 0 {
		b.hasLimit = false
		b.maxGet = 0
		return
	}
	b.hasLimit = true
	b.maxGet = b.outP + uint64(n)
}

// IsLimit reports whether OutP has reached the configured limit.
func (b *Buffer) IsLimit() bool {
	return b.hasLimit && b.outP == b.maxGet
}

// InPos and OutPos expose the raw logical cursors, mainly for tests that
// assert the ring invariant directly.
func (b *Buffer) InPos() uint64  { return b.inP }
func (b *Buffer) OutPos() uint64 { return b.outP }
func (b *Buffer) Cap() uint64    { return b.size }
