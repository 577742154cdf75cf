package h263

import (
	"errors"
	"io"
)

var (
	// BufferSize is the default size for buffer.
	BufferSize = 128 * 1024
)

// LoadFunc callback function.
type LoadFunc func(buffer *Buffer)

// Buffer provides the bit-granular data source for the decoder. It wraps an
// appendable byte slice with a bit cursor; all reads are MSB-first. A read
// that cannot be satisfied returns ErrEndOfBitstream and leaves the cursor
// exactly where it was, which is what makes append-and-retry streaming work.
type Buffer struct {
	reader io.Reader
	bytes  []byte

	bitIndex  int
	totalSize int

	hasEnded bool

	available    []byte
	loadCallback LoadFunc
}

// NewBuffer creates a buffer instance. The reader may be nil, in which case
// all data must be supplied through Write().
func NewBuffer(r io.Reader) (*Buffer, error) {
	buf := &Buffer{}

	if r != nil {
		seeker, ok := r.(io.Seeker)
		if ok {
			cur, err := seeker.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, err
			}
			off, err := seeker.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, err
			}
			buf.totalSize = int(off)
			_, err = seeker.Seek(cur, io.SeekStart)
			if err != nil {
				return nil, err
			}
		}
	}

	buf.reader = r
	buf.bytes = make([]byte, 0, BufferSize)
	buf.available = make([]byte, BufferSize)

	return buf, nil
}

// Bytes returns a slice holding the buffered bytes, including already-read
// ones that have not been discarded yet.
func (b *Buffer) Bytes() []byte {
	return b.bytes
}

// Index returns the byte index of the cursor.
func (b *Buffer) Index() int {
	return b.bitIndex >> 3
}

// BitIndex returns the bit offset of the cursor within the buffer.
func (b *Buffer) BitIndex() int {
	return b.bitIndex
}

// Write appends the contents of p to the buffer.
func (b *Buffer) Write(p []byte) int {
	b.bytes = append(b.bytes, p...)

	b.hasEnded = false

	return len(p)
}

// SignalEnd marks the current byte length as the end of this buffer and
// signals that no more data is expected to be written to it. This function
// should be called just after the last Write().
func (b *Buffer) SignalEnd() {
	b.totalSize = len(b.bytes)
}

// SetLoadCallback sets a callback that is called whenever the buffer needs more data.
func (b *Buffer) SetLoadCallback(callback LoadFunc) {
	b.loadCallback = callback
}

// Size returns the total size. For io.ReadSeeker, this returns the total size.
// For all other types it returns the number of bytes currently in the buffer.
func (b *Buffer) Size() int {
	if b.totalSize > 0 {
		return b.totalSize
	}

	return len(b.bytes)
}

// Remaining returns the number of remaining (yet unread) bytes in the buffer.
// This can be useful to throttle writing.
func (b *Buffer) Remaining() int {
	return len(b.bytes) - (b.bitIndex >> 3)
}

// HasEnded checks whether the read position of the buffer is at the end and
// no more data is expected.
func (b *Buffer) HasEnded() bool {
	return b.hasEnded
}

// LoadReaderCallback is a callback that is called whenever the buffer needs more data.
func (b *Buffer) LoadReaderCallback(buffer *Buffer) {
	if b.hasEnded {
		return
	}

	p := b.available

	n, err := io.ReadFull(b.reader, p)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			p = p[:n]
		} else if err == io.EOF {
			b.hasEnded = true

			return
		}
	}

	if n == 0 {
		b.hasEnded = true

		return
	}

	b.Write(p)
}

// Transaction runs f against a checkpointed cursor. If f returns an error
// the cursor is restored to its pre-call position and the error is
// propagated; on success the position advanced by f is kept. Transactions
// nest: an inner rollback never disturbs bits committed by an enclosing
// successful transaction.
func (b *Buffer) Transaction(f func(*Buffer) error) error {
	mark := b.bitIndex

	if err := f(b); err != nil {
		b.bitIndex = mark

		return err
	}

	return nil
}

// TransactionOption is Transaction with an additional soft-failure outcome:
// f returning (false, nil) means "no such syntax element here", which also
// rolls the cursor back but is not an error. This lets callers probe for
// alternative productions without manual cursor bookkeeping.
func (b *Buffer) TransactionOption(f func(*Buffer) (bool, error)) (bool, error) {
	mark := b.bitIndex

	ok, err := f(b)
	if err != nil || !ok {
		b.bitIndex = mark
	}

	return ok, err
}

// ReadBits consumes count bits (1..32), MSB-first, and advances the cursor.
// If insufficient bits remain it returns ErrEndOfBitstream with the cursor
// unchanged.
func (b *Buffer) ReadBits(count int) (uint32, error) {
	if !b.has(count) {
		return 0, ErrEndOfBitstream
	}

	var value uint32
	for count != 0 {
		currentByte := uint32(b.bytes[b.bitIndex>>3])

		remaining := 8 - (b.bitIndex & 7) // Remaining bits in byte
		read := count
		if remaining < count { // Bits in self run
			read = remaining
		}

		shift := remaining - read
		mask := uint32(0xff) >> (8 - read)

		value = (value << read) | ((currentByte >> shift) & mask)

		b.bitIndex += read
		count -= read
	}

	return value, nil
}

// ReadBit consumes a single bit.
func (b *Buffer) ReadBit() (int, error) {
	if !b.has(1) {
		return 0, ErrEndOfBitstream
	}

	currentByte := int(b.bytes[b.bitIndex>>3])

	shift := 7 - (b.bitIndex & 7)
	value := (currentByte >> shift) & 1

	b.bitIndex++

	return value, nil
}

// ReadUint8 is a convenience for 8-bit reads; the cursor need not be aligned.
func (b *Buffer) ReadUint8() (uint8, error) {
	v, err := b.ReadBits(8)

	return uint8(v), err
}

// PeekBits returns the next count bits without consuming them.
func (b *Buffer) PeekBits(count int) (uint32, error) {
	mark := b.bitIndex
	v, err := b.ReadBits(count)
	b.bitIndex = mark

	return v, err
}

// SkipBits advances the cursor by count bits, or returns ErrEndOfBitstream
// without moving if that would run past the buffered data.
func (b *Buffer) SkipBits(count int) error {
	if !b.has(count) {
		return ErrEndOfBitstream
	}

	b.bitIndex += count

	return nil
}

// SkipToAlignment advances the cursor to the next byte boundary. It is a
// no-op when already aligned.
func (b *Buffer) SkipToAlignment() {
	b.bitIndex = ((b.bitIndex + 7) >> 3) << 3
}

// has reports whether count more bits are buffered, asking the load callback
// to refill first when they are not.
func (b *Buffer) has(count int) bool {
	if ((len(b.bytes) << 3) - b.bitIndex) >= count {
		return true
	}

	if b.loadCallback != nil {
		b.loadCallback(b)

		if ((len(b.bytes) << 3) - b.bitIndex) >= count {
			return true
		}
	}

	if b.totalSize != 0 && len(b.bytes) >= b.totalSize {
		b.hasEnded = true
	}

	return false
}

// discardReadBytes drops fully consumed bytes from the front of the buffer.
// Only safe between pictures: rolling back a transaction across a discard
// would restore a stale bit offset.
func (b *Buffer) discardReadBytes() {
	bytePos := b.bitIndex >> 3
	if bytePos == len(b.bytes) {
		b.bytes = b.bytes[:0]

		b.bitIndex = 0
	} else if bytePos > 0 {
		copy(b.bytes, b.bytes[bytePos:])
		b.bytes = b.bytes[:len(b.bytes)-bytePos]

		b.bitIndex -= bytePos << 3
	}
}

// readVLC walks a variable-length-code table one bit at a time until it
// lands on a leaf. Unassigned codes yield ErrInvalidBitstream.
func (b *Buffer) readVLC(table []vlc) (int, error) {
	var state vlc

	for {
		bit, err := b.ReadBit()
		if err != nil {
			return 0, err
		}

		state = table[int(state.Index)+bit]
		if state.Index <= 0 {
			break
		}
	}

	if state.Index < 0 {
		return 0, ErrInvalidBitstream
	}

	return int(state.Value), nil
}
