package posid

// bitBuffer is a fixed-size little-endian bit array: bit i lives in byte i/8
// at position i%8.
type bitBuffer struct {
	buf []byte
}

// bitField is a fixed offset and width inside a bitBuffer.
type bitField struct {
	offset int
	width  int
}

func newBitBuffer(numBytes int) *bitBuffer {
	return &bitBuffer{buf: make([]byte, numBytes)}
}

func bitBufferFrom(b []byte) *bitBuffer {
	return &bitBuffer{buf: b}
}

// size returns the capacity in bits.
func (b *bitBuffer) size() int {
	return len(b.buf) * 8
}

func (b *bitBuffer) bit(pos int) int {
	if pos < 0 || pos >= b.size() {
		return 0
	}
	return int(b.buf[pos/8]>>(pos%8)) & 1
}

func (b *bitBuffer) setBit(pos, v int) {
	if pos < 0 || pos >= b.size() {
		return
	}
	mask := byte(1) << (pos % 8)
	if v&1 == 1 {
		b.buf[pos/8] |= mask
	} else {
		b.buf[pos/8] &^= mask
	}
}

// get reads f as an unsigned integer, least significant bit first.
func (b *bitBuffer) get(f bitField) int {
	v := 0
	for i := 0; i < f.width; i++ {
		v |= b.bit(f.offset+i) << i
	}
	return v
}

// set writes the low f.width bits of v into f.
func (b *bitBuffer) set(f bitField, v int) {
	for i := 0; i < f.width; i++ {
		b.setBit(f.offset+i, v>>i)
	}
}

func (b *bitBuffer) bytes() []byte {
	return b.buf
}

// bitWriter appends bits sequentially; bits past the end are dropped.
type bitWriter struct {
	*bitBuffer
	pos int
}

func (w *bitWriter) write(v int) {
	w.setBit(w.pos, v)
	w.pos++
}
