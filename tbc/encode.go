package tbc

import (
	"bufio"
	"fmt"
	"io"
)

// encodeMap is the substitution alphabet for the base-85 codec. It is a
// remapping of the natural '!'..'u' range that avoids the characters the
// surrounding script syntax treats specially: " $ { } [ ] and backslash.
const encodeMap = "!v#w%&'()*+,-./0123456789:;<=>?@" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"xy|^_`abcdefghijklmnopqrstu"

// zeroGroup is the sentinel for a group whose four bytes are all zero.
const zeroGroup = 'z'

// lineWidth is how many encoded characters are written per output line.
const lineWidth = 72

var decodeMap [256]int

func init() {
	for i := range decodeMap {
		decodeMap[i] = -1
	}
	for i := 0; i < len(encodeMap); i++ {
		decodeMap[encodeMap[i]] = i
	}
}

// Encoder writes byte groups through the substitution base-85 codec,
// breaking the output into lines of at most lineWidth characters, each
// followed by a separator.
//
// Groups of four input bytes are assembled into a word low byte first
// and emitted least significant digit first. The reversed digit order
// means the padding of a short final group lands in the trailing
// digits, so a group of n bytes (n < 4) needs only n+1 characters; the
// decoder reconstructs the rest from the byte count it was given.
type Encoder struct {
	w    io.Writer
	line [lineWidth]byte
	n    int
	sep  byte
}

// NewEncoder returns an encoder writing to w with newline separators.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, sep: '\n'}
}

// Encode writes the full byte sequence and flushes the final partial
// line. The decimal length header is the caller's concern.
func (e *Encoder) Encode(p []byte) error {
	for len(p) >= 4 {
		if err := e.group(p[:4], 4); err != nil {
			return err
		}
		p = p[4:]
	}
	if len(p) > 0 {
		var group [4]byte
		copy(group[:], p)
		if err := e.group(group[:], len(p)); err != nil {
			return err
		}
	}
	return e.flush()
}

func (e *Encoder) group(bytes []byte, numBytes int) error {
	word := uint32(bytes[0]) | uint32(bytes[1])<<8 | uint32(bytes[2])<<16 | uint32(bytes[3])<<24
	if word == 0 {
		return e.emit(zeroGroup)
	}
	var digits [5]byte
	for i := 0; i < 5; i++ {
		digits[i] = encodeMap[word%85]
		word /= 85
	}
	for i := 0; i <= numBytes; i++ {
		if err := e.emit(digits[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) emit(c byte) error {
	e.line[e.n] = c
	e.n++
	if e.n == lineWidth {
		return e.flush()
	}
	return nil
}

func (e *Encoder) flush() error {
	if _, err := e.w.Write(e.line[:e.n]); err != nil {
		return err
	}
	e.n = 0
	_, err := e.w.Write([]byte{e.sep})
	return err
}

// Decoder reads byte runs written by the Writer. It exists so loaders
// and tests can reverse the codec; it accepts both string tags the
// format defines.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	if br, ok := r.(*bufio.Reader); ok {
		return &Decoder{r: br}
	}
	return &Decoder{r: bufio.NewReader(r)}
}

// ReadRun reads one length-prefixed encoded byte run: a decimal byte
// count line followed by the encoded characters with interspersed
// separators.
func (d *Decoder) ReadRun() ([]byte, error) {
	var length int
	if _, err := fmt.Fscanf(d.r, "%d\n", &length); err != nil {
		return nil, fmt.Errorf("byte run header: %w", err)
	}
	out := make([]byte, 0, length)
	for remaining := length; remaining > 0; {
		numBytes := remaining
		if numBytes > 4 {
			numBytes = 4
		}
		word, err := d.readGroup(numBytes)
		if err != nil {
			return nil, err
		}
		for i := 0; i < numBytes; i++ {
			out = append(out, byte(word))
			word >>= 8
		}
		remaining -= numBytes
	}
	// The encoder terminates every run with a separator, possibly after
	// an empty final line.
	d.skipSeparators()
	return out, nil
}

func (d *Decoder) readGroup(numBytes int) (uint32, error) {
	c, err := d.readChar()
	if err != nil {
		return 0, err
	}
	if c == zeroGroup {
		return 0, nil
	}
	digits := make([]int, numBytes+1)
	digits[0] = decodeMap[c]
	if digits[0] < 0 {
		return 0, fmt.Errorf("invalid encoded character %q", c)
	}
	for i := 1; i <= numBytes; i++ {
		c, err := d.readChar()
		if err != nil {
			return 0, err
		}
		digits[i] = decodeMap[c]
		if digits[i] < 0 {
			return 0, fmt.Errorf("invalid encoded character %q", c)
		}
	}
	var word uint32
	for i := numBytes; i >= 0; i-- {
		word = word*85 + uint32(digits[i])
	}
	return word, nil
}

// readChar returns the next encoded character, skipping separators.
func (d *Decoder) readChar() (byte, error) {
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return 0, err
		}
		if c != '\n' {
			return c, nil
		}
	}
}

func (d *Decoder) skipSeparators() {
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return
		}
		if c != '\n' {
			d.r.UnreadByte()
			return
		}
	}
}
