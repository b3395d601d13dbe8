// Package hexfile reads and writes Intel HEX (INHX32) images as produced by
// the usual PIC toolchains. Byte addresses in the file map to word addresses
// in the image: word n is stored little endian at byte 2n.
package hexfile

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/valerio/go-picprog/picprog/bit"
	"github.com/valerio/go-picprog/picprog/memory"
)

// Record types.
const (
	recordData            = 0x00
	recordEOF             = 0x01
	recordExtSegmentAddr  = 0x02
	recordStartSegment    = 0x03
	recordExtLinearAddr   = 0x04
	recordStartLinearAddr = 0x05
)

// bytesPerRecord is the data length of records written by Encode.
const bytesPerRecord = 16

// ParseError reports a malformed line.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hex line %d: %s", e.Line, e.Reason)
}

type record struct {
	kind    byte
	address uint16
	data    []byte
}

// Load decodes the file at path into img.
func Load(path string, img *memory.Image) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot open hex file %s", path)
	}
	defer f.Close()

	n, err := Decode(f, img)
	if err != nil {
		return n, errors.Wrapf(err, "cannot load %s", path)
	}
	return n, nil
}

// Decode reads records from r into img and returns the number of words it
// filled. A word only half covered by the file keeps 0xFF in its other
// byte. Data past the end of img is an error.
func Decode(r io.Reader, img *memory.Image) (int, error) {
	scanner := bufio.NewScanner(r)
	var base uint32
	filled := 0
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		rec, err := parseRecord(text)
		if err != nil {
			return filled, &ParseError{Line: line, Reason: err.Error()}
		}

		switch rec.kind {
		case recordData:
			for i, b := range rec.data {
				addr := base + uint32(rec.address) + uint32(i)
				word := int(addr / 2)
				if !img.Contains(word) {
					return filled, &ParseError{Line: line, Reason: fmt.Sprintf("address 0x%X outside of memory", addr)}
				}
				current, ok := img.Get(word)
				if !ok {
					current = 0xFFFF
					filled++
				}
				if addr%2 == 0 {
					current = bit.Combine(bit.High(current), b)
				} else {
					current = bit.Combine(b, bit.Low(current))
				}
				img.Set(word, current)
			}
		case recordEOF:
			return filled, nil
		case recordExtSegmentAddr:
			if len(rec.data) != 2 {
				return filled, &ParseError{Line: line, Reason: "bad segment address record"}
			}
			base = uint32(bit.Combine(rec.data[0], rec.data[1])) << 4
		case recordExtLinearAddr:
			if len(rec.data) != 2 {
				return filled, &ParseError{Line: line, Reason: "bad linear address record"}
			}
			base = uint32(bit.Combine(rec.data[0], rec.data[1])) << 16
		case recordStartSegment, recordStartLinearAddr:
			// entry points mean nothing to the target
		default:
			return filled, &ParseError{Line: line, Reason: fmt.Sprintf("unknown record type 0x%02X", rec.kind)}
		}
	}
	if err := scanner.Err(); err != nil {
		return filled, errors.Wrap(err, "cannot read hex data")
	}
	return filled, errors.New("missing end of file record")
}

func parseRecord(text string) (record, error) {
	if text[0] != ':' {
		return record{}, errors.New("missing start code")
	}
	raw, err := hex.DecodeString(text[1:])
	if err != nil {
		return record{}, errors.Wrap(err, "invalid hex digits")
	}
	if len(raw) < 5 {
		return record{}, errors.New("record too short")
	}

	length := int(raw[0])
	if len(raw) != length+5 {
		return record{}, errors.Errorf("length %d does not match record size", length)
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return record{}, errors.Errorf("checksum mismatch (0x%02X)", raw[len(raw)-1])
	}

	return record{
		kind:    raw[3],
		address: bit.Combine(raw[1], raw[2]),
		data:    raw[4 : 4+length],
	}, nil
}

// Store writes img to path, replacing any existing file.
func Store(path string, img *memory.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create hex file %s", path)
	}

	if err := Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot write %s", path)
	}
	return errors.Wrapf(f.Close(), "cannot close %s", path)
}

// Encode writes the filled words of img as INHX32. Records hold up to 16
// bytes, never cross a 16 byte boundary and only cover filled words.
func Encode(w io.Writer, img *memory.Image) error {
	bw := bufio.NewWriter(w)
	upper := -1

	var chunk []byte
	var chunkStart uint32

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if hi := int(chunkStart >> 16); hi != upper {
			upper = hi
			if err := writeRecord(bw, recordExtLinearAddr, 0, []byte{bit.High(uint16(hi)), bit.Low(uint16(hi))}); err != nil {
				return err
			}
		}
		err := writeRecord(bw, recordData, uint16(chunkStart), chunk)
		chunk = chunk[:0]
		return err
	}

	var err error
	img.Each(func(addr int, word uint16) {
		if err != nil {
			return
		}
		byteAddr := uint32(addr) * 2
		contiguous := len(chunk) > 0 && chunkStart+uint32(len(chunk)) == byteAddr
		if !contiguous || byteAddr%bytesPerRecord == 0 {
			if err = flush(); err != nil {
				return
			}
			chunkStart = byteAddr
		}
		chunk = append(chunk, bit.Low(word), bit.High(word))
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}
	if upper == -1 {
		// an empty image still gets an address record, as toolchains emit
		if err := writeRecord(bw, recordExtLinearAddr, 0, []byte{0, 0}); err != nil {
			return err
		}
	}
	if err := writeRecord(bw, recordEOF, 0, nil); err != nil {
		return err
	}
	return errors.Wrap(bw.Flush(), "cannot flush hex data")
}

func writeRecord(w io.Writer, kind byte, address uint16, data []byte) error {
	raw := make([]byte, 0, len(data)+5)
	raw = append(raw, byte(len(data)), bit.High(address), bit.Low(address), kind)
	raw = append(raw, data...)

	var sum byte
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, -sum)

	_, err := fmt.Fprintf(w, ":%s\n", strings.ToUpper(hex.EncodeToString(raw)))
	return errors.Wrap(err, "cannot write hex record")
}
