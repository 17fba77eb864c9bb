// Package timestamp locates the build timestamp stored in an archive member
// header and derives every byte encoding of that value that must be
// neutralized for the archive to be reproducible.
//
// The archive layout is the common ar format used by both MSVC .lib files and
// GNU/BSD .a files:
//
//	offset 0   "!<arch>\n"            global magic (8 bytes)
//	offset 8   first member header:
//	  +0       name                   16 bytes
//	  +16      mtime, decimal ASCII   12 bytes, space padded
//	  +28      uid, gid, mode, size, end marker
//
// MSVC additionally stores the same value as a little-endian 32-bit
// TimeDateStamp inside the COFF headers of every member object.
package timestamp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
)

// Field is the position of a timestamp inside a container header.
// Offsets are container-format constants, never inferred from content.
type Field struct {
	Offset int
	Length int
}

// ArMagic is the global header that opens every ar archive.
var ArMagic = []byte("!<arch>\n")

// Layout constants for the first ar member header.
const (
	ArHeaderStart     = 8
	ArTimestampOffset = 16
	ArTimestampSize   = 12
)

// ArMemberTimestamp is the mtime field of the first archive member.
var ArMemberTimestamp = Field{Offset: ArHeaderStart + ArTimestampOffset, Length: ArTimestampSize}

// Width is the byte width of the packed binary encoding.
type Width int

// Supported packed widths.
const (
	Width32 Width = 4
	Width64 Width = 8
)

// Neutral selects the replacement bytes written over matches.
type Neutral int

const (
	// NeutralZero replaces every match with zero bytes.
	NeutralZero Neutral = iota
	// NeutralMarker replaces matches with 0x99 sentinels framing zero bytes,
	// so patched locations can be spotted in a hex dump.
	NeutralMarker
)

// MinTimestamp is the smallest header value Decode accepts, 1980-01-01 UTC.
const MinTimestamp = 315532800

// markerByte frames debug-distinguishable replacements; it is not an ASCII
// digit, so a patched header never decodes as a timestamp again.
const markerByte = 0x99

// Encoding names one byte representation of a timestamp value.
type Encoding string

const (
	EncodingASCII  Encoding = "ascii"
	EncodingPacked Encoding = "packed"
)

// Replacement is one byte pattern to search for and its same-length neutral value.
type Replacement struct {
	Encoding Encoding
	Match    []byte
	Neutral  []byte
}

// Pattern is the set of encodings of one timestamp value found in a header.
type Pattern struct {
	Value int64

	// ASCII is the field's decimal digits without padding, so copies
	// embedded in member data match as well as other headers.
	ASCII []byte

	// Packed is Value as a little-endian binary word.
	Packed []byte
}

// DecodeError reports a header field that does not hold a decimal timestamp.
type DecodeError struct {
	Field Field
	Raw   []byte
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("timestamp field at %d+%d: %v", e.Field.Offset, e.Field.Length, e.Err)
	}
	return fmt.Sprintf("timestamp field at %d+%d is not a decimal timestamp: %q", e.Field.Offset, e.Field.Length, e.Raw)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode reads field from data and derives both encodings of its value.
//
// The field must hold ASCII digits followed only by space padding. Values
// below MinTimestamp are rejected: zero carries no time information, and the
// packed form of a small value such as 1 occurs all over object code.
func Decode(data []byte, field Field, width Width) (Pattern, error) {
	if field.Offset < 0 || field.Length <= 0 {
		return Pattern{}, &DecodeError{Field: field, Err: fmt.Errorf("invalid field bounds")}
	}
	if len(data) < field.Offset+field.Length {
		return Pattern{}, &DecodeError{Field: field, Err: fmt.Errorf("file too short (%d bytes)", len(data))}
	}

	raw := data[field.Offset : field.Offset+field.Length]
	digits := bytes.TrimRight(raw, " ")
	if len(digits) == 0 || !isDigits(digits) {
		return Pattern{}, &DecodeError{Field: field, Raw: bytes.Clone(raw)}
	}

	value, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return Pattern{}, &DecodeError{Field: field, Raw: bytes.Clone(raw), Err: err}
	}
	if value == 0 {
		return Pattern{}, &DecodeError{Field: field, Raw: bytes.Clone(raw), Err: fmt.Errorf("timestamp already zero")}
	}
	if value < MinTimestamp {
		return Pattern{}, &DecodeError{Field: field, Raw: bytes.Clone(raw), Err: fmt.Errorf("timestamp %d too small to search for safely", value)}
	}

	packed, err := Pack(value, width)
	if err != nil {
		return Pattern{}, &DecodeError{Field: field, Raw: bytes.Clone(raw), Err: err}
	}

	return Pattern{Value: value, ASCII: bytes.Clone(digits), Packed: packed}, nil
}

// Pack encodes value as a little-endian word of the given width.
func Pack(value int64, width Width) ([]byte, error) {
	switch width {
	case Width32:
		if value > 1<<31-1 || value < -(1<<31) {
			return nil, fmt.Errorf("value %d overflows a 32-bit timestamp", value)
		}
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, uint32(int32(value)))
		return out, nil
	case Width64:
		out := make([]byte, 8)
		binary.LittleEndian.PutUint64(out, uint64(value))
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported packed width %d", width)
	}
}

// Replacements returns the ASCII replacement followed by the packed one.
// Callers must apply them in that order.
func (p Pattern) Replacements(mode Neutral) []Replacement {
	return []Replacement{
		{Encoding: EncodingASCII, Match: p.ASCII, Neutral: NeutralValue(len(p.ASCII), mode)},
		{Encoding: EncodingPacked, Match: p.Packed, Neutral: NeutralValue(len(p.Packed), mode)},
	}
}

// NeutralValue returns n bytes carrying no time information.
func NeutralValue(n int, mode Neutral) []byte {
	out := make([]byte, n)
	if mode == NeutralMarker && n >= 2 {
		out[0] = markerByte
		out[n-1] = markerByte
	}
	return out
}

// Find returns the start offsets of every non-overlapping occurrence of pattern in data.
func Find(data, pattern []byte) []int {
	if len(pattern) == 0 {
		return nil
	}

	var offsets []int
	for pos := 0; pos <= len(data)-len(pattern); {
		idx := bytes.Index(data[pos:], pattern)
		if idx < 0 {
			break
		}
		offsets = append(offsets, pos+idx)
		pos += idx + len(pattern)
	}
	return offsets
}

// IsArchive reports whether data starts with the ar global header.
func IsArchive(data []byte) bool {
	return bytes.HasPrefix(data, ArMagic)
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
