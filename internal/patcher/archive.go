package patcher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/NielsdaWheelz/detbuild/internal/timestamp"
)

// PatchArchive neutralizes every ASCII and packed occurrence of the archive's
// header timestamp, writing in place. The file length never changes.
//
// Files whose header field cannot be decoded are left untouched and reported
// with a non-error outcome. The returned error is set only for I/O failures.
func (p *Patcher) PatchArchive(path string) (FileResult, error) {
	res := FileResult{Path: path, Class: ClassArchive}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return failed(res, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return failed(res, err)
	}

	pattern, err := decodeArchive(data, p.opts.Width)
	if err != nil {
		res.Outcome, res.Reason = classifyDecodeFailure(data, err)
		if res.Outcome == OutcomeDecodeFailed {
			p.logger.Info("timestamp not decodable, skipping", zap.String("file", path), zap.String("reason", res.Reason))
		} else {
			p.logger.Debug("timestamp already neutral", zap.String("file", path))
		}
		return res, nil
	}
	res.Value = pattern.Value

	// Later passes scan the buffer as updated by earlier ones, so a packed
	// match can never straddle bytes that were already neutralized.
	for _, rep := range pattern.Replacements(p.opts.Neutral) {
		offsets := timestamp.Find(data, rep.Match)
		for _, off := range offsets {
			if _, err := f.WriteAt(rep.Neutral, int64(off)); err != nil {
				return failed(res, err)
			}
			copy(data[off:], rep.Neutral)
			p.logger.Info("patching timestamp",
				zap.String("file", path),
				zap.Int("offset", off),
				zap.String("encoding", string(rep.Encoding)),
			)
		}

		switch rep.Encoding {
		case timestamp.EncodingASCII:
			res.ASCIIOffsets = offsets
		case timestamp.EncodingPacked:
			res.PackedOffsets = offsets
		}
	}

	if err := f.Sync(); err != nil {
		return failed(res, err)
	}

	res.Outcome = OutcomePatched
	return res, nil
}

// Inspection is a read-only view of an archive's timestamp occurrences.
type Inspection struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Value int64  `json:"value,omitempty"`

	// Raw is the header field as stored.
	Raw []byte `json:"raw"`

	Outcome       Outcome `json:"outcome"`
	Reason        string  `json:"reason,omitempty"`
	ASCIIOffsets  []int   `json:"ascii_offsets,omitempty"`
	PackedOffsets []int   `json:"packed_offsets,omitempty"`
}

// Inspect reports what PatchArchive would do to path without writing.
// Packed offsets are computed after ASCII matches are masked, as a real
// patch pass would see them.
func Inspect(path string, width timestamp.Width, mode timestamp.Neutral) (*Inspection, error) {
	if width == 0 {
		width = timestamp.Width32
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	in := &Inspection{Path: path, Size: int64(len(data))}
	field := timestamp.ArMemberTimestamp
	if len(data) >= field.Offset+field.Length {
		in.Raw = bytes.Clone(data[field.Offset : field.Offset+field.Length])
	}

	pattern, err := decodeArchive(data, width)
	if err != nil {
		in.Outcome, in.Reason = classifyDecodeFailure(data, err)
		return in, nil
	}
	in.Value = pattern.Value

	scratch := bytes.Clone(data)
	for _, rep := range pattern.Replacements(mode) {
		offsets := timestamp.Find(scratch, rep.Match)
		for _, off := range offsets {
			copy(scratch[off:], rep.Neutral)
		}
		switch rep.Encoding {
		case timestamp.EncodingASCII:
			in.ASCIIOffsets = offsets
		case timestamp.EncodingPacked:
			in.PackedOffsets = offsets
		}
	}
	in.Outcome = OutcomePatched
	return in, nil
}

var errNotArchive = errors.New("missing ar archive magic")

func decodeArchive(data []byte, width timestamp.Width) (timestamp.Pattern, error) {
	if !timestamp.IsArchive(data) {
		return timestamp.Pattern{}, errNotArchive
	}
	return timestamp.Decode(data, timestamp.ArMemberTimestamp, width)
}

// classifyDecodeFailure separates headers this tool already neutralized from
// headers it cannot read.
func classifyDecodeFailure(data []byte, err error) (Outcome, string) {
	field := timestamp.ArMemberTimestamp
	if !errors.Is(err, errNotArchive) && len(data) >= field.Offset+field.Length {
		raw := data[field.Offset : field.Offset+field.Length]
		if isNeutral(raw) {
			return OutcomeAlreadyNeutral, ""
		}
	}
	return OutcomeDecodeFailed, err.Error()
}

// isNeutral matches either replacement style and an ASCII "0" field. Only the
// digits are replaced, so the field's space padding survives a patch.
func isNeutral(raw []byte) bool {
	digits := bytes.TrimRight(raw, " ")
	if len(digits) == 0 {
		return false
	}
	for _, mode := range []timestamp.Neutral{timestamp.NeutralZero, timestamp.NeutralMarker} {
		if bytes.Equal(digits, timestamp.NeutralValue(len(digits), mode)) {
			return true
		}
	}
	return string(digits) == "0"
}

func failed(res FileResult, err error) (FileResult, error) {
	res.Outcome = OutcomeError
	res.Reason = err.Error()
	return res, fmt.Errorf("patch %s: %w", res.Path, err)
}
