package webmfix

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/reelfix/reelfix-agent/internal/logging"
)

// Element IDs, including their length marker bits.
const (
	idEBML          = 0x1A45DFA3
	idSegment       = 0x18538067
	idInfo          = 0x1549A966
	idTimecodeScale = 0x2AD7B1
	idDuration      = 0x4489

	defaultTimecodeScale = 1_000_000 // ns per tick
	maxVintLength        = 8
)

var (
	ErrNotWebM   = errors.New("webmfix: not an EBML document")
	ErrNoInfo    = errors.New("webmfix: segment info not found")
	ErrMalformed = errors.New("webmfix: malformed element")
)

// element is the decoded header of one EBML element.
type element struct {
	id         uint64
	offset     int // start of the ID
	sizeOffset int // start of the size vint
	sizeLen    int
	dataOffset int
	size       uint64
	unknown    bool
}

func (e element) end(limit int) int {
	if e.unknown {
		return limit
	}
	return e.dataOffset + int(e.size)
}

func vintLength(first byte) int {
	for i := 0; i < maxVintLength; i++ {
		if first&(0x80>>i) != 0 {
			return i + 1
		}
	}
	return 0
}

func readVint(data []byte, off int, keepMarker bool) (uint64, int, error) {
	if off >= len(data) {
		return 0, 0, io.ErrUnexpectedEOF
	}
	length := vintLength(data[off])
	if length == 0 {
		return 0, 0, fmt.Errorf("%w: invalid vint at %d", ErrMalformed, off)
	}
	if off+length > len(data) {
		return 0, 0, io.ErrUnexpectedEOF
	}
	value := uint64(data[off])
	if !keepMarker {
		value &= uint64(0xFF >> length)
	}
	for i := 1; i < length; i++ {
		value = value<<8 | uint64(data[off+i])
	}
	return value, length, nil
}

func readElement(data []byte, off, limit int) (element, error) {
	id, idLen, err := readVint(data[:limit], off, true)
	if err != nil {
		return element{}, err
	}
	size, sizeLen, err := readVint(data[:limit], off+idLen, false)
	if err != nil {
		return element{}, err
	}
	e := element{
		id:         id,
		offset:     off,
		sizeOffset: off + idLen,
		sizeLen:    sizeLen,
		dataOffset: off + idLen + sizeLen,
		size:       size,
		unknown:    size == (uint64(1)<<(7*sizeLen))-1,
	}
	if !e.unknown && size > uint64(limit-e.dataOffset) {
		return element{}, fmt.Errorf("%w: element 0x%X at %d overflows parent", ErrMalformed, id, off)
	}
	return e, nil
}

// findChild returns the first element with id inside [from, limit). Children
// of unknown size end the search because their extent cannot be skipped.
func findChild(data []byte, from, limit int, id uint64) (element, bool, error) {
	for off := from; off < limit; {
		e, err := readElement(data, off, limit)
		if err != nil {
			return element{}, false, err
		}
		if e.id == id {
			return e, true, nil
		}
		if e.unknown {
			return element{}, false, nil
		}
		off = e.end(limit)
	}
	return element{}, false, nil
}

// encodeSize writes v as a size vint of exactly width bytes.
func encodeSize(v uint64, width int) ([]byte, error) {
	if width < 1 || width > maxVintLength || v >= (uint64(1)<<(7*width))-1 {
		return nil, fmt.Errorf("%w: size %d does not fit %d bytes", ErrMalformed, v, width)
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	out[0] |= 0x80 >> (width - 1)
	return out, nil
}

// sizeWidth is the smallest vint width that holds v, but never narrower than atLeast.
func sizeWidth(v uint64, atLeast int) int {
	w := 1
	for w < maxVintLength && v >= (uint64(1)<<(7*w))-1 {
		w++
	}
	if w < atLeast {
		return atLeast
	}
	return w
}

// layout locates the Segment, its Info and the Info children of interest.
type layout struct {
	segment       element
	info          element
	duration      element
	hasDuration   bool
	timecodeScale uint64
}

func parseLayout(data []byte) (layout, error) {
	var l layout

	head, err := readElement(data, 0, len(data))
	if err != nil || head.id != idEBML {
		return l, ErrNotWebM
	}

	seg, ok, err := findChild(data, head.end(len(data)), len(data), idSegment)
	if err != nil {
		return l, err
	}
	if !ok {
		return l, ErrNotWebM
	}
	l.segment = seg
	segEnd := seg.end(len(data))

	info, ok, err := findChild(data, seg.dataOffset, segEnd, idInfo)
	if err != nil {
		return l, err
	}
	if !ok {
		return l, ErrNoInfo
	}
	if info.unknown {
		return l, fmt.Errorf("%w: info has unknown size", ErrMalformed)
	}
	l.info = info
	infoEnd := info.end(segEnd)

	l.timecodeScale = defaultTimecodeScale
	if ts, ok, err := findChild(data, info.dataOffset, infoEnd, idTimecodeScale); err != nil {
		return l, err
	} else if ok && ts.size >= 1 && ts.size <= 8 {
		var v uint64
		for _, b := range data[ts.dataOffset : ts.dataOffset+int(ts.size)] {
			v = v<<8 | uint64(b)
		}
		if v > 0 {
			l.timecodeScale = v
		}
	}

	if d, ok, err := findChild(data, info.dataOffset, infoEnd, idDuration); err != nil {
		return l, err
	} else if ok {
		if d.size != 4 && d.size != 8 {
			return l, fmt.Errorf("%w: duration of %d bytes", ErrMalformed, d.size)
		}
		l.duration = d
		l.hasDuration = true
	}

	return l, nil
}

// EBMLFixer sets the Info/Duration element in process. An existing Duration
// is overwritten in place; otherwise an 8-byte float Duration is appended to
// Info and the sizes of Info and a known-size Segment are grown to match.
type EBMLFixer struct {
	Logger *slog.Logger
}

func (f *EBMLFixer) logger() *slog.Logger {
	if f.Logger == nil {
		return logging.Discard()
	}
	return f.Logger
}

func (f *EBMLFixer) Fix(ctx context.Context, data []byte, durationMs float64) ([]byte, error) {
	if !validDuration(durationMs) {
		return nil, ErrInvalidDuration
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l, err := parseLayout(data)
	if err != nil {
		return nil, err
	}

	// Duration is expressed in TimecodeScale ticks.
	ticks := durationMs * 1e6 / float64(l.timecodeScale)

	if l.hasDuration {
		out := append([]byte(nil), data...)
		field := out[l.duration.dataOffset:]
		if l.duration.size == 4 {
			binary.BigEndian.PutUint32(field, math.Float32bits(float32(ticks)))
		} else {
			binary.BigEndian.PutUint64(field, math.Float64bits(ticks))
		}
		f.logger().Debug("webm duration overwritten", "duration_ms", durationMs, "width", l.duration.size)
		return out, nil
	}

	return insertDuration(data, l, ticks, f.logger())
}

func insertDuration(data []byte, l layout, ticks float64, logger *slog.Logger) ([]byte, error) {
	elem := make([]byte, 11)
	elem[0], elem[1], elem[2] = 0x44, 0x89, 0x88
	binary.BigEndian.PutUint64(elem[3:], math.Float64bits(ticks))

	infoSize := l.info.size + uint64(len(elem))
	infoWidth := sizeWidth(infoSize, l.info.sizeLen)
	infoHeader, err := encodeSize(infoSize, infoWidth)
	if err != nil {
		return nil, err
	}
	growth := uint64(len(elem) + infoWidth - l.info.sizeLen)

	segHeader := data[l.segment.sizeOffset:l.segment.dataOffset]
	if !l.segment.unknown {
		segSize := l.segment.size + growth
		segHeader, err = encodeSize(segSize, sizeWidth(segSize, l.segment.sizeLen))
		if err != nil {
			return nil, err
		}
	}

	infoEnd := l.info.end(len(data))

	out := make([]byte, 0, len(data)+int(growth)+len(segHeader))
	out = append(out, data[:l.segment.sizeOffset]...)
	out = append(out, segHeader...)
	out = append(out, data[l.segment.dataOffset:l.info.sizeOffset]...)
	out = append(out, infoHeader...)
	out = append(out, data[l.info.dataOffset:infoEnd]...)
	out = append(out, elem...)
	out = append(out, data[infoEnd:]...)

	logger.Debug("webm duration inserted",
		"ticks", ticks,
		"segment_unknown_size", l.segment.unknown,
		"grew_bytes", len(out)-len(data),
	)
	return out, nil
}

// ReadDuration returns the duration stored in Info in milliseconds.
func ReadDuration(data []byte) (float64, bool, error) {
	l, err := parseLayout(data)
	if err != nil {
		return 0, false, err
	}
	if !l.hasDuration {
		return 0, false, nil
	}
	field := data[l.duration.dataOffset:]
	var ticks float64
	if l.duration.size == 4 {
		ticks = float64(math.Float32frombits(binary.BigEndian.Uint32(field)))
	} else {
		ticks = math.Float64frombits(binary.BigEndian.Uint64(field))
	}
	return ticks * float64(l.timecodeScale) / 1e6, true, nil
}
