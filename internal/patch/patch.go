// Package patch rewrites the duration fields of an MP4 file in place.
//
// The movie header (mvhd), every track header (tkhd) and every media header
// (mdhd) are located and their duration set to the target length. Failures
// are isolated per box: a missing or malformed box is recorded and skipped,
// and the remaining boxes are still patched.
package patch

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/reelfix/reelfix-agent/internal/bmff"
	"github.com/reelfix/reelfix-agent/internal/bytebuf"
	"github.com/reelfix/reelfix-agent/internal/logging"
)

// DefaultTrackTimescale is the movie timescale assumed for tkhd durations.
const DefaultTrackTimescale = 1000

var (
	ErrBoxNotFound    = errors.New("patch: box not found")
	ErrMalformedBox   = errors.New("patch: malformed box")
	ErrInvalidTarget  = errors.New("patch: target duration must be finite and positive")
	errTickOverflow   = errors.New("duration ticks overflow duration field")
	errZeroTimescale  = errors.New("timescale is zero")
	errUnknownVersion = errors.New("unsupported box version")
)

// MalformedBoxError wraps a per-box failure. It matches ErrMalformedBox.
type MalformedBoxError struct {
	Type   bmff.BoxType
	Offset int
	Err    error
}

func (e *MalformedBoxError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("patch: box structure: %v", e.Err)
	}
	return fmt.Sprintf("patch: %s at %d: %v", e.Type, e.Offset, e.Err)
}

func (e *MalformedBoxError) Is(target error) bool { return target == ErrMalformedBox }

func (e *MalformedBoxError) Unwrap() error { return e.Err }

// DurationFields is the resolved duration location of one patched box.
type DurationFields struct {
	Type        bmff.BoxType
	BoxOffset   int
	Version     uint8
	Timescale   uint32
	Ticks       uint64
	FieldOffset int
	FieldWidth  int
}

// Result summarises one PatchMP4Duration call.
type Result struct {
	MvhdPatched bool
	TkhdPatched int
	MdhdPatched int
	Mode        bmff.Mode
	Fields      []DurationFields
	Skipped     []error
}

// Any reports whether at least one box was rewritten.
func (r Result) Any() bool {
	return r.MvhdPatched || r.TkhdPatched > 0 || r.MdhdPatched > 0
}

// Total is the number of rewritten boxes.
func (r Result) Total() int {
	n := r.TkhdPatched + r.MdhdPatched
	if r.MvhdPatched {
		n++
	}
	return n
}

type Options struct {
	// Mode selects how boxes are located. In ModeWalk the patcher falls back
	// to ModeScan when the walk cannot reach an mvhd box.
	Mode bmff.Mode
	// TrackTimescale is the tick rate used for tkhd durations.
	TrackTimescale uint32
	Logger         *slog.Logger
}

// Patcher is safe for concurrent use; it keeps no per-call state.
type Patcher struct {
	mode           bmff.Mode
	trackTimescale uint32
	logger         *slog.Logger
}

func NewPatcher(opts Options) *Patcher {
	ts := opts.TrackTimescale
	if ts == 0 {
		ts = DefaultTrackTimescale
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Patcher{mode: opts.Mode, trackTimescale: ts, logger: logger}
}

// PatchMP4Duration sets the mvhd, tkhd and mdhd durations in buf to seconds.
// It never fails: per-box problems end up in Result.Skipped and, when no box
// could be patched, buf is left byte-for-byte unchanged.
func (p *Patcher) PatchMP4Duration(buf *bytebuf.Buffer, seconds float64) Result {
	res := Result{Mode: p.mode}

	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 {
		res.Skipped = append(res.Skipped, ErrInvalidTarget)
		return res
	}

	found, err := collect(buf, res.Mode)
	if len(found[bmff.TypeMvhd]) == 0 && res.Mode == bmff.ModeWalk {
		p.logger.Debug("box walk found no mvhd, falling back to byte scan", "walk_error", err)
		res.Mode = bmff.ModeScan
		found, err = collect(buf, res.Mode)
	}
	if err != nil {
		// Boxes before the malformed region are still patched.
		res.Skipped = append(res.Skipped, &MalformedBoxError{Offset: -1, Err: err})
	}

	if mvhds := found[bmff.TypeMvhd]; len(mvhds) == 0 {
		res.Skipped = append(res.Skipped, fmt.Errorf("mvhd: %w", ErrBoxNotFound))
	} else if f, err := patchHeaderBox(buf, mvhds[0], seconds); err != nil {
		res.Skipped = append(res.Skipped, err)
	} else {
		res.MvhdPatched = true
		res.Fields = append(res.Fields, f)
	}

	for _, box := range found[bmff.TypeTkhd] {
		f, err := patchTrackBox(buf, box, seconds, p.trackTimescale)
		if err != nil {
			res.Skipped = append(res.Skipped, err)
			continue
		}
		res.TkhdPatched++
		res.Fields = append(res.Fields, f)
	}

	for _, box := range found[bmff.TypeMdhd] {
		f, err := patchHeaderBox(buf, box, seconds)
		if err != nil {
			res.Skipped = append(res.Skipped, err)
			continue
		}
		res.MdhdPatched++
		res.Fields = append(res.Fields, f)
	}

	for _, err := range res.Skipped {
		p.logger.Warn("duration patch skipped box", "error", err)
	}
	p.logger.Debug("duration patch complete",
		"target_s", seconds,
		"mode", res.Mode.String(),
		"mvhd", res.MvhdPatched,
		"tkhd", res.TkhdPatched,
		"mdhd", res.MdhdPatched,
	)

	return res
}

var durationBoxes = []bmff.BoxType{bmff.TypeMvhd, bmff.TypeTkhd, bmff.TypeMdhd}

// collect gathers the duration-bearing boxes in buffer order.
func collect(buf *bytebuf.Buffer, mode bmff.Mode) (map[bmff.BoxType][]bmff.Box, error) {
	found := make(map[bmff.BoxType][]bmff.Box, len(durationBoxes))

	if mode == bmff.ModeScan {
		for _, t := range durationBoxes {
			found[t], _ = bmff.Locate(buf, t, bmff.ModeScan)
		}
		return found, nil
	}

	err := bmff.Walk(buf, func(box bmff.Box, _ int) error {
		switch box.Type {
		case bmff.TypeMvhd, bmff.TypeTkhd, bmff.TypeMdhd:
			found[box.Type] = append(found[box.Type], box)
		}
		return nil
	})

	// The walk stops at the first malformed header. Once it has reached mvhd,
	// boxes behind that header are picked up by scanning the rest of the
	// buffer; without mvhd the caller rescans everything.
	var me *bmff.MalformedError
	if errors.As(err, &me) && len(found[bmff.TypeMvhd]) > 0 {
		for _, t := range durationBoxes {
			hits, _ := bmff.Locate(buf, t, bmff.ModeScan)
			for _, box := range hits {
				if box.Offset > me.Offset {
					found[t] = append(found[t], box)
				}
			}
		}
	}
	return found, err
}

// patchHeaderBox handles mvhd and mdhd, which share a layout: timescale
// followed by duration, 32-bit fields in version 0 and 64-bit in version 1.
func patchHeaderBox(buf *bytebuf.Buffer, box bmff.Box, seconds float64) (DurationFields, error) {
	co := box.ContentOffset()

	var tsOffset, width int
	switch box.Version {
	case 0:
		tsOffset, width = co+12, 4
	case 1:
		tsOffset, width = co+20, 8
	default:
		return DurationFields{}, malformed(box, errUnknownVersion)
	}

	ts, err := buf.ReadU32BE(tsOffset)
	if err != nil {
		return DurationFields{}, malformed(box, err)
	}
	if ts == 0 {
		return DurationFields{}, malformed(box, errZeroTimescale)
	}

	return writeDuration(buf, box, tsOffset+4, width, ts, seconds)
}

// patchTrackBox handles tkhd, whose duration is expressed in movie ticks.
func patchTrackBox(buf *bytebuf.Buffer, box bmff.Box, seconds float64, timescale uint32) (DurationFields, error) {
	co := box.ContentOffset()

	switch box.Version {
	case 0:
		return writeDuration(buf, box, co+20, 4, timescale, seconds)
	case 1:
		return writeDuration(buf, box, co+28, 8, timescale, seconds)
	default:
		return DurationFields{}, malformed(box, errUnknownVersion)
	}
}

func writeDuration(buf *bytebuf.Buffer, box bmff.Box, offset, width int, timescale uint32, seconds float64) (DurationFields, error) {
	if offset+width > box.End() {
		return DurationFields{}, malformed(box, fmt.Errorf("duration field [%d:%d] outside box", offset, offset+width))
	}

	exact := math.Round(seconds * float64(timescale))
	if exact >= math.MaxUint64 || (width == 4 && exact > math.MaxUint32) {
		return DurationFields{}, malformed(box, errTickOverflow)
	}
	ticks := uint64(exact)

	var err error
	if width == 4 {
		err = buf.WriteU32BE(offset, uint32(ticks))
	} else {
		err = buf.WriteU64BE(offset, ticks)
	}
	if err != nil {
		return DurationFields{}, malformed(box, err)
	}

	return DurationFields{
		Type:        box.Type,
		BoxOffset:   box.Offset,
		Version:     box.Version,
		Timescale:   timescale,
		Ticks:       ticks,
		FieldOffset: offset,
		FieldWidth:  width,
	}, nil
}

func malformed(box bmff.Box, err error) error {
	return &MalformedBoxError{Type: box.Type, Offset: box.Offset, Err: err}
}
