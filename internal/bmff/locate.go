package bmff

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reelfix/reelfix-agent/internal/bytebuf"
)

// Mode selects how Locate enumerates boxes.
type Mode int

const (
	// ModeWalk follows the declared size chain and descends into containers.
	ModeWalk Mode = iota
	// ModeScan tests every byte offset for the tag.
	ModeScan
)

func (m Mode) String() string {
	switch m {
	case ModeWalk:
		return "walk"
	case ModeScan:
		return "scan"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts "walk" or "scan".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "walk":
		return ModeWalk, nil
	case "scan":
		return ModeScan, nil
	default:
		return ModeWalk, fmt.Errorf("unknown locate mode %q", s)
	}
}

// Find returns the offset of the first box tagged t that starts at or after
// from. The tag is matched at offset+4; candidates whose declared size cannot
// fit the buffer are rejected so that stray payload bytes spelling the tag are
// less likely to match. Returns ErrNotFound when the buffer is exhausted.
//
// To enumerate repeated boxes, call again with from set past the previous match.
func Find(buf *bytebuf.Buffer, t BoxType, from int) (int, error) {
	if from < 0 {
		from = 0
	}
	b := buf.Bytes()
	for off := from; off+8 <= len(b); off++ {
		if b[off+4] != t[0] || b[off+5] != t[1] || b[off+6] != t[2] || b[off+7] != t[3] {
			continue
		}
		if _, err := ReadHeader(buf, off, len(b)); err != nil {
			continue
		}
		return off, nil
	}
	return -1, ErrNotFound
}

// FindAll returns the offsets of every box tagged t, in buffer order.
func FindAll(buf *bytebuf.Buffer, t BoxType) []int {
	var offsets []int
	from := 0
	for {
		off, err := Find(buf, t, from)
		if err != nil {
			return offsets
		}
		offsets = append(offsets, off)
		from = off + 1
	}
}

// SkipAll can be returned from a WalkFunc to stop the walk without error.
var SkipAll = errors.New("bmff: skip all")

// WalkFunc is called for each box in depth-first order.
type WalkFunc func(box Box, depth int) error

// Walk visits every box reachable through the declared size chain, starting
// at the top level and descending into container boxes. A malformed header
// ends the walk with a *MalformedError; boxes visited before it were valid.
func Walk(buf *bytebuf.Buffer, fn WalkFunc) error {
	err := walkRange(buf, 0, buf.Len(), 0, fn)
	if err == SkipAll {
		return nil
	}
	return err
}

func walkRange(buf *bytebuf.Buffer, start, end, depth int, fn WalkFunc) error {
	off := start
	for end-off >= 8 {
		box, err := ReadHeader(buf, off, end)
		if err != nil {
			return err
		}
		if err := fn(box, depth); err != nil {
			return err
		}
		if containers[box.Type] {
			if err := walkRange(buf, box.ContentOffset(), box.End(), depth+1, fn); err != nil {
				return err
			}
		}
		off = box.End()
	}
	return nil
}

// Locate returns every box tagged t using the given mode. In walk mode a
// malformed structure returns the boxes found before it together with the
// error.
func Locate(buf *bytebuf.Buffer, t BoxType, mode Mode) ([]Box, error) {
	var boxes []Box

	if mode == ModeScan {
		for _, off := range FindAll(buf, t) {
			box, err := ReadHeader(buf, off, buf.Len())
			if err != nil {
				continue
			}
			boxes = append(boxes, box)
		}
		return boxes, nil
	}

	err := Walk(buf, func(box Box, _ int) error {
		if box.Type == t {
			boxes = append(boxes, box)
		}
		return nil
	})
	return boxes, err
}
