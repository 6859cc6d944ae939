// Package bmff locates boxes inside an ISO Base Media File Format (MP4)
// byte buffer. It does not decode box payloads beyond the header and the
// full-box version byte.
package bmff

import (
	"errors"
	"fmt"

	"github.com/reelfix/reelfix-agent/internal/bytebuf"
)

// BoxType is a 4-byte box tag.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// NewType creates a BoxType from a 4-character string.
func NewType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

var (
	TypeFtyp = NewType("ftyp")
	TypeMoov = NewType("moov")
	TypeMvhd = NewType("mvhd")
	TypeTrak = NewType("trak")
	TypeTkhd = NewType("tkhd")
	TypeEdts = NewType("edts")
	TypeElst = NewType("elst")
	TypeMdia = NewType("mdia")
	TypeMdhd = NewType("mdhd")
	TypeHdlr = NewType("hdlr")
	TypeMinf = NewType("minf")
	TypeDinf = NewType("dinf")
	TypeStbl = NewType("stbl")
	TypeMvex = NewType("mvex")
	TypeMehd = NewType("mehd")
	TypeMoof = NewType("moof")
	TypeTraf = NewType("traf")
	TypeUdta = NewType("udta")
	TypeMdat = NewType("mdat")
	TypeFree = NewType("free")
)

// containers are descended into by Walk.
var containers = map[BoxType]bool{
	TypeMoov: true, TypeTrak: true, TypeEdts: true, TypeMdia: true,
	TypeMinf: true, TypeDinf: true, TypeStbl: true, TypeMvex: true,
	TypeMoof: true, TypeTraf: true, TypeUdta: true,
}

// fullBoxes carry a version byte and 24-bit flags after the header.
var fullBoxes = map[BoxType]bool{
	TypeMvhd: true, TypeTkhd: true, TypeMdhd: true, TypeMehd: true,
	TypeElst: true, TypeHdlr: true,
}

// IsContainer reports whether Walk descends into boxes of type t.
func IsContainer(t BoxType) bool {
	return containers[t]
}

var (
	ErrNotFound  = errors.New("bmff: box not found")
	ErrMalformed = errors.New("bmff: malformed box")
)

// MalformedError describes a box header that is inconsistent with the
// bounds of the buffer or its parent box.
type MalformedError struct {
	Offset int
	Type   BoxType
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("bmff: malformed box %q at %d: %s", e.Type.String(), e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Box is a located box header. Offsets are absolute within the buffer.
type Box struct {
	Type       BoxType
	Offset     int
	Size       int // total size including header
	HeaderSize int // 8, or 16 with a 64-bit size
	FullBox    bool
	Version    uint8
}

// ContentOffset is the first byte after the size/type header. For full boxes
// this is where the version byte lives.
func (b Box) ContentOffset() int {
	return b.Offset + b.HeaderSize
}

// End is the offset one past the last byte of the box.
func (b Box) End() int {
	return b.Offset + b.Size
}

func (b Box) String() string {
	return fmt.Sprintf("[%s] @ %d (size %d, v%d)", b.Type, b.Offset, b.Size, b.Version)
}

// ReadHeader parses the box header at offset. limit is the end of the
// enclosing range; a box whose declared size runs past limit is malformed.
// A declared size of 0 extends the box to limit.
func ReadHeader(buf *bytebuf.Buffer, offset, limit int) (Box, error) {
	if limit > buf.Len() {
		limit = buf.Len()
	}
	if limit-offset < 8 {
		return Box{}, &MalformedError{Offset: offset, Reason: "need at least 8 bytes"}
	}

	size32, err := buf.ReadU32BE(offset)
	if err != nil {
		return Box{}, &MalformedError{Offset: offset, Reason: "size", Err: err}
	}
	raw, err := buf.Slice(offset+4, 4)
	if err != nil {
		return Box{}, &MalformedError{Offset: offset, Reason: "type", Err: err}
	}

	box := Box{Offset: offset, HeaderSize: 8}
	copy(box.Type[:], raw)

	size := uint64(size32)
	switch size {
	case 0:
		size = uint64(limit - offset)
	case 1:
		ext, err := buf.ReadU64BE(offset + 8)
		if err != nil || limit-offset < 16 {
			return Box{}, &MalformedError{Offset: offset, Type: box.Type, Reason: "truncated extended size", Err: err}
		}
		size = ext
		box.HeaderSize = 16
	}

	if size < uint64(box.HeaderSize) {
		return Box{}, &MalformedError{Offset: offset, Type: box.Type, Reason: fmt.Sprintf("declared size %d smaller than header", size)}
	}
	if size > uint64(limit-offset) {
		return Box{}, &MalformedError{Offset: offset, Type: box.Type, Reason: fmt.Sprintf("declared size %d exceeds remaining %d", size, limit-offset)}
	}
	box.Size = int(size)

	if fullBoxes[box.Type] {
		v, err := buf.ReadU8(box.ContentOffset())
		if err != nil || box.Size < box.HeaderSize+4 {
			return Box{}, &MalformedError{Offset: offset, Type: box.Type, Reason: "missing version/flags", Err: err}
		}
		box.FullBox = true
		box.Version = v
	}

	return box, nil
}
