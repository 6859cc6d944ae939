// Package mp4fixture builds small synthetic MP4 files for tests. The boxes
// carry correct headers and header-field layouts but no media samples.
package mp4fixture

import "encoding/binary"

var be = binary.BigEndian

// Box encodes a plain box with the given children or payload bytes.
func Box(tag string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	out := make([]byte, 8, size)
	be.PutUint32(out[0:], uint32(size))
	copy(out[4:8], tag)
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

// LargeBox encodes a box using the 64-bit extended size header.
func LargeBox(tag string, payload ...[]byte) []byte {
	size := 16
	for _, p := range payload {
		size += len(p)
	}
	out := make([]byte, 16, size)
	be.PutUint32(out[0:], 1)
	copy(out[4:8], tag)
	be.PutUint64(out[8:], uint64(size))
	for _, p := range payload {
		out = append(out, p...)
	}
	return out
}

func fullHeader(version uint8) []byte {
	return []byte{version, 0, 0, 0}
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	be.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	be.PutUint64(b, v)
	return b
}

func timeOrDuration(version uint8, v uint64) []byte {
	if version == 1 {
		return u64(v)
	}
	return u32(uint32(v))
}

// Mvhd encodes a movie header box.
func Mvhd(version uint8, timescale uint32, duration uint64) []byte {
	p := fullHeader(version)
	p = append(p, timeOrDuration(version, 0)...) // creation time
	p = append(p, timeOrDuration(version, 0)...) // modification time
	p = append(p, u32(timescale)...)
	p = append(p, timeOrDuration(version, duration)...)
	p = append(p, u32(0x00010000)...)  // rate 1.0
	p = append(p, 0x01, 0x00)          // volume 1.0
	p = append(p, make([]byte, 10)...) // reserved
	p = append(p, identityMatrix()...)
	p = append(p, make([]byte, 24)...) // pre-defined
	p = append(p, u32(2)...)           // next track id
	return Box("mvhd", p)
}

// Tkhd encodes a track header box.
func Tkhd(version uint8, trackID uint32, duration uint64) []byte {
	p := fullHeader(version)
	p[3] = 0x03 // enabled | in movie
	p = append(p, timeOrDuration(version, 0)...)
	p = append(p, timeOrDuration(version, 0)...)
	p = append(p, u32(trackID)...)
	p = append(p, make([]byte, 4)...) // reserved
	p = append(p, timeOrDuration(version, duration)...)
	p = append(p, make([]byte, 8)...) // reserved
	p = append(p, 0, 0, 0, 0)         // layer, alternate group
	p = append(p, 0, 0, 0, 0)         // volume, reserved
	p = append(p, identityMatrix()...)
	p = append(p, u32(1280<<16)...)
	p = append(p, u32(720<<16)...)
	return Box("tkhd", p)
}

// Mdhd encodes a media header box.
func Mdhd(version uint8, timescale uint32, duration uint64) []byte {
	p := fullHeader(version)
	p = append(p, timeOrDuration(version, 0)...)
	p = append(p, timeOrDuration(version, 0)...)
	p = append(p, u32(timescale)...)
	p = append(p, timeOrDuration(version, duration)...)
	p = append(p, 0x55, 0xc4) // language "und"
	p = append(p, 0, 0)
	return Box("mdhd", p)
}

// Track encodes trak > (tkhd, mdia > (mdhd, minf > stbl)).
func Track(version uint8, trackID uint32, mediaTimescale uint32) []byte {
	return Box("trak",
		Tkhd(version, trackID, 0),
		Box("mdia",
			Mdhd(version, mediaTimescale, 0),
			Box("minf", Box("stbl", Box("stsd", make([]byte, 8)))),
		),
	)
}

// Movie builds ftyp + moov(mvhd, tracks...) + mdat with mdatSize payload
// bytes. Each track uses the given header version; media timescales are
// taken from trackTimescales in order.
func Movie(version uint8, movieTimescale uint32, mdatSize int, trackTimescales ...uint32) []byte {
	children := [][]byte{Mvhd(version, movieTimescale, 0)}
	for i, ts := range trackTimescales {
		children = append(children, Track(version, uint32(i+1), ts))
	}

	ftyp := Box("ftyp", []byte("isom"), u32(512), []byte("isomiso2avc1mp41"))
	moov := Box("moov", children...)
	mdat := Box("mdat", make([]byte, mdatSize))

	out := make([]byte, 0, len(ftyp)+len(moov)+len(mdat))
	out = append(out, ftyp...)
	out = append(out, moov...)
	out = append(out, mdat...)
	return out
}

// PadTo appends a free box so that the returned file is exactly n bytes.
// n must be at least len(b)+8.
func PadTo(b []byte, n int) []byte {
	pad := n - len(b)
	if pad < 8 {
		return b
	}
	return append(b, Box("free", make([]byte, pad-8))...)
}

func identityMatrix() []byte {
	m := make([]byte, 0, 36)
	for _, v := range []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		m = append(m, u32(v)...)
	}
	return m
}
