// Package testsupport provides fixtures shared by package tests. It is never
// linked into production binaries.
package testsupport

import "encoding/binary"

// ExifJPEG assembles a minimal JPEG whose APP1 segment carries a little-endian
// TIFF block with DateTimeOriginal and SubSecTimeOriginal set. dateTime must
// use the EXIF layout "2006:01:02 15:04:05"; subSec must be at most three
// digits so it fits inline in the IFD entry.
func ExifJPEG(dateTime, subSec string) []byte {
	tiff := buildTIFF(dateTime, subSec)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	segment := make([]byte, 2)
	binary.BigEndian.PutUint16(segment, uint16(len(payload)+2))

	out := []byte{0xFF, 0xD8, 0xFF, 0xE1}
	out = append(out, segment...)
	out = append(out, payload...)
	out = append(out, 0xFF, 0xD9)
	return out
}

// PlainJPEG returns a JPEG with no EXIF segment at all.
func PlainJPEG() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xD9}
}

const (
	tagExifIFDPointer    = 0x8769
	tagDateTimeOriginal  = 0x9003
	tagSubSecTimeOrig    = 0x9291
	typeASCII            = 2
	typeLong             = 4
	ifd0Offset           = 8
	exifIFDOffset        = ifd0Offset + 2 + 12 + 4
	dateTimeValueOffset  = exifIFDOffset + 2 + 2*12 + 4
	dateTimeEncodedBytes = 20
)

func buildTIFF(dateTime, subSec string) []byte {
	le := binary.LittleEndian
	buf := make([]byte, 0, dateTimeValueOffset+dateTimeEncodedBytes)

	// Header: byte order, magic, IFD0 offset.
	buf = append(buf, 'I', 'I')
	buf = le.AppendUint16(buf, 0x2A)
	buf = le.AppendUint32(buf, ifd0Offset)

	// IFD0: single entry pointing at the Exif sub-IFD.
	buf = le.AppendUint16(buf, 1)
	buf = le.AppendUint16(buf, tagExifIFDPointer)
	buf = le.AppendUint16(buf, typeLong)
	buf = le.AppendUint32(buf, 1)
	buf = le.AppendUint32(buf, exifIFDOffset)
	buf = le.AppendUint32(buf, 0)

	// Exif IFD: DateTimeOriginal (out of line) and SubSecTimeOriginal (inline).
	buf = le.AppendUint16(buf, 2)

	buf = le.AppendUint16(buf, tagDateTimeOriginal)
	buf = le.AppendUint16(buf, typeASCII)
	buf = le.AppendUint32(buf, dateTimeEncodedBytes)
	buf = le.AppendUint32(buf, dateTimeValueOffset)

	buf = le.AppendUint16(buf, tagSubSecTimeOrig)
	buf = le.AppendUint16(buf, typeASCII)
	buf = le.AppendUint32(buf, uint32(len(subSec)+1))
	inline := make([]byte, 4)
	copy(inline, subSec)
	buf = append(buf, inline...)

	buf = le.AppendUint32(buf, 0)

	// DateTimeOriginal value: 19 chars plus NUL.
	value := make([]byte, dateTimeEncodedBytes)
	copy(value, dateTime)
	buf = append(buf, value...)

	return buf
}
