package gallery

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoCaptureMetadata indicates the media carries no usable embedded capture
// timestamp.
var ErrNoCaptureMetadata = errors.New("capture metadata missing")

const exifTimeLayout = "2006:01:02 15:04:05"

// CaptureTimestamp extracts DateTimeOriginal and SubSecTimeOriginal from the
// EXIF block and merges them into a single `YYYY-MM-DD HH:MM:SS.ssssss`
// string. Media without both fields is rejected with ErrNoCaptureMetadata.
func CaptureTimestamp(r io.Reader) (string, error) {
	meta, err := exif.Decode(r)
	if err != nil {
		return "", ErrNoCaptureMetadata
	}

	dateTag, err := meta.Get(exif.DateTimeOriginal)
	if err != nil {
		return "", ErrNoCaptureMetadata
	}
	dateValue, err := dateTag.StringVal()
	if err != nil {
		return "", ErrNoCaptureMetadata
	}

	subSecTag, err := meta.Get(exif.SubSecTimeOriginal)
	if err != nil {
		return "", ErrNoCaptureMetadata
	}
	subSecValue, err := subSecTag.StringVal()
	if err != nil {
		return "", ErrNoCaptureMetadata
	}

	return combineCaptureTimestamp(dateValue, subSecValue)
}

// combineCaptureTimestamp normalises the EXIF date/time string and appends the
// sub-second field padded to microsecond precision.
func combineCaptureTimestamp(dateTime, subSec string) (string, error) {
	parsed, err := time.Parse(exifTimeLayout, strings.TrimSpace(dateTime))
	if err != nil {
		return "", ErrNoCaptureMetadata
	}
	fraction := strings.TrimSpace(subSec)
	if fraction == "" {
		return "", ErrNoCaptureMetadata
	}
	for _, r := range fraction {
		if r < '0' || r > '9' {
			return "", ErrNoCaptureMetadata
		}
	}
	if len(fraction) > 6 {
		fraction = fraction[:6]
	}
	fraction += strings.Repeat("0", 6-len(fraction))
	return fmt.Sprintf("%s.%s", parsed.Format("2006-01-02 15:04:05"), fraction), nil
}

// FallbackTimestamp renders a server-side time in the same format used for
// extracted capture timestamps. It is used for media types that carry no EXIF
// block.
func FallbackTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000000")
}
