// Package goexif reads EXIF capture date and GPS position with rwcarlsen/goexif.
package goexif

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
	"github.com/custodia-labs/imgsearch/internal/core/ports/driven"
)

// Ensure Reader implements the interface.
var _ driven.MetadataReader = (*Reader)(nil)

// Reader extracts EXIF metadata from image files.
type Reader struct{}

// NewReader creates a new EXIF reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadExif returns the capture date and location found in the file.
// Date and location are read independently: a missing or malformed GPS
// block does not discard a valid date. The error lists what was absent.
func (r *Reader) ReadExif(path string) (domain.Exif, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Exif{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return domain.Exif{}, fmt.Errorf("%w: %v", domain.ErrNoExif, err)
	}

	var (
		out  domain.Exif
		errs []error
	)

	if date, err := readDate(x); err != nil {
		errs = append(errs, fmt.Errorf("date: %w", err))
	} else {
		out.Date = domain.Some(date)
	}

	if loc, err := readLocation(x); err != nil {
		errs = append(errs, fmt.Errorf("location: %w", err))
	} else {
		out.Location = domain.Some(loc)
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("%w: %w", domain.ErrNoExif, errors.Join(errs...))
	}
	return out, nil
}

// readDate parses DateTimeOriginal ("YYYY:MM:DD HH:MM:SS").
func readDate(x *exif.Exif) (time.Time, error) {
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, err
	}
	raw, err := tag.StringVal()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(domain.ExifDateLayout, cleanASCII(raw))
}

// readLocation converts the GPS degree/minute/second rationals to decimal degrees.
func readLocation(x *exif.Exif) (domain.GeoPoint, error) {
	lat, err := readCoordinate(x, exif.GPSLatitude, exif.GPSLatitudeRef)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	lon, err := readCoordinate(x, exif.GPSLongitude, exif.GPSLongitudeRef)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	return domain.GeoPoint{Lon: lon, Lat: lat}, nil
}

func readCoordinate(x *exif.Exif, field, refField exif.FieldName) (float64, error) {
	tag, err := x.Get(field)
	if err != nil {
		return 0, err
	}
	if tag.Count < 3 {
		return 0, fmt.Errorf("%s: expected 3 rationals, got %d", field, tag.Count)
	}

	var dms [3]float64
	for i := range dms {
		v, err := rational(tag, i)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		dms[i] = v
	}

	refTag, err := x.Get(refField)
	if err != nil {
		return 0, err
	}
	ref, err := refTag.StringVal()
	if err != nil {
		return 0, err
	}

	return domain.DMSToDecimal(dms[0], dms[1], dms[2], cleanASCII(ref)), nil
}

func rational(tag *tiff.Tag, i int) (float64, error) {
	num, den, err := tag.Rat2(i)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, errors.New("zero denominator")
	}
	return float64(num) / float64(den), nil
}

func cleanASCII(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
