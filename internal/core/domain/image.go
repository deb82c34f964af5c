package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp layouts used for EXIF dates.
const (
	// ExifDateLayout is the layout of the EXIF DateTimeOriginal tag.
	ExifDateLayout = "2006:01:02 15:04:05"

	// DocumentDateLayout is the ISO-8601 layout stored in exif.date.
	DocumentDateLayout = "2006-01-02T15:04:05"
)

// ImageDocument is the record indexed for every processed image.
// Documents are built once and never mutated afterwards.
type ImageDocument struct {
	// ImageID is the filename stem. Unique per source file, not enforced globally.
	ImageID string `json:"image_id"`

	// ImageName is the base filename including its extension.
	ImageName string `json:"image_name"`

	// Embedding is the model-produced vector. Its length is constant within a run.
	Embedding []float32 `json:"image_embedding"`

	// RelativePath is the slash-separated path relative to the image root.
	RelativePath string `json:"relative_path"`

	// Exif holds best-effort metadata. Absent fields are omitted on the wire.
	Exif Exif `json:"exif"`
}

// Dimensions returns the embedding length.
func (d ImageDocument) Dimensions() int {
	return len(d.Embedding)
}

// GeoPoint is a WGS84 coordinate. It is serialised as [lon, lat].
type GeoPoint struct {
	Lon float64
	Lat float64
}

// MarshalJSON encodes the point in GeoJSON order.
func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

// UnmarshalJSON decodes a [lon, lat] pair.
func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("geo point: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("geo point: expected [lon, lat], got %d values", len(pair))
	}
	p.Lon, p.Lat = pair[0], pair[1]
	return nil
}

// Exif is the metadata extracted from an image's EXIF block.
// Each field is independently present or absent.
type Exif struct {
	// Date is the original capture time (DateTimeOriginal), without a zone.
	Date Optional[time.Time]

	// Location is the GPS position converted to decimal degrees.
	Location Optional[GeoPoint]
}

// IsEmpty reports whether no field is present.
func (e Exif) IsEmpty() bool {
	return !e.Date.IsPresent() && !e.Location.IsPresent()
}

type exifWire struct {
	Date     *string   `json:"date,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
}

// MarshalJSON emits only the present fields; an empty Exif encodes as {}.
func (e Exif) MarshalJSON() ([]byte, error) {
	var w exifWire
	if date, ok := e.Date.Get(); ok {
		s := date.Format(DocumentDateLayout)
		w.Date = &s
	}
	if loc, ok := e.Location.Get(); ok {
		w.Location = &loc
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (e *Exif) UnmarshalJSON(data []byte) error {
	var w exifWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("exif: %w", err)
	}
	*e = Exif{}
	if w.Date != nil {
		t, err := time.Parse(DocumentDateLayout, *w.Date)
		if err != nil {
			return fmt.Errorf("exif date: %w", err)
		}
		e.Date = Some(t)
	}
	if w.Location != nil {
		e.Location = Some(*w.Location)
	}
	return nil
}
