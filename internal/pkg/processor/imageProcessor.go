package processor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/ds124wfegd/ocr-ml-backend/internal/entity"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxSide     = 2000
	DefaultJPEGQuality = 95
)

// Image is an encoded image together with its pixel size.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

type ImageProcessor interface {
	DecodeBase64(payload string) ([]byte, error)
	Decode(data []byte) (image.Image, error)
	Preprocess(data []byte) (*Image, error)
	Crop(img image.Image, rect image.Rectangle) ([]byte, error)
}

type imageProcessor struct {
	maxSide int
	quality int
}

func NewImageProcessor(maxSide, quality int) ImageProcessor {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &imageProcessor{maxSide: maxSide, quality: quality}
}

// DecodeBase64 accepts raw base64 as well as data URLs ("data:image/png;base64,...").
func (p *imageProcessor) DecodeBase64(payload string) ([]byte, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[i+1:]
	}
	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", entity.ErrImageDecode)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageDecode, err)
	}
	return data, nil
}

func (p *imageProcessor) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageDecode, err)
	}
	return img, nil
}

// Preprocess shrinks images whose longer side exceeds maxSide and re-encodes
// them as RGB JPEG. Smaller images are passed through untouched unless they
// carry an EXIF rotation. On a decode error the original bytes are returned
// along with it.
func (p *imageProcessor) Preprocess(data []byte) (*Image, error) {
	img, err := p.Decode(data)
	if err != nil {
		logrus.WithError(err).Warn("image preprocessing skipped, keeping original bytes")
		return &Image{Data: data}, err
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	longer := max(w, h)
	if longer <= p.maxSide {
		if orientation(data) == orientationNormal {
			return &Image{Data: data, Width: w, Height: h}, nil
		}
		// the engine ignores EXIF, so it has to get the upright pixels
		return p.encode(data, img)
	}

	ratio := float64(p.maxSide) / float64(longer)
	nw, nh := int(float64(w)*ratio), int(float64(h)*ratio)
	out, err := p.encode(data, imaging.Resize(img, nw, nh, imaging.Lanczos))
	if err != nil {
		return out, err
	}

	logrus.WithFields(logrus.Fields{
		"from": fmt.Sprintf("%dx%d", w, h),
		"to":   fmt.Sprintf("%dx%d", out.Width, out.Height),
	}).Debug("image downscaled")

	return out, nil
}

// encode flattens img to RGB and writes it as JPEG. The reported size is the
// size of the encoded pixels.
func (p *imageProcessor) encode(original []byte, img image.Image) (*Image, error) {
	flat := toRGB(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return &Image{Data: original}, fmt.Errorf("%w: re-encode: %v", entity.ErrImageDecode, err)
	}
	return &Image{Data: buf.Bytes(), Width: flat.Bounds().Dx(), Height: flat.Bounds().Dy()}, nil
}

func (p *imageProcessor) Crop(img image.Image, rect image.Rectangle) ([]byte, error) {
	b := img.Bounds()
	rect = rect.Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rect.Empty() {
		return nil, entity.ErrInvalidCrop
	}

	cropped := imaging.Crop(img, rect.Add(b.Min))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

const orientationNormal = 1

// orientation returns the EXIF orientation tag of data, or orientationNormal
// when there is none.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return orientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return orientationNormal
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return orientationNormal
	}
	return o
}

// toRGB drops the alpha channel by flattening the image onto white.
func toRGB(img image.Image) image.Image {
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
