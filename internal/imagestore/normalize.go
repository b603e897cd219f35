package imagestore

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	// AvatarSize is the edge length of a stored avatar.
	AvatarSize = 400
	// maxSourcePixels bounds the decode so a small file cannot expand into a
	// huge bitmap.
	maxSourcePixels = 40_000_000
)

// ErrImageTooLarge is returned when the source dimensions exceed maxSourcePixels.
var ErrImageTooLarge = errors.New("image dimensions too large")

// NormalizeAvatar center-crops the image to a square and scales it to
// AvatarSize x AvatarSize. JPEG stays JPEG; everything else is re-encoded as
// PNG (an animated GIF keeps its first frame). It returns the encoded bytes and
// their format.
func NormalizeAvatar(data []byte) ([]byte, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrNotImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", ErrNotImage
	}
	if cfg.Width*cfg.Height > maxSourcePixels {
		return nil, "", ErrImageTooLarge
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", ErrNotImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, squareCrop(src.Bounds()), draw.Src, nil)

	var buf bytes.Buffer
	if format == "jpeg" {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	} else {
		format = "png"
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), format, nil
}

// squareCrop returns the largest centered square inside b.
func squareCrop(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}
