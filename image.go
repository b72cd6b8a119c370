package odtgen

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a binary picture value. Put one into the render data and it is
// embedded into the output package.
type Image struct {
	ID        string // identity used for de-duplication
	FileName  string // name inside the images directory
	Extension string // without the dot
	Data      []byte

	// Width and Height override the printed size in cm.
	Width, Height float64
}

// BlobEntry is an image stored in a document.
type BlobEntry struct {
	Image *Image
	Path  string
}

// defaultDPI converts pixels to physical size when the image carries none.
const defaultDPI = 96.0

// NewImage builds an image value. The ID and file name derive from the
// content hash, so equal bytes always map to one entry.
func NewImage(data []byte, ext string) *Image {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = sniffExtension(data)
	}
	id := fmt.Sprintf("%x", sha1.Sum(data))
	return &Image{
		ID:        id,
		FileName:  id + "." + ext,
		Extension: ext,
		Data:      data,
	}
}

// LoadImage reads an image from rel, which must stay inside base.
func LoadImage(base, rel string) (*Image, error) {
	full, err := securejoin.SecureJoin(base, rel)
	if err != nil {
		return nil, fmt.Errorf("forbidden image path: %w", err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return NewImage(data, filepath.Ext(full)), nil
}

// SizeCM returns the picture size in centimetres, or ok=false when the
// format cannot be decoded.
func (img *Image) SizeCM() (w, h float64, ok bool) {
	if img.Width > 0 && img.Height > 0 {
		return img.Width, img.Height, true
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, false
	}
	return pxToCM(cfg.Width), pxToCM(cfg.Height), true
}

func pxToCM(px int) float64 {
	return float64(px) / defaultDPI * 2.54
}

func sniffExtension(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "bin"
	}
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// encodePNG encodes image.Image to PNG and returns []byte.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
