package odtgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// QrCode renders value as a QR code picture.
//
// Options, in any order:
//
//   - <N>mm: printed size, 32mm by default;
//   - low, medium, high, highest: error recovery level (medium by default);
//   - noborder: drop the quiet zone around the code.
//
// In a template: {{ odf_value(project.code | qrcode("24mm", "high")) }}
func QrCode(value string, opts ...string) (*Image, error) {
	if value == "" {
		return nil, &ArgumentError{Name: "value", Reason: "empty QR code payload"}
	}

	sizeMM := 32.0
	level := qrcode.Medium
	border := true

	for _, token := range opts {
		token = strings.ToLower(strings.TrimSpace(token))
		switch token {
		case "":
		case "low":
			level = qrcode.Low
		case "medium":
			level = qrcode.Medium
		case "high":
			level = qrcode.High
		case "highest":
			level = qrcode.Highest
		case "noborder":
			border = false
		case "border":
			border = true
		default:
			if v, err := strconv.ParseFloat(strings.TrimSuffix(token, "mm"), 64); err == nil && v > 0 {
				sizeMM = v
			}
		}
	}

	q, err := qrcode.New(value, level)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	q.DisableBorder = !border

	sizePx := int(sizeMM / 25.4 * defaultDPI)
	data, err := q.PNG(sizePx)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}

	img := NewImage(data, "png")
	img.Width = sizeMM / 10
	img.Height = img.Width
	return img, nil
}
