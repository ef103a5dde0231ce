// Package decoder recognizes QR codes in still images.
package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG for image.Decode
	_ "image/png"  // register PNG for image.Decode

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrInvalidImage is returned when the bytes are not a decodable image.
var ErrInvalidImage = errors.New("invalid image")

// Decoder finds a QR code in an image.
type Decoder interface {
	// Decode returns the payload of the first QR code in img and true,
	// or false when no code could be read.
	Decode(img image.Image) (string, bool, error)
}

// QRDecoder is a Decoder backed by the gozxing QR reader.
type QRDecoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder creates a QR decoder that tries hard on difficult images.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode implements Decoder. Reader failures (no finder pattern, checksum,
// format) all mean no readable code and are not errors.
func (d *QRDecoder) Decode(img image.Image) (string, bool, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return "", false, nil
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, fmt.Errorf("binarize image: %w", err)
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return "", false, nil
	}
	return result.GetText(), true, nil
}

// DecodeBytes parses PNG or JPEG bytes and decodes them with d.
// Empty input yields no code rather than an error.
func DecodeBytes(d Decoder, data []byte) (string, bool, error) {
	if len(data) == 0 {
		return "", false, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return d.Decode(img)
}
