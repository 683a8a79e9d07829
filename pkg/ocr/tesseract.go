package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract is the default offline Recognizer. A fresh gosseract client is
// created per call; the library is not safe for concurrent reuse.
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract recognizer. With no languages it defaults
// to "eng"; engineering drawings from Chinese projects typically want
// "chi_sim+eng".
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}
}

// Recognize runs line-level OCR over the image bytes.
func (t *Tesseract) Recognize(ctx context.Context, imageBytes []byte) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(imageBytes); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		words = append(words, Word{
			Text:       b.Word,
			X:          float64(b.Box.Min.X),
			Y:          float64(b.Box.Min.Y),
			Width:      float64(b.Box.Dx()),
			Height:     float64(b.Box.Dy()),
			Confidence: b.Confidence / 100.0,
		})
	}
	return words, nil
}
