// Package ocr defines the text recognizer consumed by the text track and its
// default Tesseract implementation.
package ocr

import "context"

// Word is one recognized string with its bounding box, in the coordinates of
// the image that was recognized.
type Word struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Recognizer turns image bytes into recognized words. Implementations are
// opaque external services as far as the pipeline is concerned.
type Recognizer interface {
	Recognize(ctx context.Context, imageBytes []byte) ([]Word, error)
}
