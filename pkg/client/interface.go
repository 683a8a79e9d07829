// Package client defines the multimodal inference client shared by the
// vision track and the overview summarizer. Backends (Ollama, llama.cpp,
// Gemini) implement it; response parsing lives with the callers.
package client

import "context"

type VisionClient interface {
	// Query sends a prompt, optionally with a base64-encoded image, and
	// returns the model's raw text response. An empty imgB64 makes this a
	// plain text completion.
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
