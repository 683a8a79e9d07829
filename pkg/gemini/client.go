package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	genai "google.golang.org/genai"
)

// Client implements the vision client over the Gemini API.
type Client struct {
	client *genai.Client
}

// NewClient creates a Gemini-backed client.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &Client{client: c}, nil
}

// Query sends a prompt with an optional inline image and returns the raw
// response text. Tiles are always encoded as JPEG before base64.
func (c *Client) Query(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}

	parts := []*genai.Part{{Text: prompt}}
	if imgB64 != "" {
		imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
		if err != nil {
			return "", fmt.Errorf("failed to decode base64 image: %v", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: imgBytes},
		})
	}

	content := &genai.Content{Role: genai.RoleUser, Parts: parts}
	res, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %v", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}
