package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/codeforge-ai/codeforge/pkg/common/errors"
)

// DefaultImageModel is used when no image model is configured.
const DefaultImageModel = "gemini-2.0-flash-exp-image-generation"

// Image is one generated image.
type Image struct {
	MIMEType string
	Data     []byte
}

// ImageService proxies prompt-to-image requests to an image-capable
// model.
type ImageService struct {
	client *genai.Client
	model  *genai.GenerativeModel
	log    *zap.Logger
}

// NewImageService creates the image generation service.
func NewImageService(ctx context.Context, apiKey, modelName string, log *zap.Logger) (*ImageService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", errors.ErrUnavailable)
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	if modelName == "" {
		modelName = DefaultImageModel
	}

	return &ImageService{
		client: client,
		model:  client.GenerativeModel(modelName),
		log:    log,
	}, nil
}

// Close releases the underlying client.
func (s *ImageService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Generate returns the first inline image the model produced for the
// prompt.
func (s *ImageService) Generate(ctx context.Context, prompt string) (*Image, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: empty image prompt", errors.ErrInvalidInput)
	}

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		s.log.Warn("image generation failed", zap.Error(err))
		return nil, fmt.Errorf("gemini image generation failed: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok {
				return &Image{MIMEType: blob.MIMEType, Data: blob.Data}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: model returned no image", errors.ErrUnavailable)
}
