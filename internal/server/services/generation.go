package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
)

const maxPromptLength = 4000

type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type MediaStore interface {
	StoreMedia(ctx context.Context, name, contentType string, data []byte) (string, error)
	PresignUpload(ctx context.Context, name string) (key, url string, err error)
}

// AssistantService fronts the language model and the media bucket for the
// admin editor.
type AssistantService struct {
	generator Generator
	media     MediaStore
	log       logging.Logger
}

func NewAssistantService(generator Generator, media MediaStore, log logging.Logger) *AssistantService {
	return &AssistantService{generator: generator, media: media, log: log.With("module", "assistant")}
}

func (s *AssistantService) Generate(ctx context.Context, actorID, prompt string) (string, error) {
	prompt, err := requireText("prompt", prompt, maxPromptLength)
	if err != nil {
		return "", err
	}

	text, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		s.log.Error(ctx, "text generation failed", "actor_id", actorID, "error", err)
		return "", err
	}
	s.log.Info(ctx, "text generated", "actor_id", actorID, "prompt_chars", len(prompt), "text_chars", len(text))
	return text, nil
}

func cleanFileName(name string) (string, error) {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", common.NewValidationError("filename", "is required")
	}
	return name, nil
}

func (s *AssistantService) UploadMedia(ctx context.Context, actorID, name, contentType string, data []byte) (string, error) {
	name, err := cleanFileName(name)
	if err != nil {
		return "", err
	}
	url, err := s.media.StoreMedia(ctx, name, contentType, data)
	if err != nil {
		return "", err
	}
	s.log.Info(ctx, "media uploaded", "actor_id", actorID, "name", name, "bytes", len(data))
	return url, nil
}

func (s *AssistantService) PresignMedia(ctx context.Context, actorID, name string) (string, string, error) {
	name, err := cleanFileName(name)
	if err != nil {
		return "", "", err
	}
	key, url, err := s.media.PresignUpload(ctx, name)
	if err != nil {
		return "", "", fmt.Errorf("presign %q: %w", name, err)
	}
	s.log.Info(ctx, "media upload presigned", "actor_id", actorID, "key", key)
	return key, url, nil
}
