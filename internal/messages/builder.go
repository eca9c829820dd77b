// Package messages reconciles a task's stored message list with
// caller-supplied input: templated text is rendered against the input
// variables and file placeholders are substituted with the caller's actual
// payloads before the conversation reaches the pipeline.
package messages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/template"
)

// StoredItem is one content element of a stored task message. Text carries
// template syntax; FileRef names a file the caller must supply.
type StoredItem struct {
	Text    string `json:"text,omitempty"`
	FileRef string `json:"file_ref,omitempty"`
}

// StoredMessage is a message as persisted on a task version.
type StoredMessage struct {
	Role  domain.Role  `json:"role"`
	Items []StoredItem `json:"items"`
}

// Input is the caller-supplied payload a build runs against.
type Input struct {
	// Variables feeds template rendering.
	Variables map[string]any
	// Files resolves FileRef placeholders.
	Files map[string]*domain.File
	// Append is extra conversation turns placed after the stored messages
	// (e.g. tool results for a previous assistant turn).
	Append []domain.Message
}

// Builder renders stored messages into canonical ones.
type Builder struct {
	engine *template.Engine
	logger *slog.Logger
}

// NewBuilder creates a builder sharing the given template engine.
func NewBuilder(engine *template.Engine, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{engine: engine, logger: logger}
}

// Build renders the stored messages against the input and appends the
// caller's turns. The result satisfies the tool-call pairing invariant or an
// error is returned.
func (b *Builder) Build(ctx context.Context, stored []StoredMessage, in Input) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(stored)+len(in.Append))

	for i, sm := range stored {
		msg := domain.Message{Role: sm.Role}
		for _, item := range sm.Items {
			switch {
			case item.FileRef != "":
				f, ok := in.Files[item.FileRef]
				if !ok {
					return nil, domain.NewProviderError(domain.CodeInvalidFile,
						fmt.Sprintf("message %d references file %q which was not supplied", i, item.FileRef))
				}
				if err := f.Validate(); err != nil {
					return nil, err
				}
				msg.Content = append(msg.Content, domain.FileItem(f))
			case item.Text != "":
				rendered, err := b.renderText(ctx, item.Text, in.Variables)
				if err != nil {
					return nil, err
				}
				msg.Content = append(msg.Content, domain.TextItem(rendered))
			}
		}
		if len(msg.Content) == 0 {
			b.logger.Debug("skipping stored message with no content", slog.Int("index", i))
			continue
		}
		out = append(out, msg)
	}

	out = append(out, in.Append...)

	if err := domain.ValidateToolPairing(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Builder) renderText(ctx context.Context, src string, vars map[string]any) (string, error) {
	t, err := b.engine.Compile(src)
	if err != nil {
		return "", domain.NewProviderError(domain.CodeBadRequest, "invalid message template").WithCause(err)
	}
	rendered, err := t.Render(ctx, vars)
	if err != nil {
		return "", domain.NewProviderError(domain.CodeBadRequest, "message template rendering failed").WithCause(err)
	}
	return rendered, nil
}
