// Package completion is the embedding surface for the translation and
// fallback core: stored messages plus caller input go in, a canonical
// completion or stream comes out.
package completion

import (
	"context"
	"log/slog"

	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/messages"
	"github.com/relayforge/relayforge/internal/pipeline"
	"github.com/relayforge/relayforge/internal/template"
)

// Re-exported canonical types so embedders need not import internal
// packages.
type (
	Message          = domain.Message
	ContentItem      = domain.ContentItem
	File             = domain.File
	ToolCallRequest  = domain.ToolCallRequest
	ToolCallResult   = domain.ToolCallResult
	ToolDefinition   = domain.ToolDefinition
	ToolChoice       = domain.ToolChoice
	ProviderOptions  = domain.ProviderOptions
	StructuredOutput = domain.StructuredOutput
	Chunk            = domain.Chunk
	ProviderError    = domain.ProviderError
	StoredMessage    = messages.StoredMessage
	StoredItem       = messages.StoredItem
	Input            = messages.Input
)

// Service ties the message builder and provider pipeline together.
type Service struct {
	builder  *messages.Builder
	pipeline *pipeline.Pipeline
	engine   *template.Engine
	logger   *slog.Logger
}

// New creates a service. logger may be nil.
func New(p *pipeline.Pipeline, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, err := template.NewEngine(template.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		builder:  messages.NewBuilder(engine, logger),
		pipeline: p,
		engine:   engine,
		logger:   logger,
	}, nil
}

// Request is one completion invocation.
type Request struct {
	// Stored is the task's message list; templated text renders against
	// Input.Variables.
	Stored []StoredMessage
	// Input carries variables, files, and appended turns.
	Input Input
	// Options selects the model and per-request knobs.
	Options ProviderOptions
}

// Complete builds the conversation and runs it to a final output.
func (s *Service) Complete(ctx context.Context, req Request) (*StructuredOutput, error) {
	msgs, err := s.builder.Build(ctx, req.Stored, req.Input)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Execute(ctx, msgs, req.Options)
}

// Stream builds the conversation and runs it as a stream. The returned
// channel is closed by the pipeline when the stream ends or errors.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	msgs, err := s.builder.Build(ctx, req.Stored, req.Input)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Stream(ctx, msgs, req.Options)
}

// InferVariables infers the JSON Schema of the variables a template
// references, merged over any declared schema.
func (s *Service) InferVariables(src string, declared *template.Schema) (*template.Schema, error) {
	return s.engine.InferVariables(src, declared)
}
