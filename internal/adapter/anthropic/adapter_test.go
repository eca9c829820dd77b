package anthropic

import (
	"encoding/json"
	"testing"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

func TestBuildRequestLiftsSystemMessages(t *testing.T) {
	messages := []domain.Message{
		domain.TextMessage(domain.RoleSystem, "Be brief."),
		domain.TextMessage(domain.RoleUser, "hello"),
		domain.TextMessage(domain.RoleSystem, "Answer in French."),
	}
	req, err := BuildRequest(messages, domain.ProviderOptions{Model: "claude-sonnet-4"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if len(req.System) != 2 {
		t.Fatalf("system blocks = %d, want 2", len(req.System))
	}
	if req.System[0].Text != "Be brief." || req.System[1].Text != "Answer in French." {
		t.Errorf("system order not preserved: %+v", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.MaxTokens != defaultMaxTokens {
		t.Errorf("max tokens = %d, want the default", req.MaxTokens)
	}
}

func TestBuildRequestToolBlocks(t *testing.T) {
	messages := []domain.Message{
		{
			Role: domain.RoleAssistant,
			Content: []domain.ContentItem{
				domain.ToolCallItem(&domain.ToolCallRequest{
					ID: "toolu_01", Name: "lookup", Input: map[string]any{"key": "v"},
				}),
			},
		},
		{
			Role: domain.RoleUser,
			Content: []domain.ContentItem{
				domain.ToolResultItem(&domain.ToolCallResult{ID: "toolu_01", Name: "lookup", Value: "found"}),
			},
		},
	}
	req, err := BuildRequest(messages, domain.ProviderOptions{Model: "claude-sonnet-4"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}

	use := req.Messages[0].Content[0]
	if use.Type != "tool_use" || use.ID != "toolu_01" || use.Name != "lookup" {
		t.Errorf("tool_use block = %+v", use)
	}
	var input map[string]any
	if err := json.Unmarshal(use.Input, &input); err != nil || input["key"] != "v" {
		t.Errorf("tool_use input = %s", use.Input)
	}

	result := req.Messages[1].Content[0]
	if result.Type != "tool_result" || result.ToolUseID != "toolu_01" {
		t.Errorf("tool_result block = %+v", result)
	}
}

func TestBuildRequestFiles(t *testing.T) {
	messages := []domain.Message{{
		Role: domain.RoleUser,
		Content: []domain.ContentItem{
			domain.FileItem(&domain.File{ContentType: "image/jpeg", Data: "aGk="}),
			domain.FileItem(&domain.File{ContentType: "application/pdf", URL: "https://example.com/doc.pdf"}),
		},
	}}
	req, err := BuildRequest(messages, domain.ProviderOptions{Model: "claude-sonnet-4"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	blocks := req.Messages[0].Content
	if blocks[0].Type != "image" || blocks[0].Source.Type != "base64" || blocks[0].Source.MediaType != "image/jpeg" {
		t.Errorf("image block = %+v", blocks[0])
	}
	if blocks[1].Type != "document" || blocks[1].Source.Type != "url" || blocks[1].Source.URL == "" {
		t.Errorf("document block = %+v", blocks[1])
	}
}

func TestBuildRequestRejectsAudio(t *testing.T) {
	messages := []domain.Message{{
		Role: domain.RoleUser,
		Content: []domain.ContentItem{
			domain.FileItem(&domain.File{ContentType: "audio/wav", Data: "aGk="}),
		},
	}}
	_, err := BuildRequest(messages, domain.ProviderOptions{Model: "claude-sonnet-4"})
	perr, ok := err.(*domain.ProviderError)
	if !ok || perr.Code != domain.CodeInvalidFile {
		t.Fatalf("err = %v, want invalid_file", err)
	}
}

func TestParseResponseTextAndUsage(t *testing.T) {
	resp := &MessagesResponse{
		Model:      "claude-sonnet-4",
		StopReason: "end_turn",
		Content: []ContentBlock{
			{Type: "text", Text: "Hello "},
			{Type: "text", Text: "there"},
		},
		Usage: Usage{InputTokens: 100, OutputTokens: 20, CacheReadInputTokens: 40},
	}
	out, err := ParseResponse(resp)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if out.Text != "Hello there" {
		t.Errorf("text = %q", out.Text)
	}
	if out.FinishReason != "stop" {
		t.Errorf("finish reason = %q", out.FinishReason)
	}
	if out.Usage.PromptTokens != 140 || out.Usage.CachedTokens != 40 {
		t.Errorf("usage = %+v", out.Usage)
	}
}

func TestParseResponseToolUse(t *testing.T) {
	resp := &MessagesResponse{
		StopReason: "tool_use",
		Content: []ContentBlock{{
			Type:  "tool_use",
			ID:    "toolu_02",
			Name:  "search",
			Input: json.RawMessage(`{"q":"go"}`),
		}},
	}
	out, err := ParseResponse(resp)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if out.FinishReason != "tool_call" {
		t.Errorf("finish reason = %q", out.FinishReason)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Input["q"] != "go" {
		t.Errorf("tool calls = %+v", out.ToolCalls)
	}
}

func TestExtractStreamDeltaToolCallLifecycle(t *testing.T) {
	sctx := adapter.NewStreamContext()
	events := []struct {
		name string
		data string
	}{
		{"message_start", `{"type":"message_start","message":{"usage":{"input_tokens":50,"output_tokens":1}}}`},
		{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_09","name":"get_weather"}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\""}}`},
		{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":":\"Oslo\"}"}}`},
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":17}}`},
	}

	var calls []*domain.ToolCallRequest
	var finish string
	for _, ev := range events {
		chunks, err := ExtractStreamDelta(ev.name, []byte(ev.data), sctx)
		if err != nil {
			t.Fatalf("ExtractStreamDelta(%s): %v", ev.name, err)
		}
		for _, ch := range chunks {
			if ch.ToolCall != nil {
				calls = append(calls, ch.ToolCall)
			}
			if ch.FinishReason != "" {
				finish = ch.FinishReason
			}
		}
	}

	if len(calls) != 1 {
		t.Fatalf("emitted %d tool calls, want exactly 1", len(calls))
	}
	if calls[0].ID != "toolu_09" || calls[0].Input["city"] != "Oslo" {
		t.Errorf("call = %+v", calls[0])
	}
	if finish != "tool_call" {
		t.Errorf("finish reason = %q", finish)
	}
	usage := sctx.Usage()
	if usage.PromptTokens != 50 || usage.CompletionTokens != 17 {
		t.Errorf("usage = %+v, want the final output count, not the placeholder", usage)
	}
}

func TestExtractStreamDeltaText(t *testing.T) {
	sctx := adapter.NewStreamContext()
	var text string
	for _, data := range []string{
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Bon"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"jour"}}`,
	} {
		chunks, err := ExtractStreamDelta("content_block_delta", []byte(data), sctx)
		if err != nil {
			t.Fatalf("ExtractStreamDelta: %v", err)
		}
		for _, ch := range chunks {
			text += ch.TextDelta
		}
	}
	if text != "Bonjour" {
		t.Errorf("text = %q", text)
	}
}

func TestClassifyErrorHeuristics(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    domain.ErrorCode
		capture bool
	}{
		{"credit", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"Your credit balance is too low"}}`, domain.CodeInvalidProviderConfig, false},
		{"prompt too long", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 250000 tokens"}}`, domain.CodeMaxTokensExceeded, false},
		{"image size", 400, `{"type":"error","error":{"type":"invalid_request_error","message":"image exceeds 5 MB maximum"}}`, domain.CodeInvalidFile, false},
		{"rate limit", 429, `{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`, domain.CodeRateLimit, false},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`, domain.CodeProviderUnavailable, false},
		{"api error", 500, `{"type":"error","error":{"type":"api_error","message":"internal"}}`, domain.CodeProviderInternal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := ClassifyError(tt.status, []byte(tt.body))
			if perr.Code != tt.code {
				t.Errorf("code = %q, want %q", perr.Code, tt.code)
			}
			if perr.Capture != tt.capture {
				t.Errorf("capture = %v, want %v", perr.Capture, tt.capture)
			}
		})
	}
}
