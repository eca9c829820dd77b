package google

import (
	"testing"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/tokens"
)

func TestBuildRequestSystemInstruction(t *testing.T) {
	messages := []domain.Message{
		domain.TextMessage(domain.RoleSystem, "Be terse."),
		domain.TextMessage(domain.RoleUser, "hi"),
		domain.TextMessage(domain.RoleAssistant, "hello"),
	}
	req, err := BuildRequest(messages, domain.ProviderOptions{Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.SystemInstruction == nil || len(req.SystemInstruction.Parts) != 1 {
		t.Fatalf("systemInstruction = %+v", req.SystemInstruction)
	}
	if req.SystemInstruction.Parts[0].Text != "Be terse." {
		t.Errorf("system text = %q", req.SystemInstruction.Parts[0].Text)
	}
	if len(req.Contents) != 2 {
		t.Fatalf("contents = %d, want 2", len(req.Contents))
	}
	if req.Contents[0].Role != "user" || req.Contents[1].Role != "model" {
		t.Errorf("roles = %q, %q; assistant must map to model", req.Contents[0].Role, req.Contents[1].Role)
	}
}

func TestBuildRequestFunctionResponsePairsByName(t *testing.T) {
	messages := []domain.Message{{
		Role: domain.RoleUser,
		Content: []domain.ContentItem{
			domain.ToolResultItem(&domain.ToolCallResult{ID: "ignored", Name: "lookup", Value: 42}),
		},
	}}
	req, err := BuildRequest(messages, domain.ProviderOptions{Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	fr := req.Contents[0].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "lookup" {
		t.Fatalf("functionResponse = %+v", fr)
	}
	if fr.Response["result"] != 42 {
		t.Errorf("response payload = %+v", fr.Response)
	}
}

func TestBuildRequestRejectsURLOnlyFiles(t *testing.T) {
	messages := []domain.Message{{
		Role: domain.RoleUser,
		Content: []domain.ContentItem{
			domain.FileItem(&domain.File{ContentType: "image/png", URL: "https://example.com/a.png"}),
		},
	}}
	_, err := BuildRequest(messages, domain.ProviderOptions{Model: "gemini-2.5-flash"})
	perr, ok := err.(*domain.ProviderError)
	if !ok || perr.Code != domain.CodeInvalidFile {
		t.Fatalf("err = %v, want invalid_file", err)
	}
}

func TestBuildRequestStructuredOutput(t *testing.T) {
	schema := map[string]any{"type": "object"}
	req, err := BuildRequest(
		[]domain.Message{domain.TextMessage(domain.RoleUser, "hi")},
		domain.ProviderOptions{Model: "gemini-2.5-flash", OutputSchema: schema},
	)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("generationConfig = %+v", req.GenerationConfig)
	}
}

func TestParseResponseGeneratesToolCallIDs(t *testing.T) {
	resp := &GenerateResponse{
		Candidates: []Candidate{{
			FinishReason: "STOP",
			Content: &Content{Parts: []Part{
				{FunctionCall: &FunctionCall{Name: "lookup", Args: map[string]any{"key": "v"}}},
			}},
		}},
	}
	out, err := ParseResponse(resp)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d", len(out.ToolCalls))
	}
	if out.ToolCalls[0].ID == "" {
		t.Error("tool call id must be generated")
	}
	if out.FinishReason != "tool_call" {
		t.Errorf("finish reason = %q", out.FinishReason)
	}
}

func TestParseResponsePromptBlocked(t *testing.T) {
	resp := &GenerateResponse{
		PromptFeedback: &PromptFeedback{BlockReason: "SAFETY"},
	}
	_, err := ParseResponse(resp)
	perr, ok := err.(*domain.ProviderError)
	if !ok || perr.Code != domain.CodeContentModeration {
		t.Fatalf("err = %v, want content_moderation", err)
	}
	if perr.Capture {
		t.Error("moderation blocks are expected conditions, not capture-worthy")
	}
}

func TestParseResponseSafetyFinish(t *testing.T) {
	resp := &GenerateResponse{
		Candidates: []Candidate{{FinishReason: "SAFETY"}},
	}
	_, err := ParseResponse(resp)
	perr, ok := err.(*domain.ProviderError)
	if !ok || perr.Code != domain.CodeContentModeration {
		t.Fatalf("err = %v, want content_moderation", err)
	}
}

func TestBackfillUsageOnlyFillsMissing(t *testing.T) {
	a := &Adapter{counter: tokens.NewRegistry(tokens.NewEstimator())}
	messages := []domain.Message{domain.TextMessage(domain.RoleUser, "count these tokens please")}

	out := &domain.StructuredOutput{Text: "a reply worth counting"}
	a.backfillUsage(out, messages, domain.ProviderOptions{Model: "gemini-2.5-flash"})
	if out.Usage.PromptTokens == 0 || out.Usage.CompletionTokens == 0 {
		t.Errorf("usage not backfilled: %+v", out.Usage)
	}
	if !out.Usage.Estimated {
		t.Error("backfilled usage must be flagged as estimated")
	}

	vendor := &domain.StructuredOutput{Text: "a reply", Usage: domain.Usage{PromptTokens: 9, CompletionTokens: 3}}
	a.backfillUsage(vendor, messages, domain.ProviderOptions{Model: "gemini-2.5-flash"})
	if vendor.Usage.PromptTokens != 9 || vendor.Usage.CompletionTokens != 3 {
		t.Errorf("vendor counts overwritten: %+v", vendor.Usage)
	}
	if vendor.Usage.Estimated {
		t.Error("vendor-reported usage must not be flagged as estimated")
	}
}

func TestExtractStreamDeltaFunctionCall(t *testing.T) {
	sctx := adapter.NewStreamContext()
	data := `{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"lookup","args":{"key":"v"}}}]},"finishReason":"STOP"}]}`
	chunks, err := ExtractStreamDelta([]byte(data), sctx)
	if err != nil {
		t.Fatalf("ExtractStreamDelta: %v", err)
	}
	var call *domain.ToolCallRequest
	finish := ""
	for _, ch := range chunks {
		if ch.ToolCall != nil {
			call = ch.ToolCall
		}
		if ch.FinishReason != "" {
			finish = ch.FinishReason
		}
	}
	if call == nil || call.Name != "lookup" || call.ID == "" {
		t.Fatalf("call = %+v", call)
	}
	if finish != "tool_call" {
		t.Errorf("finish reason = %q", finish)
	}
}

func TestExtractStreamDeltaCumulativeUsage(t *testing.T) {
	sctx := adapter.NewStreamContext()
	increments := []string{
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"first"}]}}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":4,"totalTokenCount":16}}`,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":" second"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":11,"totalTokenCount":23}}`,
	}
	for _, data := range increments {
		if _, err := ExtractStreamDelta([]byte(data), sctx); err != nil {
			t.Fatalf("ExtractStreamDelta: %v", err)
		}
	}
	// Reported counts are cumulative, so the final increment's figures are
	// the request totals.
	usage := sctx.Usage()
	if usage.PromptTokens != 12 || usage.CompletionTokens != 11 {
		t.Errorf("usage = %+v, want the last reported counts", usage)
	}
}

func TestClassifyErrorTable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   domain.ErrorCode
	}{
		{"bad key", 400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`, domain.CodeInvalidProviderConfig},
		{"quota", 429, `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`, domain.CodeRateLimit},
		{"overloaded", 503, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`, domain.CodeProviderUnavailable},
		{"context", 400, `{"error":{"code":400,"message":"The input token count exceeds the maximum number of tokens allowed","status":"INVALID_ARGUMENT"}}`, domain.CodeMaxTokensExceeded},
		{"bad request", 400, `{"error":{"code":400,"message":"Invalid JSON payload","status":"INVALID_ARGUMENT"}}`, domain.CodeBadRequest},
		{"internal", 500, `{"error":{"code":500,"message":"Internal error","status":"INTERNAL"}}`, domain.CodeProviderInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := ClassifyError(tt.status, []byte(tt.body))
			if perr.Code != tt.code {
				t.Errorf("code = %q, want %q", perr.Code, tt.code)
			}
		})
	}
}
