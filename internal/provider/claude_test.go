package provider

import "testing"

func TestOpenRouterClaudeCaching(t *testing.T) {
	req := &GenerationRequest{
		Source: SourceOpenRouter,
		Model:  "anthropic/claude-3.5-sonnet",
		Messages: []Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "how are you"},
		},
	}
	req.Options.EnableSystemPromptCache = true
	req.Options.CachingAtDepth = 0

	r := NewRouter(fakeSecrets{})
	path, body, err := r.BuildUpstreamRequest(req)
	if err != nil {
		t.Fatalf("BuildUpstreamRequest: %v", err)
	}
	if path != "/chat/completions" {
		t.Fatalf("expected the OpenRouter chat/completions path, got %q", path)
	}

	messages, ok := body["messages"].([]Message)
	if !ok || len(messages) == 0 {
		t.Fatalf("expected the OpenAI-family message shape, got %#v", body["messages"])
	}

	sysParts, ok := messages[0].Content.([]ContentPart)
	if !ok || len(sysParts) == 0 {
		t.Fatalf("expected the system message to be an annotated part array, got %#v", messages[0].Content)
	}
	lastSysPart := sysParts[len(sysParts)-1]
	if lastSysPart.CacheControl == nil || lastSysPart.CacheControl.Type != "ephemeral" {
		t.Fatalf("expected system part cache_control.type == ephemeral, got %+v", lastSysPart.CacheControl)
	}

	lastMsg := messages[len(messages)-1]
	lastParts, ok := lastMsg.Content.([]ContentPart)
	if !ok || len(lastParts) == 0 {
		t.Fatalf("expected the last message's content to be an annotated part array, got %#v", lastMsg.Content)
	}
	lastPart := lastParts[len(lastParts)-1]
	if lastPart.CacheControl == nil {
		t.Fatalf("expected the last message's last content part to carry cache_control")
	}
}

func TestOpenRouterCachingSkippedForNonClaudeModel(t *testing.T) {
	req := &GenerationRequest{
		Source: SourceOpenRouter,
		Model:  "openai/gpt-4.1-mini",
		Messages: []Message{
			{Role: "system", Content: "be helpful"},
			{Role: "user", Content: "hi"},
		},
	}
	req.Options.EnableSystemPromptCache = true
	req.Options.CachingAtDepth = 0

	r := NewRouter(fakeSecrets{})
	_, body, err := r.BuildUpstreamRequest(req)
	if err != nil {
		t.Fatalf("BuildUpstreamRequest: %v", err)
	}

	messages, ok := body["messages"].([]Message)
	if !ok || len(messages) == 0 {
		t.Fatalf("expected messages in the body, got %#v", body["messages"])
	}
	if _, ok := messages[0].Content.([]ContentPart); ok {
		t.Fatalf("expected non-claude OpenRouter models to be left uncached, got %#v", messages[0].Content)
	}
}

func TestClaudeRequestResponseRoundTrip(t *testing.T) {
	req := &GenerationRequest{
		Source:   SourceClaude,
		Model:    "claude-3-5-sonnet-latest",
		Messages: []Message{{Role: "user", Content: "say hi"}},
	}
	path, _, err := buildClaudeRequest(req)
	if err != nil {
		t.Fatalf("buildClaudeRequest: %v", err)
	}
	if path != "/messages" {
		t.Fatalf("expected /messages path, got %q", path)
	}

	echoed := []byte(`{"content":[{"type":"text","text":"<payload>"}],"stop_reason":"end_turn"}`)
	resp, err := NormalizeClaude(echoed, 0)
	if err != nil {
		t.Fatalf("NormalizeClaude: %v", err)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Fatalf("expected finish_reason stop, got %q", resp.Choices[0].FinishReason)
	}
	if resp.Choices[0].Message.Content != "<payload>" {
		t.Fatalf("expected content to equal echoed payload, got %v", resp.Choices[0].Message.Content)
	}
}

func TestClaudeDefaultsMaxTokensAndNonEmptyMessages(t *testing.T) {
	req := &GenerationRequest{Source: SourceClaude, Model: "claude-3-haiku"}
	_, body, err := buildClaudeRequest(req)
	if err != nil {
		t.Fatalf("buildClaudeRequest: %v", err)
	}
	if body["max_tokens"] != 1024 {
		t.Fatalf("expected default max_tokens 1024, got %v", body["max_tokens"])
	}
	messages := body["messages"].([]claudeMessage)
	if len(messages) != 1 || messages[0].Role != "user" || len(messages[0].Content) != 1 {
		t.Fatalf("expected a single synthesized empty user message, got %#v", messages)
	}
}
