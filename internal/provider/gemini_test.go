package provider

import "testing"

func TestGeminiFlashThinkingBudget(t *testing.T) {
	maxTokens := 4000
	req := &GenerationRequest{
		Source:    SourceMakerSuite,
		Model:     "gemini-2.5-flash",
		Messages:  []Message{{Role: "user", Content: "hello"}},
		MaxTokens: &maxTokens,
		Options:   ProviderOptions{ReasoningEffort: "medium", IncludeReasoning: true},
	}

	path, body, err := buildGeminiRequest(req)
	if err != nil {
		t.Fatalf("buildGeminiRequest: %v", err)
	}
	if path != "/generateContent" {
		t.Fatalf("expected non-streaming endpoint, got %q", path)
	}

	genConfig, ok := body["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("expected generationConfig map, got %#v", body["generationConfig"])
	}
	thinking, ok := genConfig["thinkingConfig"].(map[string]any)
	if !ok {
		t.Fatalf("expected thinkingConfig map, got %#v", genConfig["thinkingConfig"])
	}
	if thinking["thinkingBudget"] != 1000 {
		t.Fatalf("expected thinkingBudget 1000, got %v", thinking["thinkingBudget"])
	}
	if thinking["includeThoughts"] != true {
		t.Fatalf("expected includeThoughts true, got %v", thinking["includeThoughts"])
	}
}

func TestGeminiToolResultNameInheritance(t *testing.T) {
	req := &GenerationRequest{
		Source: SourceMakerSuite,
		Model:  "gemini-2.0-flash",
		Messages: []Message{
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Type: "function", Function: FunctionCall{Name: "weather", Arguments: `{"city":"Paris"}`}}}},
			{Role: "tool", ToolCallID: "c1", Content: `{"temperature":20}`},
		},
	}

	_, body, err := buildGeminiRequest(req)
	if err != nil {
		t.Fatalf("buildGeminiRequest: %v", err)
	}
	contents, ok := body["contents"].([]map[string]any)
	if !ok || len(contents) != 2 {
		t.Fatalf("expected two contents entries, got %#v", body["contents"])
	}

	parts0 := contents[0]["parts"].([]map[string]any)
	fc, ok := parts0[0]["functionCall"].(map[string]any)
	if !ok || fc["name"] != "weather" {
		t.Fatalf("expected first content to carry functionCall{name:weather}, got %#v", parts0)
	}

	if contents[1]["role"] != "user" {
		t.Fatalf("expected second content role=user, got %v", contents[1]["role"])
	}
	parts1 := contents[1]["parts"].([]map[string]any)
	fr, ok := parts1[0]["functionResponse"].(map[string]any)
	if !ok || fr["name"] != "weather" {
		t.Fatalf("expected functionResponse{name:weather}, got %#v", parts1)
	}
	response, ok := fr["response"].(map[string]any)
	if !ok || response["temperature"] != float64(20) {
		t.Fatalf("expected response.temperature == 20, got %#v", fr["response"])
	}
}
