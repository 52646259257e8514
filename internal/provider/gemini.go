package provider

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// buildGeminiRequest implements §4.B.3.
func buildGeminiRequest(req *GenerationRequest) (string, map[string]any, error) {
	opts := req.Options
	path := "/generateContent"
	if req.Stream {
		path = "/streamGenerateContent"
	}

	body := map[string]any{}

	if opts.UseSysprompt {
		if sys := concatSystemMessages(req.Messages); sys != "" {
			body["systemInstruction"] = map[string]any{"parts": []map[string]string{{"text": sys}}}
		}
	}

	toolNameByCallID := indexToolCallNames(req.Messages)
	body["contents"] = convertGeminiContents(req.Messages, toolNameByCallID)

	genConfig := map[string]any{"candidateCount": 1}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		genConfig["topP"] = *req.TopP
	}
	if req.TopK != nil {
		genConfig["topK"] = *req.TopK
	}
	if req.Seed != nil {
		genConfig["seed"] = *req.Seed
	}
	maxTokens := 0
	if req.MaxCompletionTokens != nil {
		maxTokens = *req.MaxCompletionTokens
		genConfig["maxOutputTokens"] = maxTokens
	} else if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
		genConfig["maxOutputTokens"] = maxTokens
	}
	if len(req.Stop) > 0 {
		genConfig["stopSequences"] = req.Stop
	}
	if opts.JSONSchema != nil {
		genConfig["responseMimeType"] = "application/json"
		genConfig["responseSchema"] = opts.JSONSchema.Value
	}

	if thinking := geminiThinkingConfig(req.Model, opts, maxTokens); thinking != nil {
		genConfig["thinkingConfig"] = thinking
	}

	body["generationConfig"] = genConfig

	if len(opts.Tools) > 0 {
		decls := make([]map[string]any, 0, len(opts.Tools))
		for _, t := range opts.Tools {
			decl := map[string]any{"name": t.Function.Name}
			if t.Function.Description != "" {
				decl["description"] = t.Function.Description
			}
			decl["parameters"] = stripJSONSchemaField(t.Function.Parameters)
			decls = append(decls, decl)
		}
		body["tools"] = []map[string]any{{"functionDeclarations": decls}}
	}
	if opts.ToolChoice != nil {
		body["toolConfig"] = map[string]any{"functionCallingConfig": geminiToolChoice(opts.ToolChoice)}
	}

	return path, body, nil
}

func geminiToolChoice(choice any) map[string]any {
	switch v := choice.(type) {
	case string:
		switch v {
		case "none":
			return map[string]any{"mode": "NONE"}
		case "required":
			return map[string]any{"mode": "ANY"}
		case "auto":
			return map[string]any{"mode": "AUTO"}
		}
	case map[string]any:
		if fn, ok := v["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok {
				return map[string]any{"mode": "ANY", "allowedFunctionNames": []string{name}}
			}
		}
	}
	return map[string]any{"mode": "AUTO"}
}

func stripJSONSchemaField(raw []byte) map[string]any {
	var m map[string]any
	if len(raw) == 0 {
		return map[string]any{}
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	delete(m, "$schema")
	return m
}

func indexToolCallNames(messages []Message) map[string]string {
	out := map[string]string{}
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			out[tc.ID] = tc.Function.Name
		}
	}
	return out
}

func convertGeminiContents(messages []Message, toolNames map[string]string) []map[string]any {
	var out []map[string]any
	for _, m := range messages {
		if m.Role == "system" {
			continue
		}
		switch m.Role {
		case "assistant":
			parts := []map[string]any{}
			if text := contentToText(m.Content); text != "" {
				parts = append(parts, map[string]any{"text": text})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{"name": tc.Function.Name, "args": decodeJSONArgs(tc.Function.Arguments)},
				})
			}
			out = append(out, map[string]any{"role": "model", "parts": parts})
		case "tool":
			name := toolNames[m.ToolCallID]
			if name == "" {
				name = "tool"
			}
			out = append(out, map[string]any{
				"role": "user",
				"parts": []map[string]any{{
					"functionResponse": map[string]any{"name": name, "response": decodeJSONArgs(contentToText(m.Content))},
				}},
			})
		default:
			out = append(out, map[string]any{"role": "user", "parts": geminiParts(m.Content)})
		}
	}
	return out
}

func geminiParts(content any) []map[string]any {
	switch v := content.(type) {
	case string:
		return []map[string]any{{"text": v}}
	case []ContentPart:
		parts := make([]map[string]any, 0, len(v))
		for _, p := range v {
			switch {
			case p.Type == "text":
				parts = append(parts, map[string]any{"text": p.Text})
			case p.Type == "image_url" && p.ImageURL != nil:
				mime, data := decodeDataURL(p.ImageURL.URL)
				parts = append(parts, map[string]any{"inlineData": map[string]string{"mimeType": mime, "data": data}})
			}
		}
		return parts
	default:
		return []map[string]any{{"text": ""}}
	}
}

func decodeDataURL(url string) (mime, data string) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "application/octet-stream", url
	}
	rest := url[len(prefix):]
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "application/octet-stream", ""
	}
	mime, _, _ = strings.Cut(meta, ";")
	if _, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return mime, payload
	}
	return mime, payload
}

func decodeJSONArgs(raw string) map[string]any {
	var m map[string]any
	if raw == "" {
		return map[string]any{}
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{"value": raw}
	}
	return m
}

// geminiModelFamily returns the canonical thinking-config family prefix for a
// model name, or "" when the model has no thinking config (§4.B.3).
func geminiModelFamily(model string) string {
	m := strings.ToLower(model)
	if strings.Contains(m, "-image") {
		return ""
	}
	for _, prefix := range []string{"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro", "gemini-3-flash", "gemini-3-pro"} {
		if strings.HasPrefix(m, prefix) {
			return prefix
		}
	}
	return ""
}

func geminiThinkingConfig(model string, opts ProviderOptions, maxTokens int) map[string]any {
	family := geminiModelFamily(model)
	if family == "" {
		return nil
	}

	cfg := map[string]any{}
	switch family {
	case "gemini-3-pro":
		switch opts.ReasoningEffort {
		case "min", "low", "medium":
			cfg["thinkingLevel"] = "low"
		case "high", "max":
			cfg["thinkingLevel"] = "high"
		}
	case "gemini-3-flash":
		switch opts.ReasoningEffort {
		case "min":
			cfg["thinkingLevel"] = "minimal"
		case "low":
			cfg["thinkingLevel"] = "low"
		case "medium":
			cfg["thinkingLevel"] = "medium"
		case "high", "max":
			cfg["thinkingLevel"] = "high"
		}
	default: // 2.5-era numeric budgets
		floor, ceil := 0, 24576
		switch family {
		case "gemini-2.5-flash-lite":
			floor, ceil = 512, 24576
		case "gemini-2.5-flash":
			floor, ceil = 0, 24576
		case "gemini-2.5-pro":
			floor, ceil = 128, 32768
		}
		if opts.ReasoningEffort == "auto" || opts.ReasoningEffort == "" {
			cfg["thinkingBudget"] = -1
		} else {
			share := map[string]float64{"min": 0, "low": 0.10, "medium": 0.25, "high": 0.50, "max": 1.0}[opts.ReasoningEffort]
			budget := clampInt(int(share*float64(maxTokens)), floor, ceil)
			cfg["thinkingBudget"] = budget
		}
	}

	if len(cfg) == 0 {
		return nil
	}
	cfg["includeThoughts"] = opts.IncludeReasoning
	return cfg
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
