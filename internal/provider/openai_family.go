package provider

import "strings"

// buildOpenAIFamilyRequest implements §4.B.1: the shared OpenAI-compatible
// request shape, plus OpenRouter's additional rewrites when isOpenRouter is
// true. Path is always "/chat/completions".
func buildOpenAIFamilyRequest(req *GenerationRequest, isOpenRouter bool) (string, map[string]any, error) {
	body := map[string]any{
		"model":    req.Model,
		"messages": messagesToJSON(req.Messages),
		"stream":   req.Stream,
	}
	applyGenerationKnobs(body, req)

	if len(req.Options.Tools) > 0 {
		body["tools"] = req.Options.Tools
	}
	if req.Options.ToolChoice != nil {
		body["tool_choice"] = req.Options.ToolChoice
	}
	if req.Options.JSONSchema != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.Options.JSONSchema.Name,
				"schema": req.Options.JSONSchema.Value,
			},
		}
	}

	if isOpenRouter {
		applyOpenRouterOverrides(body, req)
		applyOpenRouterPromptCaching(body, req)
	}

	return "/chat/completions", body, nil
}

func applyGenerationKnobs(body map[string]any, req *GenerationRequest) {
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		body["top_k"] = *req.TopK
	}
	if req.MaxCompletionTokens != nil {
		body["max_completion_tokens"] = *req.MaxCompletionTokens
	} else if req.MaxTokens != nil {
		body["max_tokens"] = *req.MaxTokens
	}
	if len(req.Stop) > 0 {
		body["stop"] = req.Stop
	}
	if req.Seed != nil {
		body["seed"] = *req.Seed
	}
}

// applyOpenRouterOverrides implements §4.B.1's OpenRouter-specific rewrites.
func applyOpenRouterOverrides(body map[string]any, req *GenerationRequest) {
	opts := req.Options

	if opts.MinP != nil {
		body["min_p"] = *opts.MinP
	}
	if opts.TopA != nil {
		body["top_a"] = *opts.TopA
	}
	if opts.RepetitionPenalty != nil {
		body["repetition_penalty"] = *opts.RepetitionPenalty
	}

	body["include_reasoning"] = opts.IncludeReasoning

	switch opts.MiddleOut {
	case "on":
		body["transforms"] = []string{"middle-out"}
	case "off":
		body["transforms"] = []string{}
	}

	if opts.EnableWebSearch {
		body["plugins"] = []map[string]string{{"id": "web"}}
	}

	if len(opts.OpenRouterProviders) > 0 {
		body["provider"] = map[string]any{
			"allow_fallbacks": opts.AllowFallbacks,
			"order":           opts.OpenRouterProviders,
		}
	}

	if opts.UseFallback {
		body["route"] = "fallback"
	}

	if opts.ReasoningEffort != "" {
		delete(body, "reasoning_effort")
		body["reasoning"] = map[string]string{"effort": opts.ReasoningEffort}
	}
}

// messagesToJSON projects canonical Messages into the OpenAI wire shape —
// this family needs no role remapping, only omitting empty optional fields,
// which encoding/json's struct tags already do for us via Message's json tags.
func messagesToJSON(messages []Message) []Message {
	return messages
}

// applyOpenRouterPromptCaching implements the OpenRouter→Claude passthrough
// cache annotation (spec §8 scenario 3, grounded on `openrouter.rs`'s
// apply_openrouter_prompt_caching and `prompt_cache.rs`): it runs only for an
// "anthropic/claude*" passthrough model with EnableSystemPromptCache set, and
// then marks with cache_control the system message's last text part and the
// last content part of the messages at role-boundary depths cachingAtDepth
// and cachingAtDepth+2.
func applyOpenRouterPromptCaching(body map[string]any, req *GenerationRequest) {
	if !isOpenRouterClaudeModel(req.Model) {
		return
	}
	opts := req.Options
	if !opts.EnableSystemPromptCache {
		return
	}
	messages, ok := body["messages"].([]Message)
	if !ok {
		return
	}

	ttl := "5m"
	if opts.ExtendedTTL {
		ttl = "1h"
	}

	applySystemPromptCacheForOpenRouter(messages, ttl)
	applyDepthCacheForOpenRouterClaude(messages, opts.CachingAtDepth, ttl)
}

func isOpenRouterClaudeModel(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "anthropic/claude")
}

// applySystemPromptCacheForOpenRouter mirrors
// apply_system_prompt_cache_for_openrouter: finds the first system message,
// leaves it alone if a part is already cache-annotated, otherwise wraps a
// plain string content into a single text part and annotates it, or
// annotates the last text part of an existing array-form content.
func applySystemPromptCacheForOpenRouter(messages []Message, ttl string) {
	for i := range messages {
		if messages[i].Role != "system" {
			continue
		}
		msg := &messages[i]
		switch content := msg.Content.(type) {
		case []ContentPart:
			for _, part := range content {
				if part.CacheControl != nil {
					return
				}
			}
			for j := len(content) - 1; j >= 0; j-- {
				if content[j].Type == "text" {
					content[j].CacheControl = &claudeCache{Type: "ephemeral", TTL: ttl}
					return
				}
			}
		case string:
			msg.Content = []ContentPart{{Type: "text", Text: content, CacheControl: &claudeCache{Type: "ephemeral", TTL: ttl}}}
		}
		return
	}
}

// applyDepthCacheForOpenRouterClaude mirrors
// apply_depth_cache_for_openrouter_claude: walks messages bottom-up,
// skipping a trailing run of assistant messages (the prefill), and marks the
// last content part of the message at each of the first two role-boundary
// depths matching cachingAtDepth and cachingAtDepth+2.
func applyDepthCacheForOpenRouterClaude(messages []Message, cachingAtDepth int, ttl string) {
	passedPrefill := false
	depth := 0
	previousRole := ""

	for i := len(messages) - 1; i >= 0; i-- {
		role := messages[i].Role
		if !passedPrefill && role == "assistant" {
			continue
		}
		passedPrefill = true

		if role == previousRole {
			continue
		}

		if depth == cachingAtDepth || depth == cachingAtDepth+2 {
			markLastContentPartCacheable(&messages[i], ttl)
		}
		if depth == cachingAtDepth+2 {
			break
		}
		depth++
		previousRole = role
	}
}

// markLastContentPartCacheable ensures msg.Content is array-of-parts form
// (wrapping a plain string into a single text part, matching
// ensure_openrouter_message_content_parts) and annotates its last part.
func markLastContentPartCacheable(msg *Message, ttl string) {
	var parts []ContentPart
	switch content := msg.Content.(type) {
	case []ContentPart:
		parts = content
	case string:
		parts = []ContentPart{{Type: "text", Text: content}}
	default:
		return
	}
	if len(parts) == 0 {
		return
	}
	parts[len(parts)-1].CacheControl = &claudeCache{Type: "ephemeral", TTL: ttl}
	msg.Content = parts
}
