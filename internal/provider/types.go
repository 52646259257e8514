// Package provider implements the Provider Router, the per-provider Payload
// Translators, and the Response Normalizers (spec §4.A-C).
package provider

import "encoding/json"

// Source is the closed enumeration of upstream chat-completion sources
// (§3 "chat_completion_source"). Per §9 Design Notes, provider selection is
// expressed as a tagged variant rather than open polymorphism.
type Source string

const (
	SourceOpenAI      Source = "openai"
	SourceOpenRouter  Source = "openrouter"
	SourceClaude      Source = "claude"
	SourceMakerSuite  Source = "makersuite"
	SourceDeepSeek    Source = "deepseek"
	SourceMoonshot    Source = "moonshot"
	SourceSiliconFlow Source = "siliconflow"
	SourceZAI         Source = "zai"
	SourceCustom      Source = "custom"
)

// Purpose distinguishes a connectivity probe from an actual generation call,
// since a handful of providers (deepseek) use different base URLs for each.
type Purpose string

const (
	PurposeStatus   Purpose = "status"
	PurposeGenerate Purpose = "generate"
)

// Message is one canonical chat message (§3).
type Message struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"` // string | []ContentPart
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ContentPart is one element of an array-form message content (text or image).
type ContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
	CacheControl *claudeCache `json:"cache_control,omitempty"`
}

// ToolCall is the canonical tool-call shape (§3, GLOSSARY).
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded string
}

// ToolSpec is a caller-declared callable tool (OpenAI "tools" shape).
type ToolSpec struct {
	Type     string `json:"type"` // "function"
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

// JSONSchemaOption is the `{name, value}` structured-response knob (§3).
type JSONSchemaOption struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// ProviderOptions carries every field recognized "only when relevant" to a
// specific provider (§3 "Provider-specific options").
type ProviderOptions struct {
	ReverseProxy         string
	ProxyPassword        string
	CustomURL            string
	CustomIncludeHeaders string
	AssistantPrefill     string
	UseSysprompt         bool
	JSONSchema           *JSONSchemaOption
	Tools                []ToolSpec
	ToolChoice           any // "auto" | "required" | "none" | {function:{name}}
	ReasoningEffort      string
	IncludeReasoning     bool
	MiddleOut            string // "on" | "off"
	EnableWebSearch      bool
	OpenRouterProviders  []string
	AllowFallbacks       bool
	UseFallback          bool
	ZAIEndpoint          string

	EnableSystemPromptCache bool
	CachingAtDepth          int
	ExtendedTTL             bool

	MinP              *float64
	TopA              *float64
	RepetitionPenalty *float64
}

// GenerationRequest is the canonical envelope consumed by the Provider Router
// and translators (§3 "Canonical Generation Request").
type GenerationRequest struct {
	Source   Source    `json:"-" validate:"required,oneof=openai openrouter claude makersuite deepseek moonshot siliconflow zai custom"`
	Model    string    `json:"model" validate:"required"`
	Messages []Message `json:"messages" validate:"required,min=1"`

	Temperature        *float64 `json:"temperature,omitempty"`
	TopP               *float64 `json:"top_p,omitempty"`
	TopK               *int     `json:"top_k,omitempty"`
	MaxTokens          *int     `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int    `json:"max_completion_tokens,omitempty"`
	Stop               []string `json:"stop,omitempty"`
	Seed               *int     `json:"seed,omitempty"`
	Stream             bool     `json:"stream,omitempty"`

	Options ProviderOptions `json:"-"`
}

// APIConfig is the output of the Provider Router (§3 "API Config").
type APIConfig struct {
	BaseURL      string
	APIKey       string
	ExtraHeaders map[string]string
}

// Response is the normalized OpenAI-compatible envelope produced by every
// Response Normalizer (§4.C).
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
