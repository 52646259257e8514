// Package tokenizer implements the Tokenizer Registry (§4.D): a
// canonicalizing model-name router over three tokenizer families —
// OpenAI tiktoken, SentencePiece, and JSON web-tokenizers — with
// bundled/lazily-downloaded resource acquisition and provider-specific
// message-array token counting.
package tokenizer

import "strings"

// DefaultFallbackModel is used whenever the requested model name is empty.
const DefaultFallbackModel = "gpt-3.5-turbo"

// Canonical maps a free-form model name onto one of the fixed tokenizer
// identifiers. The match order is significant — longer, more specific
// substrings are checked before their shorter prefixes — and is carried over
// verbatim from the original Rust router (grounded on
// miktik_tokenizer_repository.rs::canonical_model) since spec.md §4.D only
// names the target set, not the match order.
func Canonical(requestedModel string) string {
	model := strings.ToLower(strings.TrimSpace(requestedModel))
	if model == "" {
		return DefaultFallbackModel
	}

	switch {
	case model == "o1", strings.Contains(model, "o1-preview"), strings.Contains(model, "o1-mini"), strings.Contains(model, "o3-mini"):
		return "o1"
	// Open Question (spec §9): o3/o4-mini/gpt-5 routing to the o1 tiktoken
	// family is a heuristic carried over verbatim; preserved, not re-derived.
	case strings.Contains(model, "gpt-5"), strings.Contains(model, "o3"), strings.Contains(model, "o4-mini"):
		return "o1"
	case strings.Contains(model, "gpt-4o"), strings.Contains(model, "chatgpt-4o-latest"), strings.Contains(model, "gpt-4.1"), strings.Contains(model, "gpt-4.5"):
		return "gpt-4o"
	case strings.Contains(model, "gpt-4-32k"):
		return "gpt-4-32k"
	case strings.Contains(model, "gpt-4"):
		return "gpt-4"
	case strings.Contains(model, "gpt-3.5-turbo-0301"):
		return "gpt-3.5-turbo-0301"
	case strings.Contains(model, "gpt-3.5-turbo"):
		return "gpt-3.5-turbo"
	case strings.Contains(model, "claude"):
		return "claude"
	case strings.Contains(model, "llama3"), strings.Contains(model, "llama-3"):
		return "llama3"
	case strings.Contains(model, "llama"):
		return "llama"
	case strings.Contains(model, "mistral"):
		return "mistral"
	case strings.Contains(model, "yi"):
		return "yi"
	case strings.Contains(model, "deepseek"):
		return "deepseek"
	case strings.Contains(model, "gemma"), strings.Contains(model, "gemini"), strings.Contains(model, "learnlm"):
		return "gemma"
	case strings.Contains(model, "jamba"):
		return "jamba"
	case strings.Contains(model, "qwen2"), strings.Contains(model, "qwen"):
		return "qwen2"
	case strings.Contains(model, "command-r"):
		return "command-r"
	case strings.Contains(model, "command-a"):
		return "command-a"
	case strings.Contains(model, "nemo"), strings.Contains(model, "pixtral"):
		return "nemo"
	case strings.Contains(model, "nerdstash"):
		return "nerdstash"
	default:
		return DefaultFallbackModel
	}
}

// family is the closed set of tokenizer backends (§9 Design Notes: tokenizer
// selection is a closed enumeration, expressed as a tagged variant).
type family int

const (
	familyTiktoken family = iota
	familySentencePiece
	familyWebTokenizer
)

var sentencePieceModels = map[string]bool{
	"llama": true, "mistral": true, "yi": true, "gemma": true, "jamba": true, "nerdstash": true,
}

var webTokenizerModels = map[string]bool{
	"claude": true, "llama3": true, "command-r": true, "command-a": true, "qwen2": true, "nemo": true, "deepseek": true,
}

func familyOf(canonical string) family {
	switch {
	case sentencePieceModels[canonical]:
		return familySentencePiece
	case webTokenizerModels[canonical]:
		return familyWebTokenizer
	default:
		return familyTiktoken
	}
}

func isHuggingFaceModel(canonical string) bool {
	return sentencePieceModels[canonical] || webTokenizerModels[canonical]
}
