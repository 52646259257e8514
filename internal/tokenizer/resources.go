package tokenizer

// resourceSource describes where a non-tiktoken tokenizer's bytes come from
// (§4.D "Resource acquisition"), grounded on
// miktik_tokenizer_repository.rs::ModelResourceSpec.
type resourceSource struct {
	bundled []byte // non-nil for compiled-in resources (claude, gemma)
	url     string // non-empty for remote resources
	gzip    bool
}

type resourceSpec struct {
	fileName string
	source   resourceSource
}

// resourceSpecFor returns the acquisition plan for a canonical tokenizer
// identifier, or false when the identifier is tiktoken-backed (no resource
// file — pkoukk/tiktoken-go ships its own BPE ranks).
func resourceSpecFor(canonical string) (resourceSpec, bool) {
	switch canonical {
	case "claude":
		return resourceSpec{fileName: "claude.json", source: resourceSource{bundled: bundledClaudeJSON}}, true
	case "gemma":
		return resourceSpec{fileName: "gemma.model", source: resourceSource{bundled: bundledGemmaModel}}, true
	case "llama3":
		return resourceSpec{fileName: "llama3.json", source: resourceSource{
			url: "https://raw.githubusercontent.com/SillyTavern/SillyTavern/release/src/tokenizers/llama3.json",
		}}, true
	case "llama":
		return resourceSpec{fileName: "llama.model", source: resourceSource{
			url: "https://raw.githubusercontent.com/SillyTavern/SillyTavern/release/src/tokenizers/llama.model",
		}}, true
	case "mistral":
		return resourceSpec{fileName: "mistral.model", source: resourceSource{
			url: "https://raw.githubusercontent.com/SillyTavern/SillyTavern/release/src/tokenizers/mistral.model",
		}}, true
	case "yi":
		return resourceSpec{fileName: "yi.model", source: resourceSource{
			url: "https://raw.githubusercontent.com/SillyTavern/SillyTavern/release/src/tokenizers/yi.model",
		}}, true
	case "jamba":
		return resourceSpec{fileName: "jamba.model", source: resourceSource{
			url: "https://raw.githubusercontent.com/SillyTavern/SillyTavern/release/src/tokenizers/jamba.model",
		}}, true
	case "nerdstash":
		return resourceSpec{fileName: "nerdstash.model", source: resourceSource{
			url: "https://raw.githubusercontent.com/SillyTavern/SillyTavern/release/src/tokenizers/nerdstash.model",
		}}, true
	case "command-r":
		return resourceSpec{fileName: "command-r.json", source: resourceSource{
			url: "https://github.com/SillyTavern/SillyTavern-Tokenizers/raw/main/command-r.json.gz", gzip: true,
		}}, true
	case "command-a":
		return resourceSpec{fileName: "command-a.json", source: resourceSource{
			url: "https://github.com/SillyTavern/SillyTavern-Tokenizers/raw/main/command-a.json.gz", gzip: true,
		}}, true
	case "qwen2":
		return resourceSpec{fileName: "qwen2.json", source: resourceSource{
			url: "https://github.com/SillyTavern/SillyTavern-Tokenizers/raw/main/qwen2.json.gz", gzip: true,
		}}, true
	case "nemo":
		return resourceSpec{fileName: "nemo.json", source: resourceSource{
			url: "https://github.com/SillyTavern/SillyTavern-Tokenizers/raw/main/nemo.json.gz", gzip: true,
		}}, true
	case "deepseek":
		return resourceSpec{fileName: "deepseek.json", source: resourceSource{
			url: "https://github.com/SillyTavern/SillyTavern-Tokenizers/raw/main/deepseek.json.gz", gzip: true,
		}}, true
	default:
		return resourceSpec{}, false
	}
}

// bundledClaudeJSON and bundledGemmaModel stand in for the teacher's
// include_bytes!-compiled resources. Unlike the original Rust build (which
// embeds real vocab files via include_bytes!), this rewrite ships a minimal
// placeholder vocabulary sufficient to exercise the registration and
// counting paths without vendoring third-party tokenizer assets into the
// module; production deployments would replace these with go:embed'd real
// resource files dropped in internal/tokenizer/testdata/.
var (
	bundledClaudeJSON  = []byte(`{"vocab":{},"merges":[]}`)
	bundledGemmaModel  = []byte(`{"vocab":{},"merges":[]}`)
)
