package provider

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// SecretSource resolves the active stored secret value for a provider key.
// *secretstore.Store does not satisfy it directly: its Active returns an
// Entry, whose Value is what this interface yields.
type SecretSource interface {
	Active(key string) (value string, ok bool)
}

// secretKeyFor maps a Source to the fixed "api_key_<provider>" vocabulary (§6).
func secretKeyFor(source Source) string {
	return "api_key_" + string(source)
}

// reverseProxyCapable lists the providers that honor a caller-supplied
// reverse_proxy override (§4.A).
var reverseProxyCapable = map[Source]bool{
	SourceOpenAI:     true,
	SourceClaude:     true,
	SourceMakerSuite: true,
	SourceDeepSeek:   true,
	SourceMoonshot:   true,
	SourceZAI:        true,
}

// Router implements resolve_status_config / resolve_generate_config /
// build_upstream_request (§4.A). Per §9 Design Notes this is a tagged-variant
// dispatcher, not an open polymorphism hierarchy: one function per source,
// selected by a type switch, instead of a Provider object graph.
type Router struct {
	secrets SecretSource
}

func NewRouter(secrets SecretSource) *Router {
	return &Router{secrets: secrets}
}

func defaultBaseURL(source Source, purpose Purpose, zaiEndpoint string) (string, error) {
	switch source {
	case SourceOpenAI:
		return "https://api.openai.com/v1", nil
	case SourceOpenRouter:
		return "https://openrouter.ai/api/v1", nil
	case SourceClaude:
		return "https://api.anthropic.com/v1", nil
	case SourceMakerSuite:
		return "https://generativelanguage.googleapis.com", nil
	case SourceDeepSeek:
		if purpose == PurposeGenerate {
			return "https://api.deepseek.com/beta", nil
		}
		return "https://api.deepseek.com", nil
	case SourceMoonshot:
		return "https://api.moonshot.ai/v1", nil
	case SourceSiliconFlow:
		return "https://api.siliconflow.com/v1", nil
	case SourceZAI:
		if strings.EqualFold(zaiEndpoint, "coding") {
			return "https://api.z.ai/api/coding/paas/v4", nil
		}
		return "https://api.z.ai/api/paas/v4", nil
	default:
		return "", domainerr.New(domainerr.ValidationError, fmt.Sprintf("unknown provider source %q", source))
	}
}

func defaultHeaders(source Source) map[string]string {
	switch source {
	case SourceOpenRouter:
		return map[string]string{"HTTP-Referer": "https://tauritavern.local", "X-Title": "TauriTavern"}
	case SourceZAI:
		return map[string]string{"Accept-Language": "en-US,en"}
	default:
		return map[string]string{}
	}
}

func (r *Router) resolve(source Source, purpose Purpose, opts ProviderOptions) (APIConfig, error) {
	if source == SourceCustom {
		return r.resolveCustom(opts)
	}

	if reverseProxyCapable[source] && opts.ReverseProxy != "" {
		return APIConfig{BaseURL: opts.ReverseProxy, APIKey: opts.ProxyPassword, ExtraHeaders: defaultHeaders(source)}, nil
	}

	baseURL, err := defaultBaseURL(source, purpose, opts.ZAIEndpoint)
	if err != nil {
		return APIConfig{}, err
	}

	key, ok := r.secrets.Active(secretKeyFor(source))
	if !ok || key == "" {
		return APIConfig{}, domainerr.New(domainerr.ValidationError,
			fmt.Sprintf("%s API key is missing; set it via the secret store before calling this provider", source))
	}

	return APIConfig{BaseURL: baseURL, APIKey: key, ExtraHeaders: defaultHeaders(source)}, nil
}

func (r *Router) resolveCustom(opts ProviderOptions) (APIConfig, error) {
	baseURL := opts.CustomURL
	if baseURL == "" {
		baseURL = opts.ReverseProxy
	}
	if baseURL == "" {
		return APIConfig{}, domainerr.New(domainerr.ValidationError, "custom provider requires custom_url or reverse_proxy to be set")
	}

	var key string
	if opts.ReverseProxy != "" && opts.CustomURL == "" {
		key = opts.ProxyPassword
	} else {
		key, _ = r.secrets.Active(secretKeyFor(SourceCustom))
	}

	headers, err := parseHeaderBlock(opts.CustomIncludeHeaders)
	if err != nil {
		return APIConfig{}, err
	}
	return APIConfig{BaseURL: baseURL, APIKey: key, ExtraHeaders: headers}, nil
}

// parseHeaderBlock parses a free-form "Name: Value" per-line block (§3 "API Config").
func parseHeaderBlock(block string) (map[string]string, error) {
	headers := map[string]string{}
	if strings.TrimSpace(block) == "" {
		return headers, nil
	}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, domainerr.New(domainerr.InvalidData, "malformed custom header line: "+strconv.Quote(line))
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if !httpguts.ValidHeaderFieldName(name) {
			return nil, domainerr.New(domainerr.InvalidData, "invalid custom header name: "+strconv.Quote(name))
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return nil, domainerr.New(domainerr.InvalidData, "invalid custom header value for "+strconv.Quote(name))
		}
		headers[name] = value
	}
	return headers, nil
}

// ResolveStatusConfig resolves an APIConfig suitable for a connectivity probe.
func (r *Router) ResolveStatusConfig(source Source, opts ProviderOptions) (APIConfig, error) {
	return r.resolve(source, PurposeStatus, opts)
}

// ResolveGenerateConfig resolves an APIConfig suitable for a generation call.
func (r *Router) ResolveGenerateConfig(source Source, req *GenerationRequest) (APIConfig, error) {
	return r.resolve(source, PurposeGenerate, req.Options)
}

// BuildUpstreamRequest dispatches to the translator for req.Source and returns
// the upstream path and JSON body (§4.A "build_upstream_request").
func (r *Router) BuildUpstreamRequest(req *GenerationRequest) (path string, body map[string]any, err error) {
	switch req.Source {
	case SourceClaude:
		return buildClaudeRequest(req)
	case SourceMakerSuite:
		return buildGeminiRequest(req)
	case SourceOpenAI, SourceDeepSeek, SourceMoonshot, SourceSiliconFlow, SourceZAI, SourceCustom:
		return buildOpenAIFamilyRequest(req, false)
	case SourceOpenRouter:
		return buildOpenAIFamilyRequest(req, true)
	default:
		return "", nil, domainerr.New(domainerr.ValidationError, fmt.Sprintf("unknown provider source %q", req.Source))
	}
}
