package provider

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

type fakeSecrets map[string]string

func (f fakeSecrets) Active(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func TestDeepSeekStatusVsGenerateBaseURL(t *testing.T) {
	r := NewRouter(fakeSecrets{"api_key_deepseek": "sk"})

	status, err := r.ResolveStatusConfig(SourceDeepSeek, ProviderOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://api.deepseek.com", status.BaseURL)

	req := &GenerationRequest{Source: SourceDeepSeek, Model: "deepseek-chat", Messages: []Message{{Role: "user", Content: "hi"}}}
	generate, err := r.ResolveGenerateConfig(SourceDeepSeek, req)
	require.NoError(t, err)
	require.Equal(t, "https://api.deepseek.com/beta", generate.BaseURL)
}

func TestMissingAPIKeyIsValidationError(t *testing.T) {
	r := NewRouter(fakeSecrets{})
	_, err := r.ResolveStatusConfig(SourceOpenAI, ProviderOptions{})
	require.Error(t, err)
	require.True(t, domainerr.Is(err, domainerr.ValidationError))
}

func TestCustomProviderRequiresURL(t *testing.T) {
	r := NewRouter(fakeSecrets{})
	_, err := r.ResolveStatusConfig(SourceCustom, ProviderOptions{})
	require.Error(t, err)
}

func TestZAICodingEndpointCaseInsensitive(t *testing.T) {
	r := NewRouter(fakeSecrets{"api_key_zai": "sk"})
	cfg, err := r.ResolveStatusConfig(SourceZAI, ProviderOptions{ZAIEndpoint: "CODING"})
	require.NoError(t, err)
	require.Equal(t, "https://api.z.ai/api/coding/paas/v4", cfg.BaseURL)
	require.Equal(t, "en-US,en", cfg.ExtraHeaders["Accept-Language"])
}

func TestReverseProxyOverridesDefaultForCapableProvider(t *testing.T) {
	r := NewRouter(fakeSecrets{"api_key_claude": "unused"})
	cfg, err := r.ResolveStatusConfig(SourceClaude, ProviderOptions{ReverseProxy: "https://proxy.local", ProxyPassword: "pw"})
	require.NoError(t, err)
	require.Equal(t, "https://proxy.local", cfg.BaseURL)
	require.Equal(t, "pw", cfg.APIKey)
}

func TestReverseProxyIgnoredForNonCapableProvider(t *testing.T) {
	r := NewRouter(fakeSecrets{"api_key_siliconflow": "sk"})
	cfg, err := r.ResolveStatusConfig(SourceSiliconFlow, ProviderOptions{ReverseProxy: "https://proxy.local"})
	require.NoError(t, err)
	require.Equal(t, "https://api.siliconflow.com/v1", cfg.BaseURL)
	require.Equal(t, "sk", cfg.APIKey)
}

func TestParseHeaderBlockAcceptsValidHeaders(t *testing.T) {
	headers, err := parseHeaderBlock("X-Custom-Header: value\nAuthorization: Bearer token")
	require.NoError(t, err)
	require.Equal(t, "value", headers["X-Custom-Header"])
	require.Equal(t, "Bearer token", headers["Authorization"])
}

func TestParseHeaderBlockRejectsInvalidHeaderName(t *testing.T) {
	_, err := parseHeaderBlock("Bad Header Name: value")
	require.Error(t, err)
}

func TestParseHeaderBlockRejectsControlCharacterInValue(t *testing.T) {
	_, err := parseHeaderBlock("X-Custom: val\x01ue")
	require.Error(t, err)
}
