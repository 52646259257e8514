package tokenizer

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/tauritavern/companion-core/internal/domainerr"
)

// Registry is the process-wide Tokenizer Registry (§4.D): it canonicalizes
// model names, lazily registers SentencePiece/web-tokenizer resources behind
// a registration guard shared across callers, and counts tokens for a
// message array using whichever of the three backends the canonical model
// routes to.
//
// Mirrors MiktikTokenizerRepository one-for-one: an RWMutex-guarded
// "already registered" set fast-paths the common case, and a plain Mutex
// serializes the slow (download-and-persist) registration path so
// concurrent requests for the same cold model don't race each other onto
// the network.
type Registry struct {
	cacheDir string
	client   *http.Client

	registeredMu sync.RWMutex
	registered   map[string]bool
	registerMu   sync.Mutex

	backendsMu sync.Mutex
	backends   map[string]backend

	tiktokenMu sync.Mutex
	tiktoken   map[string]*tiktoken.Tiktoken
}

// NewRegistry creates a registry that caches downloaded tokenizer resources
// under cacheDir. The HTTP client carries the same 10s-connect/60s-overall
// timeout budget as the teacher's ureq::Agent configuration.
func NewRegistry(cacheDir string) *Registry {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: 10 * time.Second}).DialContext
	return &Registry{
		cacheDir:   cacheDir,
		client:     &http.Client{Timeout: 60 * time.Second, Transport: transport},
		registered: make(map[string]bool),
		backends:   make(map[string]backend),
		tiktoken:   make(map[string]*tiktoken.Tiktoken),
	}
}

// tiktokenEncoding returns a cached *tiktoken.Tiktoken for canonical,
// loading it once per process — tiktoken-go rebuilds its BPE ranks from
// scratch on every EncodingForModel call, which is wasteful to repeat per
// request.
func (r *Registry) tiktokenEncoding(canonical string) (*tiktoken.Tiktoken, error) {
	r.tiktokenMu.Lock()
	defer r.tiktokenMu.Unlock()

	if enc, ok := r.tiktoken[canonical]; ok {
		return enc, nil
	}
	enc, err := tiktokenEncodingFor(canonical)
	if err != nil {
		return nil, err
	}
	r.tiktoken[canonical] = enc
	return enc, nil
}

// CountMessages canonicalizes requestedModel, lazily registers its backend
// resources if needed, and returns the token count the appropriate family
// would produce for messages.
func (r *Registry) CountMessages(ctx context.Context, requestedModel string, messages []Message) (int, error) {
	canonical := Canonical(requestedModel)

	if isHuggingFaceModel(canonical) {
		if err := r.ensureHFModelRegistered(ctx, canonical); err != nil {
			return 0, err
		}
	}

	switch familyOf(canonical) {
	case familySentencePiece:
		b, err := r.backendFor(canonical)
		if err != nil {
			return 0, err
		}
		return len(b.Encode(toSentencePieceCountInput(messages))), nil
	case familyWebTokenizer:
		b, err := r.backendFor(canonical)
		if err != nil {
			return 0, err
		}
		return len(b.Encode(toWebTokenizerPrompt(messages))), nil
	default:
		enc, err := r.tiktokenEncoding(canonical)
		if err != nil {
			return 0, err
		}
		return countOpenAIMessages(enc, canonical, messages), nil
	}
}

// CountText counts a single string directly, bypassing message flattening —
// used for status-check token budgets and standalone prompt counting.
func (r *Registry) CountText(ctx context.Context, requestedModel string, text string) (int, error) {
	canonical := Canonical(requestedModel)

	if isHuggingFaceModel(canonical) {
		if err := r.ensureHFModelRegistered(ctx, canonical); err != nil {
			return 0, err
		}
		b, err := r.backendFor(canonical)
		if err != nil {
			return 0, err
		}
		return len(b.Encode(text)), nil
	}

	enc, err := r.tiktokenEncoding(canonical)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (r *Registry) isRegistered(canonical string) bool {
	r.registeredMu.RLock()
	defer r.registeredMu.RUnlock()
	return r.registered[canonical]
}

func (r *Registry) markRegistered(canonical string) {
	r.registeredMu.Lock()
	defer r.registeredMu.Unlock()
	r.registered[canonical] = true
}

// ensureHFModelRegistered double-checks registration under registerMu so
// concurrent callers for the same cold model don't each kick off a
// download — only the first to acquire the lock does the work, the rest
// observe it already registered once they get in.
func (r *Registry) ensureHFModelRegistered(ctx context.Context, canonical string) error {
	if r.isRegistered(canonical) {
		return nil
	}

	r.registerMu.Lock()
	defer r.registerMu.Unlock()

	if r.isRegistered(canonical) {
		return nil
	}

	spec, ok := resourceSpecFor(canonical)
	if !ok {
		return domainerr.New(domainerr.NotFound, "no tokenizer resource spec for model '"+canonical+"'")
	}

	var raw []byte
	var err error
	if spec.source.bundled != nil {
		raw = spec.source.bundled
	} else {
		raw, err = r.ensureModelFile(ctx, spec)
		if err != nil {
			return err
		}
	}

	b, err := newJSONVocabBackend(raw)
	if err != nil {
		return err
	}

	r.backendsMu.Lock()
	r.backends[canonical] = b
	r.backendsMu.Unlock()

	r.markRegistered(canonical)
	return nil
}

// ensureModelFile returns the cached resource bytes, downloading (and, if
// spec.source.gzip, decompressing) them into cacheDir on first use.
func (r *Registry) ensureModelFile(ctx context.Context, spec resourceSpec) ([]byte, error) {
	path := filepath.Join(r.cacheDir, spec.fileName)

	if existing, err := os.ReadFile(path); err == nil {
		return existing, nil
	}

	bytes, err := r.downloadModelBytes(ctx, spec.source.url, spec.source.gzip)
	if err != nil {
		return nil, err
	}

	if err := r.writeBytes(path, bytes); err != nil {
		return nil, err
	}
	return bytes, nil
}

func (r *Registry) downloadModelBytes(ctx context.Context, url string, gzipped bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "build tokenizer download request", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "download tokenizer resource '"+url+"'", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domainerr.New(domainerr.InternalError, "tokenizer resource request failed for '"+url+"'")
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "read downloaded tokenizer bytes from '"+url+"'", err)
	}

	if !gzipped {
		return payload, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "open gzip tokenizer payload '"+url+"'", err)
	}
	defer gz.Close()

	decompressed, err := io.ReadAll(gz)
	if err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "decompress tokenizer payload '"+url+"'", err)
	}
	return decompressed, nil
}

func (r *Registry) writeBytes(path string, bytes []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return domainerr.Wrap(domainerr.InternalError, "create tokenizer cache directory '"+dir+"'", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o644); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "persist tokenizer resource to '"+path+"'", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return domainerr.Wrap(domainerr.InternalError, "finalize tokenizer resource at '"+path+"'", err)
	}
	return nil
}

func (r *Registry) backendFor(canonical string) (backend, error) {
	r.backendsMu.Lock()
	defer r.backendsMu.Unlock()
	b, ok := r.backends[canonical]
	if !ok {
		return nil, domainerr.New(domainerr.InternalError, "tokenizer backend for '"+canonical+"' was not registered")
	}
	return b, nil
}
