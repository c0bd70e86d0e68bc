package text

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
)

// Resource paths, relative to the resources directory.
const (
	StopwordsResource  = "stopwords/english.txt"
	LexiconResource    = "lemmatizer/lexicon.txt"
	ExceptionsResource = "lemmatizer/exceptions.txt"
)

// RequiredResources lists every resource the normalizer reads.
var RequiredResources = []string{
	StopwordsResource,
	LexiconResource,
	ExceptionsResource,
}

//go:embed resources
var embeddedResources embed.FS

// Provider fetches the raw bytes of a named resource.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, resource string) ([]byte, error)
}

// EmbeddedProvider serves the resources compiled into the binary.
type EmbeddedProvider struct{}

// Name implements Provider.
func (EmbeddedProvider) Name() string { return "embedded" }

// Fetch implements Provider.
func (EmbeddedProvider) Fetch(_ context.Context, resource string) ([]byte, error) {
	return embeddedResources.ReadFile(path.Join("resources", resource))
}

// HTTPProvider downloads resources relative to a base URL. Requests are
// paced by a token bucket so a cold start does not hammer the mirror.
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Default request pacing for HTTPProvider.
const (
	DefaultFetchRate  = 2
	DefaultFetchBurst = 3
)

// NewHTTPProvider creates a provider rooted at baseURL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultFetchRate), DefaultFetchBurst),
	}
}

// WithRateLimit replaces the request pacing. A non-positive rps disables it.
func (p *HTTPProvider) WithRateLimit(rps float64, burst int) *HTTPProvider {
	if rps <= 0 {
		p.limiter = rate.NewLimiter(rate.Inf, 0)
		return p
	}
	if burst < 1 {
		burst = 1
	}
	p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return p
}

// Name implements Provider.
func (p *HTTPProvider) Name() string { return "http" }

// Fetch implements Provider.
func (p *HTTPProvider) Fetch(ctx context.Context, resource string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+resource, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	return data, nil
}

// ProvidersFromConfig builds the ordered provider list named in cfg.
func ProvidersFromConfig(cfg config.TextConfig) ([]Provider, error) {
	var providers []Provider
	for _, name := range cfg.ProviderList() {
		switch name {
		case "embedded":
			providers = append(providers, EmbeddedProvider{})
		case "http":
			if cfg.ResourceURL == "" {
				return nil, errors.ValidationError("http resource provider requires a resource URL")
			}
			p := NewHTTPProvider(cfg.ResourceURL)
			if cfg.FetchRate > 0 {
				p.WithRateLimit(cfg.FetchRate, DefaultFetchBurst)
			}
			providers = append(providers, p)
		default:
			return nil, errors.ValidationError(fmt.Sprintf("unknown resource provider: %s", name))
		}
	}
	return providers, nil
}

// EnsureResources makes every required resource present under dir, asking
// the providers in order for the ones that are missing. Resources already on
// disk are left untouched, so repeated calls are cheap.
func EnsureResources(ctx context.Context, dir string, providers []Provider, log *logger.Logger) error {
	if log == nil {
		log = logger.Default()
	}

	for _, resource := range RequiredResources {
		target := filepath.Join(dir, filepath.FromSlash(resource))
		if _, err := os.Stat(target); err == nil {
			continue
		}

		data, source, err := fetchFirst(ctx, resource, providers)
		if err != nil {
			return err
		}

		if err := writeAtomic(target, data); err != nil {
			return errors.ResourceError(fmt.Sprintf("failed to store resource %s", resource), err)
		}

		log.Info("Fetched language resource", "resource", resource, "provider", source, "bytes", len(data))
	}

	return nil
}

// fetchFirst returns the first successful provider result. When every
// provider fails, all failures are reported together.
func fetchFirst(ctx context.Context, resource string, providers []Provider) ([]byte, string, error) {
	if len(providers) == 0 {
		return nil, "", errors.ResourceError(
			fmt.Sprintf("resource %s missing and no providers configured", resource), nil)
	}

	var failures []error
	for _, p := range providers {
		data, err := p.Fetch(ctx, resource)
		if err == nil && len(bytes.TrimSpace(data)) == 0 {
			err = stderrors.New("empty resource")
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		return data, p.Name(), nil
	}

	return nil, "", errors.ResourceError(
		fmt.Sprintf("resource %s unavailable from all %d providers", resource, len(providers)),
		stderrors.Join(failures...))
}

func writeAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Resources holds the parsed language data.
type Resources struct {
	Stopwords  map[string]struct{}
	Lexicon    map[string]struct{}
	Exceptions map[string]string
}

// LoadResources parses the resources stored under dir.
func LoadResources(dir string) (*Resources, error) {
	read := func(resource string) ([]string, error) {
		f, err := os.Open(filepath.Join(dir, filepath.FromSlash(resource)))
		if err != nil {
			return nil, errors.ResourceError(fmt.Sprintf("failed to open resource %s", resource), err)
		}
		defer f.Close()
		return readLines(f)
	}

	res := &Resources{
		Stopwords:  make(map[string]struct{}),
		Lexicon:    make(map[string]struct{}),
		Exceptions: make(map[string]string),
	}

	lines, err := read(StopwordsResource)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		res.Stopwords[l] = struct{}{}
	}

	lines, err = read(LexiconResource)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		if isLowerAlpha(l) {
			res.Lexicon[l] = struct{}{}
		}
	}

	lines, err = read(ExceptionsResource)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) != 2 || !isLowerAlpha(fields[0]) || !isLowerAlpha(fields[1]) {
			continue
		}
		res.Exceptions[fields[0]] = fields[1]
	}

	return res, nil
}

// readLines returns trimmed, non-empty, non-comment lines.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func isLowerAlpha(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}
