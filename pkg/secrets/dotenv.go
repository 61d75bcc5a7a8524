package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// DotEnv parses a `.env` file, per spec.md §4.9: `export` prefix support,
// quoted strings with embedded newlines, and `$VAR`/`${VAR}` interpolation
// are all handled by github.com/joho/godotenv's parser. Results are cached
// by Path so repeated ResolveSecrets calls don't re-read the file.
type DotEnv struct {
	EnvName string
	Path    string

	mu     sync.Mutex
	cached map[string]string
	loaded bool
}

// NewDotEnv creates a DotEnv provider reading path on first resolution.
func NewDotEnv(name, path string) *DotEnv {
	return &DotEnv{EnvName: name, Path: path}
}

// Name implements Provider.
func (p *DotEnv) Name() string { return p.EnvName }

// ResolveSecrets implements Provider, parsing and caching Path on first
// call.
func (p *DotEnv) ResolveSecrets(_ context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded {
		return cloneMap(p.cached), nil
	}

	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open dotenv file %q: %w", p.Path, err)
	}
	defer f.Close()

	parsed, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse dotenv file %q: %w", p.Path, err)
	}

	p.cached = parsed
	p.loaded = true
	return cloneMap(parsed), nil
}

// InvalidateCache forces the next ResolveSecrets to re-read Path.
func (p *DotEnv) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
	p.cached = nil
}
