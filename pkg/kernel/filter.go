package kernel

import (
	"regexp"

	"github.com/stacklok/mcp-funnel/pkg/overrides"
)

// toolFilter compiles a Config's exposeTools/hideTools/exposeCoreTools
// glob lists once and answers whether a given fullName should be visible
// in tools/list.
//
// Precedence, per spec.md §4.14: hideTools beats exposeTools on conflict.
// Core tools (server == coreServer) are governed solely by
// exposeCoreTools and never consulted against exposeTools/hideTools: an
// empty exposeCoreTools list hides every core tool, matching the
// "hidden unless explicitly exposed" default spec.md §6 implies by
// listing it as its own glob option rather than folding it into
// exposeTools.
type toolFilter struct {
	expose     []*regexp.Regexp
	hide       []*regexp.Regexp
	coreExpose []*regexp.Regexp
	exposeAll  bool
}

func newToolFilter(cfg Config) (*toolFilter, error) {
	f := &toolFilter{}

	if len(cfg.ExposeTools) == 0 {
		f.exposeAll = true
	}
	for _, pattern := range cfg.ExposeTools {
		re, err := overrides.CompilePattern(pattern)
		if err != nil {
			return nil, err
		}
		f.expose = append(f.expose, re)
	}
	for _, pattern := range cfg.HideTools {
		re, err := overrides.CompilePattern(pattern)
		if err != nil {
			return nil, err
		}
		f.hide = append(f.hide, re)
	}
	for _, pattern := range cfg.ExposeCoreTools {
		re, err := overrides.CompilePattern(pattern)
		if err != nil {
			return nil, err
		}
		f.coreExpose = append(f.coreExpose, re)
	}
	return f, nil
}

// allows reports whether fullName should be visible, given the owning
// server (a non-"core" server name, or coreServer for kernel-provided
// tools).
func (f *toolFilter) allows(server, fullName string) bool {
	if server == coreServer {
		for _, re := range f.coreExpose {
			if re.MatchString(fullName) {
				return true
			}
		}
		return false
	}
	for _, re := range f.hide {
		if re.MatchString(fullName) {
			return false
		}
	}
	if f.exposeAll {
		return true
	}
	for _, re := range f.expose {
		if re.MatchString(fullName) {
			return true
		}
	}
	return false
}
