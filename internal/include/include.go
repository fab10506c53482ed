// Package include expands file-include directives in HTML sources.
//
// A directive has the form
//
//	@@include('partials/header.html')
//	@@include("partials/header.html", {"title": "Home"})
//
// The path is resolved relative to the file containing the directive. The
// optional JSON object provides variables that the included file (and
// anything it includes) references as @@title. Unknown variables are left
// as written. The "@@" prefix is configurable.
package include

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultPrefix marks directives and variables.
const DefaultPrefix = "@@"

// maxDepth bounds nested includes.
const maxDepth = 32

// ErrCycle is returned when a file includes itself, directly or not.
var ErrCycle = errors.New("include cycle")

// Processor expands include directives.
type Processor struct {
	directive *regexp.Regexp
	variable  *regexp.Regexp
	readFile  func(name string) ([]byte, error)
}

// New creates a processor for the given prefix.
func New(prefix string) *Processor {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	p := regexp.QuoteMeta(prefix)

	return &Processor{
		directive: regexp.MustCompile(p + `include\(\s*(['"])(.+?)(['"])\s*(?:,\s*(\{[\s\S]*?\})\s*)?\)`),
		variable:  regexp.MustCompile(p + `([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)`),
		readFile:  os.ReadFile,
	}
}

// Process expands all directives in content, which was read from path.
func (p *Processor) Process(path string, content []byte) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	out, err := p.expand(abs, string(content), nil, []string{abs})
	if err != nil {
		return nil, err
	}

	return []byte(out), nil
}

func (p *Processor) expand(path, content string, vars map[string]any, stack []string) (string, error) {
	if len(stack) > maxDepth {
		return "", fmt.Errorf("%s: includes nested deeper than %d", path, maxDepth)
	}

	content = p.substitute(content, vars)

	var firstErr error

	out := p.directive.ReplaceAllStringFunc(content, func(m string) string {
		if firstErr != nil {
			return m
		}

		sub := p.directive.FindStringSubmatch(m)
		if sub[1] != sub[3] {
			return m
		}

		target := filepath.Join(filepath.Dir(path), filepath.FromSlash(sub[2]))

		for _, s := range stack {
			if s == target {
				firstErr = fmt.Errorf("%w: %s", ErrCycle, strings.Join(append(stack, target), " -> "))
				return m
			}
		}

		local := vars
		if sub[4] != "" {
			var extra map[string]any
			if err := json.Unmarshal([]byte(sub[4]), &extra); err != nil {
				firstErr = fmt.Errorf("%s: invalid include context for %s: %w", path, sub[2], err)
				return m
			}

			local = merge(vars, extra)
		}

		data, err := p.readFile(target)
		if err != nil {
			firstErr = fmt.Errorf("%s: including %s: %w", path, sub[2], err)
			return m
		}

		expanded, err := p.expand(target, string(data), local, append(stack[:len(stack):len(stack)], target))
		if err != nil {
			firstErr = err
			return m
		}

		return expanded
	})

	if firstErr != nil {
		return "", firstErr
	}

	return out, nil
}

// substitute replaces known variables; unknown ones stay untouched.
func (p *Processor) substitute(content string, vars map[string]any) string {
	if len(vars) == 0 {
		return content
	}

	return p.variable.ReplaceAllStringFunc(content, func(m string) string {
		name := p.variable.FindStringSubmatch(m)[1]
		if v, ok := lookup(vars, name); ok {
			return v
		}

		return m
	})
}

// lookup resolves a dotted name against nested maps.
func lookup(vars map[string]any, name string) (string, bool) {
	var cur any = vars

	for _, part := range strings.Split(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}

		cur, ok = m[part]
		if !ok {
			return "", false
		}
	}

	switch v := cur.(type) {
	case string:
		return v, true
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}

		return string(b), true
	case nil:
		return "", true
	default:
		return fmt.Sprint(v), true
	}
}

func merge(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}

	for k, v := range extra {
		out[k] = v
	}

	return out
}
