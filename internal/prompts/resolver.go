// Package prompts resolves prompt names to instruction text. Built-in prompts
// shipped with the binary always win; stored prompts follow their visibility.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chris/threadbot/internal/db"
)

// SystemAuthor is reported as the creator of built-in prompts.
const SystemAuthor = "system"

//go:embed builtin.yaml
var builtinYAML []byte

// Store is the slice of storage the resolver reads.
type Store interface {
	GetVisiblePrompt(ctx context.Context, name, user string) (*db.Prompt, error)
}

type Resolver struct {
	builtins map[string]string
	store    Store
}

// New returns a resolver over the embedded built-in catalogue and store.
func New(store Store) (*Resolver, error) {
	builtins, err := parseBuiltins(builtinYAML)
	if err != nil {
		return nil, err
	}
	return &Resolver{builtins: builtins, store: store}, nil
}

func parseBuiltins(raw []byte) (map[string]string, error) {
	var m map[string]string
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing built-in prompts: %w", err)
	}
	for name, text := range m {
		m[name] = strings.TrimSpace(text)
	}
	return m, nil
}

// IsBuiltin reports whether name is reserved by a built-in prompt.
func (r *Resolver) IsBuiltin(name string) bool {
	_, ok := r.builtins[name]
	return ok
}

// Builtin returns a built-in prompt as a db.Prompt, or nil.
func (r *Resolver) Builtin(name string) *db.Prompt {
	text, ok := r.builtins[name]
	if !ok {
		return nil
	}
	return &db.Prompt{Name: name, Text: text, Visibility: db.VisibilityPublic, CreatedBy: SystemAuthor}
}

// Builtins returns every built-in prompt ordered by name.
func (r *Resolver) Builtins() []db.Prompt {
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]db.Prompt, 0, len(names))
	for _, name := range names {
		out = append(out, *r.Builtin(name))
	}
	return out
}

// Resolve finds the prompt user may apply under name: built-ins first, then
// a stored prompt that is public or owned by user. A miss returns nil, nil.
func (r *Resolver) Resolve(ctx context.Context, name, user string) (*db.Prompt, error) {
	if name == "" {
		return nil, nil
	}
	if p := r.Builtin(name); p != nil {
		return p, nil
	}
	p, err := r.store.GetVisiblePrompt(ctx, name, user)
	if err != nil {
		return nil, fmt.Errorf("resolving prompt %q: %w", name, err)
	}
	return p, nil
}
