package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const literalFlags = "gimsuy"

// Pattern is a regular expression over file paths. It is written either in
// RE2 syntax ("\\.css$") or as a JavaScript style literal ("/\\.css$/i").
// The pattern is kept as written and compiled on demand, so a bad pattern
// surfaces from Validate together with every other problem.
type Pattern string

// IsZero reports whether no pattern was given.
func (p Pattern) IsZero() bool {
	return p == ""
}

// Expr returns the pattern in RE2 syntax, translating literal flags into an
// inline flag group. Text is only read as a literal when it starts with "/"
// and everything after the last "/" is a flag, so "/src/.*\.js$" is plain RE2
// while "/node_modules/" is the literal matching "node_modules".
func (p Pattern) Expr() (string, error) {
	raw := string(p)
	if len(raw) < 2 || raw[0] != '/' {
		return raw, nil
	}
	end := strings.LastIndex(raw, "/")
	if end == 0 {
		return raw, nil
	}

	body, flags := raw[1:end], raw[end+1:]
	if strings.Trim(flags, literalFlags) != "" {
		return raw, nil
	}

	var inline strings.Builder
	for _, f := range flags {
		// g, u and y have no meaning when matching a single path
		if strings.ContainsRune("ims", f) && !strings.ContainsRune(inline.String(), f) {
			inline.WriteRune(f)
		}
	}
	if inline.Len() == 0 {
		return body, nil
	}
	return "(?" + inline.String() + ")" + body, nil
}

// Compile compiles the pattern.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	expr, err := p.Expr()
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, string(p), err)
	}
	return re, nil
}

// LoaderRef names a loader and its options.
type LoaderRef struct {
	Loader  string         `yaml:"loader" json:"loader"`
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

func (l *LoaderRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*l = LoaderRef{Loader: value.Value}
		return nil
	}
	type plain LoaderRef
	return value.Decode((*plain)(l))
}

func (l *LoaderRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*l = LoaderRef{Loader: name}
		return nil
	}
	type plain LoaderRef
	return json.Unmarshal(data, (*plain)(l))
}

func (l LoaderRef) MarshalYAML() (any, error) {
	if len(l.Options) == 0 {
		return l.Loader, nil
	}
	type plain LoaderRef
	return plain(l), nil
}

// LoaderChain is the "use" list of a rule. A single loader may be given
// without the surrounding list.
type LoaderChain []LoaderRef

func (c *LoaderChain) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		var ref LoaderRef
		if err := value.Decode(&ref); err != nil {
			return err
		}
		*c = LoaderChain{ref}
		return nil
	}
	var refs []LoaderRef
	if err := value.Decode(&refs); err != nil {
		return err
	}
	*c = refs
	return nil
}

func (c *LoaderChain) UnmarshalJSON(data []byte) error {
	var refs []LoaderRef
	if err := json.Unmarshal(data, &refs); err == nil {
		*c = refs
		return nil
	}
	var ref LoaderRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return err
	}
	*c = LoaderChain{ref}
	return nil
}

// Names returns the loader names in order.
func (c LoaderChain) Names() []string {
	names := make([]string, len(c))
	for i, ref := range c {
		names[i] = ref.Loader
	}
	return names
}
