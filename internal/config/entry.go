package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// EntryPoint is one named bundle and the source files it starts from.
type EntryPoint struct {
	Name   string
	Import []string
	// Filename overrides output.filename for this entry
	Filename string
}

// Entry is the ordered entry map. In configuration files it may be a single
// path, a list of paths (both become the entry "main"), or a mapping from
// bundle name to a path, a list of paths or an {import, filename} record.
type Entry []EntryPoint

// Names returns entry names in declaration order.
func (e Entry) Names() []string {
	names := make([]string, len(e))
	for i, ep := range e {
		names[i] = ep.Name
	}
	return names
}

// Get returns the named entry.
func (e Entry) Get(name string) (EntryPoint, bool) {
	for _, ep := range e {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

type entryDescriptor struct {
	Import   imports `yaml:"import" json:"import"`
	Filename string  `yaml:"filename,omitempty" json:"filename,omitempty"`
}

// imports accepts a single path or a list of paths.
type imports []string

func (i *imports) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*i = imports{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*i = list
		return nil
	}
	return fmt.Errorf("%w: line %d: expected a path or a list of paths", ErrInvalidEntry, value.Line)
}

func (i *imports) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = imports{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("%w: expected a path or a list of paths", ErrInvalidEntry)
	}
	*i = list
	return nil
}

func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		var paths imports
		if err := value.Decode(&paths); err != nil {
			return err
		}
		*e = Entry{{Name: DefaultEntryName, Import: paths}}
		return nil
	}

	out := Entry{}
	seen := map[string]int{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if line, ok := seen[key.Value]; ok {
			return fmt.Errorf("%w: %q on line %d, first defined on line %d", ErrDuplicateEntry, key.Value, key.Line, line)
		}
		seen[key.Value] = key.Line

		ep := EntryPoint{Name: key.Value}
		if val.Kind == yaml.MappingNode {
			var d entryDescriptor
			if err := val.Decode(&d); err != nil {
				return err
			}
			ep.Import, ep.Filename = d.Import, d.Filename
		} else {
			var paths imports
			if err := val.Decode(&paths); err != nil {
				return err
			}
			ep.Import = paths
		}
		out = append(out, ep)
	}
	*e = out
	return nil
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		var paths imports
		if err := json.Unmarshal(data, &paths); err != nil {
			return err
		}
		*e = Entry{{Name: DefaultEntryName, Import: paths}}
		return nil
	}

	// Walk the object by token so order is kept and duplicate keys are
	// seen; encoding/json would silently keep the last one.
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}

	out := Entry{}
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected an entry name", ErrInvalidEntry)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateEntry, name)
		}
		seen[name] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		ep := EntryPoint{Name: name}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var d entryDescriptor
			if err := json.Unmarshal(raw, &d); err != nil {
				return err
			}
			ep.Import, ep.Filename = d.Import, d.Filename
		} else {
			var paths imports
			if err := json.Unmarshal(raw, &paths); err != nil {
				return err
			}
			ep.Import = paths
		}
		out = append(out, ep)
	}
	*e = out
	return nil
}

func (e Entry) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, ep := range e {
		var val yaml.Node
		if err := val.Encode(e.descriptor(ep)); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: ep.Name}, &val)
	}
	return node, nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ep := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ep.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.descriptor(ep))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (Entry) descriptor(ep EntryPoint) any {
	if ep.Filename != "" {
		return entryDescriptor{Import: ep.Import, Filename: ep.Filename}
	}
	if len(ep.Import) == 1 {
		return ep.Import[0]
	}
	return ep.Import
}
