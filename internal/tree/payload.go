package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Payload is a JSON object whose key order is preserved through a decode and
// re-encode. Values are kept as raw JSON and never interpreted.
type Payload struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewPayload builds a payload from ordered key/value pairs, mainly for tests.
func NewPayload(pairs ...any) (Payload, error) {
	if len(pairs)%2 != 0 {
		return Payload{}, fmt.Errorf("odd number of arguments")
	}
	var p Payload
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return Payload{}, fmt.Errorf("key %v is not a string", pairs[i])
		}
		raw, err := json.Marshal(pairs[i+1])
		if err != nil {
			return Payload{}, fmt.Errorf("value of %q: %w", key, err)
		}
		p.set(key, raw)
	}
	return p, nil
}

func (p *Payload) set(key string, raw json.RawMessage) {
	if p.values == nil {
		p.values = make(map[string]json.RawMessage)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = raw
}

// Len returns the number of keys.
func (p Payload) Len() int {
	return len(p.keys)
}

// Keys returns the keys in document order.
func (p Payload) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Get returns the raw value stored under key.
func (p Payload) Get(key string) (json.RawMessage, bool) {
	raw, ok := p.values[key]
	return raw, ok
}

// Without returns a copy of p with key removed.
func (p Payload) Without(key string) Payload {
	out := Payload{
		keys:   make([]string, 0, len(p.keys)),
		values: make(map[string]json.RawMessage, len(p.values)),
	}
	for _, k := range p.keys {
		if k == key {
			continue
		}
		out.keys = append(out.keys, k)
		out.values[k] = p.values[k]
	}
	return out
}

// Scalar returns the value of key as text. Strings are unquoted and numbers
// keep their literal form; anything else is rejected.
func (p Payload) Scalar(key string) (string, error) {
	raw, ok := p.values[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty %q", key)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("invalid %q: %w", key, err)
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if _, err := strconv.ParseFloat(string(trimmed), 64); err != nil {
			return "", fmt.Errorf("invalid %q: %w", key, err)
		}
		return string(trimmed), nil
	default:
		return "", fmt.Errorf("%q is not a string or number", key)
	}
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	*p = Payload{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		p.set(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON encodes the object with keys in their original order.
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(p.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML renders the payload as a YAML mapping in key order. Numbers
// keep their literal JSON text.
func (p Payload) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range p.keys {
		valueNode, err := yamlNode(p.values[key])
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			valueNode,
		)
	}
	return node, nil
}

func yamlNode(raw json.RawMessage) (*yaml.Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty value")
	}

	switch trimmed[0] {
	case '{':
		var nested Payload
		if err := nested.UnmarshalJSON(trimmed); err != nil {
			return nil, err
		}
		v, err := nested.MarshalYAML()
		if err != nil {
			return nil, err
		}
		return v.(*yaml.Node), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for i, item := range items {
			child, err := yamlNode(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			seq.Content = append(seq.Content, child)
		}
		return seq, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case json.Number:
		tag := "!!int"
		if bytes.ContainsAny(trimmed, ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.String()}, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON value %s", trimmed)
	}
}
