package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"

	"github.com/rennerdo30/auto-proxy/internal/fsutil"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

// LoadNode reads a YAML file into a yaml.Node so it can be edited without
// losing comments.
func LoadNode(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseNode(data)
}

// ParseNode parses YAML bytes into a yaml.Node.
func ParseNode(data []byte) (*yaml.Node, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return &node, nil
}

// SaveNode writes a yaml.Node to a file.
func SaveNode(path string, node *yaml.Node) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(node); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomicwriter.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// UpdateNode merges updates into a mapping node. Nested maps recurse,
// existing comments and scalar styles are kept and unknown keys are
// appended.
func UpdateNode(node *yaml.Node, updates map[string]interface{}) error {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return fmt.Errorf("empty yaml document")
		}
		return UpdateNode(node.Content[0], updates)
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping node, got %v", node.Kind)
	}

	for k, v := range updates {
		idx := -1
		for i := 0; i < len(node.Content); i += 2 {
			if node.Content[i].Value == k {
				idx = i + 1
				break
			}
		}

		if idx < 0 {
			valueNode, err := valueToNode(v)
			if err != nil {
				return fmt.Errorf("failed to convert value for new key %s: %w", k, err)
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, valueNode)
			continue
		}

		if nested, ok := v.(map[string]interface{}); ok && node.Content[idx].Kind == yaml.MappingNode {
			if err := UpdateNode(node.Content[idx], nested); err != nil {
				return fmt.Errorf("failed to update key %s: %w", k, err)
			}
			continue
		}

		old := node.Content[idx]
		newNode, err := valueToNode(v)
		if err != nil {
			return fmt.Errorf("failed to convert value for key %s: %w", k, err)
		}
		if old.Kind == yaml.ScalarNode && newNode.Kind == yaml.ScalarNode {
			newNode.Style = old.Style
		}
		newNode.HeadComment = old.HeadComment
		newNode.LineComment = old.LineComment
		newNode.FootComment = old.FootComment
		node.Content[idx] = newNode
	}
	return nil
}

func valueToNode(v interface{}) (*yaml.Node, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("failed to convert value to node")
	}
	return node.Content[0], nil
}

// dottedUpdate turns "targets.backup" and a value into a nested update map.
func dottedUpdate(key string, value interface{}) (map[string]interface{}, error) {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid key %q: %w", key, util.ErrInvalidConfig)
		}
	}
	update := map[string]interface{}{parts[len(parts)-1]: value}
	for i := len(parts) - 2; i >= 0; i-- {
		update = map[string]interface{}{parts[i]: update}
	}
	return update, nil
}

// SetValue sets a single dotted key in the config file at path, keeping
// comments. The raw value is parsed as YAML, so "true" becomes a boolean and
// "[zsh, git]" a list. The edited document must still be a valid AppConfig.
func SetValue(path, key, raw string) error {
	expanded, err := fsutil.Expand(path)
	if err != nil {
		return err
	}

	node, err := LoadNode(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultAppConfig()
		node = &yaml.Node{}
		if err = node.Encode(defaults); err == nil {
			node = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{node}}
		}
	}
	if err != nil {
		return err
	}

	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("value %q: %v: %w", raw, err, util.ErrInvalidConfig)
	}
	update, err := dottedUpdate(key, value)
	if err != nil {
		return err
	}
	if err := UpdateNode(node, update); err != nil {
		return err
	}

	cfg := DefaultAppConfig()
	dec := yaml.NewDecoder(strings.NewReader(mustEncode(node)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("key %q: %v: %w", key, err, util.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return SaveNode(expanded, node)
}

func mustEncode(node *yaml.Node) string {
	data, err := yaml.Marshal(node)
	if err != nil {
		return ""
	}
	return string(data)
}
