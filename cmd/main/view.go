package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadView reads a view from path. YAML is used for .yaml and .yml files,
// JSON for everything else. "-" reads JSON from r. An empty path yields an
// empty view.
func loadView(path string, r io.Reader) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read view: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAMLView(data)
	default:
		return decodeJSONView(data)
	}
}

func decodeYAMLView(data []byte) (map[string]any, error) {
	view := map[string]any{}
	if err := yaml.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to parse yaml view: %w", err)
	}
	return view, nil
}

func decodeJSONView(data []byte) (map[string]any, error) {
	view := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return view, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&view); err != nil {
		return nil, fmt.Errorf("failed to parse json view: %w", err)
	}
	return view, nil
}

// loadPartials reads alias=file pairs into a partials map. Files are read
// as template text.
func loadPartials(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	partials := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		alias, file, ok := strings.Cut(pair, "=")
		if !ok || alias == "" || file == "" {
			return nil, fmt.Errorf("invalid partial '%s', expected alias=file", pair)
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial '%s': %w", alias, err)
		}
		partials[alias] = string(content)
	}
	return partials, nil
}
