package plugin

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the on-disk description of a plugin used by the import
// command: identity fields plus its initial manifest.
type Definition struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Author      string   `yaml:"author"`
	Category    string   `yaml:"category"`
	Manifest    Manifest `yaml:"manifest"`
}

// DecodeDefinition parses a YAML plugin definition.
func DecodeDefinition(r io.Reader) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode plugin definition: %w", err)
	}
	if !ValidName(def.Name) {
		return nil, fmt.Errorf("invalid plugin name %q", def.Name)
	}
	if def.Version == "" {
		return nil, fmt.Errorf("plugin %s: version is required", def.Name)
	}
	def.Manifest.Normalize()
	if err := def.Manifest.Validate(); err != nil {
		return nil, fmt.Errorf("plugin %s: %w", def.Name, err)
	}
	return &def, nil
}

// DecodeDefinitionFile reads and parses a YAML plugin definition file.
func DecodeDefinitionFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeDefinition(f)
}
