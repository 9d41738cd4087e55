package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NamespacesFile is the shape of an optional namespaces.yaml bootstrap file,
// describing namespaces and their initial actors to create on server start.
type NamespacesFile struct {
	Namespaces []NamespaceSpec `yaml:"namespaces"`
}

// NamespaceSpec describes one namespace to create if it does not already
// exist.
type NamespaceSpec struct {
	Name   string      `yaml:"name"`
	Width  int         `yaml:"width"`
	Height int         `yaml:"height"`
	Goal   string      `yaml:"goal"`
	Epoch  int64       `yaml:"epoch"`
	Actors []ActorSpec `yaml:"actors"`
}

// ActorSpec describes one actor to register in its namespace.
type ActorSpec struct {
	ID                 string   `yaml:"id"`
	X                  int      `yaml:"x"`
	Y                  int      `yaml:"y"`
	Facing             string   `yaml:"facing"`
	Scopes             []string `yaml:"scopes"`
	CustomInstructions string   `yaml:"custom_instructions"`
	LLMModel           string   `yaml:"llm_model"`
	Secret             string   `yaml:"secret"` // optional; generated if empty
}

// LoadNamespacesFile parses a namespaces.yaml bootstrap file.
func LoadNamespacesFile(path string) (*NamespacesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read namespaces file: %w", err)
	}
	var nf NamespacesFile
	if err := yaml.Unmarshal(raw, &nf); err != nil {
		return nil, fmt.Errorf("parse namespaces file: %w", err)
	}
	for i, ns := range nf.Namespaces {
		if ns.Name == "" {
			return nil, fmt.Errorf("namespaces[%d]: name is required", i)
		}
		if ns.Width <= 0 || ns.Height <= 0 {
			return nil, fmt.Errorf("namespace %s: width and height must be positive", ns.Name)
		}
		if ns.Epoch <= 0 {
			return nil, fmt.Errorf("namespace %s: epoch must be positive", ns.Name)
		}
	}
	return &nf, nil
}
