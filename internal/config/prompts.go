package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fpang/gemini-watermark-remover/internal/assets"
	"gopkg.in/yaml.v3"
)

// PromptSet is the instruction list file: an optional system instruction and
// the ordered removal instructions tried one after another.
type PromptSet struct {
	System       string   `yaml:"system"`
	Instructions []string `yaml:"instructions"`
}

// LoadPrompts reads the instruction list from path, or the embedded default
// when path is empty.
func LoadPrompts(path string) (PromptSet, error) {
	data := assets.RemovalInstructionsYAML
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return PromptSet{}, fmt.Errorf("read prompts file: %w", err)
		}
		data, source = b, path
	}
	ps, err := ParsePrompts(data)
	if err != nil {
		return PromptSet{}, fmt.Errorf("prompts (%s): %w", source, err)
	}
	return ps, nil
}

// ParsePrompts decodes and normalises an instruction list. Blank entries are
// dropped; at least one instruction must remain. Unknown keys are rejected
// so a typo does not silently fall back to an empty list.
func ParsePrompts(data []byte) (PromptSet, error) {
	var ps PromptSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ps); err != nil {
		return PromptSet{}, fmt.Errorf("decode yaml: %w", err)
	}

	ps.System = strings.TrimSpace(ps.System)
	kept := ps.Instructions[:0]
	for _, p := range ps.Instructions {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	ps.Instructions = kept
	if len(ps.Instructions) == 0 {
		return PromptSet{}, errors.New("no instructions")
	}
	return ps, nil
}
