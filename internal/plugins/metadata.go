package plugins

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/venok/internal/toolchain"
)

// MetadataFileName is written into the output directory by the generator.
const MetadataFileName = "metadata.ts"

// MetadataGenerator drives readonly visitors over a program and writes what
// they collected as a TypeScript module.
type MetadataGenerator struct {
	FileName string
}

// NewMetadataGenerator creates a generator writing MetadataFileName.
func NewMetadataGenerator() *MetadataGenerator {
	return &MetadataGenerator{FileName: MetadataFileName}
}

// Generate visits every non-declaration source file of program with every
// visitor and writes the metadata keyed by visitor key into outputDir. The
// file is left untouched when its content would not change, so a watching
// type checker does not see a spurious edit.
func (g *MetadataGenerator) Generate(outputDir string, visitors []*Visitor, program toolchain.Program) error {
	if len(visitors) == 0 {
		return nil
	}
	target := filepath.Join(outputDir, g.FileName)

	files, err := program.SourceFiles()
	if err != nil {
		return err
	}
	metadata := make(map[string]any, len(visitors))
	for _, v := range visitors {
		for _, sf := range files {
			if sf.IsDeclaration() || filepath.Clean(sf.FileName) == target {
				continue
			}
			v.Visit(sf)
		}
		metadata[v.Key] = v.Collect()
	}

	body, err := json.MarshalIndent(metadata, "  ", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	content := []byte(fmt.Sprintf("/* eslint-disable */\nexport default async () => {\n  return %s;\n};\n", body))

	if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, content) {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, content, 0o644)
}
