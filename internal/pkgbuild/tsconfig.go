package pkgbuild

import (
	"encoding/json"
	"fmt"
	"os"
)

// tsconfigStripFields are the fields patchTsconfig removes so a package
// built in isolation doesn't try to resolve TypeScript project references
// to sibling packages that don't exist inside its sandbox.
var tsconfigStripFields = []string{"references", "composite", "inlineSourceMap", "inlineSources"}

// patchTsconfig rewrites the tsconfig.json at path in place, deleting
// tsconfigStripFields from the top level and from "compilerOptions" where
// applicable. A missing tsconfig.json is not an error — not every unit
// that opts into patching necessarily has one.
func patchTsconfig(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pkgbuild: reading %s: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("pkgbuild: decoding %s: %w", path, err)
	}

	for _, field := range tsconfigStripFields {
		delete(doc, field)
	}
	if opts, ok := doc["compilerOptions"].(map[string]any); ok {
		for _, field := range tsconfigStripFields {
			delete(opts, field)
		}
	}

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("pkgbuild: encoding %s: %w", path, err)
	}
	return os.WriteFile(path, encoded, 0o644)
}
