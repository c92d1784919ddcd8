package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nozem-build/nozem/internal/fileset"
)

func TestFilterPublishedArtifactStripsTsWithDeclarationSibling(t *testing.T) {
	fs := fileset.New("/artifact", []string{
		"index.js",
		"index.d.ts",
		"index.ts",
		"helper.ts",
		"tsconfig.json",
	})

	filtered := filterPublishedArtifact(fs)

	assert.Equal(t, []string{"helper.ts", "index.d.ts", "index.js"}, filtered.Paths())
}

func TestFilterPublishedArtifactKeepsDeclarationFilesThemselves(t *testing.T) {
	fs := fileset.New("/artifact", []string{"index.d.ts", "index.ts"})

	filtered := filterPublishedArtifact(fs)

	assert.Equal(t, []string{"index.d.ts"}, filtered.Paths())
}
