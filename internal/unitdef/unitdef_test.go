package unitdef

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentDecodesCommandUnit(t *testing.T) {
	raw := `{
		"units": [
			{
				"kind": "command",
				"identifier": "packages/web-app",
				"root": "packages/web-app",
				"buildCommand": "tsc -b",
				"dependencies": [
					{"type": "link-npm", "node": "packages/shared", "executables": true},
					{"type": "npm", "name": "react", "resolvedLocation": "node_modules/react", "versionRange": "^18.0.0"}
				]
			}
		]
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Len(t, doc.Units, 1)

	unit, ok := doc.Units[0].(*CommandUnit)
	require.True(t, ok)
	assert.Equal(t, "packages/web-app", unit.ID())
	assert.Equal(t, "tsc -b", unit.BuildCommand)
	require.Len(t, unit.Deps(), 2)

	link, ok := unit.Deps()[0].(LinkNpmEdge)
	require.True(t, ok)
	assert.Equal(t, "packages/shared", link.NodeID)
	assert.True(t, link.IncludeExecutables)

	npm, ok := unit.Deps()[1].(ExternalNpmEdge)
	require.True(t, ok)
	assert.Equal(t, "react", npm.Name)
	assert.Equal(t, "^18.0.0", npm.VersionRange)
}

func TestDocumentDecodesTypeScriptBuildUnit(t *testing.T) {
	raw := `{
		"units": [
			{
				"kind": "typescript",
				"identifier": "packages/lib",
				"root": "packages/lib",
				"buildCommand": "tsc -b",
				"patchTsconfig": true
			}
		]
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	unit, ok := doc.Units[0].(*TypeScriptBuildUnit)
	require.True(t, ok)
	assert.Equal(t, "packages/lib", unit.ID())
	assert.True(t, unit.PatchTsconfig)
}

func TestDocumentDecodesExtractUnit(t *testing.T) {
	raw := `{
		"units": [
			{
				"kind": "extract",
				"identifier": "dist/bundle",
				"extractPatterns": ["**/*.js", "**/*.d.ts"],
				"dependencies": [
					{"type": "copy", "node": "packages/lib", "subdir": "lib"}
				]
			}
		]
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	unit, ok := doc.Units[0].(*ExtractUnit)
	require.True(t, ok)
	assert.Equal(t, []string{"**/*.js", "**/*.d.ts"}, unit.ExtractPatterns)

	copyEdge, ok := unit.Deps()[0].(CopyEdge)
	require.True(t, ok)
	assert.Equal(t, "packages/lib", copyEdge.NodeID)
	assert.Equal(t, "lib", copyEdge.Subdir)
}

func TestDocumentDecodesOsToolEdge(t *testing.T) {
	raw := `{
		"units": [
			{
				"kind": "command",
				"identifier": "packages/native",
				"root": "packages/native",
				"buildCommand": "make",
				"dependencies": [
					{"type": "os", "executable": "make", "rename": ""}
				]
			}
		]
	}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	unit := doc.Units[0].(*CommandUnit)
	tool, ok := unit.Deps()[0].(OsToolEdge)
	require.True(t, ok)
	assert.Equal(t, "make", tool.Executable)
}

func TestDocumentRejectsUnknownUnitKind(t *testing.T) {
	raw := `{"units": [{"kind": "bogus", "identifier": "x"}]}`

	var doc Document
	err := json.Unmarshal([]byte(raw), &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit kind")
}

func TestDocumentRejectsUnknownDependencyType(t *testing.T) {
	raw := `{
		"units": [
			{
				"kind": "command",
				"identifier": "x",
				"dependencies": [{"type": "bogus"}]
			}
		]
	}`

	var doc Document
	err := json.Unmarshal([]byte(raw), &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency type")
}
