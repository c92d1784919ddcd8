// Package unitdef decodes the static unit-definitions file (nozem.json):
// one buildable Unit per monorepo package, each carrying a tagged-union
// list of dependency edges onto other units, OS tools, or NPM packages.
package unitdef

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Unit is a buildable entity: a command unit, a TypeScript-build unit, or
// an extract unit. All three share an identifier and a dependency list;
// callers type-switch on the concrete type for variant-specific fields.
type Unit interface {
	ID() string
	Deps() []DependencyEdge
}

// CommandUnit runs a shell build command against its own source tree.
//
// TestCommand has no equivalent in the distilled Unit shape, which names
// only an optional buildCommand; it is added here since §4.6's build
// procedure requires an actual command to run "if testing is enabled".
type CommandUnit struct {
	Identifier   string            `mapstructure:"identifier"`
	RootDir      string            `mapstructure:"root"`
	NonSources   []string          `mapstructure:"nonSources"`
	NonArtifacts []string          `mapstructure:"nonArtifacts"`
	BuildCommand string            `mapstructure:"buildCommand"`
	TestCommand  string            `mapstructure:"testCommand"`
	Dependencies []DependencyEdge  `mapstructure:"-"`
	Env          map[string]string `mapstructure:"env"`
}

func (u *CommandUnit) ID() string             { return u.Identifier }
func (u *CommandUnit) Deps() []DependencyEdge { return u.Dependencies }

// Root returns the unit's directory relative to the monorepo root,
// implementing buildgraph.Rooter for directory-based target selection.
func (u *CommandUnit) Root() string { return u.RootDir }

// TypeScriptBuildUnit is a CommandUnit that additionally strips
// project-reference fields from tsconfig.json before building, so the
// sandbox's isolated copy doesn't try to resolve sibling project references
// that don't exist inside it.
type TypeScriptBuildUnit struct {
	CommandUnit   `mapstructure:",squash"`
	PatchTsconfig bool `mapstructure:"patchTsconfig"`
}

// ExtractUnit repackages another unit's output: it installs its
// dependencies into a sandbox, then takes the subset matching
// ExtractPatterns as its own artifact.
type ExtractUnit struct {
	Identifier      string           `mapstructure:"identifier"`
	ExtractPatterns []string         `mapstructure:"extractPatterns"`
	Dependencies    []DependencyEdge `mapstructure:"-"`
}

func (u *ExtractUnit) ID() string            { return u.Identifier }
func (u *ExtractUnit) Deps() []DependencyEdge { return u.Dependencies }

// unitEnvelope is the on-disk shape nozem.json uses to discriminate a
// unit's variant before decoding its variant-specific fields.
type unitEnvelope struct {
	Kind         string            `json:"kind"`
	Identifier   string            `json:"identifier"`
	Root         string            `json:"root"`
	NonSources   []string          `json:"nonSources"`
	NonArtifacts []string          `json:"nonArtifacts"`
	BuildCommand string            `json:"buildCommand"`
	TestCommand  string            `json:"testCommand"`
	Env          map[string]string `json:"env"`
	Dependencies []json.RawMessage `json:"dependencies"`

	PatchTsconfig bool `json:"patchTsconfig"`

	ExtractPatterns []string `json:"extractPatterns"`
}

// Document is the top-level shape of nozem.json: `{"units": [...]}`.
type Document struct {
	Units []Unit
}

// UnmarshalJSON decodes each entry of "units" by its "kind" discriminator
// into the matching concrete Unit variant.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Units []json.RawMessage `json:"units"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unitdef: decoding document: %w", err)
	}

	d.Units = make([]Unit, 0, len(raw.Units))
	for i, entry := range raw.Units {
		unit, err := decodeUnit(entry)
		if err != nil {
			return fmt.Errorf("unitdef: unit %d: %w", i, err)
		}
		d.Units = append(d.Units, unit)
	}
	return nil
}

func decodeUnit(data []byte) (Unit, error) {
	var env unitEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding unit envelope: %w", err)
	}

	deps, err := decodeDependencyEdges(env.Dependencies)
	if err != nil {
		return nil, err
	}

	switch env.Kind {
	case "command":
		return &CommandUnit{
			Identifier:   env.Identifier,
			RootDir:      env.Root,
			NonSources:   env.NonSources,
			NonArtifacts: env.NonArtifacts,
			BuildCommand: env.BuildCommand,
			TestCommand:  env.TestCommand,
			Dependencies: deps,
			Env:          env.Env,
		}, nil
	case "typescript":
		return &TypeScriptBuildUnit{
			CommandUnit: CommandUnit{
				Identifier:   env.Identifier,
				RootDir:      env.Root,
				NonSources:   env.NonSources,
				NonArtifacts: env.NonArtifacts,
				BuildCommand: env.BuildCommand,
				TestCommand:  env.TestCommand,
				Dependencies: deps,
				Env:          env.Env,
			},
			PatchTsconfig: env.PatchTsconfig,
		}, nil
	case "extract":
		return &ExtractUnit{
			Identifier:      env.Identifier,
			ExtractPatterns: env.ExtractPatterns,
			Dependencies:    deps,
		}, nil
	default:
		return nil, fmt.Errorf("unknown unit kind %q", env.Kind)
	}
}

// decodeViaMapstructure is a small helper for decoding a map[string]any
// payload into a concrete struct, matching the teacher's config loader's
// use of mapstructure for tagged payload decoding.
func decodeViaMapstructure(payload map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(payload)
}
