package fileset

// Schema is the wire shape persisted inside cache sidecars and index files:
// a FileSet reduced to its relative paths (the root directory is contextual
// — supplied separately by whatever is loading the schema back in).
type Schema struct {
	RelativePaths []string `json:"relativePaths" mapstructure:"relativePaths"`
}

// ToSchema reduces fs to its wire representation.
func (fs *FileSet) ToSchema() Schema {
	return Schema{RelativePaths: append([]string(nil), fs.paths...)}
}

// FromSchema rebuilds a FileSet from a previously-persisted Schema, resolved
// against root.
func FromSchema(root string, s Schema) *FileSet {
	return New(root, s.RelativePaths)
}
