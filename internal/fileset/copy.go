package fileset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyTo copies every file in fs into destRoot, preserving fs's relative
// layout and re-creating symbolic links rather than following them. Used to
// install a package's sources, or a dependency's artifact files, into a
// sandbox's src/ directory.
func (fs *FileSet) CopyTo(destRoot string) error {
	for _, rel := range fs.paths {
		src := filepath.Join(fs.root, rel)
		dst := filepath.Join(destRoot, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("fileset: copy %s: %w", rel, err)
		}
		if err := copyOne(src, dst); err != nil {
			return fmt.Errorf("fileset: copy %s: %w", rel, err)
		}
	}
	return nil
}

func copyOne(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dst)
		return os.Symlink(target, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
