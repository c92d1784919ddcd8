package cache

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/nozem-build/nozem/internal/fileset"
)

// packTarball writes every file in fs into a gzipped tar stream, preserving
// symbolic links as link entries rather than following them.
func packTarball(w io.Writer, fs *fileset.FileSet) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, rel := range fs.Paths() {
		abs := filepath.Join(fs.Root(), rel)
		info, err := os.Lstat(abs)
		if err != nil {
			return fmt.Errorf("cache: stat %s: %w", rel, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(abs)
			if err != nil {
				return fmt.Errorf("cache: readlink %s: %w", rel, err)
			}
			hdr := &tar.Header{
				Typeflag: tar.TypeSymlink,
				Name:     rel,
				Linkname: target,
				Mode:     0o777,
			}
			if err := tw.WriteHeader(hdr); err != nil {
				return fmt.Errorf("cache: tar header %s: %w", rel, err)
			}
			continue
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("cache: tar header %s: %w", rel, err)
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("cache: tar header %s: %w", rel, err)
		}

		f, err := os.Open(abs)
		if err != nil {
			return fmt.Errorf("cache: open %s: %w", rel, err)
		}
		_, copyErr := io.Copy(tw, f)
		_ = f.Close()
		if copyErr != nil {
			return fmt.Errorf("cache: writing %s into tarball: %w", rel, copyErr)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("cache: closing tar writer: %w", err)
	}
	return gz.Close()
}

// unpackTarball extracts a gzipped tar stream produced by packTarball into
// destRoot, returning the relative paths it wrote.
func unpackTarball(r io.Reader, destRoot string) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("cache: opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var paths []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cache: reading tar entry: %w", err)
		}

		dst := filepath.Join(destRoot, hdr.Name)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating directory for %s: %w", hdr.Name, err)
		}

		switch hdr.Typeflag {
		case tar.TypeSymlink:
			_ = os.Remove(dst)
			if err := os.Symlink(hdr.Linkname, dst); err != nil {
				return nil, fmt.Errorf("cache: symlinking %s: %w", hdr.Name, err)
			}
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return nil, fmt.Errorf("cache: creating directory %s: %w", hdr.Name, err)
			}
			continue
		default:
			f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return nil, fmt.Errorf("cache: creating %s: %w", hdr.Name, err)
			}
			_, copyErr := io.Copy(f, tr)
			closeErr := f.Close()
			if copyErr != nil {
				return nil, fmt.Errorf("cache: writing %s: %w", hdr.Name, copyErr)
			}
			if closeErr != nil {
				return nil, fmt.Errorf("cache: closing %s: %w", hdr.Name, closeErr)
			}
		}
		paths = append(paths, filepath.ToSlash(hdr.Name))
	}
	return paths, nil
}
