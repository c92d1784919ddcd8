package fileset

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"sync"
)

// fileHashCache memoizes FileHash process-wide, keyed by absolute path, the
// way the source memoizes its per-path content hash across the whole build.
var fileHashCache sync.Map // map[string]string

// FileHash returns the SHA1 hex digest of absPath's contents, or, for a
// symbolic link, the SHA1 hex digest of the link target string itself
// (the link is never followed). Results are memoized per absolute path;
// ResetHashCache clears the memo for tests that mutate files in place.
func FileHash(absPath string) (string, error) {
	if cached, ok := fileHashCache.Load(absPath); ok {
		return cached.(string), nil
	}

	digest, err := computeFileHash(absPath)
	if err != nil {
		return "", err
	}
	fileHashCache.Store(absPath, digest)
	return digest, nil
}

func computeFileHash(absPath string) (string, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		return "", err
	}

	h := sha1.New()
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(absPath)
		if err != nil {
			return "", err
		}
		h.Write([]byte(target))
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ResetHashCache drops every memoized file hash. Intended for tests that
// rewrite a file and need FileHash to observe the new content.
func ResetHashCache() {
	fileHashCache.Range(func(key, _ any) bool {
		fileHashCache.Delete(key)
		return true
	})
}
