package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureSubdDir creates dirName under dir (the working directory when dir is
// empty) and returns its path. An absolute dirName is used as is.
func EnsureSubdDir(dir, dirName string) (string, error) {
	if filepath.IsAbs(dirName) {
		dir = ""
	} else if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = cwd
	}

	full := filepath.Join(dir, dirName)

	if err := os.MkdirAll(full, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", full, err)
	}

	return full, nil
}

// SaveUnique writes data to dir/name, picking name_1.ext, name_2.ext, ...
// when the file already exists. Only the base of name is used.
func SaveUnique(dir, name string, data []byte) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	ext := filepath.Ext(clean)
	base := strings.TrimSuffix(clean, ext)

	for i := 0; ; i++ {
		candidate := clean
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}

		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}
}
