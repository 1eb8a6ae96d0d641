package exchange

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// ExportPrefix starts every generated export file name.
const ExportPrefix = "blender_to_cascadeur_"

// CopyArtifact copies src into the exchange subfolder named after its
// extension (fbx/, json/, ...) keeping mode and modification time, and
// returns the destination path.
func CopyArtifact(fs afero.Fs, layout Layout, src string) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(src), ".")
	if ext == "" {
		return "", fmt.Errorf("copy artifact %s: file has no extension", src)
	}

	info, err := fs.Stat(src)
	if err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("copy artifact %s: is a directory", src)
	}

	dir := layout.ArtifactDir(ext)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(src))
	if filepath.Clean(dst) == filepath.Clean(src) {
		return dst, nil
	}

	if err := copyFile(fs, src, dst, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := fs.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	return dst, nil
}

func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return fs.Chmod(dst, perm)
}

// ExportName returns blender_to_cascadeur_<YYYYMMDDHHMMSS>.<kind>.
func ExportName(kind string, now time.Time) string {
	return ExportPrefix + now.Format("20060102150405") + "." + strings.TrimPrefix(kind, ".")
}

// ExportPath returns an unused export path inside the artifact folder for
// kind, creating that folder. When the per-second name is taken a -N
// suffix is added, so exports in the same second never share a file.
func ExportPath(fs afero.Fs, layout Layout, kind string, now time.Time) (string, error) {
	dir := layout.ArtifactDir(kind)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export path: %w", err)
	}

	name := ExportName(kind, now)
	ext := filepath.Ext(name)
	candidate := name
	for n := 1; n <= maxCollisions; n++ {
		path := filepath.Join(dir, candidate)
		_, err := fs.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", fmt.Errorf("export path: %w", err)
		}
		candidate = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
	}
	return "", fmt.Errorf("export path: no free name for %s after %d attempts", name, maxCollisions)
}
