package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"smartbackup/internal/backup"
)

// OSFilesystem is the real filesystem implementation of backup.Filesystem.
type OSFilesystem struct{}

// NewOSFilesystem creates a filesystem that operates on the real disk.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// ListTree returns every file and directory under root as records with
// forward-slash relative paths, sorted lexicographically. Symlinks, devices
// and other irregular files are skipped.
func (m *OSFilesystem) ListTree(root string) ([]backup.FileRecord, error) {
	var records []backup.FileRecord

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			records = append(records, backup.FileRecord{Path: rel, IsDir: true})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		records = append(records, backup.FileRecord{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// CopyFile copies srcRoot/rel to destRoot/rel, creating parent directories
// and carrying the source modification time over to the copy.
func (m *OSFilesystem) CopyFile(srcRoot, destRoot, rel string) error {
	src := filepath.Join(srcRoot, filepath.FromSlash(rel))
	dst := filepath.Join(destRoot, filepath.FromSlash(rel))

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", rel, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}

	mtime := info.ModTime()
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return fmt.Errorf("preserving mtime on %s: %w", dst, err)
	}
	return nil
}

// MkdirAll creates a directory and any missing parents.
func (m *OSFilesystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

// MkdirNew creates path as a brand-new directory. Missing parents are
// created; an existing path fails with fs.ErrExist.
func (m *OSFilesystem) MkdirNew(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	return os.Mkdir(path, 0755)
}

// Compile-time check that OSFilesystem implements backup.Filesystem
var _ backup.Filesystem = (*OSFilesystem)(nil)
