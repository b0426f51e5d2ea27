package flatfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"allowance/internal/codec"
	"allowance/internal/core"
)

// table is one flat file plus the locks that serialize its writers. The
// mutex orders goroutines of this process; an advisory lock on a sibling
// ".lock" file orders processes sharing the directory, such as the server
// and allowancectl. Readers take the shared side of both: a read sees the
// file before or after a write, never in between.
type table struct {
	mu   sync.RWMutex
	kind core.Table
	path string
}

func newTable(kind core.Table, path string) *table {
	return &table{kind: kind, path: path}
}

// lock takes the table for writing. The returned func releases it.
func (t *table) lock() (func(), error) {
	t.mu.Lock()
	release, err := t.lockPeers(true)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	return func() {
		release()
		t.mu.Unlock()
	}, nil
}

// rlock takes the table for reading. The returned func releases it.
func (t *table) rlock() (func(), error) {
	t.mu.RLock()
	release, err := t.lockPeers(false)
	if err != nil {
		t.mu.RUnlock()
		return nil, err
	}
	return func() {
		release()
		t.mu.RUnlock()
	}, nil
}

// lockPeers takes the advisory lock. The data file itself is swapped by
// rename on rewrite, so the lock lives on a file that never moves.
func (t *table) lockPeers(exclusive bool) (func(), error) {
	name := t.path + ".lock"
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, &core.StorageError{Op: "mkdir", Path: filepath.Dir(name), Err: err}
	}
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &core.StorageError{Op: "open lock", Path: name, Err: err}
	}
	if err := lockFile(f, exclusive); err != nil {
		f.Close()
		return nil, &core.StorageError{Op: "lock", Path: name, Err: err}
	}
	return func() {
		_ = unlockFile(f)
		f.Close()
	}, nil
}

// stamp identifies the current file content by size and modification
// time. Appends grow the file and rewrites replace it, so any write from
// any process changes the stamp.
func (t *table) stamp() (string, error) {
	st, err := os.Stat(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "missing", nil
	}
	if err != nil {
		return "", &core.StorageError{Op: "stat", Path: t.path, Err: err}
	}
	return fmt.Sprintf("%d:%d", st.Size(), st.ModTime().UnixNano()), nil
}

// ensure creates the file with its canonical header when it does not
// exist. Safe under either side of the lock: O_EXCL picks one creator.
func (t *table) ensure() (created bool, err error) {
	if _, err := os.Stat(t.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, &core.StorageError{Op: "stat", Path: t.path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return false, &core.StorageError{Op: "mkdir", Path: filepath.Dir(t.path), Err: err}
	}
	f, err := os.OpenFile(t.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, &core.StorageError{Op: "create", Path: t.path, Err: err}
	}
	if _, err := f.Write(codec.HeaderBytes(t.kind)); err != nil {
		f.Close()
		return false, &core.StorageError{Op: "write header", Path: t.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return false, &core.StorageError{Op: "close", Path: t.path, Err: err}
	}
	return true, nil
}

// readBytes returns the raw file content. Caller holds a lock.
func (t *table) readBytes() ([]byte, error) {
	if _, err := t.ensure(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(t.path)
	if err != nil {
		return nil, &core.StorageError{Op: "read", Path: t.path, Err: err}
	}
	return b, nil
}

// readRows decodes every record. Caller holds a lock.
func (t *table) readRows(mode codec.Mode) (codec.Rows, error) {
	b, err := t.readBytes()
	if err != nil {
		return codec.Rows{}, err
	}
	rows, err := codec.ReadRows(bytes.NewReader(b), mode)
	if err != nil {
		return codec.Rows{}, &core.StorageError{Op: "decode", Path: t.path, Err: err}
	}
	return rows, nil
}

// appendRecord writes one record with a single write call. A file whose
// last line lacks its newline (an imported file, say) gets one first so
// the record never merges into the previous line, and an empty file gets
// the header. Caller holds the write lock.
func (t *table) appendRecord(rec []string) error {
	if _, err := t.ensure(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := codec.WriteRows(&buf, [][]string{rec}); err != nil {
		return err
	}

	f, err := os.OpenFile(t.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return &core.StorageError{Op: "open", Path: t.path, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return &core.StorageError{Op: "stat", Path: t.path, Err: err}
	}
	payload := buf.Bytes()
	if size := st.Size(); size == 0 {
		payload = append(codec.HeaderBytes(t.kind), payload...)
	} else {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			return &core.StorageError{Op: "read", Path: t.path, Err: err}
		}
		if last[0] != '\n' {
			payload = append([]byte{'\n'}, payload...)
		}
	}
	if _, err := f.Write(payload); err != nil {
		return &core.StorageError{Op: "append", Path: t.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &core.StorageError{Op: "close", Path: t.path, Err: err}
	}
	return nil
}

// rewriteRows replaces the file with rows. Caller holds the write lock.
func (t *table) rewriteRows(rows [][]string) error {
	var buf bytes.Buffer
	if err := codec.WriteRows(&buf, rows); err != nil {
		return err
	}
	return t.replace(buf.Bytes())
}

// replace swaps the file content atomically through a temp file in the
// same directory. Caller holds the write lock.
func (t *table) replace(content []byte) error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &core.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return &core.StorageError{Op: "create temp", Path: t.path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		cleanup()
		return &core.StorageError{Op: "write", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &core.StorageError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return &core.StorageError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		cleanup()
		return &core.StorageError{Op: "rename", Path: t.path, Err: err}
	}
	return nil
}
