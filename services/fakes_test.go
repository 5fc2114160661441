package services

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
)

// fakeRunner records every command and answers from prefix-matched
// canned outputs and errors.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string]string
	errors  map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	if err := f.match(f.errors, cmd); err != nil {
		return "", err
	}
	if out, ok := f.matchOut(cmd); ok {
		return out, nil
	}
	return "", nil
}

func (f *fakeRunner) match(m map[string]error, cmd string) error {
	for _, prefix := range sortedKeysErr(m) {
		if strings.HasPrefix(cmd, prefix) {
			return m[prefix]
		}
	}
	return nil
}

func (f *fakeRunner) matchOut(cmd string) (string, bool) {
	for _, prefix := range sortedKeys(f.outputs) {
		if strings.HasPrefix(cmd, prefix) {
			return f.outputs[prefix], true
		}
	}
	return "", false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysErr(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// indexOf returns the position of the first recorded command with the
// given prefix, or -1.
func (f *fakeRunner) indexOf(prefix string) int {
	for i, cmd := range f.commands() {
		if strings.HasPrefix(cmd, prefix) {
			return i
		}
	}
	return -1
}

// memFS is an in-memory FS for orchestration tests.
type memFS struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFS() *memFS {
	return &memFS{files: map[string][]byte{}}
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (m *memFS) WriteFile(path string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memFS) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return os.ErrNotExist
	}
	delete(m.files, path)
	return nil
}

func (m *memFS) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *memFS) MkdirAll(string, os.FileMode) error { return nil }

func (m *memFS) content(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.files[path])
}
