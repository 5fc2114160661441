package services

import (
	"os"
	"path/filepath"
)

// FS is the filesystem surface the orchestrators write through. Injecting
// it keeps the provisioning logic a pure function of its collaborators and
// lets the panel drive a remote host via SFTP.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Remove(path string) error
	Exists(path string) (bool, error)
	MkdirAll(path string, perm os.FileMode) error
}

// OSFS is the local-host filesystem.
type OSFS struct{}

func (OSFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

func (OSFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

func (OSFS) Remove(path string) error { return os.Remove(path) }

func (OSFS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (OSFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
