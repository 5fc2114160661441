package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"wopanel/config"
	"wopanel/utils"
)

// GetSSHClient establishes the SSH connection to the managed host.
func GetSSHClient(cfg *config.Config) (*ssh.Client, error) {
	sshConfig := &ssh.ClientConfig{
		User: cfg.SSHUser,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.SSHPassword),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: load known_hosts once deployments pin host keys
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", fmt.Sprintf("%s:22", cfg.SSHHost), sshConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SSH: %w", err)
	}
	utils.Sugar().Infow("SSH connection established", "host", cfg.SSHHost)
	return client, nil
}

// SSHRunner satisfies Runner against a remote host. It enforces the same
// contract as ExecRunner: dumb colorless terminal, trimmed ANSI-stripped
// stdout, CommandError on non-zero exit.
type SSHRunner struct {
	Client *ssh.Client
}

func (r *SSHRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	session, err := r.Client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	parts := make([]string, 0, len(args)+3)
	parts = append(parts, "env", "TERM=dumb", "NO_COLOR=1", shellQuote(name))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	command := strings.Join(parts, " ")

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case err = <-done:
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitStatus() == 127 {
				return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
			}
			return "", &CommandError{
				ExitCode: exitErr.ExitStatus(),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return "", fmt.Errorf("SSH command failed: %w", err)
	}
	return StripANSI(strings.TrimSpace(stdout.String())), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// SFTPFS implements FS against the managed host over SFTP.
type SFTPFS struct {
	Client *sftp.Client
}

// NewSFTPFS creates the SFTP channel on an established SSH connection.
func NewSFTPFS(client *ssh.Client) (*SFTPFS, error) {
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	return &SFTPFS{Client: sftpClient}, nil
}

func (f *SFTPFS) ReadFile(path string) ([]byte, error) {
	file, err := f.Client.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *SFTPFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := f.Client.MkdirAll(sftpDir(path)); err != nil {
		return err
	}
	file, err := f.Client.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.Write(data); err != nil {
		return err
	}
	return f.Client.Chmod(path, perm)
}

func (f *SFTPFS) Remove(path string) error { return f.Client.Remove(path) }

func (f *SFTPFS) Exists(path string) (bool, error) {
	_, err := f.Client.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (f *SFTPFS) MkdirAll(path string, _ os.FileMode) error { return f.Client.MkdirAll(path) }

func sftpDir(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
