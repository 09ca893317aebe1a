package remotefs

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client holds an active SSH/SFTP connection to the central host.
type Client struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// Connect establishes an SSH connection and opens an SFTP session. The host
// key must already be accepted (see VerifyHost); authentication uses the
// project's private key when it exists, otherwise the supplied password.
func Connect(info ConnectionInfo) (*Client, error) {
	hostKeyCallback, err := knownhosts.New(info.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts from %s: %w", info.KnownHostsPath, err)
	}

	authMethods, err := authMethodsFor(info)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            info.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
	}

	sshClient, err := ssh.Dial("tcp", info.Addr(), config)
	if err != nil {
		return nil, fmt.Errorf("SSH connection to %s failed: %w", info.Addr(), err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("SFTP session creation failed: %w", err)
	}

	return &Client{sshClient: sshClient, sftpClient: sftpClient}, nil
}

// Close closes the SFTP session and SSH connection.
func (c *Client) Close() error {
	var firstErr error

	if c.sftpClient != nil {
		if err := c.sftpClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.sshClient != nil {
		if err := c.sshClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// authMethodsFor returns auth methods in priority order: the project key
// when present on disk, then the password when supplied.
func authMethodsFor(info ConnectionInfo) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if info.PrivateKeyPath != "" {
		keyData, err := os.ReadFile(info.PrivateKeyPath)
		switch {
		case err == nil:
			signer, err := ssh.ParsePrivateKey(keyData)
			if err != nil {
				return nil, fmt.Errorf("failed to parse private key %s: %w", info.PrivateKeyPath, err)
			}
			methods = append(methods, ssh.PublicKeys(signer))
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read private key %s: %w", info.PrivateKeyPath, err)
		}
	}

	if info.Password != "" {
		methods = append(methods, ssh.Password(info.Password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no SSH authentication available: set up a key pair or supply a password")
	}

	return methods, nil
}

// VerifyHost dials the central host, presents its key fingerprint to the
// accept callback, and records the key in the known-hosts file when
// accepted. This is the one-time trust-on-first-use step; later connections
// verify against the recorded key.
func VerifyHost(info ConnectionInfo, accept func(fingerprint string) bool) error {
	var (
		hostLine string
		rejected bool
	)

	callback := func(hostname string, _ net.Addr, key ssh.PublicKey) error {
		if !accept(ssh.FingerprintSHA256(key)) {
			rejected = true
			return fmt.Errorf("host key for %s was rejected", hostname)
		}

		hostLine = knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
		return nil
	}

	config := &ssh.ClientConfig{
		User:            info.User,
		Auth:            []ssh.AuthMethod{ssh.Password(info.Password)},
		HostKeyCallback: callback,
	}

	client, err := ssh.Dial("tcp", info.Addr(), config)
	if client != nil {
		client.Close()
	}

	// An auth failure after the callback ran is fine: the host key was still
	// presented and accepted, which is all this step needs.
	if hostLine == "" {
		if rejected {
			return fmt.Errorf("host key verification for %s was declined", info.Addr())
		}
		return fmt.Errorf("could not reach %s to verify its host key: %w", info.Addr(), err)
	}

	if err := os.MkdirAll(filepath.Dir(info.KnownHostsPath), 0o700); err != nil {
		return fmt.Errorf("failed to create known-hosts folder: %w", err)
	}

	f, err := os.OpenFile(info.KnownHostsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open known-hosts file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, hostLine); err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}

	return nil
}

// SetupKeyPair generates a fresh RSA key pair, stores the private key at
// info.PrivateKeyPath, and appends the public key to the central user's
// authorized_keys over a password-authenticated session. After this, Connect
// authenticates with the key and no password is needed.
func SetupKeyPair(info ConnectionInfo) error {
	key, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(info.PrivateKeyPath), 0o700); err != nil {
		return fmt.Errorf("failed to create key folder: %w", err)
	}

	if err := os.WriteFile(info.PrivateKeyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("failed to write private key %s: %w", info.PrivateKeyPath, err)
	}

	publicKey, err := ssh.NewPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to derive public key: %w", err)
	}
	publicLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(publicKey)))

	client, err := Connect(info)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.sshClient.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open session on central host: %w", err)
	}
	defer session.Close()

	cmd := fmt.Sprintf(
		"mkdir -p ~/.ssh && chmod 700 ~/.ssh && echo %q >> ~/.ssh/authorized_keys && chmod 600 ~/.ssh/authorized_keys",
		publicLine,
	)
	if err := session.Run(cmd); err != nil {
		return fmt.Errorf("failed to install public key on central host: %w", err)
	}

	return nil
}
