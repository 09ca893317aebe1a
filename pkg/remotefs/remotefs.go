// Package remotefs abstracts folder discovery over the two supported
// central-store backends: the local filesystem and SFTP. Both implementations
// answer glob-style queries for folders at a given path, so callers plan
// folder creation and transfers without caring where the tree lives.
package remotefs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Searcher lists the folders and files directly under a path whose names
// match a glob pattern. A path that does not exist yields empty results, not
// an error: an empty project side is a normal state.
type Searcher interface {
	ListDirsMatching(path, pattern string) (dirs, files []string, err error)
}

// ConnectionInfo carries everything needed to reach the central store.
type ConnectionInfo struct {
	SSH            bool
	Host           string
	Port           int
	User           string
	PrivateKeyPath string
	KnownHostsPath string

	// Password is used when key-based auth is not yet set up, e.g. during
	// the one-time key exchange.
	Password string
}

// Addr returns the dialable host:port address.
func (info ConnectionInfo) Addr() string {
	port := info.Port
	if port == 0 {
		port = 22
	}

	return fmt.Sprintf("%s:%d", info.Host, port)
}

// CreateSearcher builds a Searcher for the central store.
// Returns (searcher, closer, error); the closer tears down the SFTP
// connection and is a no-op for the local filesystem.
func CreateSearcher(info ConnectionInfo, log logrus.FieldLogger) (Searcher, func(), error) {
	if !info.SSH {
		return NewLocal(log), func() {}, nil
	}

	client, err := Connect(info)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s@%s: %w", info.User, info.Addr(), err)
	}

	searcher := NewSFTP(client, log)
	closer := func() {
		_ = client.Close()
	}

	return searcher, closer, nil
}
