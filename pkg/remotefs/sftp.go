package remotefs

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

// SFTP searches folder trees on the central host over an SFTP session.
type SFTP struct {
	client *Client
	log    logrus.FieldLogger
}

// NewSFTP creates a searcher over an established connection.
func NewSFTP(client *Client, log logrus.FieldLogger) *SFTP {
	return &SFTP{client: client, log: log}
}

// ListDirsMatching lists the folders and files directly under path on the
// central host whose names match pattern.
func (s *SFTP) ListDirsMatching(path, pattern string) ([]string, []string, error) {
	entries, err := s.client.sftpClient.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			if s.log != nil {
				s.log.WithField("path", path).Info("central search path does not exist, no matches")
			}
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read central folder %s: %w", path, err)
	}

	var dirs, files []string
	for _, entry := range entries {
		matched, err := doublestar.Match(pattern, entry.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("bad search pattern %q: %w", pattern, err)
		}
		if !matched {
			continue
		}

		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(dirs)
	sort.Strings(files)

	return dirs, files, nil
}
