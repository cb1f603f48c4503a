// Package filestore resolves attachment keys to client-reachable URLs.
package filestore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/artpar/warpmodel/ports"
)

// DefaultPrefix is used when no base URL is configured.
const DefaultPrefix = "/files"

// Store builds attachment URLs under a base URL.
type Store struct {
	base *url.URL
}

var _ ports.Storage = (*Store)(nil)

// New creates a store rooted at baseURL. An empty baseURL yields
// host-relative URLs under DefaultPrefix.
func New(baseURL string) (*Store, error) {
	if baseURL == "" {
		baseURL = DefaultPrefix
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse storage base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return &Store{base: u}, nil
}

// URL returns the address of key. Each path segment of the key is escaped.
func (s *Store) URL(key string) string {
	if key == "" {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	u := *s.base
	u.Path = u.Path + "/" + strings.Join(segments, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	u.RawPath = strings.TrimSuffix(s.base.EscapedPath(), "/") + "/" + strings.Join(segments, "/")
	return u.String()
}
