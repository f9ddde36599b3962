package dom

import (
	"fmt"
	"net/url"
)

// Location is the page address an adapter matches against. It mirrors the
// subset of window.location the matching predicates need.
type Location struct {
	Host string
	Path string
	Raw  string
}

func ParseLocation(rawURL string) (Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("location %q has no host", rawURL)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return Location{Host: u.Host, Path: path, Raw: rawURL}, nil
}

func (l Location) String() string {
	if l.Raw != "" {
		return l.Raw
	}
	return l.Host + l.Path
}
