// Package writer serializes the aggregated catalog and writes it to disk.
package writer

import (
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/stacklok/registry-mirror/internal/registry"
)

const (
	// DefaultInfo is the provenance note of the envelope
	DefaultInfo = "Hosted by GitHub Pages Mirror"

	// FormatVersion is the envelope format version
	FormatVersion = 1

	rawURLBase = "https://raw.githubusercontent.com"
)

// Envelope is the serialized catalog. Field order is the key order of the
// output document.
type Envelope struct {
	Info        string            `json:"info"`
	Total       int               `json:"total"`
	Time        string            `json:"time"`
	Version     int               `json:"version"`
	GeneratedAt string            `json:"generatedAt"`
	RawURL      string            `json:"rawUrl"`
	Sources     []string          `json:"sources"`
	Objects     []registry.Record `json:"objects"`
}

// NewEnvelope builds the envelope for objects, which must already start with
// the status record. An empty info uses DefaultInfo.
func NewEnvelope(info string, generatedAt time.Time, rawURL string, sources []string, objects []registry.Record) *Envelope {
	if info == "" {
		info = DefaultInfo
	}
	if sources == nil {
		sources = []string{}
	}
	if objects == nil {
		objects = []registry.Record{}
	}
	return &Envelope{
		Info:        info,
		Total:       len(objects),
		Time:        generatedAt.UTC().Format(http.TimeFormat),
		Version:     FormatVersion,
		GeneratedAt: registry.FormatTimestamp(generatedAt),
		RawURL:      rawURL,
		Sources:     sources,
		Objects:     objects,
	}
}

// RawURL returns the raw.githubusercontent.com URL of output in the
// owner/repo repository on branch. It returns "" when repository is empty
// or not of the owner/repo form. Absolute output paths are reduced to their
// base name.
func RawURL(repository, branch, output string) string {
	repository = strings.Trim(repository, "/")
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return ""
	}

	file := filepath.ToSlash(output)
	if filepath.IsAbs(output) {
		file = filepath.Base(output)
	}
	file = strings.TrimPrefix(path.Clean(file), "./")

	return fmt.Sprintf("%s/%s/%s/%s", rawURLBase, repository, branch, file)
}
