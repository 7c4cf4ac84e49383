package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// GetFileNameParam extracts and decodes a URL parameter naming a single file.
// The value must be non-empty and must not contain whitespace, path
// separators or parent references.
func GetFileNameParam(r *http.Request, paramName string) (string, error) {
	decoded, err := url.PathUnescape(chi.URLParam(r, paramName))
	if err != nil {
		return "", fmt.Errorf("invalid URL encoding in %s", paramName)
	}

	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("%s cannot be empty", paramName)
	}
	if strings.ContainsAny(decoded, " \t\n\r") {
		return "", fmt.Errorf("%s cannot contain whitespace", paramName)
	}
	if strings.ContainsAny(decoded, `/\`) || decoded == ".." {
		return "", fmt.Errorf("%s must be a plain file name", paramName)
	}

	return decoded, nil
}
