package marketplace

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied when the gallery response omits optional fields.
const (
	DefaultDomain      = "marketplace.visualstudio.com"
	DefaultLastUpdated = "Unknown"
	DefaultDescription = "No description available."
	DefaultDisplayName = "N/A"
)

// Extension describes one downloadable gallery entry. Values are fixed at
// parse time; Name is the correlation key within one search response.
type Extension struct {
	Publisher   string
	Domain      string
	Name        string
	DisplayName string
	LastUpdated string
	Description string
	Version     string

	// DownloadURL is empty when the response carried no VSIX asset for the
	// extension's current version. Callers must not start a download then.
	DownloadURL string
}

// Downloadable reports whether the gallery exposed a VSIX asset for this
// extension.
func (e Extension) Downloadable() bool {
	return e.DownloadURL != ""
}

// FileName returns the destination file name for the extension's package,
// in the form name-version.vsix.
func (e Extension) FileName() string {
	version := e.Version
	if version == "" {
		version = "unknown"
	}
	return fmt.Sprintf("%s-%s.vsix", e.Name, version)
}

// Summary returns a multi-line, human-readable description of the extension
// suitable for a detail pane.
func (e Extension) Summary() string {
	version := e.Version
	if version == "" {
		version = "N/A"
	}
	domain := e.Domain
	if domain == "" {
		domain = "Not specified"
	}
	description := e.Description
	if description == "" {
		description = DefaultDescription
	}

	lines := []string{
		fmt.Sprintf("%s (v%s)", e.DisplayName, version),
		"",
		fmt.Sprintf("Publisher:    %s", e.Publisher),
		fmt.Sprintf("Domain:       %s", domain),
		fmt.Sprintf("Last Updated: %s", formatUpdated(e.LastUpdated)),
		"",
		description,
	}
	return strings.Join(lines, "\n")
}

// formatUpdated renders a gallery timestamp as "January 2, 2006".
// The gallery sends RFC 3339 timestamps with fractional seconds; plain dates
// and the "Unknown" sentinel fall through to "Not available".
func formatUpdated(s string) string {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("January 2, 2006")
		}
	}
	return "Not available"
}
