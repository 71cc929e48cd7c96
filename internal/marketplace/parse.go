package marketplace

import "encoding/json"

// AssetTypeVSIX tags the installable package among a version's files.
const AssetTypeVSIX = "Microsoft.VisualStudio.Services.VSIXPackage"

// Gallery response shapes. Only the fields descended into are declared.
type queryResponse struct {
	Results []struct {
		Extensions []extensionResult `json:"extensions"`
	} `json:"results"`
}

type extensionResult struct {
	Publisher struct {
		PublisherName string `json:"publisherName"`
		Domain        string `json:"domain"`
	} `json:"publisher"`
	ExtensionName string `json:"extensionName"`
	DisplayName   string `json:"displayName"`
	LastUpdated   string `json:"lastUpdated"`
	Description   string `json:"shortDescription"`
	Versions      []struct {
		Version string `json:"version"`
		Files   []struct {
			AssetType string `json:"assetType"`
			Source    string `json:"source"`
		} `json:"files"`
	} `json:"versions"`
}

// parseResults converts a raw gallery response into Extension records.
// The expected path is results[0].extensions[]; fields are taken from each
// entry's first version only. Any structural gap fails the whole call with
// a *ParseError, never a partial list.
func parseResults(data []byte) ([]Extension, error) {
	var resp queryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	if len(resp.Results) == 0 {
		return nil, &ParseError{Reason: "missing results"}
	}

	entries := resp.Results[0].Extensions
	extensions := make([]Extension, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		if entry.Publisher.PublisherName == "" {
			return nil, &ParseError{Reason: "missing publisher name"}
		}
		if entry.ExtensionName == "" {
			return nil, &ParseError{Reason: "missing extension name"}
		}
		if len(entry.Versions) == 0 {
			return nil, &ParseError{Reason: "missing versions for " + entry.ExtensionName}
		}

		// Duplicate names within one page: first record wins.
		if seen[entry.ExtensionName] {
			continue
		}
		seen[entry.ExtensionName] = true

		ext := Extension{
			Publisher:   entry.Publisher.PublisherName,
			Domain:      entry.Publisher.Domain,
			Name:        entry.ExtensionName,
			DisplayName: entry.DisplayName,
			LastUpdated: entry.LastUpdated,
			Description: entry.Description,
		}
		if ext.Domain == "" {
			ext.Domain = DefaultDomain
		}
		if ext.DisplayName == "" {
			ext.DisplayName = DefaultDisplayName
		}
		if ext.LastUpdated == "" {
			ext.LastUpdated = DefaultLastUpdated
		}
		if ext.Description == "" {
			ext.Description = DefaultDescription
		}

		version := entry.Versions[0]
		if version.Version == "" {
			return nil, &ParseError{Reason: "missing version string for " + entry.ExtensionName}
		}
		ext.Version = version.Version

		for _, file := range version.Files {
			if file.AssetType == AssetTypeVSIX {
				ext.DownloadURL = file.Source
				break
			}
		}

		extensions = append(extensions, ext)
	}

	return extensions, nil
}
