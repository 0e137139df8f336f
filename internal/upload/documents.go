package upload

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/component-registry/internal/platform/apperr"
)

// File names the build tooling places at the package root (or inside a single
// wrapping directory).
const (
	BuildMetaFileName  = "build-meta.json"
	SupplementFileName = "supplement.json"
)

var semverRe = regexp.MustCompile(`^\d+\.\d+\.\d+(?:-[0-9A-Za-z][0-9A-Za-z.-]*)?(?:\+[0-9A-Za-z][0-9A-Za-z.-]*)?$`)

func IsSemver(v string) bool {
	return semverRe.MatchString(v)
}

// SupplementMeta is the registry-issued block embedded in the supplement
// document at export time. It ties the offline-built package back to the
// approved application.
type SupplementMeta struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationNo     string `json:"applicationNo"`
	ExportTime        string `json:"exportTime"`
	Signature         string `json:"signature,omitempty"`
	IsReplacement     bool   `json:"isReplacement,omitempty"`
	OriginalVersionID string `json:"originalVersionId,omitempty"`
}

type SupplementClassification struct {
	Level1      string `json:"level1"`
	Level2      string `json:"level2"`
	DisplayName struct {
		Level1 string `json:"level1"`
		Level2 string `json:"level2"`
	} `json:"displayName"`
}

// SupplementDoc is the business-identity document exported by the registry
// after approval and embedded by the applicant into the package.
type SupplementDoc struct {
	ID             string                   `json:"id"`
	Name           string                   `json:"name"`
	Version        string                   `json:"version"`
	Classification SupplementClassification `json:"classification"`
	Metadata       SupplementMeta           `json:"_metadata"`
}

type BuildFiles struct {
	Entry   string `json:"entry"`
	Style   string `json:"style,omitempty"`
	Preview string `json:"preview,omitempty"`
}

type BuildInfo struct {
	BuildTime  string `json:"buildTime"`
	Hash       string `json:"hash"`
	CLIVersion string `json:"cliVersion"`
}

type BuildAuthor struct {
	Organization string `json:"organization,omitempty"`
	UserName     string `json:"userName,omitempty"`
}

// BuildMetaDoc is the technical document produced by the build tooling.
type BuildMetaDoc struct {
	Files       BuildFiles   `json:"files"`
	BuildInfo   BuildInfo    `json:"buildInfo"`
	Type        string       `json:"type,omitempty"`
	Framework   string       `json:"framework,omitempty"`
	Author      *BuildAuthor `json:"author,omitempty"`
	License     string       `json:"license,omitempty"`
	Description string       `json:"description,omitempty"`
}

// ParseSupplement unmarshals and schema-validates a supplement document.
func ParseSupplement(raw []byte) (*SupplementDoc, error) {
	var doc SupplementDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Validation("supplement_malformed", "supplement document is not valid JSON: %v", err)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return nil, apperr.ValidationField("supplement_invalid", "id", "supplement is missing the component id")
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, apperr.ValidationField("supplement_invalid", "name", "supplement is missing the component name")
	}
	if !IsSemver(doc.Version) {
		return nil, apperr.ValidationField("supplement_invalid", "version", "supplement version %q is not a semantic version", doc.Version)
	}
	if doc.Classification.Level1 == "" || doc.Classification.Level2 == "" {
		return nil, apperr.ValidationField("supplement_invalid", "classification", "supplement is missing two-level classification codes")
	}
	if doc.Classification.DisplayName.Level1 == "" || doc.Classification.DisplayName.Level2 == "" {
		return nil, apperr.ValidationField("supplement_invalid", "classification.displayName", "supplement is missing classification display names")
	}
	if doc.Metadata.ApplicationID == "" || doc.Metadata.ApplicationNo == "" {
		return nil, apperr.ValidationField("supplement_invalid", "_metadata", "supplement is missing the registry metadata block")
	}
	if doc.Metadata.ExportTime == "" {
		return nil, apperr.ValidationField("supplement_invalid", "_metadata.exportTime", "supplement metadata is missing the export time")
	}
	return &doc, nil
}

// ParseBuildMeta unmarshals and schema-validates a build-metadata document.
func ParseBuildMeta(raw []byte) (*BuildMetaDoc, error) {
	var doc BuildMetaDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Validation("build_meta_malformed", "build-metadata document is not valid JSON: %v", err)
	}
	if strings.TrimSpace(doc.Files.Entry) == "" {
		return nil, apperr.ValidationField("build_meta_invalid", "files.entry", "build metadata is missing the entry file path")
	}
	if doc.BuildInfo.BuildTime == "" {
		return nil, apperr.ValidationField("build_meta_invalid", "buildInfo.buildTime", "build metadata is missing the build time")
	}
	if _, err := time.Parse(time.RFC3339, doc.BuildInfo.BuildTime); err != nil {
		return nil, apperr.ValidationField("build_meta_invalid", "buildInfo.buildTime", "build time %q is not RFC3339", doc.BuildInfo.BuildTime)
	}
	if doc.BuildInfo.Hash == "" {
		return nil, apperr.ValidationField("build_meta_invalid", "buildInfo.hash", "build metadata is missing the content hash")
	}
	if doc.BuildInfo.CLIVersion == "" {
		return nil, apperr.ValidationField("build_meta_invalid", "buildInfo.cliVersion", "build metadata is missing the builder tool version")
	}
	return &doc, nil
}

// BuildTime returns the parsed build timestamp. Call after ParseBuildMeta.
func (d *BuildMetaDoc) BuildTime() time.Time {
	t, _ := time.Parse(time.RFC3339, d.BuildInfo.BuildTime)
	return t
}

// DeclaredFiles lists every file path the build metadata references.
func (d *BuildMetaDoc) DeclaredFiles() []string {
	paths := []string{d.Files.Entry}
	if d.Files.Style != "" {
		paths = append(paths, d.Files.Style)
	}
	if d.Files.Preview != "" {
		paths = append(paths, d.Files.Preview)
	}
	return paths
}
