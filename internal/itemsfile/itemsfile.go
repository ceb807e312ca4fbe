// Package itemsfile reads content items and an optional run configuration
// from YAML or JSON files.
package itemsfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aescanero/dapub/pkg/domain"
	"gopkg.in/yaml.v3"
)

// File is the decoded content of an items file
type File struct {
	Config *domain.RunConfig
	Items  []domain.ContentItem
}

type fileDoc struct {
	Config *domain.RunConfig    `yaml:"config" json:"config"`
	Items  []domain.ContentItem `yaml:"items" json:"items"`
}

// Load reads path. Files ending in .json are decoded as JSON, everything
// else as YAML. Relative attachment paths are resolved against the file's
// directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}

	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve items file directory: %w", err)
	}
	for i := range f.Items {
		for j, a := range f.Items[i].Attachments {
			if a.Path != "" && !filepath.IsAbs(a.Path) {
				f.Items[i].Attachments[j].Path = filepath.Join(base, a.Path)
			}
		}
	}

	return f, nil
}

// Parse decodes data in the given format ("yaml" or "json"). The document
// is either a mapping with config and items keys or a bare list of items.
func Parse(data []byte, format string) (*File, error) {
	var doc fileDoc
	var err error

	switch format {
	case "json":
		err = parseJSON(data, &doc)
	case "yaml", "yml":
		err = parseYAML(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported items file format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	return doc.toFile(), nil
}

func parseJSON(data []byte, doc *fileDoc) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decodeJSON(trimmed, &doc.Items); err != nil {
			return fmt.Errorf("invalid items list: %w", err)
		}
		return nil
	}
	if err := decodeJSON(trimmed, doc); err != nil {
		return fmt.Errorf("invalid items document: %w", err)
	}
	return nil
}

// decodeJSON keeps numbers in extras as json.Number
func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func parseYAML(data []byte, doc *fileDoc) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("invalid items document: %w", err)
	}
	if len(root.Content) == 0 {
		return nil
	}

	top := root.Content[0]
	if top.Kind == yaml.SequenceNode {
		if err := top.Decode(&doc.Items); err != nil {
			return fmt.Errorf("invalid items list: %w", err)
		}
		return nil
	}
	if err := top.Decode(doc); err != nil {
		return fmt.Errorf("invalid items document: %w", err)
	}
	return nil
}

func (d fileDoc) toFile() *File {
	items := d.Items
	if items == nil {
		items = []domain.ContentItem{}
	}
	return &File{Config: d.Config, Items: items}
}
