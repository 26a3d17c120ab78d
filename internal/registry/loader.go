package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// declarationFile is the layout of a YAML declaration file:
//
//	resources:
//	  - class: app.Book
//	    persistence: {backend: relational, target: books}
//	    properties:
//	      - name: isbn
//	        identifier: true
type declarationFile struct {
	Resources []declaredResource `yaml:"resources"`
}

type declaredResource struct {
	metadata.APIResource `yaml:",inline"`
	Properties           []PropertyDeclaration `yaml:"properties,omitempty"`
}

// Load reads YAML declarations. Every entry is one resource view; entries
// sharing a class add views to it.
func (r *Registry) Load(reader io.Reader) error {
	var file declarationFile
	dec := yaml.NewDecoder(reader)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse declarations: %w", err)
	}

	for i, res := range file.Resources {
		if res.Class == "" {
			return fmt.Errorf("resource %d has no class", i)
		}
		decl := Declaration{
			Class:      res.Class,
			Resources:  []metadata.APIResource{res.APIResource},
			Properties: res.Properties,
		}
		if err := r.Declare(decl); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile reads YAML declarations from path
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read declarations: %w", err)
	}
	if err := r.Load(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
