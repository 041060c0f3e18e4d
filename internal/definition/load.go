package definition

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// LoadFile reads, decodes and builds the definition at path. The format
// is chosen by extension: .yaml, .yml or .cue.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	doc, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	reg, err := Build(doc)
	if err != nil {
		return nil, err
	}
	reg.source = path
	sum := sha256.Sum256(data)
	reg.digest = hex.EncodeToString(sum[:])
	return reg, nil
}

// Decode parses data according to the extension of path.
func Decode(path string, data []byte) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(path, data)
	case ".cue":
		return decodeCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("unsupported definition format %q", filepath.Ext(path))}
	}
}

func decodeYAML(path string, data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("parse YAML: %v", err)}
	}
	return &doc, nil
}

func decodeCUE(path string, data []byte) (*Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}
	procs := v.LookupPath(cue.ParsePath("processes"))
	if !procs.Exists() {
		return nil, &LoadError{Path: path, Message: "processes is required", Pos: v.Pos()}
	}
	if err := procs.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}
	var doc Document
	if err := procs.Decode(&doc.Processes); err != nil {
		return nil, cueLoadError(path, err)
	}
	return &doc, nil
}
