package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBase = "https://gazetrack.local/schema/"

var (
	responseSchema = mustCompile("response.json")
	requestSchema  = mustCompile("request.json")
)

func mustCompile(name string) *jsonschema.Schema {
	data, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		panic(fmt.Sprintf("protocol: read schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaBase+name, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("protocol: add schema %s: %v", name, err))
	}
	s, err := compiler.Compile(schemaBase + name)
	if err != nil {
		panic(fmt.Sprintf("protocol: compile schema %s: %v", name, err))
	}
	return s
}

// validate checks a raw line against an envelope schema.
func validate(s *jsonschema.Schema, line []byte) error {
	var payload any
	if err := json.Unmarshal(line, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
