package server

import (
	"bytes"
	_ "embed"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const pdfRequestSchemaID = "inmemory://pdf-request.json"

//go:embed pdf_request.schema.json
var pdfRequestSchemaJSON []byte

// pdfRequestSchema compiles the POST /pdf body schema. The schema is
// embedded, so a compile failure is a programming error.
func pdfRequestSchema() *jsonschema.Schema {
	s, err := compileSchema(pdfRequestSchemaID, pdfRequestSchemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

func compileSchema(id string, schema []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(id, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
