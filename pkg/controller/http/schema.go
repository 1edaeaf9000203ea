package http

import (
	"context"
	_ "embed"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed openapi.yaml
var openapiDoc []byte

const taskRequestSchema = "TaskRequest"

// loadTaskSchema parses the embedded API document and returns the schema of
// the /handle_task request body
func loadTaskSchema(ctx context.Context) (*openapi3.Schema, error) {
	doc, err := openapi3.NewLoader().LoadFromData(openapiDoc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load API document")
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, goerr.Wrap(err, "invalid API document")
	}

	if doc.Components == nil {
		return nil, goerr.New("API document has no components")
	}
	ref, ok := doc.Components.Schemas[taskRequestSchema]
	if !ok || ref.Value == nil {
		return nil, goerr.New("schema not found in API document", goerr.V("schema", taskRequestSchema))
	}

	return ref.Value, nil
}
