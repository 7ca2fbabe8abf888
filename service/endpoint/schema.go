package endpoint

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/webhook.json
var webhookSchema []byte

const webhookSchemaURL = "https://intake.local/schema/webhook.json"

// compileSchema compiles a webhook schema document.
func compileSchema(document []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(webhookSchemaURL, bytes.NewReader(document)); err != nil {
		return nil, fmt.Errorf("webhook schema load failed: %w", err)
	}
	compiled, err := c.Compile(webhookSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("webhook schema compile failed: %w", err)
	}
	return compiled, nil
}

// decodeBody decodes a single JSON document keeping number literals.
func decodeBody(data []byte) (interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var ret interface{}
	if err := decoder.Decode(&ret); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("trailing data after JSON document")
	}
	return ret, nil
}
