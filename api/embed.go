// Package api embeds the OpenAPI specification so the server can serve it
// at /openapi.yaml.
package api

import _ "embed"

// OpenAPISpec is the raw OpenAPI 3.1 YAML specification.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
