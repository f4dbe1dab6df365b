// Package configs provides the configuration template embedded in the
// mcpvector binary.
package configs

import _ "embed"

// ConfigTemplate is the commented configuration written by
// `mcpvector config init`.
//
//go:embed mcpvector.example.yaml
var ConfigTemplate string
