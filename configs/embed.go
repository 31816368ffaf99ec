// Package configs provides the embedded configuration template for webseek.
//
// The template is embedded at build time with //go:embed so it ships inside
// the binary regardless of how webseek is installed. It is written out by
// `webseek config init` and documents every supported key; the effective
// precedence is built-in defaults, then the YAML file, then WEBSEEK_*
// environment variables (see internal/config.Load).
package configs

import _ "embed"

// ConfigTemplate is the annotated starter configuration written by
// `webseek config init`.
//
//go:embed webseek.example.yaml
var ConfigTemplate string
