// Package defaults provides embedded default assets (profile config and help text).
package defaults

import _ "embed"

//go:embed default_config.yaml
var DefaultConfigYAML []byte

//go:embed help.txt
var HelpText string
