package fixtures

import (
	_ "embed"
)

// ConfigExample is a complete configuration file with every key set to its
// default.
//
//go:embed config/ptxconform.yaml.example
var ConfigExample []byte
