// Package config loads the hub configuration from YAML.
//
// ${VAR} references are expanded from the environment before parsing, so
// secrets (auth secret, speech key, NLU password) can stay out of the file.
package config
