// Package config holds the settings of a brokerscan run: defaults, the
// .brokerscan YAML file, XDG directories and validation.
package config
