// Package config loads executor settings from TOML.
//
// A file is decoded over Default, so it only needs the keys it changes.
// The command line applies flag and environment overrides on top.
package config
