// Package config loads settings for the authctl command-line client.
//
// Sources are applied in order: defaults, JSON file (-c/-config), flags.
// Later sources win.
package config
