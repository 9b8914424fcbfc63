// Package config defines the YAML settings of the intruder alarm and helpers
// to load, validate and save them.
//
// Load starts from Default, so keys missing from the file keep their default
// values while explicit zero values (for example startup_delay: 0s) are kept.
package config
