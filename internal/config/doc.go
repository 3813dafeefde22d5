// Package config loads the relay daemon's YAML configuration file and fills
// in defaults for the listen address, marketplace endpoint, poll intervals,
// wallet directory, and logging.
package config
