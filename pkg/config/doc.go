// Package config loads the agent configuration.
//
// The configuration is a YAML file with four sections: mqtt, agent,
// discovery and log. Every key is optional; missing keys keep the values of
// Default. Command line flags are applied by the caller after Load.
package config
