// Package config handles loading and validating dccmon configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with DCCMON_* environment variables
//   - Validation of required fields and timing windows
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("dccmon.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Decoder.Profile)
package config
