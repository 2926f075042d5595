// Package config handles loading and validating nativehost configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The token secret should be set via NATIVEHOST_TOKEN_SECRET, not the file
//   - The API listens on loopback by default; widening it exposes process spawning
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
