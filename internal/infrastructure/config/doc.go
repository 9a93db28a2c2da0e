// Package config loads and validates the Bestway bridge configuration.
//
// Configuration is read from a YAML file, with hardcoded defaults applied
// first and BESTWAY_* environment variables applied last. Credentials for
// the vendor cloud account are usually supplied via environment variables
// rather than the file.
//
// # Sections
//
//   - vendor: Bestway (Gizwits) cloud account, region/endpoint, timeouts
//   - polling: status and bindings cadence, failure backoff
//   - mqtt: broker connection for the platform-side state bridge
//   - api: local read-only HTTP API and command endpoint
//   - websocket: state stream settings
//   - logging: level, format, output
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	client := bestway.NewClient(cfg.ResolvedAPIRoot(), cfg.GetVendorTimeout())
package config
