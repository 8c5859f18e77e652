// Package config loads the karotzd configuration file.
//
// # Overview
//
// The daemon needs little more than the rabbit's address to run. Everything
// else (polling cadence, logging, the metrics listener, the MQTT bridge and
// the snapshot forwarder) has a default, so an absent file is not an error.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/karotz/config.toml (default)
//  3. If the file doesn't exist, start from Default()
//  4. Overlay KAROTZ_* environment variables
//
// Environment keys are the TOML keys upper-cased with dots turned into
// underscores: KAROTZ_ADDRESS, KAROTZ_POLL_INTERVAL, KAROTZ_MQTT_BROKER,
// KAROTZ_SNAPSHOT_ENABLED and so on.
//
// # TOML Format
//
//	address = "192.168.1.20"
//	request_timeout = "10s"
//	poll_interval = "10s"
//	log_level = "info"        # trace, debug, info, warn, error
//	log_format = "console"    # console or json
//	metrics_listen = ":9105"  # empty disables /metrics
//
//	[mqtt]
//	broker = "tcp://mqtt:1883"  # empty disables the bridge
//	client_id = "karotzd"
//	topic_prefix = "karotz"
//	discovery = true
//	discovery_prefix = "homeassistant"
//	rate_limit = 2.0            # commands per second
//	rate_burst = 5
//
//	[snapshot]
//	enabled = false
//	interval = "5m"             # zero means on demand only
//	silent = true
//	stamp = true
//	topic = ""                  # defaults to <topic_prefix>/snapshot
//
// Durations use Go syntax. String values are trimmed; blank strings keep
// the default.
//
// # Error Handling
//
// Load returns errors for path expansion failures, unreadable files, TOML
// syntax errors and unparseable durations. It does not require an address;
// call Validate before starting the daemon.
package config
