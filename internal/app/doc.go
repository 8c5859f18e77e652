// Package app wires the karotzd daemon together.
//
// # Overview
//
// Run is the composition root: it loads the configuration, builds the
// logger, the karotz client and the metrics recorder, then starts the status
// poller and, when a broker is configured, the MQTT bridge and snapshot
// forwarder. It blocks until the context is cancelled.
//
// # Data Flow
//
//	Run()
//	 ├─> config.Load() + Validate()
//	 ├─> logging.New()
//	 ├─> karotz.NewClient()      observer: metrics.Recorder
//	 ├─> serveMetrics()          optional /metrics listener
//	 ├─> bridge.New() + Connect  optional, with snapshot.Forwarder
//	 └─> StartPoller()
//	       └─> client.Status() ─> state.Store ─> hooks (metrics, bridge)
//
// # Polling Behavior
//
// The poller asks the rabbit for its status every poll interval (default 10
// seconds). Each failure doubles the delay up to 30 seconds, so an unplugged
// rabbit is not hammered; the first success restores the normal cadence.
// Every poll result, success or failure, is handed to the hooks: the metrics
// recorder counts it and the bridge republishes the retained state.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Configuration file unreadable or invalid, or no device address
//   - Metrics listener cannot bind
//   - MQTT broker rejects the connection
//
// Recoverable errors (logged, the daemon keeps running):
//   - Status polls that fail or find the rabbit offline
//   - Commands the rabbit rejects
//   - Snapshot captures and MQTT publishes that fail
package app
