// Package bridge exposes a rabbit on MQTT.
//
// # Topics
//
// With the default prefix "karotz":
//
//   - karotz/cmd/<name>: commands in; payload is a JSON object of arguments
//     or a bare value for the command's main argument
//   - karotz/result/<name>: one JSON result per command
//   - karotz/state: retained JSON view of the rabbit, refreshed on every poll
//     and after sleep, wakeup and status commands
//   - karotz/availability: retained "online"/"offline", with "offline" as the
//     last will
//
// Command names match the CGI endpoints (sleep, wakeup, leds, ears, tts,
// moods, snapshot, rfid_info, ...) plus "capture", which asks the snapshot
// forwarder for a picture when one is configured.
//
// # Results
//
//	{"command":"leds","ok":true,"reply":{"return":"0"}}
//	{"command":"reboot","ok":false,"error":"busy","kind":"device rejected"}
//
// # Dispatch
//
// Device calls run through karotz.Go, so results for one rabbit are published
// one at a time. A token bucket limits how fast commands reach the rabbit;
// throttled commands get an immediate error result.
//
// # Home Assistant
//
// When discovery is on, the bridge advertises an "Asleep" binary sensor and
// buttons for wake up, sleep, ear reset, random mood and (with a forwarder)
// snapshot, all under one device entry.
package bridge
