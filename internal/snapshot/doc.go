// Package snapshot forwards pictures from the rabbit's camera to MQTT.
//
// A Forwarder asks the rabbit for a snapshot, downloads the JPEG through
// snapshot_get, optionally burns the capture time into its bottom-left
// corner and hands the bytes to a Publisher. Captures run on a fixed
// interval, on Trigger, or both.
package snapshot
