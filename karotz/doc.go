// Package karotz provides an HTTP client for the OpenKarotz rabbit CGI API.
//
// # Overview
//
// An OpenKarotz rabbit exposes its capabilities (sleep and wake, sound,
// LEDs, ears, moods, text-to-speech, camera snapshots, RFID tags) as plain
// unauthenticated GET endpoints under http://<rabbit>/cgi-bin. Every
// endpoint answers with a small JSON object. This package wraps each endpoint
// in one method and keeps a cached copy of the last known device state.
//
// # Architecture
//
//   - client.go: construction, the shared request primitive, cached state
//   - endpoints.go: one method per device capability
//   - async.go: callback and channel based asynchronous forms
//   - types.go: State, Response and payload helpers
//   - errors.go: error kinds and sentinels
//   - encode.go: query component encoding compatible with the rabbit
//
// # Client Usage
//
//	client, err := karotz.NewClient("192.168.1.20")
//	if err != nil {
//		log.Fatalf("karotz: %v", err)
//	}
//
//	state, err := client.Status(ctx)
//	if err != nil {
//		log.Printf("status failed: %v", err)
//	}
//
//	if _, err := client.Leds(ctx, karotz.Blue, true); err != nil {
//		log.Printf("leds failed: %s", karotz.Message(err))
//	}
//
// # Response Envelope
//
// All endpoints except status reply with
//
//	{"return": 0, "msg": "...", ...}
//
// where a zero return code means success. The rabbit often sends the code as
// a string ("0"); both forms are accepted. A nonzero or missing code yields
// ErrDeviceRejected whose Message is the device msg (possibly empty).
//
// Status is irregular: its body is the state object itself. An empty body
// means the rabbit is offline; the cached state is marked sleeping and
// ErrDeviceOffline ("rabbit is offline") is returned.
//
// # Cached State
//
// State() returns the last status reply. Sleep and Wakeup patch only the
// sleep flag. Everything else may leave the cache stale; the rabbit can also
// change state on its own (a press on its head), so call Status when
// freshness matters.
//
// # Asynchronous Calls
//
// Go runs a call in the background and hands the outcome to exactly one of
// two callbacks:
//
//	karotz.Go(ctx, client, client.Wakeup,
//		func(r *karotz.Response) { fmt.Println("awake") },
//		func(err error) { fmt.Println("failed:", karotz.Message(err)) })
//
// Callbacks of one client never overlap. Async returns a channel instead.
//
// # Error Handling
//
//   - ErrInvalidConfiguration: empty device address, returned by NewClient
//   - ErrTransport: dial failures, timeouts, cancelled contexts, HTTP >= 400
//   - ErrMalformedResponse: a body that is not a JSON object
//   - ErrDeviceRejected: nonzero return code
//   - ErrDeviceOffline: empty status body
//
// Use errors.Is against the sentinels and Message for the callback text.
//
// # Retries and Timeouts
//
// The client makes exactly one attempt per call and enforces no timeout of
// its own. Bound calls with the context or with an http.Client supplied
// through WithHTTPClient.
package karotz
