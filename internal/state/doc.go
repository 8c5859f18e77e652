// Package state holds the daemon's latest view of the rabbit.
//
// # Overview
//
// The poller writes one Snapshot per status poll; the MQTT bridge and the
// metrics endpoint read it. Store is a readers-writer locked container and is
// ready to use as a zero value:
//
//	store := &state.Store{}
//	st, err := client.Status(ctx)
//	if err != nil {
//		store.Update(nil, err)
//	} else {
//		store.Update(&st, nil)
//	}
//	snap := store.Snapshot()
//
// # Update Semantics
//
// A successful poll replaces State and clears LastError. A failed poll keeps
// the previous State, records LastError and increments ConsecutiveFailures.
// Two failures in a row make IsOffline report true.
//
// The client keeps its own cached State as well; the Store differs in that
// it only changes on polls and remembers how long the rabbit has been
// unreachable.
//
// # Copying
//
// Update and Snapshot deep-copy the raw status fields, so callers may keep or
// mutate what they pass in or get back.
package state
