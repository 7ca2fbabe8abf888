// Package clock is the single time source for instance timestamps, token
// expiry and decision deadlines, so tests can move time past a deadline.
package clock

import "time"

// NowFunc returns the current time. Tests override it to simulate elapsed
// decision lifetimes.
var NowFunc = time.Now

// Now returns NowFunc().
func Now() time.Time { return NowFunc() }
