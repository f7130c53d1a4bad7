// Package skills dispatches speech and NLU events from a device connection
// to its skills and collects their replies.
//
// A Controller is built per device from a Manifest. The ids "clock" and
// "echo" resolve to built-in skills; every other id is proxied to a remote
// skill service over a websocket.
package skills
