// Package realtime implements the socket side of the system: per-user
// channel naming, subscription authorization, signed subscription grants,
// a Redis-backed publisher and the websocket hub that delivers events.
package realtime

import "strings"

// UserChannelPrefix marks the reserved per-user namespace. A channel named
// UserChannelPrefix+id may only be joined by the user with that id.
const UserChannelPrefix = "private-user-"

// UserChannel returns the private channel that carries userID's events.
func UserChannel(userID string) string {
	return UserChannelPrefix + userID
}

// ChannelOwner returns the user a per-user channel belongs to. ok is false
// for channels outside the reserved namespace.
func ChannelOwner(channel string) (owner string, ok bool) {
	return strings.CutPrefix(channel, UserChannelPrefix)
}
