// Package auth turns raw viewer messages into an authenticated stream.
//
// Every viewer connection owns one Authenticator. Until the viewer presents a
// valid signed identity token the connection is unauthenticated and nothing
// but the legacy "jwt" passthrough reaches the streamer. Once authenticated,
// every JSON object message is stamped with the viewer's userId.
package auth
