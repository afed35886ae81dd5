// Package session runs the two kinds of lobby connections.
//
// A Streamer pumps frames from the producer's socket into the lobby's
// fan-out topic and drains the fan-in queue back to the producer. A Viewer
// does the reverse, passing every upstream frame through a rate limiter and
// an authenticator first. Each session is a small errgroup of pumps sharing
// one cancellation; whichever pump finishes first ends the session.
package session
