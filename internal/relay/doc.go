// Package relay implements the channel pair that carries traffic for one lobby.
//
// A Pair couples a fan-out Topic (streamer to every viewer) with a fan-in Queue
// (every viewer to the streamer). The Topic is bounded and lossy: each
// subscriber reads through its own cursor and a subscriber that falls more than
// the capacity behind skips the oldest unread messages. The Queue is bounded
// and lossless: writers wait for room. Closing the Pair is the only teardown
// signal; every pending and future read on either side observes ErrClosed.
package relay
