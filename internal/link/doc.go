// Package link carries encoded control packets from the decision side to
// the actuation side.
//
// Delivery is fire-and-forget: no acknowledgement, no retry. Each side
// consumes link activity as a stream of Event values in a single dispatch
// loop. Back ends: UDP datagrams, hex lines over a serial port, and an
// in-memory pair with configurable loss and latency for simulation.
//
// The Sender runs at a fixed cadence independent of the frame rate and
// only ever transmits the most recent packet.
package link
