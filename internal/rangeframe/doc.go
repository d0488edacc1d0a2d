// Package rangeframe owns the boundary with the depth-capture collaborator.
//
// Responsibilities: the RangeFrame grid (distances in metres plus per-sample
// validity), device orientation handling, and a synthetic scene renderer
// used by the simulator, tests and demo binaries in place of a real sensor.
// Key types: Frame, Orientation, Scene, Source.
//
// Every consumer reads samples through Canonical so that "left" and "right"
// mean the same thing regardless of how the sensor is mounted.
package rangeframe
