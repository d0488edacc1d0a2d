// Package steering turns obstacle zones and a clearance profile into one
// committed steering decision per frame.
//
// Responsibilities: gap-seeking direction over the clearance profile,
// slow and fast exponential smoothing, the forced/critical priority
// policy, and merging of an optional navigation bias.
// Key types: Engine, Decision, EMA, FilterState, BiasInput.
//
// Sign convention: negative commands steer left, positive steer right.
// All smoothing state is owned by an Engine; there is no package state.
package steering
