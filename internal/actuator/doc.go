// Package actuator is the receive side: it decodes control packets and
// drives the motor through a leaky integrator with a staleness watchdog.
//
// The receive path stores each decoded packet as an immutable Command
// snapshot swapped atomically; the motor task and the pulse task read that
// snapshot on their own schedules and never block on the network. A stale
// or missing snapshot forces zero input so the drive decays smoothly.
package actuator
