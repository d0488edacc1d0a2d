// Package perception owns the zone profiler: one range frame in, a
// clearance profile and obstacle-zone summary out.
//
// Responsibilities: central-band sparse sampling, range and floor
// rejection, left/center/right nearest distances, the inverse-distance
// lateral centroid, and the per-column clearance profile.
// Key types: ZoneProfiler, ClearanceProfile, ObstacleZones, FloorFilter.
//
// Dependency rule: perception reads rangeframe only; it never decides how
// to steer.
package perception
