// Package registration manages permanent hosts and the workflow that
// binds one, sensors and all, into a deployment via its registration
// key. The key is the unit's claim token: unique by store constraint,
// resolvable to its host, and single-use until the host is released.
package registration
