// Package platform manages the platform hosting tree. Platforms form a
// forest inside deployments: a hosted platform records its host and the
// full root-first ancestor chain, and inherits location from its host
// unless it is static and brings its own. Structural edits (rehost,
// unhost, subtree cut) report every platform whose ancestry changed so
// the sensor lifecycle can re-version contexts across the subtree.
package platform
