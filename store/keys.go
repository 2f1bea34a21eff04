package store

import (
	"regexp"
	"strings"
)

// Bucket names, one per entity family.
const (
	BucketSensors        = "sensors"
	BucketPlatforms      = "platforms"
	BucketContexts       = "contexts"
	BucketPermanentHosts = "permanenthosts"
	BucketDeployments    = "deployments"
	BucketVocabulary     = "vocabulary"
	BucketUnknownSensors = "unknownsensors"
)

// Identifiers are externally visible and double as KV key tokens, so
// they are restricted to lowercase alphanumerics and hyphens. Dots are
// excluded because they separate key segments.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidID reports whether id is usable as a document key segment.
func ValidID(id string) bool {
	return id != "" && len(id) <= 48 && idPattern.MatchString(id)
}

// Key joins key segments with the dot separator.
func Key(segments ...string) string {
	return strings.Join(segments, ".")
}
