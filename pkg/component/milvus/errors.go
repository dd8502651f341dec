package milvus

import "strings"

// Milvus reports most conditions as plain status messages, so they are
// matched on text. Keep every pattern here.
var (
	alreadyExistsPatterns = []string{
		"already exist",
		"duplicate collection",
	}
	notFoundPatterns = []string{
		"collection not found",
		"can't find collection",
		"collection not exist",
	}
	nodeResolutionPatterns = []string{
		"node not found",
		"no available shard",
		"shard leader",
		"channel not available",
		"querynode",
		"not fully loaded",
	}
)

func matchAny(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsAlreadyExists reports a create on an existing collection.
func IsAlreadyExists(err error) bool { return matchAny(err, alreadyExistsPatterns) }

// IsCollectionNotFound reports an operation on a missing collection.
func IsCollectionNotFound(err error) bool { return matchAny(err, notFoundPatterns) }

// IsNodeResolution reports a fault where the server could not route the
// request to a query node holding the data.
func IsNodeResolution(err error) bool { return matchAny(err, nodeResolutionPatterns) }
