// Package keys builds the keys view models are cached under and the stable
// hashes used to partition cache dependencies.
package keys

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// PageModelKey is the cache key of a page model: the page URI and whether
// include pages were merged, e.g. "tcm:1065-640-64:true".
func PageModelKey(pageURI string, addIncludes bool) string {
	return pageURI + ":" + strconv.FormatBool(addIncludes)
}

// EntityModelKey is the cache key of an entity model, e.g. "1234-567-1065".
// Staging and live requests share it.
func EntityModelKey(entityID, localizationID string) string {
	return entityID + "-" + localizationID
}

// ShardIndex returns the shard, among n, a dependency id belongs to. The index
// is stable across processes.
func ShardIndex(dependencyID string, n uint64) uint64 {
	return xxhash.Sum64String(dependencyID) % n
}
