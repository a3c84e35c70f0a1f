// Package schemacache implements the per-archive schema filter cache
// (spec.md §4.K): two lazily-populated maps, keyed by schema id, one for
// variable-dictionary-id Bloom/BinaryFuse filters and one for exact-value
// integer column filters. Both are preloaded before any packed stream in the
// archive is opened.
package schemacache

import (
	"github.com/cockroachdb/swiss"

	"github.com/ShangDanLuXian/clp/columnfilter"
	"github.com/ShangDanLuXian/clp/probfilter"
)

// VarIDLoader resolves the serialized form of a variable-dictionary id for
// membership testing against a schema's probabilistic filter.
type VarIDLoader func(varID int64) string

// Cache holds preloaded per-schema filters for one archive.
type Cache struct {
	filters    *swiss.Map[int32, *probfilter.Filter]
	intFilters *swiss.Map[int32, *columnfilter.IntColumnFilter]
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		filters:    swiss.New[int32, *probfilter.Filter](0),
		intFilters: swiss.New[int32, *columnfilter.IntColumnFilter](0),
	}
}

// Preload registers filter for schemaID, overwriting any previous entry.
// Callers load these from the archive's filter pack before the first
// packed-stream checkout, since checking the pack in and out mid-stream is
// not supported.
func (c *Cache) Preload(schemaID int32, filter *probfilter.Filter) {
	c.filters.Put(schemaID, filter)
}

// PreloadInt registers an int column filter for schemaID.
func (c *Cache) PreloadInt(schemaID int32, filter *columnfilter.IntColumnFilter) {
	c.intFilters.Put(schemaID, filter)
}

// MightContain reports whether any id in varIDs could be referenced by
// schemaID. An uncached schema conservatively answers true: the caller has
// no basis to skip it.
func (c *Cache) MightContain(schemaID int32, varIDs []int64, resolve VarIDLoader) bool {
	filter, ok := c.filters.Get(schemaID)
	if !ok {
		return true
	}
	for _, id := range varIDs {
		if filter.PossiblyContains(resolve(id)) {
			return true
		}
	}
	return false
}

// IntMightContain delegates to the cached int column filter for schemaID.
// An uncached schema conservatively answers true.
func (c *Cache) IntMightContain(schemaID int32, columnID int32, value int64) bool {
	filter, ok := c.intFilters.Get(schemaID)
	if !ok {
		return true
	}
	return filter.Contains(columnID, value)
}

// Len reports how many schemas have a preloaded var-id filter.
func (c *Cache) Len() int { return c.filters.Len() }
