package objctype

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 4096

type typeResult struct {
	t   *Type
	err error
}

type methodResult struct {
	mt  *MethodType
	err error
}

// A ParseCache memoizes parsed single-type and method-type encodings behind
// bounded LRUs. Safe for concurrent use; repeated encodings across thousands
// of methods hit in O(1).
type ParseCache struct {
	types   *lru.Cache[string, typeResult]
	methods *lru.Cache[string, methodResult]
}

// NewParseCache creates a cache bounded to size entries per table; size <= 0
// selects the default bound.
func NewParseCache(size int) *ParseCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	types, _ := lru.New[string, typeResult](size)
	methods, _ := lru.New[string, methodResult](size)
	return &ParseCache{types: types, methods: methods}
}

// Type parses a single type encoding through the cache.
func (c *ParseCache) Type(encoding string) (*Type, error) {
	if r, ok := c.types.Get(encoding); ok {
		return r.t, r.err
	}
	t, err := ParseType(encoding)
	c.types.Add(encoding, typeResult{t: t, err: err})
	return t, err
}

// MethodType parses a method encoding through the cache.
func (c *ParseCache) MethodType(encoding string) (*MethodType, error) {
	if r, ok := c.methods.Get(encoding); ok {
		return r.mt, r.err
	}
	mt, err := ParseMethodType(encoding)
	c.methods.Add(encoding, methodResult{mt: mt, err: err})
	return mt, err
}

// Purge empties both tables.
func (c *ParseCache) Purge() {
	c.types.Purge()
	c.methods.Purge()
}
