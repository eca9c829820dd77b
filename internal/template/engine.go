package template

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Template is a compiled template: the parsed syntax tree plus its source
// hash. Compiled templates are immutable and safe for concurrent use.
type Template struct {
	nodes []Node
	hash  string
}

// Hash returns the template's source hash, the cache key.
func (t *Template) Hash() string { return t.hash }

// Compile parses template source without caching.
func Compile(src string) (*Template, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	nodes, err := parse(tokens)
	if err != nil {
		return nil, err
	}
	return &Template{nodes: nodes, hash: sourceHash(src)}, nil
}

// Engine owns the shared compiled-template cache. The cache is the only
// structure touched by concurrent requests; the LRU serializes lookups and
// inserts internally, and compilation is idempotent when two requests race
// on the same source.
type Engine struct {
	cache *lru.Cache[string, *Template]
}

// DefaultCacheSize bounds the compiled-template cache.
const DefaultCacheSize = 512

// NewEngine creates an engine with a bounded LRU of compiled templates.
func NewEngine(cacheSize int) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Template](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{cache: cache}, nil
}

// Compile returns the compiled template for src, from cache when possible.
func (e *Engine) Compile(src string) (*Template, error) {
	key := sourceHash(src)
	if t, ok := e.cache.Get(key); ok {
		return t, nil
	}
	t, err := Compile(src)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, t)
	return t, nil
}

// InferVariables compiles src and returns its inferred variable schema,
// merged non-destructively against an optional declared schema.
func (e *Engine) InferVariables(src string, declared *Schema) (*Schema, error) {
	t, err := e.Compile(src)
	if err != nil {
		return nil, err
	}
	return MergeSchema(declared, t.InferSchema()), nil
}

func sourceHash(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}
