// Package id generates identifiers for lock tokens and events.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator can generate IDs.
type Generator interface {
	// Generate an ID
	Generate() string
}

// NewSequentialGenerator returns a generator that produces "1", "2", ... in
// order. Runs that use it are deterministic.
func NewSequentialGenerator() Generator {
	return &sequentialGenerator{}
}

// NewPrefixedGenerator returns a sequential generator whose IDs carry a
// prefix, such as the owning component name.
func NewPrefixedGenerator(prefix string) Generator {
	return &sequentialGenerator{prefix: prefix}
}

// NewXIDGenerator returns a generator backed by xid. The IDs are globally
// unique but not deterministic.
func NewXIDGenerator() Generator {
	return xidGenerator{}
}

type sequentialGenerator struct {
	prefix string
	nextID uint64
}

func (g *sequentialGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)

	if g.prefix != "" {
		return g.prefix + "-" + id
	}

	return id
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}

var defaultGenerator atomic.Pointer[Generator]

// Generate returns an ID from the package-level generator. Events use it;
// lock tokens get their generator injected by the registry owner.
func Generate() string {
	g := defaultGenerator.Load()
	if g == nil {
		seq := NewSequentialGenerator()
		defaultGenerator.CompareAndSwap(nil, &seq)
		g = defaultGenerator.Load()
	}

	return (*g).Generate()
}
