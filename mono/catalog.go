package mono

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/effectgen/decl"
	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
	"github.com/wippyai/effectgen/fields"
	"github.com/wippyai/effectgen/propagate"
)

// ErrDiscarded is returned by a catalog after Discard.
var ErrDiscarded = stderrors.New("mono: catalog discarded")

type entry struct {
	v   *Variant
	err *errors.Error
}

type tableEntry struct {
	tab   *fields.Table
	diags errors.List
}

// Catalog is the write-once variant cache of one compilation unit.
// Concurrent demands for the same key compute once; the others wait for
// and share the result. Failures are cached like variants.
type Catalog struct {
	graph     *propagate.Graph
	log       *zap.Logger
	group     singleflight.Group
	entries   map[Key]entry
	tables    map[decl.ID]tableEntry
	mu        sync.RWMutex
	discarded bool
}

// NewCatalog creates an empty catalog over a propagation graph.
func NewCatalog(g *propagate.Graph, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		graph:   g,
		log:     log,
		entries: make(map[Key]entry),
		tables:  make(map[decl.ID]tableEntry),
	}
}

// Get returns the variant of a declaration under a full assignment of its
// effective set, lowering it on first demand.
func (c *Catalog) Get(id decl.ID, a effect.Assignment) (*Variant, error) {
	// Equal sets in another order share the cached variant.
	if set := c.setOf(id); a.Set().Equal(set) {
		a = a.Extend(set)
	}
	k := KeyOf(id, a)
	e, ok, err := c.cached(k)
	if err != nil {
		return nil, err
	}
	if ok {
		if ce := c.log.Check(zap.DebugLevel, "variant cache hit"); ce != nil {
			ce.Write(zap.Stringer("key", k))
		}
		return e.result()
	}

	res, err, _ := c.group.Do(k.String(), func() (any, error) {
		e, ok, err := c.cached(k)
		if err != nil || ok {
			return e, err
		}
		return c.store(k, c.compute(id, a))
	})
	if err != nil {
		return nil, err
	}
	return res.(entry).result()
}

func (e entry) result() (*Variant, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.v, nil
}

func (c *Catalog) cached(k Key) (entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.discarded {
		return entry{}, false, ErrDiscarded
	}
	e, ok := c.entries[k]
	return e, ok, nil
}

// store records e unless the key is already set; the first entry wins.
func (c *Catalog) store(k Key, e entry) (entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discarded {
		return entry{}, ErrDiscarded
	}
	if prev, ok := c.entries[k]; ok {
		return prev, nil
	}
	c.entries[k] = e
	return e, nil
}

func (c *Catalog) compute(id decl.ID, a effect.Assignment) entry {
	d, ok := c.graph.Model().Get(id)
	if !ok {
		return entry{err: errors.NotFound(errors.PhaseLower, "declaration", string(id))}
	}
	if c.graph.Failed(id) {
		return entry{err: errors.New(errors.PhaseLower, errors.KindInvalidInput).
			At(d.Span).Decl(string(id)).
			Detail("%s failed validation and has no variants", id).Build()}
	}
	set := c.setOf(id)
	if !a.Set().Equal(set) {
		return entry{err: errors.New(errors.PhaseLower, errors.KindInvalidInput).
			At(d.Span).Decl(string(id)).Assignments(a.String()).
			Detail("assignment over %s, %s is generic over %s", a.Set(), id, set).Build()}
	}
	if fixed, ok := c.excludedBy(id, a); ok {
		return entry{err: errors.New(errors.PhaseLower, errors.KindUnresolvedEffectVariant).
			At(d.Span).Decl(string(id)).Rule("effect-specific").Assignments(a.String()).
			Detail("%s exists only where %s are present", id, fixed).Build()}
	}

	v, err := c.lower(d, a)
	if ce := c.log.Check(zap.DebugLevel, "variant lowered"); ce != nil {
		ce.Write(zap.String("decl", string(id)), zap.String("assignment", a.String()), zap.Bool("ok", err == nil))
	}
	return entry{v: v, err: err}
}

// excludedBy reports the fixed kinds on id's parent chain that a leaves absent.
func (c *Catalog) excludedBy(id decl.ID, a effect.Assignment) (effect.Set, bool) {
	fixed := c.graph.FixedKinds(id)
	for _, k := range fixed.Kinds() {
		if present, known := a.Lookup(k); known && !present {
			return fixed, true
		}
	}
	return effect.Set{}, false
}

// Fields returns the field table of a Type declaration, computed once.
func (c *Catalog) Fields(id decl.ID) (*fields.Table, errors.List) {
	c.mu.RLock()
	te, ok := c.tables[id]
	c.mu.RUnlock()
	if ok {
		return te.tab, te.diags
	}

	res, _, _ := c.group.Do("fields:"+string(id), func() (any, error) {
		c.mu.RLock()
		te, ok := c.tables[id]
		c.mu.RUnlock()
		if ok {
			return te, nil
		}
		d, ok := c.graph.Model().Get(id)
		if !ok || d.Kind != decl.KindType {
			return tableEntry{diags: errors.List{errors.NotFound(errors.PhaseFields, "type", string(id))}}, nil
		}
		tab, diags := fields.Resolve(d)
		te = tableEntry{tab: tab, diags: diags}
		c.mu.Lock()
		c.tables[id] = te
		c.mu.Unlock()
		return te, nil
	})
	te = res.(tableEntry)
	return te.tab, te.diags
}

// Lookup returns a variant already in the catalog without lowering.
func (c *Catalog) Lookup(k Key) (*Variant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.discarded {
		return nil, false
	}
	e, ok := c.entries[k]
	if !ok || e.v == nil {
		return nil, false
	}
	return e.v, true
}

// Keys returns the keys of every successfully lowered variant, sorted.
func (c *Catalog) Keys() []Key {
	c.mu.RLock()
	keys := make([]Key, 0, len(c.entries))
	for k, e := range c.entries {
		if e.v != nil {
			keys = append(keys, k)
		}
	}
	c.mu.RUnlock()
	sortKeys(keys)
	return keys
}

// Variants returns every successfully lowered variant in key order.
func (c *Catalog) Variants() []*Variant {
	keys := c.Keys()
	out := make([]*Variant, 0, len(keys))
	for _, k := range keys {
		if v, ok := c.Lookup(k); ok {
			out = append(out, v)
		}
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.Keys())
}

// Discard drops every cached variant. The catalog refuses further use.
func (c *Catalog) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded = true
	c.entries = make(map[Key]entry)
	c.tables = make(map[decl.ID]tableEntry)
}

// Graph returns the propagation graph the catalog lowers from.
func (c *Catalog) Graph() *propagate.Graph { return c.graph }

// LowerComponent lowers every member of a component under every
// assignment of its root, exhaustively. Members excluded by a fixed edge
// are skipped for that assignment.
func (c *Catalog) LowerComponent(ctx context.Context, comp *propagate.Component) ([]*Variant, errors.List) {
	var (
		diags errors.List
		out   []*Variant
	)
	seen := make(map[Key]bool)
	for _, root := range effect.Enumerate(comp.Set) {
		if ctx.Err() != nil {
			return out, diags
		}
		for _, id := range comp.Members {
			a, ok := c.graph.MemberAssignment(id, root)
			if !ok {
				continue
			}
			k := KeyOf(id, a)
			if seen[k] {
				continue
			}
			seen[k] = true

			v, err := c.Get(id, a)
			if err != nil {
				var e *errors.Error
				if stderrors.As(err, &e) {
					diags.Add(e)
					continue
				}
				diags.Add(errors.Wrap(errors.PhaseLower, errors.KindInvalidData, err, "lower "+k.String()))
				continue
			}
			out = append(out, v)
		}
	}
	return out, diags
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Decl != keys[j].Decl {
			return keys[i].Decl < keys[j].Decl
		}
		return keys[i].Assignment < keys[j].Assignment
	})
}
