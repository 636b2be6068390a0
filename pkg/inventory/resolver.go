package inventory

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/convoyops/convoy/pkg/vars"
)

const tracerName = "github.com/convoyops/convoy/pkg/inventory"

// Config holds resolver settings. Group names are explicit configuration so
// multiple resolution passes can run with different conventions in one
// process.
type Config struct {
	// RootGroup is the implicit top ancestor. Defaults to DefaultRootGroup.
	RootGroup string

	// UngroupedGroup collects hosts without explicit group membership.
	// Defaults to DefaultUngroupedGroup.
	UngroupedGroup string

	// ContinueOnSourceError skips sources that fail to load instead of
	// failing the whole pass. The skipped source's error is logged.
	ContinueOnSourceError bool
}

// Resolver builds Inventories from ordered source sequences. Each Resolve
// call is one resolution pass: every dynamic source is invoked exactly once
// and the result reused for all queries against the returned Inventory.
type Resolver struct {
	cfg    Config
	loader *Loader
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewResolver creates a resolver over a source loader.
func NewResolver(loader *Loader, cfg Config, logger zerolog.Logger) *Resolver {
	if cfg.RootGroup == "" {
		cfg.RootGroup = DefaultRootGroup
	}
	if cfg.UngroupedGroup == "" {
		cfg.UngroupedGroup = DefaultUngroupedGroup
	}

	return &Resolver{
		cfg:    cfg,
		loader: loader,
		logger: logger.With().Str("component", "inventory-resolver").Logger(),
		tracer: otel.Tracer(tracerName),
	}
}

// Resolve loads every source in order, merges the documents, and builds the
// group graph. The returned Inventory is immutable and safe for concurrent
// queries.
func (r *Resolver) Resolve(ctx context.Context, sources []Source) (*Inventory, error) {
	ctx, span := r.tracer.Start(ctx, "inventory.resolve",
		trace.WithAttributes(attribute.Int("inventory.sources", len(sources))))
	defer span.End()

	docs := make([]*Document, 0, len(sources))
	for _, src := range sources {
		doc, err := r.loader.Load(ctx, src)
		if err != nil {
			if r.cfg.ContinueOnSourceError {
				r.logger.Warn().
					Str("source", src.label()).
					Err(err).
					Msg("Skipping inventory source after load failure")
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}

	return r.Build(docs...)
}

// Build constructs an Inventory from already-loaded documents, merged in the
// order given.
func (r *Resolver) Build(docs ...*Document) (*Inventory, error) {
	merged := MergeDocuments(docs...)

	builder := newGraphBuilder(merged, r.cfg.RootGroup, r.cfg.UngroupedGroup)
	if err := builder.build(); err != nil {
		return nil, err
	}

	inv := &Inventory{
		doc:       merged,
		rootGroup: r.cfg.RootGroup,
		depth:     builder.depth,
		parents:   builder.parents,
		cache:     make(map[string]*cacheEntry),
	}
	inv.indexHosts(builder)

	r.logger.Info().
		Int("groups", len(merged.Groups)).
		Int("hosts", len(inv.hostGroups)).
		Msg("Inventory built")

	return inv, nil
}

// cacheEntry memoizes one host's resolution. The once gate gives the cache
// per-key synchronization: resolving one host never blocks queries for
// another.
type cacheEntry struct {
	once sync.Once
	vars map[string]interface{}
	err  error
}

// Inventory is the merged, immutable-after-build group graph. Variables are
// resolved lazily per host and memoized for the lifetime of the Inventory;
// rebuilding after a source change starts an empty cache.
type Inventory struct {
	doc       *Document
	rootGroup string
	depth     map[string]int
	parents   map[string][]string

	// hostGroups maps each host to its applicable groups in ascending
	// precedence order (ancestors first, ties broken by name).
	hostGroups map[string][]string

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// indexHosts precomputes each host's applicable groups: every group the
// host is reachable from by following children edges downward, the direct
// membership groups included, ordered ancestors-first.
func (inv *Inventory) indexHosts(builder *graphBuilder) {
	inv.hostGroups = make(map[string][]string)

	for _, host := range inv.doc.HostNames() {
		applicable := map[string]bool{inv.rootGroup: true}
		for name, group := range inv.doc.Groups {
			if !containsString(group.Hosts, host) {
				continue
			}
			for ancestor := range builder.ancestorsOf(name) {
				applicable[ancestor] = true
			}
		}

		names := make([]string, 0, len(applicable))
		for name := range applicable {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			di, dj := inv.depth[names[i]], inv.depth[names[j]]
			if di != dj {
				return di < dj
			}
			return names[i] < names[j]
		})

		inv.hostGroups[host] = names
	}
}

// Hosts returns every host name in the inventory, sorted.
func (inv *Inventory) Hosts() []string {
	names := make([]string, 0, len(inv.hostGroups))
	for name := range inv.hostGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Groups returns every group name in the inventory, sorted.
func (inv *Inventory) Groups() []string {
	return inv.doc.GroupNames()
}

// GroupsForHost returns the host's applicable groups in ascending precedence
// order, or an error if the host is unknown.
func (inv *Inventory) GroupsForHost(host string) ([]string, error) {
	groups, ok := inv.hostGroups[host]
	if !ok {
		return nil, NewHostNotFoundError(host)
	}
	out := make([]string, len(groups))
	copy(out, groups)
	return out, nil
}

// Document returns the merged inventory document. Callers must not mutate
// it.
func (inv *Inventory) Document() *Document {
	return inv.doc
}

// HostVars computes the host's final variable mapping: each applicable
// group's variables merged in ascending precedence order, then the host's
// _meta.hostvars entry, which always wins. Results are memoized; concurrent
// calls for different hosts do not contend.
func (inv *Inventory) HostVars(host string) (map[string]interface{}, error) {
	inv.mu.Lock()
	entry, ok := inv.cache[host]
	if !ok {
		entry = &cacheEntry{}
		inv.cache[host] = entry
	}
	inv.mu.Unlock()

	entry.once.Do(func() {
		entry.vars, entry.err = inv.resolveHost(host)
	})

	if entry.err != nil {
		return nil, entry.err
	}
	// Hand out a copy so callers cannot mutate the memoized mapping.
	return vars.Copy(entry.vars), nil
}

func (inv *Inventory) resolveHost(host string) (map[string]interface{}, error) {
	groups, ok := inv.hostGroups[host]
	if !ok {
		return nil, NewHostNotFoundError(host)
	}

	resolved := map[string]interface{}{}
	for _, name := range groups {
		resolved = vars.Merge(resolved, inv.doc.Groups[name].Vars)
	}

	if hostVars, ok := inv.doc.Meta.HostVars[host]; ok {
		resolved = vars.Merge(resolved, hostVars)
	}

	return resolved, nil
}

// Match expands a host pattern: the root group name matches every host, a
// group name matches every host under that group, an exact host name matches
// itself, and anything else is tried as a shell-style glob over host names.
// The result is sorted and deduplicated.
func (inv *Inventory) Match(pattern string) []string {
	if pattern == "" || pattern == inv.rootGroup {
		return inv.Hosts()
	}

	matched := make(map[string]bool)

	if _, isGroup := inv.doc.Groups[pattern]; isGroup {
		for host, groups := range inv.hostGroups {
			if containsString(groups, pattern) {
				matched[host] = true
			}
		}
	}

	if _, isHost := inv.hostGroups[pattern]; isHost {
		matched[pattern] = true
	}

	if len(matched) == 0 {
		for host := range inv.hostGroups {
			if ok, err := path.Match(pattern, host); err == nil && ok {
				matched[host] = true
			}
		}
	}

	out := make([]string, 0, len(matched))
	for host := range matched {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
