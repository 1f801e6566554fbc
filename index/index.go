// Package index builds and holds the immutable ATT&CK lookup structures.
//
// Build turns a decoded STIX bundle into an Index with three mappings:
//
//   - by ID, per kind namespace
//   - by normalized name, in insertion order
//   - adjacency: (ID, RelationKind) to an ordered set of IDs
//
// Build tolerates everything short of a missing bundle: unknown object
// types are skipped, dangling relationship references are dropped and
// counted in Diagnostics, and a later object with the same ID as an earlier
// one of the same kind replaces it in place.
//
// An Index is never modified after Build returns, so it can be shared by
// any number of goroutines without locking.
package index

// Diagnostics summarizes what Build kept and dropped.
type Diagnostics struct {
	// Objects is the number of decoded objects in the bundle.
	Objects int `json:"objects"`

	// Undecodable is carried over from the loader.
	Undecodable int `json:"undecodable"`

	// Entities counts indexed entities per kind.
	Entities map[Kind]int `json:"entities"`

	// Relationships counts indexed relationship objects.
	Relationships int `json:"relationships"`

	// Skipped counts objects of unrecognized types, objects without any ID
	// and relationship objects of types the index does not use.
	Skipped int `json:"skipped"`

	// Inactive counts revoked or deprecated objects that were left out.
	Inactive int `json:"inactive"`

	// Duplicates counts objects that replaced an earlier entity with the
	// same kind and ID.
	Duplicates int `json:"duplicates"`

	// DanglingRefs counts cross-references whose endpoint is not indexed.
	DanglingRefs int `json:"dangling_refs"`
}

type entityKey struct {
	kind Kind
	id   string
}

type edgeKey struct {
	id  string
	rel RelationKind
}

type nameEntry struct {
	normalized string
	entity     *Entity
}

// Index is the read-only knowledge base built by Build.
type Index struct {
	byID      map[entityKey]*Entity
	byKind    map[Kind][]*Entity
	byName    map[string][]*Entity
	names     []nameEntry
	adjacency map[edgeKey][]string
	diag      Diagnostics
}

// Get returns the entity of the given kind with the given ID.
// The ID is canonicalized before lookup.
func (idx *Index) Get(kind Kind, id string) (*Entity, bool) {
	e, ok := idx.byID[entityKey{kind: kind, id: CanonicalID(id)}]
	return e, ok
}

// Entities returns every entity of a kind in insertion order.
func (idx *Index) Entities(kind Kind) []*Entity {
	src := idx.byKind[kind]
	out := make([]*Entity, len(src))
	copy(out, src)
	return out
}

// Len returns the number of entities of a kind.
func (idx *Index) Len(kind Kind) int {
	return len(idx.byKind[kind])
}

// RelatedIDs returns the IDs adjacent to id through rel, in the order the
// relationships were encountered while building.
func (idx *Index) RelatedIDs(id string, rel RelationKind) []string {
	src := idx.adjacency[edgeKey{id: CanonicalID(id), rel: rel}]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Related returns the entities adjacent to id through rel.
func (idx *Index) Related(id string, rel RelationKind) []*Entity {
	ids := idx.adjacency[edgeKey{id: CanonicalID(id), rel: rel}]
	target := rel.Target()

	out := make([]*Entity, 0, len(ids))
	for _, rid := range ids {
		if e, ok := idx.byID[entityKey{kind: target, id: rid}]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ByName returns the entities whose normalized name equals the normalized
// form of name, in insertion order.
func (idx *Index) ByName(name string) []*Entity {
	src := idx.byName[Normalize(name)]
	out := make([]*Entity, len(src))
	copy(out, src)
	return out
}

// ScanNames calls fn with the normalized name of every entity of kind, in
// insertion order, until fn returns false.
func (idx *Index) ScanNames(kind Kind, fn func(normalized string, e *Entity) bool) {
	for _, entry := range idx.names {
		if entry.entity.Kind != kind {
			continue
		}
		if !fn(entry.normalized, entry.entity) {
			return
		}
	}
}

// Diagnostics returns the build-time counters.
func (idx *Index) Diagnostics() Diagnostics {
	d := idx.diag
	d.Entities = make(map[Kind]int, len(idx.diag.Entities))
	for k, v := range idx.diag.Entities {
		d.Entities[k] = v
	}
	return d
}
