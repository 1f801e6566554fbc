package index

import (
	"strings"

	"github.com/zero-day-ai/attack-kb/kberr"
	"github.com/zero-day-ai/attack-kb/stix"
)

// Option configures Build.
type Option func(*builder)

// WithInactive keeps revoked and deprecated objects in the index.
func WithInactive() Option {
	return func(b *builder) {
		b.keepInactive = true
	}
}

// classify maps a STIX type discriminant to an entity kind.
func classify(stixType string) (Kind, bool) {
	switch stixType {
	case stix.TypeAttackPattern:
		return KindTechnique, true
	case stix.TypeTactic:
		return KindTactic, true
	case stix.TypeCourseOfAction:
		return KindMitigation, true
	case stix.TypeDataComponent, stix.TypeDetectionStrategy:
		return KindDetection, true
	default:
		return "", false
	}
}

type builder struct {
	keepInactive bool

	entities []*Entity
	slots    map[entityKey]int
	stixRefs map[string]entityKey

	adjacency map[edgeKey][]string
	seen      map[edgeKey]map[string]struct{}

	diag Diagnostics
}

// Build constructs an Index from a decoded bundle. It fails only when the
// bundle itself is missing.
func Build(bundle *stix.Bundle, opts ...Option) (*Index, error) {
	if bundle == nil {
		return nil, kberr.DatasetMalformed("index.Build", "", nil)
	}

	b := &builder{
		slots:     make(map[entityKey]int),
		stixRefs:  make(map[string]entityKey),
		adjacency: make(map[edgeKey][]string),
		seen:      make(map[edgeKey]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.diag.Objects = len(bundle.Objects)
	b.diag.Undecodable = bundle.Undecodable

	var relationships []stix.Object
	for _, obj := range bundle.Objects {
		if obj.Type == stix.TypeRelationship {
			relationships = append(relationships, obj)
			continue
		}
		b.addEntity(obj)
	}

	b.linkTactics()
	for _, rel := range relationships {
		b.addRelationship(rel)
	}
	b.inferParents()

	return b.finish(), nil
}

func (b *builder) addEntity(obj stix.Object) {
	kind, ok := classify(obj.Type)
	if !ok {
		b.diag.Skipped++
		return
	}
	if obj.Inactive() && !b.keepInactive {
		b.diag.Inactive++
		return
	}

	id := obj.ExternalID()
	if id == "" {
		id = obj.ID
	}
	id = CanonicalID(id)
	if id == "" {
		b.diag.Skipped++
		return
	}

	e := &Entity{
		ID:             id,
		STIXID:         obj.ID,
		Kind:           kind,
		Name:           strings.TrimSpace(obj.Name),
		Description:    obj.Description,
		Platforms:      obj.Platforms,
		Detection:      obj.Detection,
		IsSubtechnique: obj.IsSubtechnique,
		Shortname:      obj.Shortname,
	}
	for _, phase := range obj.KillChainPhases {
		e.KillChainPhases = append(e.KillChainPhases, phase.PhaseName)
	}
	for _, ref := range obj.ExternalReferences {
		e.References = append(e.References, Reference{
			SourceName: ref.SourceName,
			ExternalID: ref.ExternalID,
			URL:        ref.URL,
		})
	}

	key := entityKey{kind: kind, id: id}
	if slot, exists := b.slots[key]; exists {
		// Last write wins, keeping the first insertion position.
		b.entities[slot] = e
		b.diag.Duplicates++
	} else {
		b.slots[key] = len(b.entities)
		b.entities = append(b.entities, e)
	}

	if obj.ID != "" {
		b.stixRefs[obj.ID] = key
	}
}

// resolve returns the entity a STIX reference points at if it has the
// expected kind.
func (b *builder) resolve(stixID string, want Kind) (*Entity, bool) {
	key, ok := b.stixRefs[stixID]
	if !ok || key.kind != want {
		return nil, false
	}
	return b.entities[b.slots[key]], true
}

func (b *builder) lookup(kind Kind, id string) (*Entity, bool) {
	slot, ok := b.slots[entityKey{kind: kind, id: id}]
	if !ok {
		return nil, false
	}
	return b.entities[slot], true
}

func (b *builder) addEdge(from string, rel RelationKind, to string) {
	key := edgeKey{id: from, rel: rel}
	set, ok := b.seen[key]
	if !ok {
		set = make(map[string]struct{})
		b.seen[key] = set
	}
	if _, dup := set[to]; dup {
		return
	}
	set[to] = struct{}{}
	b.adjacency[key] = append(b.adjacency[key], to)
}

// linkTactics resolves each technique's kill-chain phases against tactic
// shortnames.
func (b *builder) linkTactics() {
	shortnames := make(map[string]string)
	for _, e := range b.entities {
		if e.Kind == KindTactic && e.Shortname != "" {
			if _, taken := shortnames[e.Shortname]; !taken {
				shortnames[e.Shortname] = e.ID
			}
		}
	}

	for _, e := range b.entities {
		if e.Kind != KindTechnique {
			continue
		}
		for _, phase := range e.KillChainPhases {
			tacticID, ok := shortnames[phase]
			if !ok {
				b.diag.DanglingRefs++
				continue
			}
			b.addEdge(e.ID, RelTactic, tacticID)
			b.addEdge(tacticID, RelTechnique, e.ID)
		}
	}
}

func (b *builder) addRelationship(rel stix.Object) {
	if rel.Inactive() && !b.keepInactive {
		b.diag.Inactive++
		return
	}

	var sourceKind Kind
	switch rel.RelationshipType {
	case stix.RelMitigates:
		sourceKind = KindMitigation
	case stix.RelDetects:
		sourceKind = KindDetection
	case stix.RelSubtechniqueOf:
		sourceKind = KindTechnique
	default:
		b.diag.Skipped++
		return
	}

	source, okSource := b.resolve(rel.SourceRef, sourceKind)
	target, okTarget := b.resolve(rel.TargetRef, KindTechnique)
	if !okSource || !okTarget {
		b.diag.DanglingRefs++
		return
	}
	b.diag.Relationships++

	switch rel.RelationshipType {
	case stix.RelMitigates:
		b.addEdge(target.ID, RelMitigation, source.ID)
	case stix.RelDetects:
		b.addEdge(target.ID, RelDetection, source.ID)
	case stix.RelSubtechniqueOf:
		source.ParentID = target.ID
		b.addEdge(target.ID, RelSubtechnique, source.ID)
	}
}

// inferParents links sub-techniques that no subtechnique-of relationship
// covered, using the dotted ID ("T1059.001" belongs to "T1059").
func (b *builder) inferParents() {
	for _, e := range b.entities {
		if e.Kind != KindTechnique || e.ParentID != "" || !e.IsSubtechnique {
			continue
		}
		dot := strings.IndexByte(e.ID, '.')
		if dot <= 0 {
			continue
		}
		parent, ok := b.lookup(KindTechnique, e.ID[:dot])
		if !ok {
			b.diag.DanglingRefs++
			continue
		}
		e.ParentID = parent.ID
		b.addEdge(parent.ID, RelSubtechnique, e.ID)
	}
}

func (b *builder) finish() *Index {
	idx := &Index{
		byID:      make(map[entityKey]*Entity, len(b.entities)),
		byKind:    make(map[Kind][]*Entity, len(Kinds)),
		byName:    make(map[string][]*Entity, len(b.entities)),
		names:     make([]nameEntry, 0, len(b.entities)),
		adjacency: b.adjacency,
		diag:      b.diag,
	}
	idx.diag.Entities = make(map[Kind]int, len(Kinds))

	for _, e := range b.entities {
		idx.byID[entityKey{kind: e.Kind, id: e.ID}] = e
		idx.byKind[e.Kind] = append(idx.byKind[e.Kind], e)
		idx.diag.Entities[e.Kind]++

		normalized := Normalize(e.Name)
		if normalized == "" {
			continue
		}
		idx.byName[normalized] = append(idx.byName[normalized], e)
		idx.names = append(idx.names, nameEntry{normalized: normalized, entity: e})
	}

	return idx
}
