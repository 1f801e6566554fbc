package index

// Kind is the closed set of entity variants held by the index.
type Kind string

// Entity kinds.
const (
	KindTechnique  Kind = "technique"
	KindTactic     Kind = "tactic"
	KindMitigation Kind = "mitigation"
	KindDetection  Kind = "detection"
)

// Kinds lists every entity kind in a stable order.
var Kinds = []Kind{KindTechnique, KindTactic, KindMitigation, KindDetection}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is one of the four entity kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindTechnique, KindTactic, KindMitigation, KindDetection:
		return true
	default:
		return false
	}
}

// RelationKind names a directed edge type in the adjacency index.
type RelationKind string

// Relation kinds. The first three are the technique edges; the last two
// are the reverse and hierarchy edges derived while building.
const (
	// RelTactic links a technique to the tactics it belongs to.
	RelTactic RelationKind = "tactic"

	// RelMitigation links a technique to the mitigations that address it.
	RelMitigation RelationKind = "mitigation"

	// RelDetection links a technique to the detections that observe it.
	RelDetection RelationKind = "detection"

	// RelTechnique links a tactic to its member techniques.
	RelTechnique RelationKind = "technique"

	// RelSubtechnique links a technique to its sub-techniques.
	RelSubtechnique RelationKind = "subtechnique"
)

// Target returns the kind of entity the relation points at.
func (r RelationKind) Target() Kind {
	switch r {
	case RelTactic:
		return KindTactic
	case RelMitigation:
		return KindMitigation
	case RelDetection:
		return KindDetection
	case RelTechnique, RelSubtechnique:
		return KindTechnique
	default:
		return ""
	}
}

// Source returns the kind of entity the relation starts from.
func (r RelationKind) Source() Kind {
	if r == RelTechnique {
		return KindTactic
	}
	if r.Target() == "" {
		return ""
	}
	return KindTechnique
}

// Reference is an external catalogue reference of an entity.
type Reference struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Entity is a node of the knowledge graph. Entities returned by an Index are
// shared with every reader and must not be modified.
type Entity struct {
	// ID is the canonical external ID (e.g. "T1059.001"), or the upper-cased
	// STIX ID for objects without one.
	ID string

	// STIXID is the STIX identifier of the object the entity was built from.
	STIXID string

	Kind        Kind
	Name        string
	Description string

	// ParentID is set for sub-techniques.
	ParentID string

	// Technique attributes.
	Platforms       []string
	KillChainPhases []string
	Detection       string
	IsSubtechnique  bool

	// Shortname is the tactic's kill-chain phase name (e.g. "execution").
	Shortname string

	References []Reference
}
