package stix

import "strings"

// STIX object type discriminants used by the ATT&CK bundles.
const (
	TypeAttackPattern     = "attack-pattern"
	TypeTactic            = "x-mitre-tactic"
	TypeCourseOfAction    = "course-of-action"
	TypeDataComponent     = "x-mitre-data-component"
	TypeDetectionStrategy = "x-mitre-detection-strategy"
	TypeRelationship      = "relationship"
)

// Relationship types carried by STIX relationship objects.
const (
	RelMitigates      = "mitigates"
	RelDetects        = "detects"
	RelSubtechniqueOf = "subtechnique-of"
)

// attackSources are the external reference source names that carry ATT&CK IDs.
var attackSources = map[string]bool{
	"mitre-attack":        true,
	"mitre-mobile-attack": true,
	"mitre-ics-attack":    true,
}

// Bundle is a decoded STIX bundle.
type Bundle struct {
	// ID is the bundle's STIX ID, if present.
	ID string

	// Objects holds every object that decoded, in file order.
	Objects []Object

	// Undecodable counts array entries that were not JSON objects of the
	// expected field types. They are dropped, not reported as errors.
	Undecodable int
}

// Object is the subset of a STIX 2.x object the knowledge base reads.
// Fields absent from a given object type are left zero.
type Object struct {
	Type               string              `json:"type"`
	ID                 string              `json:"id"`
	Name               string              `json:"name,omitempty"`
	Description        string              `json:"description,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
	KillChainPhases    []KillChainPhase    `json:"kill_chain_phases,omitempty"`
	Platforms          []string            `json:"x_mitre_platforms,omitempty"`
	IsSubtechnique     bool                `json:"x_mitre_is_subtechnique,omitempty"`
	Shortname          string              `json:"x_mitre_shortname,omitempty"`
	Detection          string              `json:"x_mitre_detection,omitempty"`
	Revoked            bool                `json:"revoked,omitempty"`
	Deprecated         bool                `json:"x_mitre_deprecated,omitempty"`

	// Relationship objects only.
	RelationshipType string `json:"relationship_type,omitempty"`
	SourceRef        string `json:"source_ref,omitempty"`
	TargetRef        string `json:"target_ref,omitempty"`
}

// ExternalReference links a STIX object to an external catalogue entry.
type ExternalReference struct {
	SourceName  string `json:"source_name"`
	ExternalID  string `json:"external_id,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// KillChainPhase places a technique in a tactic of a kill chain.
type KillChainPhase struct {
	KillChainName string `json:"kill_chain_name"`
	PhaseName     string `json:"phase_name"`
}

// ExternalID returns the ATT&CK ID of the object (e.g. "T1059.001",
// "TA0002", "M1038"), or "" when no ATT&CK reference carries one.
func (o Object) ExternalID() string {
	for _, ref := range o.ExternalReferences {
		if attackSources[ref.SourceName] && ref.ExternalID != "" {
			return strings.TrimSpace(ref.ExternalID)
		}
	}
	return ""
}

// Inactive reports whether the object is revoked or deprecated.
func (o Object) Inactive() bool {
	return o.Revoked || o.Deprecated
}
