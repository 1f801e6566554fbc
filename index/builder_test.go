package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/attack-kb/kberr"
	"github.com/zero-day-ai/attack-kb/stix"
	"github.com/zero-day-ai/attack-kb/stix/stixtest"
)

func buildMini(t *testing.T, opts ...Option) *Index {
	t.Helper()
	idx, err := Build(stixtest.MiniBundle(), opts...)
	require.NoError(t, err)
	return idx
}

func ids(entities []*Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

func TestBuild_NilBundle(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kberr.ErrDatasetMalformed))
}

func TestBuild_EmptyBundle(t *testing.T) {
	idx, err := Build(&stix.Bundle{})
	require.NoError(t, err)

	for _, k := range Kinds {
		assert.Zero(t, idx.Len(k))
		assert.Empty(t, idx.Entities(k))
	}
}

func TestBuild_Diagnostics(t *testing.T) {
	d := buildMini(t).Diagnostics()

	assert.Equal(t, 31, d.Objects)
	assert.Equal(t, 1, d.Undecodable)
	assert.Equal(t, map[Kind]int{
		KindTechnique:  5,
		KindTactic:     3,
		KindMitigation: 3,
		KindDetection:  2,
	}, d.Entities)
	assert.Equal(t, 10, d.Relationships)
	assert.Equal(t, 3, d.Skipped, "identity, marking-definition and the uses relationship")
	assert.Equal(t, 1, d.Inactive)
	assert.Equal(t, 1, d.Duplicates)
	assert.Equal(t, 4, d.DanglingRefs)
}

func TestBuild_Classification(t *testing.T) {
	idx := buildMini(t)

	tests := []struct {
		kind Kind
		id   string
		name string
	}{
		{KindTechnique, stixtest.TechniqueAppleScript, "AppleScript"},
		{KindTactic, stixtest.TacticExecution, "Execution"},
		{KindMitigation, stixtest.MitigationExecPrev, "Execution Prevention"},
		{KindDetection, stixtest.DetectionScriptExec, "Script Execution"},
		{KindDetection, stixtest.DetectionProcessCreation, "Process Creation"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			e, ok := idx.Get(tt.kind, tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.name, e.Name)
			assert.Equal(t, tt.kind, e.Kind)
		})
	}
}

func TestBuild_KindNamespaces(t *testing.T) {
	idx := buildMini(t)

	_, ok := idx.Get(KindMitigation, stixtest.TechniqueAppleScript)
	assert.False(t, ok, "technique IDs do not resolve in the mitigation namespace")

	_, ok = idx.Get(KindTechnique, stixtest.TacticExecution)
	assert.False(t, ok)
}

func TestBuild_CanonicalIDs(t *testing.T) {
	idx := buildMini(t)

	e, ok := idx.Get(KindTechnique, "  t1059.001 ")
	require.True(t, ok)
	assert.Equal(t, "T1059.001", e.ID)
}

func TestBuild_LastWriteWins(t *testing.T) {
	idx := buildMini(t)

	e, ok := idx.Get(KindMitigation, stixtest.MitigationAntivirus)
	require.True(t, ok)
	assert.Equal(t, "Antivirus/Antimalware", e.Name)
	assert.Equal(t, "course-of-action--m1049", e.STIXID)

	// The replacement keeps the slot of the first occurrence.
	assert.Equal(t, []string{"M1038", "M1049", "M1017"}, ids(idx.Entities(KindMitigation)))
	assert.Empty(t, idx.ByName("Antivirus"))
}

func TestBuild_SkipsInactive(t *testing.T) {
	idx := buildMini(t)

	_, ok := idx.Get(KindTechnique, stixtest.TechniqueRevoked)
	assert.False(t, ok)
}

func TestBuild_WithInactive(t *testing.T) {
	idx := buildMini(t, WithInactive())

	_, ok := idx.Get(KindTechnique, stixtest.TechniqueRevoked)
	assert.True(t, ok)
	assert.Equal(t, 0, idx.Diagnostics().Inactive)
	assert.Equal(t, []string{"M1038"}, idx.RelatedIDs(stixtest.TechniqueRevoked, RelMitigation))
}

func TestBuild_InsertionOrder(t *testing.T) {
	idx := buildMini(t)

	assert.Equal(t, []string{"TA0001", "TA0002", "TA0003"}, ids(idx.Entities(KindTactic)))
	assert.Equal(t, []string{"T1059", "T1059.001", "T1598", "T1566", "T1566.001"}, ids(idx.Entities(KindTechnique)))
}

func TestBuild_Adjacency(t *testing.T) {
	idx := buildMini(t)

	tests := []struct {
		name string
		id   string
		rel  RelationKind
		want []string
	}{
		{"applescript mitigations", "T1059.001", RelMitigation, []string{"M1038"}},
		{"applescript detections", "T1059.001", RelDetection, []string{"DC0029", stixtest.DetectionProcessCreation}},
		{"applescript tactics", "T1059.001", RelTactic, []string{"TA0002"}},
		{"duplicate stix ids collapse", "T1566.001", RelMitigation, []string{"M1017", "M1049"}},
		{"no mitigations", "T1598", RelMitigation, []string{}},
		{"unresolved tactic", "T1598", RelTactic, []string{}},
		{"tactic members", "TA0002", RelTechnique, []string{"T1059", "T1059.001"}},
		{"empty tactic", "TA0003", RelTechnique, []string{}},
		{"sub-techniques", "T1566", RelSubtechnique, []string{"T1566.001"}},
		{"unknown id", "T0000", RelMitigation, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.RelatedIDs(tt.id, tt.rel))
			assert.Equal(t, tt.want, ids(idx.Related(tt.id, tt.rel)))
		})
	}
}

func TestBuild_AdjacencyResolves(t *testing.T) {
	idx := buildMini(t)

	rels := []RelationKind{RelTactic, RelMitigation, RelDetection, RelSubtechnique}
	for _, tech := range idx.Entities(KindTechnique) {
		for _, rel := range rels {
			for _, id := range idx.RelatedIDs(tech.ID, rel) {
				_, ok := idx.Get(rel.Target(), id)
				assert.True(t, ok, "%s -%s-> %s does not resolve", tech.ID, rel, id)
			}
		}
	}
}

func TestBuild_Parents(t *testing.T) {
	idx := buildMini(t)

	sub, ok := idx.Get(KindTechnique, stixtest.TechniqueAppleScript)
	require.True(t, ok)
	assert.Equal(t, "T1059", sub.ParentID)

	parent, ok := idx.Get(KindTechnique, stixtest.TechniqueInterpreter)
	require.True(t, ok)
	assert.Empty(t, parent.ParentID)
}

func TestBuild_InferParentFromDottedID(t *testing.T) {
	bundle := &stix.Bundle{Objects: []stix.Object{
		{
			Type:               stix.TypeAttackPattern,
			ID:                 "attack-pattern--parent",
			Name:               "Parent",
			ExternalReferences: []stix.ExternalReference{{SourceName: "mitre-attack", ExternalID: "T1000"}},
		},
		{
			Type:               stix.TypeAttackPattern,
			ID:                 "attack-pattern--child",
			Name:               "Child",
			IsSubtechnique:     true,
			ExternalReferences: []stix.ExternalReference{{SourceName: "mitre-attack", ExternalID: "T1000.001"}},
		},
		{
			Type:               stix.TypeAttackPattern,
			ID:                 "attack-pattern--orphan",
			Name:               "Orphan",
			IsSubtechnique:     true,
			ExternalReferences: []stix.ExternalReference{{SourceName: "mitre-attack", ExternalID: "T2000.001"}},
		},
	}}

	idx, err := Build(bundle)
	require.NoError(t, err)

	child, _ := idx.Get(KindTechnique, "T1000.001")
	assert.Equal(t, "T1000", child.ParentID)
	assert.Equal(t, []string{"T1000.001"}, idx.RelatedIDs("T1000", RelSubtechnique))

	orphan, _ := idx.Get(KindTechnique, "T2000.001")
	assert.Empty(t, orphan.ParentID)
	assert.Equal(t, 1, idx.Diagnostics().DanglingRefs)
}

func TestBuild_WrongKindReference(t *testing.T) {
	bundle := &stix.Bundle{Objects: []stix.Object{
		{Type: stix.TypeAttackPattern, ID: "attack-pattern--a", Name: "A"},
		{Type: stix.TypeAttackPattern, ID: "attack-pattern--b", Name: "B"},
		{Type: stix.TypeRelationship, RelationshipType: stix.RelMitigates, SourceRef: "attack-pattern--a", TargetRef: "attack-pattern--b"},
	}}

	idx, err := Build(bundle)
	require.NoError(t, err)
	assert.Empty(t, idx.RelatedIDs("ATTACK-PATTERN--B", RelMitigation))
	assert.Equal(t, 1, idx.Diagnostics().DanglingRefs)
}

func TestBuild_ObjectWithoutIDs(t *testing.T) {
	idx, err := Build(&stix.Bundle{Objects: []stix.Object{{Type: stix.TypeCourseOfAction, Name: "Nameless"}}})
	require.NoError(t, err)
	assert.Zero(t, idx.Len(KindMitigation))
	assert.Equal(t, 1, idx.Diagnostics().Skipped)
}

func TestBuild_EntityFields(t *testing.T) {
	idx := buildMini(t)

	e, ok := idx.Get(KindTechnique, stixtest.TechniqueInterpreter)
	require.True(t, ok)
	assert.Equal(t, []string{"Linux", "macOS", "Windows"}, e.Platforms)
	assert.Equal(t, []string{"execution"}, e.KillChainPhases)
	assert.Equal(t, "Monitor command-line arguments for script execution.", e.Detection)
	require.Len(t, e.References, 2)
	assert.Equal(t, Reference{SourceName: "mitre-attack", ExternalID: "T1059", URL: "https://attack.mitre.org/techniques/T1059"}, e.References[0])

	tactic, ok := idx.Get(KindTactic, stixtest.TacticExecution)
	require.True(t, ok)
	assert.Equal(t, "execution", tactic.Shortname)
}

func TestIndex_ReturnedSlicesAreCopies(t *testing.T) {
	idx := buildMini(t)

	tactics := idx.Entities(KindTactic)
	tactics[0] = nil
	assert.NotNil(t, idx.Entities(KindTactic)[0])

	related := idx.RelatedIDs("T1059.001", RelMitigation)
	related[0] = "M0000"
	assert.Equal(t, []string{"M1038"}, idx.RelatedIDs("T1059.001", RelMitigation))

	d := idx.Diagnostics()
	d.Entities[KindTactic] = 99
	assert.Equal(t, 3, idx.Diagnostics().Entities[KindTactic])
}

func TestIndex_ByNameAndScan(t *testing.T) {
	idx := buildMini(t)

	assert.Equal(t, []string{"T1598"}, ids(idx.ByName("PHISHING   for information")))
	assert.Empty(t, idx.ByName("nothing like this"))

	var scanned []string
	idx.ScanNames(KindTactic, func(normalized string, e *Entity) bool {
		scanned = append(scanned, normalized)
		return len(scanned) < 2
	})
	assert.Equal(t, []string{"initial access", "execution"}, scanned)
}

func TestRelationKind_Endpoints(t *testing.T) {
	tests := []struct {
		rel    RelationKind
		source Kind
		target Kind
	}{
		{RelTactic, KindTechnique, KindTactic},
		{RelMitigation, KindTechnique, KindMitigation},
		{RelDetection, KindTechnique, KindDetection},
		{RelSubtechnique, KindTechnique, KindTechnique},
		{RelTechnique, KindTactic, KindTechnique},
		{RelationKind("bogus"), "", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.rel), func(t *testing.T) {
			assert.Equal(t, tt.source, tt.rel.Source())
			assert.Equal(t, tt.target, tt.rel.Target())
		})
	}
}

func TestKind_IsValid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.IsValid(), k.String())
	}
	assert.False(t, Kind("group").IsValid())
}
