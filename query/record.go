package query

import "github.com/zero-day-ai/attack-kb/index"

// Ref is a short pointer to another entity.
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Reference is an external catalogue reference.
type Reference struct {
	Source     string `json:"source"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Technique is the full record of a technique or sub-technique.
type Technique struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	IsSubtechnique bool   `json:"is_subtechnique"`

	// Parents is the ancestor chain of a sub-technique, nearest first.
	Parents []Ref `json:"parents,omitempty"`

	Platforms     []string    `json:"platforms"`
	KillChain     []string    `json:"kill_chain"`
	Tactics       []Ref       `json:"tactics"`
	Detection     string      `json:"detection,omitempty"`
	References    []Reference `json:"references"`
	Subtechniques []Ref       `json:"subtechniques,omitempty"`
}

// Tactic is a phase of the attack lifecycle.
type Tactic struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Shortname   string `json:"shortname,omitempty"`
}

// Related is an entity reached from a technique through a relationship.
type Related struct {
	Kind        index.Kind `json:"kind"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`

	// Source is the catalogue the entity comes from, taken from its first
	// external reference.
	Source string `json:"source,omitempty"`
}

func toRef(e *index.Entity) Ref {
	return Ref{ID: e.ID, Name: e.Name}
}

func toRefs(entities []*index.Entity) []Ref {
	refs := make([]Ref, 0, len(entities))
	for _, e := range entities {
		refs = append(refs, toRef(e))
	}
	return refs
}

func toTactic(e *index.Entity) Tactic {
	return Tactic{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Shortname:   e.Shortname,
	}
}

func toRelated(e *index.Entity) Related {
	r := Related{
		Kind:        e.Kind,
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
	}
	if len(e.References) > 0 {
		r.Source = e.References[0].SourceName
	}
	return r
}

// cloneStrings keeps records from aliasing index storage.
func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
