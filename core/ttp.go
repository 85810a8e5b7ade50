package core

import (
	"strings"
)

// TTPType is the type discriminator rendered by TTP.Info
const TTPType = "ttp"

// ttpDisplayFields is declared in full rather than derived at runtime
var ttpDisplayFields = []DisplayField{
	{Field: "name", Label: "Name"},
	{Field: "tags", Label: "Tags"},
	{Field: "killchain", Label: "Kill Chain"},
}

// TTP is a tactic/technique/procedure classified by kill-chain stage
type TTP struct {
	Entity    `bson:",inline"`
	KillChain KillChainStep `json:"killchain" bson:"killchain" validate:"required,killchain"`
}

// NewTTP builds a validated TTP
func NewTTP(name string, killchain string) (*TTP, error) {
	ttp := &TTP{
		Entity:    Entity{Name: name, Tags: []string{}},
		KillChain: KillChainStep(killchain),
	}
	if err := ttp.Validate(); err != nil {
		return nil, err
	}
	return ttp, nil
}

// Validate checks required fields and the kill-chain code
func (t *TTP) Validate() error {
	return ValidateStruct(t)
}

// DisplayFields returns the columns used when rendering TTP tables
func (t *TTP) DisplayFields() []DisplayField {
	out := make([]DisplayField, len(ttpDisplayFields))
	copy(out, ttpDisplayFields)
	return out
}

// Info returns the base entity fields plus the kill-chain label and type
func (t *TTP) Info() map[string]interface{} {
	info := t.Entity.Info()
	info["killchain"] = t.KillChain.Label()
	info["type"] = TTPType
	return info
}

// GenerateTags derives the TTP's tags from its current fields.
// It has no side effects; callers decide whether to persist the result.
func (t *TTP) GenerateTags() []string {
	return []string{strings.ToLower(string(t.KillChain)), strings.ToLower(t.Name)}
}

// EntityDisplayFields returns the base columns shared by all entities
func EntityDisplayFields() []DisplayField {
	out := make([]DisplayField, len(baseDisplayFields))
	copy(out, baseDisplayFields)
	return out
}
