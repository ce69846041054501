package agent

import (
	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string. The
// text is sent verbatim.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewTemplateInstruction creates an Instruction rendering text as a
// StateTemplate on every turn.
func NewTemplateInstruction(text string) Instruction {
	return NewInstructionFromProvider(NewStateTemplate(text))
}

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx)
	}
	return i.text, nil
}

// StateTemplate renders a text/template against the session state. The live
// list of the run's ProverbStore is exposed as .proverbs and takes precedence
// over a snapshot stored in the session.
type StateTemplate struct {
	text string
}

var _ Provider = (*StateTemplate)(nil)

// NewStateTemplate creates a StateTemplate.
func NewStateTemplate(text string) *StateTemplate { return &StateTemplate{text: text} }

// Instruction implements Provider.
func (t *StateTemplate) Instruction(rc *core.RunContext) (string, error) {
	data := map[string]any{}
	if rc != nil && rc.Session != nil {
		data = rc.Session.StateCopy()
	}

	if rc != nil && rc.Proverbs != nil {
		data[core.StateKeyProverbs] = rc.Proverbs.GetAll()
	}

	return util.RenderTemplate(t.text, data)
}
