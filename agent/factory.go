package agent

import (
	"errors"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/model"
	"github.com/hupe1980/proverbs/tool"
)

// DefaultName is the identity of agents built by a Factory.
const DefaultName = "proverbs_agent"

// DefaultInstruction tells the model how to treat the shared proverb list.
// It is rendered as a StateTemplate on every turn; .proverbs holds the live
// list.
const DefaultInstruction = `You are a helpful assistant that keeps a shared list of proverbs and can report the weather.

The list is shared with everyone talking to you and may change between turns.
Always call get_proverbs before you discuss or change the proverbs, then use
add_proverbs to extend the list or set_proverbs to replace it. Use get_weather
when asked about the weather in a location.

Proverbs known at the start of this turn:
{{bullets .proverbs}}`

// FactoryOptions configures the agents produced by a Factory.
type FactoryOptions struct {
	Name               string
	Description        string
	Instruction        Instruction
	EnableStreaming    bool
	MaxHistoryMessages int
	MaxParallelTools   int
}

// Factory builds a fresh ModelAgent for every run. It holds the immutable
// ingredients (model, catalog, identity) and implements core.AgentFactory.
type Factory struct {
	llm     model.Model
	catalog *tool.Catalog
	opts    FactoryOptions
}

// NewFactory returns a Factory binding llm and catalog. Both are required.
func NewFactory(llm model.Model, catalog *tool.Catalog, optFns ...func(o *FactoryOptions)) (*Factory, error) {
	if llm == nil {
		return nil, errors.New("agent factory: model is required")
	}

	if catalog == nil {
		return nil, errors.New("agent factory: tool catalog is required")
	}

	opts := FactoryOptions{
		Name:               DefaultName,
		Description:        "Maintains a shared list of proverbs and reports the weather.",
		Instruction:        NewTemplateInstruction(DefaultInstruction),
		EnableStreaming:    true,
		MaxHistoryMessages: 20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Factory{llm: llm, catalog: catalog, opts: opts}, nil
}

// Name returns the name given to produced agents.
func (f *Factory) Name() string { return f.opts.Name }

// Catalog returns the catalog bound to produced agents.
func (f *Factory) Catalog() *tool.Catalog { return f.catalog }

// NewAgent implements core.AgentFactory.
func (f *Factory) NewAgent() core.Agent {
	return NewModelAgent(f.opts.Name, f.llm, f.catalog, func(o *ModelAgentOptions) {
		o.Description = f.opts.Description
		o.Instruction = f.opts.Instruction
		o.EnableStreaming = f.opts.EnableStreaming
		o.MaxHistoryMessages = f.opts.MaxHistoryMessages
		o.Executor.MaxParallel = f.opts.MaxParallelTools
	})
}

var _ core.AgentFactory = (*Factory)(nil)
