package tool

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/proverbs/core"
)

// Definition is the model facing description of a tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CatalogOptions configures a Catalog.
type CatalogOptions struct {
	Hooks []Hook
}

// Catalog is the static, ordered tool table of the service. It is immutable
// after construction and safe for concurrent use.
type Catalog struct {
	tools  []Tool
	byName map[string]Tool
	hooks  Hooks
}

// NewCatalog builds a Catalog. Duplicate or empty names are rejected.
func NewCatalog(tools []Tool, optFns ...func(o *CatalogOptions)) (*Catalog, error) {
	opts := CatalogOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Catalog{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]Tool, len(tools)),
		hooks:  append(Hooks{}, opts.Hooks...),
	}

	for _, t := range tools {
		name := t.Name()
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		c.byName[name] = t
		c.tools = append(c.tools, t)
	}

	return c, nil
}

// WithHooks returns a catalog sharing the same tools with additional hooks.
func (c *Catalog) WithHooks(hooks ...Hook) *Catalog {
	merged := make(Hooks, 0, len(c.hooks)+len(hooks))
	merged = append(merged, c.hooks...)
	merged = append(merged, hooks...)

	return &Catalog{tools: c.tools, byName: c.byName, hooks: merged}
}

// Tools returns the tools in registration order.
func (c *Catalog) Tools() []Tool { return append([]Tool{}, c.tools...) }

// Lookup returns the tool registered under name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Names returns the tool names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name()
	}
	return names
}

// Definitions returns the model facing definitions in registration order.
func (c *Catalog) Definitions() []Definition {
	defs := make([]Definition, len(c.tools))
	for i, t := range c.tools {
		defs[i] = Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	}
	return defs
}

// Dispatch decodes rawArgs, invokes the named tool and reports the call to
// the hooks. An empty rawArgs is treated as "{}". A panicking handler is
// converted into an EXECUTION_ERROR.
func (c *Catalog) Dispatch(tc *core.ToolContext, name, rawArgs string) (result any, err error) {
	rec := &CallRecord{
		Name:      name,
		CallID:    tc.FunctionCallID(),
		RunID:     tc.RunID(),
		SessionID: tc.SessionID(),
		RawArgs:   rawArgs,
		Start:     time.Now(),
		Logger:    tc.Logger(),
	}

	ctx := tc.Context()
	c.hooks.BeforeCall(ctx, rec)

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = NewToolError(name, fmt.Sprintf("panic: %v", r), CodeExecutionError)
		}
		rec.Result, rec.Err = result, err
		rec.Duration = time.Since(rec.Start)
		c.hooks.AfterCall(ctx, rec)
	}()

	t, ok := c.byName[name]
	if !ok {
		return nil, NewToolError(name, "unknown tool", CodeNotFound)
	}

	args, err := DecodeArgs(name, rawArgs)
	if err != nil {
		return nil, err
	}
	rec.Args = args

	return t.Call(tc, args)
}

// DecodeArgs parses a JSON object of tool arguments.
func DecodeArgs(name, rawArgs string) (map[string]any, error) {
	if strings.TrimSpace(rawArgs) == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, &ToolError{Tool: name, Message: "arguments are not a JSON object", Code: CodeInvalidInput, Details: err}
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}
