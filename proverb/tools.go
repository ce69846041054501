package proverb

import (
	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/tool"
)

// Tool names.
const (
	GetProverbsTool = "get_proverbs"
	AddProverbsTool = "add_proverbs"
	SetProverbsTool = "set_proverbs"
)

var listSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"proverbs": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "The proverbs, in order.",
		},
	},
	"required":             []string{"proverbs"},
	"additionalProperties": false,
}

// Tools returns get_proverbs, add_proverbs and set_proverbs. They resolve the
// store from the ToolContext, so the same values serve every run.
func Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			GetProverbsTool,
			"Get the current list of proverbs. Call this before discussing or changing proverbs.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			getProverbs,
		),
		tool.NewFunctionTool(
			AddProverbsTool,
			"Append proverbs to the end of the shared list. Duplicates are kept.",
			listSchema,
			addProverbs,
		),
		tool.NewFunctionTool(
			SetProverbsTool,
			"Replace the whole shared list of proverbs with the given list.",
			listSchema,
			setProverbs,
		),
	}
}

func getProverbs(tc *core.ToolContext, _ map[string]any) (any, error) {
	store, err := tc.Proverbs()
	if err != nil {
		return nil, err
	}

	return core.StateSnapshot{Proverbs: store.GetAll()}, nil
}

func addProverbs(tc *core.ToolContext, args map[string]any) (any, error) {
	items, err := decodeList(AddProverbsTool, args)
	if err != nil {
		return nil, err
	}

	store, err := tc.Proverbs()
	if err != nil {
		return nil, err
	}

	snap := store.Append(items)
	tc.SetState(core.StateKeyProverbs, snap.Proverbs)

	return snap, nil
}

func setProverbs(tc *core.ToolContext, args map[string]any) (any, error) {
	items, err := decodeList(SetProverbsTool, args)
	if err != nil {
		return nil, err
	}

	store, err := tc.Proverbs()
	if err != nil {
		return nil, err
	}

	snap := store.Replace(items)
	tc.SetState(core.StateKeyProverbs, snap.Proverbs)

	return snap, nil
}

// decodeList converts the schema checked "proverbs" argument. The whole list
// is converted before the store is touched.
func decodeList(name string, args map[string]any) ([]string, error) {
	raw, ok := args["proverbs"].([]any)
	if !ok {
		if list, isStrings := args["proverbs"].([]string); isStrings {
			return append([]string{}, list...), nil
		}
		return nil, tool.InvalidInput(name, "proverbs must be a list of strings")
	}

	items := make([]string, 0, len(raw))
	for i, v := range raw {
		s, isString := v.(string)
		if !isString {
			return nil, tool.InvalidInput(name, "proverbs[%d] is not a string", i)
		}
		items = append(items, s)
	}

	return items, nil
}
