// Package weather provides the get_weather tool and the provider seam behind it.
package weather

import (
	"context"
	"strings"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/tool"
)

// ToolName is the catalog name of the weather tool.
const ToolName = "get_weather"

// Info is a weather report for one location.
type Info struct {
	Temperature int    `json:"temperature"`
	Conditions  string `json:"conditions"`
	Humidity    int    `json:"humidity"`
	WindSpeed   int    `json:"wind_speed"`
	FeelsLike   int    `json:"feelsLike"`
}

// Provider computes weather for a location. Implementations must not touch
// the proverb store.
type Provider interface {
	Lookup(ctx context.Context, location string) (Info, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, location string) (Info, error)

// Lookup implements Provider.
func (f ProviderFunc) Lookup(ctx context.Context, location string) (Info, error) {
	return f(ctx, location)
}

// StaticProvider returns the same synthetic report for every location.
type StaticProvider struct{}

// Lookup implements Provider.
func (StaticProvider) Lookup(context.Context, string) (Info, error) {
	return Info{Temperature: 20, Conditions: "sunny", Humidity: 50, WindSpeed: 10, FeelsLike: 25}, nil
}

// NewTool returns get_weather backed by provider. A nil provider selects
// StaticProvider.
func NewTool(provider Provider) tool.Tool {
	if provider == nil {
		provider = StaticProvider{}
	}

	return tool.NewFunctionTool(
		ToolName,
		"Get the current weather for a location.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City and country, e.g. 'Berlin, DE'",
					"minLength":   1,
				},
			},
			"required": []string{"location"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			loc, _ := args["location"].(string)
			loc = strings.TrimSpace(loc)
			if loc == "" {
				return nil, tool.InvalidInput(ToolName, "location must not be empty")
			}

			return provider.Lookup(tc.Context(), loc)
		},
	)
}
