package toolsurface

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/marcus-qen/linux-broker/internal/catalog"
	"github.com/marcus-qen/linux-broker/internal/learning"
	"github.com/marcus-qen/linux-broker/internal/types"
)

type analyzeCommandInput struct {
	Command string `json:"command" jsonschema:"command string to classify"`
}

type learningSuggestionsInput struct {
	MinCount    int    `json:"min_count,omitempty" jsonschema:"minimum observation count (default 5)"`
	MinAgeHours int    `json:"min_age_hours,omitempty" jsonschema:"minimum age in hours since first observation (default 24)"`
	MaxRisk     string `json:"max_risk,omitempty" jsonschema:"risk ceiling: LOW, MEDIUM, HIGH, or CRITICAL (default LOW)"`
}

type learningStatsInput struct{}

type listPluginsInput struct{}

type pluginDetailsInput struct {
	Name string `json:"name" jsonschema:"plugin name"`
}

type searchCommandsInput struct {
	Query string `json:"query" jsonschema:"case-insensitive substring to search for across command key, description, and rationale"`
}

type verdictView struct {
	Risk                    string `json:"risk"`
	Category                string `json:"category"`
	Level                   string `json:"level"`
	Role                    string `json:"role"`
	Rationale               string `json:"rationale"`
	AuthorizationSuggestion string `json:"authorization_suggestion"`
	RecommendedAction       string `json:"recommended_action"`
}

func toVerdictView(v types.Verdict) verdictView {
	return verdictView{
		Risk:                    string(v.Risk),
		Category:                v.Category,
		Level:                   string(v.Level),
		Role:                    string(v.Role),
		Rationale:               v.Rationale,
		AuthorizationSuggestion: string(v.AuthorizationSuggestion),
		RecommendedAction:       string(v.RecommendedAction),
	}
}

type pluginSpecView struct {
	Key         string   `json:"key"`
	Pattern     string   `json:"pattern"`
	Risk        string   `json:"risk"`
	Level       string   `json:"level"`
	Role        string   `json:"role"`
	Description string   `json:"description"`
	Rationale   string   `json:"rationale"`
	Examples    []string `json:"examples,omitempty"`
}

func toSpecView(s *catalog.CommandSpec) pluginSpecView {
	return pluginSpecView{
		Key:         s.Key,
		Pattern:     s.Pattern,
		Risk:        string(s.Risk),
		Level:       string(s.Level),
		Role:        string(s.Role),
		Description: s.Description,
		Rationale:   s.Rationale,
		Examples:    s.Examples,
	}
}

type pluginView struct {
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	Specs       []pluginSpecView `json:"specs"`
}

func toPluginView(p *catalog.Plugin) pluginView {
	specs := p.Specs()
	out := make([]pluginSpecView, 0, len(specs))
	for _, sp := range specs {
		out = append(out, toSpecView(sp))
	}
	return pluginView{Name: p.Name, Category: p.Category, Description: p.Description, Specs: out}
}

type suggestionView struct {
	Command           string   `json:"command"`
	Count             int      `json:"count"`
	Users             []string `json:"users"`
	Hosts             []string `json:"hosts"`
	AgeHours          int      `json:"age_hours"`
	RiskLevel         string   `json:"risk_level"`
	Category          string   `json:"category"`
	SuggestedLevel    string   `json:"suggested_level"`
	SuggestedRole     string   `json:"suggested_role"`
	Rationale         string   `json:"rationale"`
	CanAutoAdd        bool     `json:"can_auto_add"`
	RecommendedAction string   `json:"recommended_action"`
}

func toSuggestionView(s learning.Suggestion) suggestionView {
	return suggestionView{
		Command:           s.Command,
		Count:             s.Count,
		Users:             s.Users,
		Hosts:             s.Hosts,
		AgeHours:          s.AgeHours,
		RiskLevel:         string(s.RiskLevel),
		Category:          s.Category,
		SuggestedLevel:    string(s.SuggestedLevel),
		SuggestedRole:     string(s.SuggestedRole),
		Rationale:         s.Rationale,
		CanAutoAdd:        s.CanAutoAdd,
		RecommendedAction: string(s.RecommendedAction),
	}
}

type learningStatsView struct {
	TotalUniqueCommands int            `json:"total_unique_commands"`
	TotalBlockAttempts  int            `json:"total_block_attempts"`
	RiskBreakdown       map[string]int `json:"risk_breakdown"`
	CategoryBreakdown   map[string]int `json:"category_breakdown"`
}

func (s *Surface) registerIntrospectionTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{Name: "analyze_command", Description: "Classify a command without executing it"}, s.handleAnalyzeCommand)
	mcp.AddTool(server, &mcp.Tool{Name: "get_learning_suggestions", Description: "List ranked whitelist-extension candidates"}, s.handleGetLearningSuggestions)
	mcp.AddTool(server, &mcp.Tool{Name: "get_learning_stats", Description: "Report aggregate auto-learning statistics"}, s.handleGetLearningStats)
	mcp.AddTool(server, &mcp.Tool{Name: "list_command_plugins", Description: "List the policy catalog's registered plugins"}, s.handleListCommandPlugins)
	mcp.AddTool(server, &mcp.Tool{Name: "get_plugin_details", Description: "Get the full spec list for one catalog plugin"}, s.handleGetPluginDetails)
	mcp.AddTool(server, &mcp.Tool{Name: "search_commands", Description: "Search the policy catalog by key, description, or rationale"}, s.handleSearchCommands)
}

func (s *Surface) handleAnalyzeCommand(_ context.Context, _ *mcp.CallToolRequest, in analyzeCommandInput) (*mcp.CallToolResult, any, error) {
	if in.Command == "" {
		return errToolResult(fmt.Errorf("command is required"))
	}
	return jsonToolResult(toVerdictView(s.classifier.Classify(in.Command)))
}

func (s *Surface) handleGetLearningSuggestions(_ context.Context, _ *mcp.CallToolRequest, in learningSuggestionsInput) (*mcp.CallToolResult, any, error) {
	minCount := in.MinCount
	if minCount <= 0 {
		minCount = 5
	}
	minAge := in.MinAgeHours
	if minAge <= 0 {
		minAge = 24
	}
	maxRisk := types.RiskLow
	if in.MaxRisk != "" {
		maxRisk = types.RiskLevel(in.MaxRisk)
	}
	suggestions := s.learning.Suggest(minCount, minAge, maxRisk)
	out := make([]suggestionView, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, toSuggestionView(sg))
	}
	return jsonToolResult(out)
}

func (s *Surface) handleGetLearningStats(_ context.Context, _ *mcp.CallToolRequest, _ learningStatsInput) (*mcp.CallToolResult, any, error) {
	sum := s.learning.Summary()
	riskBreakdown := make(map[string]int, len(sum.RiskBreakdown))
	for k, v := range sum.RiskBreakdown {
		riskBreakdown[string(k)] = v
	}
	return jsonToolResult(learningStatsView{
		TotalUniqueCommands: sum.TotalUniqueCommands,
		TotalBlockAttempts:  sum.TotalBlockAttempts,
		RiskBreakdown:       riskBreakdown,
		CategoryBreakdown:   sum.CategoryBreakdown,
	})
}

func (s *Surface) handleListCommandPlugins(_ context.Context, _ *mcp.CallToolRequest, _ listPluginsInput) (*mcp.CallToolResult, any, error) {
	plugins := s.catalog.Plugins()
	out := make([]pluginView, 0, len(plugins))
	for _, p := range plugins {
		out = append(out, toPluginView(p))
	}
	return jsonToolResult(out)
}

func (s *Surface) handleGetPluginDetails(_ context.Context, _ *mcp.CallToolRequest, in pluginDetailsInput) (*mcp.CallToolResult, any, error) {
	p, ok := s.catalog.Plugin(in.Name)
	if !ok {
		return errToolResult(fmt.Errorf("plugin not found: %s", in.Name))
	}
	return jsonToolResult(toPluginView(p))
}

func (s *Surface) handleSearchCommands(_ context.Context, _ *mcp.CallToolRequest, in searchCommandsInput) (*mcp.CallToolResult, any, error) {
	if in.Query == "" {
		return errToolResult(fmt.Errorf("query is required"))
	}
	matches := s.catalog.Search(in.Query)
	out := make([]pluginSpecView, 0, len(matches))
	for _, m := range matches {
		out = append(out, toSpecView(m.Spec))
	}
	return jsonToolResult(out)
}
