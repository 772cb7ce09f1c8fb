// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sleepdata/cpapinsight/internal/contract"
)

// Common tool options shared by every analysis tool.
var analysisOptions = []mcp.ToolOption{
	mcp.WithString("profile", mcp.Description("Patient profile to analyze. Defaults to the configured profile.")),
	mcp.WithString("ref", mcp.Description("Reference date the analysis windows end on (YYYY-MM-DD, 'today' or 'N days ago'). Defaults to today.")),
}

func toolWith(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, analysisOptions...)
	return mcp.NewTool(name, append(opts, extra...)...)
}

// NewMCPServer initializes and configures the therapy analysis MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, source contract.SessionSource) *server.MCPServer {
	s := server.NewMCPServer(
		"CPAP Therapy Insight Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		source:  source,
		now:     time.Now,
	}

	s.AddTool(toolWith("get_report",
		"Run the full therapy analysis: window summaries, classifications, compliance, trends, composite scores and ranked insights.",
		mcp.WithNumber("limit", mcp.Description("Maximum number of insights to include.")),
	), h.handleGetReport)

	s.AddTool(toolWith("get_insights",
		"Generate prioritized, actionable insights about recent CPAP therapy.",
		mcp.WithNumber("limit", mcp.Description("Maximum number of insights returned.")),
	), h.handleGetInsights)

	s.AddTool(toolWith("get_compliance",
		"Evaluate insurance compliance (nights with at least the minimum usage) over a window.",
		mcp.WithNumber("window", mcp.Description("Window length in nights. Defaults to 30.")),
	), h.handleGetCompliance)

	s.AddTool(toolWith("get_scores",
		"Compute the therapy effectiveness, mask fit and sleep quality scores (0-100).",
		mcp.WithNumber("window", mcp.Description("Window length in nights. Defaults to 30.")),
	), h.handleGetScores)

	s.AddTool(toolWith("compare_periods",
		"Compare metrics and composite scores between the windows ending at two reference dates.",
		mcp.WithString("base_ref", mcp.Description("Reference date of the earlier window."), mcp.Required()),
		mcp.WithString("target_ref", mcp.Description("Reference date of the later window. Defaults to ref.")),
		mcp.WithNumber("window", mcp.Description("Window length in nights. Defaults to 30.")),
	), h.handleComparePeriods)

	s.AddTool(toolWith("get_timeseries",
		"Track composite scores at evenly spaced reference dates.",
		mcp.WithString("interval", mcp.Description("Spacing between points (e.g., '7', '2 weeks', '1 month'). Defaults to 7 days.")),
		mcp.WithNumber("points", mcp.Description("Number of points to compute.")),
		mcp.WithNumber("window", mcp.Description("Window length in nights for each point. Defaults to 30.")),
	), h.handleGetTimeseries)

	s.AddTool(toolWith("check_therapy",
		"Gate the therapy on 30-night insurance compliance and the effectiveness score.",
	), h.handleCheckTherapy)

	s.AddTool(mcp.NewTool("classify_metric",
		mcp.WithDescription("Classify a single metric value into a clinical band."),
		mcp.WithString("metric", mcp.Description("Metric to classify."), mcp.Required(), mcp.Enum("ahi", "leak_rate", "compliance", "usage_hours")),
		mcp.WithNumber("value", mcp.Description("Value of the metric."), mcp.Required()),
	), h.handleClassifyMetric)

	return s
}

// StartMCPServer starts the therapy analysis MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, source contract.SessionSource) error {
	s := NewMCPServer(baseCfg, source)
	return server.ServeStdio(s)
}
