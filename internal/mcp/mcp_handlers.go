package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sleepdata/cpapinsight/core"
	"github.com/sleepdata/cpapinsight/core/algo"
	"github.com/sleepdata/cpapinsight/internal/contract"
	"github.com/sleepdata/cpapinsight/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	source  contract.SessionSource
	now     func() time.Time
}

// requestConfig clones the base config and applies the arguments shared by every tool.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	cfg := h.baseCfg.Clone()
	if p := request.GetString("profile", ""); p != "" {
		cfg.Profile = p
	}
	if r := request.GetString("ref", ""); r != "" {
		ref, err := contract.ParseReferenceDate(r, h.now())
		if err != nil {
			return nil, fmt.Errorf("invalid ref: %w", err)
		}
		cfg.ReferenceDate = ref
	}
	if w := request.GetInt("window", 0); w != 0 {
		if w < 1 || w > contract.MaxWindowDays {
			return nil, fmt.Errorf("window must be between 1 and %d days (received %d)", contract.MaxWindowDays, w)
		}
		cfg.WindowDays = w
	}
	if l := request.GetInt("limit", 0); l > 0 {
		cfg.ResultLimit = min(l, contract.MaxResultLimit)
	}
	return cfg, nil
}

// analysisContext keeps agent calls quiet and out of the run history.
func analysisContext(ctx context.Context) context.Context {
	return core.WithSkipRunRecord(core.WithSuppressHeader(ctx))
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, _, err := core.GetReportResults(analysisContext(ctx), cfg, h.source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	return jsonResult(report)
}

func (h *toolHandler) handleGetInsights(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	insights, _, err := core.GetInsightsResults(analysisContext(ctx), cfg, h.source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("insight generation failed: %v", err)), nil
	}
	if insights == nil {
		insights = []schema.Insight{}
	}
	return jsonResult(insights)
}

func (h *toolHandler) handleGetCompliance(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, _, err := core.GetComplianceResults(analysisContext(ctx), cfg, h.source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compliance evaluation failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (h *toolHandler) handleGetScores(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	scores, _, err := core.GetScoresResults(analysisContext(ctx), cfg, h.source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}
	return jsonResult(scores)
}

func (h *toolHandler) handleComparePeriods(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	baseRef := request.GetString("base_ref", "")
	targetRef := request.GetString("target_ref", "")
	if baseRef == "" {
		return mcp.NewToolResultError("invalid comparison parameters: --base-ref is required for comparison"), nil
	}
	if err := contract.RevalidateCompare(cfg, baseRef, targetRef, h.now()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid comparison parameters: %v", err)), nil
	}

	result, _, err := core.GetCompareResults(analysisContext(ctx), cfg, h.source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("comparison failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (h *toolHandler) handleGetTimeseries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if interval := request.GetString("interval", ""); interval != "" {
		days, err := contract.ParseIntervalDays(interval)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid timeseries parameters: invalid interval: %v", err)), nil
		}
		cfg.TimeseriesInterval = days
	}
	cfg.TimeseriesPoints = request.GetInt("points", contract.DefaultPoints)

	result, _, err := core.GetTimeseriesResults(analysisContext(ctx), cfg, h.source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("timeseries analysis failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (h *toolHandler) handleCheckTherapy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, _, err := core.GetCheckResults(analysisContext(ctx), cfg, h.source)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (h *toolHandler) handleClassifyMetric(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	metric, err := request.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := request.RequireFloat("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := algo.Classify(schema.Metric(metric), value)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("classification failed: %v", err)), nil
	}
	return jsonResult(result)
}
