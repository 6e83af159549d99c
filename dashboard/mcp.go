package dashboard

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/zona9/aggregate"
	"github.com/hazyhaar/zona9/kit"
	"github.com/hazyhaar/zona9/report"
)

// toolTimeout bounds one tool call. A summary of a cold week is the slowest.
const toolTimeout = 30 * time.Second

// RegisterMCP registers the dashboard tools on an MCP server. The stats
// tool is only offered when the observability database is wired.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerSummaryTool(srv)
	s.registerExportURLTool(srv)
	if s.cfg.Metrics != nil && s.cfg.Events != nil {
		s.registerStatsTool(srv)
	}
}

// wrap applies the logging and timeout every tool shares.
func (s *Service) wrap(tool *mcp.Tool, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logged(s.logger, tool.Name), kit.Timeout(toolTimeout))(e)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

var periodProperties = map[string]any{
	"date":      map[string]any{"type": "string", "description": "Report day, YYYY-MM-DD"},
	"startDate": map[string]any{"type": "string", "description": "Interval start, YYYY-MM-DD (weekly view)"},
	"endDate":   map[string]any{"type": "string", "description": "Interval end, YYYY-MM-DD (weekly view)"},
	"view":      map[string]any{"type": "string", "enum": []string{"day", "week"}, "description": "Report view (default: day)"},
}

// periodReq is the shared argument set of the tools. It decodes through
// the same query contract as the export endpoint.
type periodReq struct {
	Date      string `json:"date"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	View      string `json:"view"`
	Format    string `json:"format"`
}

func (r periodReq) exportRequest() (report.ExportRequest, error) {
	v := map[string][]string{}
	set := func(k, val string) {
		if val != "" {
			v[k] = []string{val}
		}
	}
	set(report.ParamDate, r.Date)
	set(report.ParamStartDate, r.StartDate)
	set(report.ParamEndDate, r.EndDate)
	set(report.ParamView, r.View)
	set(report.ParamFormat, r.Format)
	req, err := report.ParseExportRequest(v)
	if err != nil {
		return req, err
	}
	if req.View == report.ViewWeek && req.Period.IsDay() {
		req.Period = report.WeekOf(req.Period.Start)
	}
	return req, nil
}

// --- summary ---

type summaryResp struct {
	Period  string             `json:"period"`
	Outcome string             `json:"outcome"`
	Summary *aggregate.Summary `json:"summary,omitempty"`
}

func (s *Service) registerSummaryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "zona9_summary",
		Description: "Totals, trends and per-site figures of the Zona 9 report for a day or a week.",
		InputSchema: inputSchema(periodProperties, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		er, err := req.(*periodReq).exportRequest()
		if err != nil {
			return nil, err
		}
		rep := s.Load(ctx, er.Period, er.View)
		if rep.Err != nil {
			return nil, rep.Err
		}
		return &summaryResp{
			Period:  rep.Period.String(),
			Outcome: rep.Outcome.String(),
			Summary: rep.Summary,
		}, nil
	}

	kit.RegisterMCPTool[periodReq](srv, tool, s.wrap(tool, endpoint))
}

// --- export url ---

func (s *Service) registerExportURLTool(srv *mcp.Server) {
	props := make(map[string]any, len(periodProperties)+1)
	for k, v := range periodProperties {
		props[k] = v
	}
	props["format"] = map[string]any{"type": "string", "enum": []string{"png", "pdf"}, "description": "Artifact format (default: png)"}

	tool := &mcp.Tool{
		Name:        "zona9_export_url",
		Description: "URL downloading the HD export (PNG or PDF) of the Zona 9 report for a day or a week.",
		InputSchema: inputSchema(props, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		er, err := req.(*periodReq).exportRequest()
		if err != nil {
			return nil, err
		}
		u, err := s.ExportURL(er)
		if err != nil {
			return nil, err
		}
		return map[string]string{"url": u, "filename": er.Filename()}, nil
	}

	kit.RegisterMCPTool[periodReq](srv, tool, s.wrap(tool, endpoint))
}

// --- stats ---

type statsReq struct {
	Days int `json:"days"`
}

func (s *Service) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "zona9_export_stats",
		Description: "Export renders, failures by stage and entry saves of the last days (default 7, at most 90).",
		InputSchema: inputSchema(map[string]any{
			"days": map[string]any{"type": "integer", "description": "Window in days, 1 to 90 (default: 7)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Stats(ctx, req.(*statsReq).Days)
	}

	kit.RegisterMCPTool[statsReq](srv, tool, s.wrap(tool, endpoint))
}
