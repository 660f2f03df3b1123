package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

const financialDataTopK = 10

// statementQueries are the canned evidence queries per statement detail level.
// Unknown levels fall through to "<company> <year>年 <metric_type>".
var statementQueries = map[string]string{
	"balance_sheet_detailed": "资产负债表 " +
		"资产总额 发放贷款及垫款 个人贷款 企业贷款 投资类金融资产 " +
		"现金及存放央行款项 存放同业款项 " +
		"负债总额 吸收存款 个人存款 企业存款 向央行借款 同业负债 " +
		"已发行债务证券 卖出回购金融资产",
	"income_statement_detailed": "利润表 " +
		"营业收入合计 利息净收入 非利息净收入 手续费及佣金净收入 " +
		"其他非利息净收入 投资收益 公允价值变动损益 " +
		"营业支出合计 业务及管理费 信用及其他资产减值损失 税金及附加",
	"cash_flow_detailed": "现金流量表 " +
		"经营活动现金流 投资活动现金流 筹资活动现金流 现金净变动额",
}

// Server exposes the retrieval subsystem to MCP hosts over stdio.
type Server struct {
	retriever ports.ContextRetriever
	mcp       *server.MCPServer
}

func NewServer(retriever ports.ContextRetriever) *Server {
	s := &Server{retriever: retriever}

	srv := server.NewMCPServer(
		"finsight",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool("retrieve_financial_context",
		mcp.WithDescription("Retrieve scored context candidates from the hybrid financial report index."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Retrieval query, e.g. '招商银行2023年净利润'."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Number of candidates to return."),
		),
		mcp.WithString("strategy",
			mcp.Description("Channel routing strategy. auto routes by query content."),
			mcp.Enum("auto", "text_first", "table_first", "hybrid"),
		),
		mcp.WithString("company",
			mcp.Description("Restrict candidates to one company."),
		),
		mcp.WithString("year",
			mcp.Description("Restrict candidates to one report year, e.g. '2023'."),
		),
		mcp.WithString("source_file",
			mcp.Description("Restrict candidates to one uploaded file."),
		),
	), s.handleRetrieveContext)

	srv.AddTool(mcp.NewTool("retrieve_financial_data",
		mcp.WithDescription("Retrieve statement-level financial data for one company and year as text blocks."),
		mcp.WithString("company_name",
			mcp.Required(),
			mcp.Description("Company name, e.g. '招商银行'."),
		),
		mcp.WithString("year",
			mcp.Required(),
			mcp.Description("Report year, e.g. '2023'."),
		),
		mcp.WithString("metric_type",
			mcp.Required(),
			mcp.Description("Detail level: balance_sheet_detailed, income_statement_detailed, cash_flow_detailed, or a free-form metric."),
		),
	), s.handleRetrieveFinancialData)

	srv.AddTool(mcp.NewTool("index_stats",
		mcp.WithDescription("Report readiness and size of the hybrid index channels."),
	), s.handleIndexStats)

	s.mcp = srv
	return s
}

// ServeStdio blocks serving the MCP session on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}

	opts := domain.RetrieveOptions{
		TopK:     request.GetInt("top_k", 0),
		Strategy: domain.NormalizeStrategy(request.GetString("strategy", "")),
		Filter: domain.ContextFilter{
			Company:    request.GetString("company", ""),
			Year:       request.GetString("year", ""),
			SourceFile: request.GetString("source_file", ""),
		},
	}

	candidates := s.retriever.Retrieve(ctx, query, opts)
	payload, err := json.MarshalIndent(map[string]any{
		"results": candidates,
		"count":   len(candidates),
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleRetrieveFinancialData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	company, err := request.RequireString("company_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	year, err := request.RequireString("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	metricType, err := request.RequireString("metric_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := buildStatementQuery(company, year, metricType)
	candidates := s.retriever.Retrieve(ctx, query, domain.RetrieveOptions{
		TopK:     financialDataTopK,
		Strategy: domain.StrategyAuto,
		Filter:   domain.ContextFilter{Company: company, Year: year},
	})
	if len(candidates) == 0 {
		return mcp.NewToolResultText("未检索到相关财务数据。"), nil
	}

	var b strings.Builder
	for i, candidate := range candidates {
		if i > 0 {
			b.WriteString("\n\n")
		}
		source := candidate.Document.Metadata.String(domain.MetaSourceFile)
		if source == "" {
			source = candidate.Document.ID
		}
		fmt.Fprintf(&b, "[%s | score=%.3f]\n%s", source, candidate.Score, candidate.Document.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleIndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.retriever.Stats(ctx)
	payload, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func buildStatementQuery(company, year, metricType string) string {
	if detail, ok := statementQueries[metricType]; ok {
		return fmt.Sprintf("%s %s年 %s", company, year, detail)
	}
	return fmt.Sprintf("%s %s年 %s", company, year, metricType)
}
