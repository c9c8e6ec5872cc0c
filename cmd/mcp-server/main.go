package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/attribution"
	"github.com/patrickwarner/leadrelay/internal/config"
	"github.com/patrickwarner/leadrelay/internal/geoip"
	"github.com/patrickwarner/leadrelay/internal/models"
	"github.com/patrickwarner/leadrelay/internal/observability"
	"github.com/patrickwarner/leadrelay/internal/relay"
	"github.com/patrickwarner/leadrelay/internal/validation"
)

// ClassifyVisitInput describes one page view.
type ClassifyVisitInput struct {
	URL            string `json:"url"`
	Referrer       string `json:"referrer,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	AcceptLanguage string `json:"accept_language,omitempty"`
}

type ClassifyVisitOutput struct {
	Snapshot models.AttributionSnapshot `json:"snapshot"`
	Channel  string                     `json:"channel"`
	Device   string                     `json:"device"`
}

type PreviewLeadInput struct {
	Submission json.RawMessage `json:"submission"`
	ClientIP   string          `json:"client_ip,omitempty"`
}

type PreviewLeadOutput struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

type CheckHandleInput struct {
	Handle string `json:"handle"`
}

type CheckHandleOutput struct {
	Valid   bool   `json:"valid"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// LeadTools exposes attribution and message rendering to MCP clients, so an
// operator can see what a campaign link or a lead would look like without
// posting to the chat channel.
type LeadTools struct {
	formatter *relay.Formatter
	logger    *zap.Logger
	now       func() time.Time
}

// ClassifyVisit implements the classify_visit tool.
func (s *LeadTools) ClassifyVisit(ctx context.Context, req *mcp.CallToolRequest, input ClassifyVisitInput) (*mcp.CallToolResult, ClassifyVisitOutput, error) {
	if input.URL == "" {
		return nil, ClassifyVisitOutput{}, fmt.Errorf("url is required")
	}
	snap := attribution.Collect(attribution.Input{
		CurrentURL: input.URL,
		Referrer:   input.Referrer,
		UserAgent:  input.UserAgent,
		Languages:  attribution.ParseAcceptLanguage(input.AcceptLanguage),
		Now:        s.now(),
	})
	s.logger.Info("classified visit",
		zap.String("source", snap.Source),
		zap.String("medium", snap.Medium))
	return nil, ClassifyVisitOutput{
		Snapshot: snap,
		Channel:  relay.ChannelLine(&snap),
		Device:   relay.DeviceLine(snap.Device),
	}, nil
}

// PreviewLeadMessage implements the preview_lead_message tool. Validation
// failures are reported in the output rather than as tool errors.
func (s *LeadTools) PreviewLeadMessage(ctx context.Context, req *mcp.CallToolRequest, input PreviewLeadInput) (*mcp.CallToolResult, PreviewLeadOutput, error) {
	sub, err := models.DecodeSubmission(input.Submission)
	if err != nil {
		return nil, PreviewLeadOutput{Error: err.Error()}, nil
	}
	if err := validation.Submission(sub); err != nil {
		return nil, PreviewLeadOutput{Error: validation.Message(err)}, nil
	}
	ip := input.ClientIP
	if ip == "" {
		ip = relay.UnknownIP
	}
	msg, err := s.formatter.Format(sub, ip)
	if err != nil {
		return nil, PreviewLeadOutput{}, fmt.Errorf("format: %w", err)
	}
	return nil, PreviewLeadOutput{Valid: true, Title: msg.Title, Text: msg.Text}, nil
}

// CheckHandle implements the check_contact_handle tool.
func (s *LeadTools) CheckHandle(ctx context.Context, req *mcp.CallToolRequest, input CheckHandleInput) (*mcp.CallToolResult, CheckHandleOutput, error) {
	if err := validation.Handle("contactMethod", input.Handle); err != nil {
		return nil, CheckHandleOutput{Message: validation.Message(err)}, nil
	}
	return nil, CheckHandleOutput{Valid: true, Kind: string(validation.ClassifyHandle(input.Handle))}, nil
}

func newServer(tools *LeadTools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "leadrelay",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_visit",
		Description: "Derive the attribution snapshot (source, medium, keyword, device) for a page view",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Landing page URL including any utm_*, gclid or fbclid parameters",
				},
				"referrer": map[string]interface{}{
					"type":        "string",
					"description": "Document referrer (optional, empty means direct)",
				},
				"user_agent": map[string]interface{}{
					"type":        "string",
					"description": "Browser User-Agent (optional)",
				},
				"accept_language": map[string]interface{}{
					"type":        "string",
					"description": "Accept-Language header (optional)",
				},
			},
			"required": []string{"url"},
		},
	}, tools.ClassifyVisit)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_lead_message",
		Description: "Validate a contact form submission and render the chat message it would produce",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"submission": map[string]interface{}{
					"type":        "object",
					"description": "Contact submission JSON; formType selects simple (default) or multi_step",
				},
				"client_ip": map[string]interface{}{
					"type":        "string",
					"description": "Visitor IP to show in the message (optional)",
				},
			},
			"required": []string{"submission"},
		},
	}, tools.PreviewLeadMessage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_contact_handle",
		Description: "Check whether a value is a valid Telegram handle or QQ number",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"handle": map[string]interface{}{
					"type":        "string",
					"description": "Telegram @username or QQ number",
				},
			},
			"required": []string{"handle"},
		},
	}, tools.CheckHandle)

	return server
}

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName + "-mcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	catalog := relay.DefaultCatalog()
	if cfg.LabelsFile != "" {
		if catalog, err = relay.LoadCatalog(cfg.LabelsFile); err != nil {
			logger.Fatal("load labels", zap.Error(err))
		}
	}
	var geoSvc *geoip.GeoIP
	if cfg.GeoIPDB != "" {
		if geoSvc, err = geoip.Init(cfg.GeoIPDB); err != nil {
			logger.Warn("geoip disabled", zap.Error(err))
		}
	}

	tools := &LeadTools{
		formatter: relay.NewFormatter(catalog, geoSvc, cfg.Timezone, cfg.SiteName),
		logger:    logger,
		now:       time.Now,
	}
	server := newServer(tools)

	stdioTransport := &mcp.StdioTransport{}

	var logBuffer bytes.Buffer
	loggingTransport := &mcp.LoggingTransport{
		Transport: stdioTransport,
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio")

	if err := server.Run(context.Background(), loggingTransport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
