package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/alliance/internal/models"
	"github.com/nvandessel/alliance/internal/ratelimit"
	"github.com/nvandessel/alliance/internal/session"
)

// localClient keys the limits that are not per simulation. A stdio server
// has exactly one client.
const localClient = "stdio"

const simulationURIPrefix = "alliance://simulations/"

// registerTools registers all alliance MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "alliance_start",
		Description: "Create a simulation of the AM/MC alliance investment game",
	}, s.handleStart)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "alliance_round",
		Description: "Play the next round: both parties decide their engineer investment and payoffs are resolved",
	}, s.handleRound)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "alliance_status",
		Description: "Get the current round, status and cumulative payoffs of a simulation",
	}, s.handleStatus)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "alliance_export",
		Description: "Export the full round history and summary statistics of a simulation",
	}, s.handleExport)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "alliance_list",
		Description: "List live simulations",
	}, s.handleList)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "alliance_delete",
		Description: "Delete a simulation",
	}, s.handleDelete)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "alliance_chat",
		Description: "Ask one party (am or mc) a question; it answers in character from its view of the game",
	}, s.handleChat)
}

// registerResources exposes simulations as readable JSON documents.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         "alliance://simulations",
		Name:        "alliance-simulations",
		Description: "Live simulations with their status and progress.",
		MIMEType:    "application/json",
	}, s.handleSimulationsResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: simulationURIPrefix + "{id}",
		Name:        "alliance-simulation-export",
		Description: "Full export of one simulation: configuration, rounds and summary.",
		MIMEType:    "application/json",
	}, s.handleSimulationResource)
}

func (s *Server) handleSimulationsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.svc.List())
}

func (s *Server) handleSimulationResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, simulationURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, simulationURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("simulation ID is required")
	}

	exp, err := s.svc.Export(id)
	if err != nil {
		if models.KindOf(err) == models.KindNotFound {
			return nil, sdk.ResourceNotFoundError(uri)
		}
		return nil, err
	}
	return jsonResource(uri, exp)
}

func jsonResource(uri string, v any) (*sdk.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding resource: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}

// handleStart implements the alliance_start tool.
func (s *Server) handleStart(ctx context.Context, req *sdk.CallToolRequest, args StartInput) (_ *sdk.CallToolResult, _ session.StartResult, retErr error) {
	start := time.Now()
	var simID string
	defer func() {
		s.auditTool("alliance_start", simID, start, retErr, sanitizeToolParams(map[string]any{
			"num_rounds": args.NumRounds, "information_mode": args.InformationMode,
			"am_strategy": args.AMStrategy, "mc_strategy": args.MCStrategy,
		}))
	}()

	if err := s.limits.Check(ratelimit.OpStart, localClient); err != nil {
		return nil, session.StartResult{}, err
	}

	res, err := s.svc.Start(models.SimulationConfig{
		NumRounds:       args.NumRounds,
		InformationMode: models.InformationMode(strings.ToLower(args.InformationMode)),
		AMStrategy:      models.Strategy(strings.ToLower(args.AMStrategy)),
		MCStrategy:      models.Strategy(strings.ToLower(args.MCStrategy)),
	})
	if err != nil {
		return nil, session.StartResult{}, err
	}
	simID = res.SimulationID
	return nil, res, nil
}

// handleRound implements the alliance_round tool.
func (s *Server) handleRound(ctx context.Context, req *sdk.CallToolRequest, args SimulationInput) (_ *sdk.CallToolResult, _ session.RoundResult, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("alliance_round", args.SimulationID, start, retErr, nil)
	}()

	if err := requireID(args.SimulationID); err != nil {
		return nil, session.RoundResult{}, err
	}
	if err := s.limits.Check(ratelimit.OpRound, args.SimulationID); err != nil {
		return nil, session.RoundResult{}, err
	}

	res, err := s.svc.Round(ctx, args.SimulationID)
	if err != nil {
		return nil, session.RoundResult{}, err
	}
	return nil, res, nil
}

// handleStatus implements the alliance_status tool.
func (s *Server) handleStatus(ctx context.Context, req *sdk.CallToolRequest, args SimulationInput) (_ *sdk.CallToolResult, _ session.StatusView, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("alliance_status", args.SimulationID, start, retErr, nil)
	}()

	if err := s.limits.Check(ratelimit.OpRead, localClient); err != nil {
		return nil, session.StatusView{}, err
	}
	st, err := s.svc.Status(args.SimulationID)
	if err != nil {
		return nil, session.StatusView{}, err
	}
	return nil, st, nil
}

// handleExport implements the alliance_export tool.
func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args SimulationInput) (_ *sdk.CallToolResult, _ session.Export, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("alliance_export", args.SimulationID, start, retErr, nil)
	}()

	if err := s.limits.Check(ratelimit.OpRead, localClient); err != nil {
		return nil, session.Export{}, err
	}
	exp, err := s.svc.Export(args.SimulationID)
	if err != nil {
		return nil, session.Export{}, err
	}
	return nil, exp, nil
}

// handleList implements the alliance_list tool.
func (s *Server) handleList(ctx context.Context, req *sdk.CallToolRequest, args ListInput) (_ *sdk.CallToolResult, _ session.ListResult, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("alliance_list", "", start, retErr, nil)
	}()

	if err := s.limits.Check(ratelimit.OpRead, localClient); err != nil {
		return nil, session.ListResult{}, err
	}
	return nil, s.svc.List(), nil
}

// handleDelete implements the alliance_delete tool.
func (s *Server) handleDelete(ctx context.Context, req *sdk.CallToolRequest, args SimulationInput) (_ *sdk.CallToolResult, _ session.DeleteResult, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("alliance_delete", args.SimulationID, start, retErr, nil)
	}()

	res, err := s.svc.Delete(args.SimulationID)
	if err != nil {
		return nil, session.DeleteResult{}, err
	}
	return nil, res, nil
}

// handleChat implements the alliance_chat tool.
func (s *Server) handleChat(ctx context.Context, req *sdk.CallToolRequest, args ChatInput) (_ *sdk.CallToolResult, _ session.ChatReply, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("alliance_chat", args.SimulationID, start, retErr, sanitizeToolParams(map[string]any{
			"agent": args.Agent, "message": args.Message,
		}))
	}()

	if err := requireID(args.SimulationID); err != nil {
		return nil, session.ChatReply{}, err
	}
	party, err := models.ParseParty(args.Agent)
	if err != nil {
		return nil, session.ChatReply{}, models.NewValidationError("agent", "must be am or mc")
	}
	if err := s.limits.Check(ratelimit.OpChat, args.SimulationID); err != nil {
		return nil, session.ChatReply{}, err
	}

	reply, err := s.svc.Chat(ctx, args.SimulationID, party, args.Message)
	if err != nil {
		return nil, session.ChatReply{}, err
	}
	return nil, reply, nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return models.NewValidationError("simulation_id", "required")
	}
	return nil
}
