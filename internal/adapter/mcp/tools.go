package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/arbiterhq/Switchboard/internal/domain/message"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.sendMessageTool(),
		s.checkMailboxTool(),
		s.acknowledgeMessageTool(),
		s.getTaskTool(),
		s.findAgentsByServiceTool(),
	)
}

func (s *Server) sendMessageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("send_message",
		mcplib.WithDescription("Send a message from one agent to another through the bus"),
		mcplib.WithString("from_agent_id",
			mcplib.Required(),
			mcplib.Description("The sending agent's id"),
		),
		mcplib.WithString("to_agent_id",
			mcplib.Required(),
			mcplib.Description("The receiving agent's id"),
		),
		mcplib.WithString("message_type",
			mcplib.Required(),
			mcplib.Description("The message kind, e.g. service_request or ping"),
		),
		mcplib.WithString("content",
			mcplib.Description("Human-readable message content"),
		),
		mcplib.WithString("priority",
			mcplib.Description("Delivery priority: high, normal, or low"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSendMessage,
	}
}

func (s *Server) checkMailboxTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("check_mailbox",
		mcplib.WithDescription("List the pending messages in an agent's mailbox, highest priority first"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The mailbox owner's agent id"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCheckMailbox,
	}
}

func (s *Server) acknowledgeMessageTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("acknowledge_message",
		mcplib.WithDescription("Acknowledge a pending message, removing it from the mailbox"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The mailbox owner's agent id"),
		),
		mcplib.WithString("message_id",
			mcplib.Required(),
			mcplib.Description("The id of the message to acknowledge"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleAcknowledgeMessage,
	}
}

func (s *Server) getTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_task",
		mcplib.WithDescription("Get a delegated task by id, including its status and result"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task id to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetTask,
	}
}

func (s *Server) findAgentsByServiceTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("find_agents_by_service",
		mcplib.WithDescription("Find active agents advertising the named service"),
		mcplib.WithString("service",
			mcplib.Required(),
			mcplib.Description("The service name to search for"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleFindAgentsByService,
	}
}

func (s *Server) handleSendMessage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Mailer == nil {
		return mcplib.NewToolResultError("bus not configured"), nil
	}
	args := req.GetArguments()
	from, _ := args["from_agent_id"].(string)
	to, _ := args["to_agent_id"].(string)
	kind, _ := args["message_type"].(string)
	if from == "" || to == "" || kind == "" {
		return mcplib.NewToolResultError("from_agent_id, to_agent_id and message_type are required"), nil
	}
	content, _ := args["content"].(string)
	priority, _ := args["priority"].(string)

	env := &message.Envelope{
		From:     from,
		To:       to,
		Kind:     message.Kind(kind),
		Content:  content,
		Priority: message.ParsePriority(priority),
	}
	sent, err := s.deps.Mailer.Send(ctx, env)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to send message", err), nil
	}
	data, err := json.Marshal(sent)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal message", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleCheckMailbox(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Mailer == nil {
		return mcplib.NewToolResultError("bus not configured"), nil
	}
	args := req.GetArguments()
	agentID, ok := args["agent_id"].(string)
	if !ok || agentID == "" {
		return mcplib.NewToolResultError("agent_id is required"), nil
	}

	msgs := s.deps.Mailer.Pending(ctx, agentID)
	if msgs == nil {
		msgs = []*message.Envelope{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal messages", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleAcknowledgeMessage(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Mailer == nil {
		return mcplib.NewToolResultError("bus not configured"), nil
	}
	args := req.GetArguments()
	agentID, _ := args["agent_id"].(string)
	messageID, _ := args["message_id"].(string)
	if agentID == "" || messageID == "" {
		return mcplib.NewToolResultError("agent_id and message_id are required"), nil
	}

	if err := s.deps.Mailer.Acknowledge(ctx, agentID, messageID); err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to acknowledge message %s", messageID), err,
		), nil
	}
	return toolResultJSON(`{"status":"acknowledged"}`), nil
}

func (s *Server) handleGetTask(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.TaskReader == nil {
		return mcplib.NewToolResultError("task reader not configured"), nil
	}
	args := req.GetArguments()
	taskID, ok := args["task_id"].(string)
	if !ok || taskID == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}

	t, err := s.deps.TaskReader.Get(ctx, taskID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get task %s", taskID), err,
		), nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal task", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleFindAgentsByService(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Finder == nil {
		return mcplib.NewToolResultError("discovery not configured"), nil
	}
	args := req.GetArguments()
	service, ok := args["service"].(string)
	if !ok || service == "" {
		return mcplib.NewToolResultError("service is required"), nil
	}

	ids, err := s.deps.Finder.FindByService(ctx, service)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to find agents for service %s", service), err,
		), nil
	}
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(map[string]any{"service": service, "agent_ids": ids})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}
