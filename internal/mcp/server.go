// Package mcp serves the query engine over the Model Context Protocol's
// stdio transport.
package mcp

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/trailofbits/slither-mcp/internal/engine"
	"github.com/trailofbits/slither-mcp/internal/logging"
)

// Server is an MCP server over line-delimited JSON-RPC on stdio
type Server struct {
	stdin   io.Reader
	stdout  io.Writer
	scanner *bufio.Scanner
	logger  *logging.Logger
	version string
	engine  *engine.Engine
	tools   map[string]toolHandler
}

type toolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// NewServer creates a server bound to os.Stdin/os.Stdout
func NewServer(version string, eng *engine.Engine, logger *logging.Logger) *Server {
	s := &Server{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		logger:  logger,
		version: version,
		engine:  eng,
		tools:   make(map[string]toolHandler),
	}
	s.registerTools()
	return s
}

// SetStdin overrides the input stream (for testing)
func (s *Server) SetStdin(r io.Reader) {
	s.stdin = r
	s.scanner = nil
}

// SetStdout overrides the output stream (for testing)
func (s *Server) SetStdout(w io.Writer) {
	s.stdout = w
}

// Run processes messages until stdin closes or the context is cancelled.
// Analysis runs triggered by tool calls inherit the context, so shutting
// the server down also kills any in-flight slither process.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting", logging.Fields{"version": s.version})

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("MCP server shutting down", logging.Fields{"reason": err.Error()})
			return nil
		}

		msg, err := s.readMessage()
		if err != nil {
			if err == io.EOF {
				s.logger.Info("MCP server shutting down (EOF)", nil)
				return nil
			}
			if stderrors.Is(err, errMalformed) {
				s.logger.Error("dropping malformed message", logging.Fields{"error": err.Error()})
				continue
			}
			// Scanner errors are sticky (a line past MaxMessageSize, a broken
			// pipe); retrying would spin on the same error forever.
			s.logger.Error("transport failed", logging.Fields{"error": err.Error()})
			return err
		}

		response := s.handleMessage(ctx, msg)
		if response == nil {
			continue
		}
		if err := s.writeMessage(response); err != nil {
			s.logger.Error("error writing response", logging.Fields{"error": err.Error()})
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *Message) *Message {
	if msg.IsRequest() {
		return s.handleRequest(ctx, msg)
	}
	if msg.IsNotification() {
		s.handleNotification(msg)
		return nil
	}
	return NewErrorMessage(msg.Id, InvalidRequest, "invalid message: not a request or notification", nil)
}

func (s *Server) handleRequest(ctx context.Context, msg *Message) *Message {
	s.logger.Debug("handling request", logging.Fields{"method": msg.Method, "id": msg.Id})

	switch msg.Method {
	case methodInitialize:
		return NewResultMessage(msg.Id, s.initializeResult())
	case methodToolsList:
		return NewResultMessage(msg.Id, map[string]interface{}{"tools": s.toolDefinitions()})
	case methodToolsCall:
		return s.handleCallTool(ctx, msg)
	default:
		return NewErrorMessage(msg.Id, MethodNotFound,
			fmt.Sprintf("method not found: %s", msg.Method), nil)
	}
}

func (s *Server) handleNotification(msg *Message) {
	switch msg.Method {
	case notifyInitialized:
		s.logger.Info("client initialized", nil)
	default:
		s.logger.Debug("unknown notification", logging.Fields{"method": msg.Method})
	}
}

func (s *Server) initializeResult() map[string]interface{} {
	return map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    "slither-mcp",
			"version": s.version,
		},
	}
}

func (s *Server) handleCallTool(ctx context.Context, msg *Message) *Message {
	params, ok := msg.Params.(map[string]interface{})
	if !ok {
		return NewErrorMessage(msg.Id, InvalidParams, "invalid params: expected object", nil)
	}
	name, ok := params["name"].(string)
	if !ok {
		return NewErrorMessage(msg.Id, InvalidParams, "missing tool name", nil)
	}
	args, ok := params["arguments"].(map[string]interface{})
	if !ok {
		args = make(map[string]interface{})
	}

	handler, ok := s.tools[name]
	if !ok {
		return NewErrorMessage(msg.Id, MethodNotFound,
			fmt.Sprintf("unknown tool: %s", name), nil)
	}

	s.logger.Info("calling tool", logging.Fields{"tool": name})

	result, err := handler(ctx, args)
	if err != nil {
		return NewResultMessage(msg.Id, errorContent(err))
	}
	return NewResultMessage(msg.Id, successContent(result))
}
