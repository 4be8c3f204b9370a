package mcp

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/trailofbits/slither-mcp/internal/logging"
)

// MaxMessageSize is the maximum size of a single message (1MB). Large
// projects can produce multi-hundred-KB tool responses.
const MaxMessageSize = 1024 * 1024

// errMalformed marks a line that scanned cleanly but did not parse as
// JSON-RPC. The stream itself is still usable after one of these; scanner
// failures are not wrapped with it and must end the session.
var errMalformed = stderrors.New("malformed message")

// readMessage reads one line-delimited JSON-RPC message from stdin
func (s *Server) readMessage() (*Message, error) {
	if s.scanner == nil {
		s.scanner = bufio.NewScanner(s.stdin)
		s.scanner.Buffer(make([]byte, MaxMessageSize), MaxMessageSize)
	}

	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, fmt.Errorf("error reading from stdin: %w", err)
		}
		return nil, io.EOF
	}

	line := s.scanner.Text()
	var msg Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return &msg, nil
}

// writeMessage writes one message to stdout followed by a newline
func (s *Server) writeMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling JSON-RPC message: %w", err)
	}

	s.logger.Debug("sending message", logging.Fields{"bytes": len(data)})
	if _, err := fmt.Fprintf(s.stdout, "%s\n", data); err != nil {
		return fmt.Errorf("error writing to stdout: %w", err)
	}
	return nil
}
