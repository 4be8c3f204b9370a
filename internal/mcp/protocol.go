package mcp

// The server speaks line-delimited JSON-RPC 2.0 carrying the 2024-11-05
// revision of the Model Context Protocol.
const (
	jsonRPCVersion  = "2.0"
	protocolVersion = "2024-11-05"
)

// Methods and notifications the server understands.
const (
	methodInitialize  = "initialize"
	methodToolsList   = "tools/list"
	methodToolsCall   = "tools/call"
	notifyInitialized = "notifications/initialized"
)

// Message represents a JSON-RPC 2.0 message
type Message struct {
	Jsonrpc string      `json:"jsonrpc"`
	Id      interface{} `json:"id,omitempty"`
	Method  string      `json:"method,omitempty"`
	Params  interface{} `json:"params,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// NewErrorMessage creates an error response
func NewErrorMessage(id interface{}, code int, message string, data interface{}) *Message {
	return &Message{
		Jsonrpc: jsonRPCVersion,
		Id:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// NewResultMessage creates a result response
func NewResultMessage(id interface{}, result interface{}) *Message {
	return &Message{Jsonrpc: jsonRPCVersion, Id: id, Result: result}
}

// IsRequest reports whether the message is a request
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.Id != nil
}

// IsNotification reports whether the message is a notification
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.Id == nil
}
