package mcpcore

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Request methods
const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodListTools     = "tools/list"
	MethodCallTool      = "tools/call"
	MethodListResources = "resources/list"
	MethodReadResource  = "resources/read"
)

// Protocol types
type (
	InitializeParams struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ClientCapabilities `json:"capabilities"`
		ClientInfo      Implementation     `json:"clientInfo"`
	}

	InitializeResult struct {
		ProtocolVersion string             `json:"protocolVersion"`
		Capabilities    ServerCapabilities `json:"capabilities"`
		ServerInfo      Implementation     `json:"serverInfo"`
		Instructions    string             `json:"instructions,omitempty"`
	}

	ListToolsParams struct {
		Cursor string `json:"cursor,omitempty"`
	}

	ListToolsResult struct {
		Tools      []ToolInfo `json:"tools"`
		NextCursor string     `json:"nextCursor,omitempty"`
	}

	CallToolParams struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments,omitempty"`
	}

	ListResourcesParams struct {
		Cursor string `json:"cursor,omitempty"`
	}

	ListResourcesResult struct {
		Resources  []ResourceInfo `json:"resources"`
		NextCursor string         `json:"nextCursor,omitempty"`
	}

	ReadResourceParams struct {
		URI string `json:"uri"`
	}

	CancelledParams struct {
		RequestID json.RawMessage `json:"requestId"`
		Reason    string          `json:"reason,omitempty"`
	}

	// ToolInfo is the catalog entry for a tool.
	ToolInfo struct {
		Name        string             `json:"name"`
		Description string             `json:"description,omitempty"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}

	// ResourceInfo is the catalog entry for a resource. For prefix
	// resources URI holds the prefix.
	ResourceInfo struct {
		URI         string `json:"uri"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		MimeType    string `json:"mimeType,omitempty"`
	}

	Implementation struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	ServerCapabilities struct {
		Experimental map[string]any       `json:"experimental,omitempty"`
		Tools        *ToolsCapability     `json:"tools,omitempty"`
		Resources    *ResourcesCapability `json:"resources,omitempty"`
	}

	ToolsCapability struct {
		ListChanged bool `json:"listChanged,omitempty"`
	}

	ResourcesCapability struct {
		Subscribe   bool `json:"subscribe,omitempty"`
		ListChanged bool `json:"listChanged,omitempty"`
	}

	ClientCapabilities struct {
		Experimental map[string]any `json:"experimental,omitempty"`
		Roots        *struct {
			ListChanged bool `json:"listChanged,omitempty"`
		} `json:"roots,omitempty"`
		Sampling *struct{} `json:"sampling,omitempty"`
	}
)
