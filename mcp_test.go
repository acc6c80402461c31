package mcpcore_test

import (
	"context"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tmc/mcpcore"
)

func newCalculator(t *testing.T) *mcpcore.Service {
	t.Helper()
	svc := mcpcore.NewService("calculator", "1.0.0", mcpcore.WithInstructions("Adds numbers."))
	err := svc.RegisterTool(mcpcore.ToolSpec{
		Name:        "add",
		Description: "Add two numbers together",
		Params: mcpcore.Schema{
			{Name: "a", Kind: mcpcore.KindNumber, Required: true},
			{Name: "b", Kind: mcpcore.KindNumber, Required: true},
		},
		Handler: func(ctx context.Context, args mcpcore.Arguments) (*mcpcore.CallResult, error) {
			return mcpcore.Textf("%g", args.Float("a")+args.Float("b")), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = svc.RegisterResource(mcpcore.ResourceSpec{
		URI:  "calculator://info",
		Name: "Calculator Information",
		Resolver: func(ctx context.Context, uri string) (string, error) {
			return "Simple Calculator", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

// connectSDK connects a client from the reference SDK to svc over pipes.
func connectSDK(t *testing.T, svc *mcpcore.Service) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sr, cw := io.Pipe()
	cr, sw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- mcpcore.NewServer(svc).ServeConn(ctx, mcpcore.PipeTransport{Reader: sr, Writer: sw})
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "sdk-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.IOTransport{Reader: cr, Writer: cw}, nil)
	if err != nil {
		cancel()
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		cs.Close()
		cancel()
		<-done
	})
	return cs
}

func TestSDKClient(t *testing.T) {
	ctx := context.Background()
	cs := connectSDK(t, newCalculator(t))

	info := cs.InitializeResult()
	if info.ServerInfo.Name != "calculator" || info.Instructions != "Adds numbers." {
		t.Errorf("InitializeResult = %+v", info)
	}
	if info.Capabilities.Tools == nil || info.Capabilities.Resources == nil {
		t.Errorf("capabilities = %+v", info.Capabilities)
	}

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != "add" || tools.Tools[0].Description != "Add two numbers together" {
		t.Errorf("ListTools = %+v", tools.Tools)
	}

	tests := []struct {
		args    map[string]any
		name    string
		want    string
		isError bool
	}{
		{map[string]any{"a": 2, "b": 3}, "add", "5", false},
		{map[string]any{"a": 2}, "add", `Invalid arguments for tool add: missing required parameter "b"`, true},
		{nil, "sub", "Unknown tool: sub", true},
	}
	for _, tt := range tests {
		res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: tt.name, Arguments: tt.args})
		if err != nil {
			t.Errorf("CallTool(%s, %v): %v", tt.name, tt.args, err)
			continue
		}
		if res.IsError != tt.isError || len(res.Content) != 1 {
			t.Errorf("CallTool(%s, %v) = %+v", tt.name, tt.args, res)
			continue
		}
		text, ok := res.Content[0].(*mcp.TextContent)
		if !ok || text.Text != tt.want {
			t.Errorf("CallTool(%s, %v) content = %#v, want %q", tt.name, tt.args, res.Content[0], tt.want)
		}
	}

	resources, err := cs.ListResources(ctx, nil)
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources.Resources) != 1 || resources.Resources[0].Name != "Calculator Information" {
		t.Errorf("ListResources = %+v", resources.Resources)
	}

	var got []string
	for _, uri := range []string{"calculator://info", "calculator://nope"} {
		res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
		if err != nil {
			t.Fatalf("ReadResource(%s): %v", uri, err)
		}
		for _, c := range res.Contents {
			got = append(got, c.URI+" "+c.MIMEType+" "+c.Text)
		}
	}
	want := []string{
		"calculator://info text/plain Simple Calculator",
		"calculator://nope text/plain Resource not found: calculator://nope",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadResource mismatch (-want +got):\n%s", diff)
	}

	if err := cs.Ping(ctx, nil); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
