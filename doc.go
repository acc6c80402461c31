/*
Package mcpcore implements the server core of the Model Context Protocol (MCP).

A Service holds a catalog of tools and resources registered at startup.
Each client connection gets its own Session, which snapshots the catalog and
moves through three states:

	Uninitialized --Initialize--> Ready --Close--> Closed

Tools declare a Schema of typed parameters. Arguments are validated and
normalized before a handler runs, so handlers read them through the typed
accessors of Arguments:

	svc := mcpcore.NewService("calculator", "1.0.0")
	svc.RegisterTool(mcpcore.ToolSpec{
		Name:        "add",
		Description: "Add two numbers",
		Params: mcpcore.Schema{
			{Name: "a", Kind: mcpcore.KindNumber, Required: true},
			{Name: "b", Kind: mcpcore.KindNumber, Required: true},
		},
		Handler: func(ctx context.Context, args mcpcore.Arguments) (*mcpcore.CallResult, error) {
			a, b := args.Float("a"), args.Float("b")
			return mcpcore.Textf("%v + %v = %v", a, b, a+b), nil
		},
	})

Resources are addressed by exact URI, or by prefix when ResourceSpec.Prefix
is set. Resolution prefers an exact match and otherwise picks the longest
matching prefix.

Calls and reads never fail because of what a client sent or what a handler
did. An unknown tool, invalid arguments, an unknown resource, or a handler
error or panic each produce a normal result whose text describes the
problem. Only misuse of the session lifecycle is reported as an error.

Serve a service over stdio with:

	srv := mcpcore.NewServer(svc)
	err := srv.Serve(ctx, mcpcore.NewStdioTransport())

For more examples, see the examples directory.
*/
package mcpcore
