package mcptest

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/tmc/mcpcore"
)

// EchoService returns a small service for exercising a client or the
// protocol core. Its tools are:
//
//	echo  {message string}     returns message
//	add   {a, b number}        returns the sum
//	fail  {}                   returns an error
//	panic {}                   panics
//	empty {}                   returns no content
//
// Its resources are echo://info and the prefix echo://items/, which
// answers "item <rest>" for any URI below it.
func EchoService(opts ...mcpcore.Option) (*mcpcore.Service, error) {
	svc := mcpcore.NewService("echo", "1.0.0", opts...)
	tools := []mcpcore.ToolSpec{
		{
			Name:        "echo",
			Description: "Echo the input",
			Params: mcpcore.Schema{
				{Name: "message", Kind: mcpcore.KindString, Description: "Text to return", Required: true},
			},
			Handler: func(ctx context.Context, args mcpcore.Arguments) (*mcpcore.CallResult, error) {
				return mcpcore.Text(args.String("message")), nil
			},
		},
		{
			Name:        "add",
			Description: "Add two numbers",
			Params: mcpcore.Schema{
				{Name: "a", Kind: mcpcore.KindNumber, Required: true},
				{Name: "b", Kind: mcpcore.KindNumber, Required: true},
			},
			Handler: func(ctx context.Context, args mcpcore.Arguments) (*mcpcore.CallResult, error) {
				return mcpcore.Text(strconv.FormatFloat(args.Float("a")+args.Float("b"), 'f', -1, 64)), nil
			},
		},
		{
			Name:        "fail",
			Description: "Always fails",
			Handler: func(ctx context.Context, args mcpcore.Arguments) (*mcpcore.CallResult, error) {
				return nil, errors.New("something went wrong")
			},
		},
		{
			Name:        "panic",
			Description: "Always panics",
			Handler: func(ctx context.Context, args mcpcore.Arguments) (*mcpcore.CallResult, error) {
				panic("boom")
			},
		},
		{
			Name:        "empty",
			Description: "Returns no content",
			Handler: func(ctx context.Context, args mcpcore.Arguments) (*mcpcore.CallResult, error) {
				return &mcpcore.CallResult{}, nil
			},
		},
	}
	for _, t := range tools {
		if err := svc.RegisterTool(t); err != nil {
			return nil, err
		}
	}
	resources := []mcpcore.ResourceSpec{
		{
			URI:      "echo://info",
			Name:     "Echo Information",
			Resolver: func(context.Context, string) (string, error) { return "Echo test server", nil },
		},
		{
			URI:         "echo://items/",
			Prefix:      true,
			Name:        "Items",
			ContentType: "application/json",
			Resolver: func(ctx context.Context, uri string) (string, error) {
				rest := strings.TrimPrefix(uri, "echo://items/")
				if rest == "" {
					return "", errors.New("item name required")
				}
				return strconv.Quote("item " + rest), nil
			},
		},
	}
	for _, r := range resources {
		if err := svc.RegisterResource(r); err != nil {
			return nil, err
		}
	}
	return svc, nil
}
