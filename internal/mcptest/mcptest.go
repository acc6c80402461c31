// Package mcptest runs scripted conversations against MCP servers.
//
// A script is a txtar archive. The archive comment holds rsc.io/script
// commands and the archive files are extracted into the script's working
// directory before it runs, so they can be compared with cmp:
//
//	mcp-serve echo
//	mcp initialize '{"protocolVersion":"2024-11-05"}'
//	stdout '"protocolVersion": "2024-11-05"'
//	mcp tools/call '{"name":"echo","arguments":{"message":"hi"}}'
//	cmp stdout want.json
//	-- want.json --
//	...
//
// In addition to the default script commands, scripts may use mcp-serve,
// mcp-start, mcp, mcp-notify and mcp-stop.
package mcptest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/tmc/mcpcore"
	"golang.org/x/tools/txtar"
	"rsc.io/script"
)

// Runner runs scripts.
type Runner struct {
	// Services are the in-process services available to mcp-serve,
	// keyed by name. Each mcp-serve builds a fresh service.
	Services map[string]func() (*mcpcore.Service, error)

	// Env is appended to the process environment of every script.
	Env []string

	// Debug, if non-nil, receives every message sent and received.
	Debug io.Writer
}

// RunFile parses the txtar archive in filename and runs it.
func (r *Runner) RunFile(ctx context.Context, filename string, log io.Writer) error {
	a, err := txtar.ParseFile(filename)
	if err != nil {
		return err
	}
	return r.Run(ctx, filename, a, log)
}

// Run runs the script held in a's comment in a fresh temporary directory
// holding a's files. The script transcript is written to log.
func (r *Runner) Run(ctx context.Context, name string, a *txtar.Archive, log io.Writer) error {
	workdir, err := os.MkdirTemp("", "mcptest-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	s, err := script.NewState(ctx, workdir, append(os.Environ(), r.Env...))
	if err != nil {
		return err
	}
	if err := initScriptDirs(s); err != nil {
		return err
	}
	if err := s.ExtractFiles(a); err != nil {
		return err
	}

	var debug io.Writer
	if r.Debug != nil {
		debug = &lockedWriter{w: r.Debug}
	}
	c := &conversation{runner: r, debug: debug}
	defer c.stop()

	eng := script.NewEngine()
	for name, cmd := range c.commands() {
		eng.Cmds[name] = cmd
	}
	err = eng.Execute(s, name, bufio.NewReader(bytes.NewReader(a.Comment)), log)
	if cerr := s.CloseAndWait(log); err == nil {
		err = cerr
	}
	return err
}

func initScriptDirs(s *script.State) error {
	work := s.Getwd()
	if err := s.Setenv("WORK", work); err != nil {
		return err
	}
	tmp := filepath.Join(work, "tmp")
	if err := os.MkdirAll(tmp, 0o777); err != nil {
		return err
	}
	return s.Setenv(tempEnvName(), tmp)
}

func tempEnvName() string {
	switch runtime.GOOS {
	case "windows":
		return "TMP"
	case "plan9":
		return "TMPDIR" // plan 9 has none, but this is harmless
	default:
		return "TMPDIR"
	}
}

// conversation is the server a script is currently talking to.
type conversation struct {
	runner *Runner
	debug  io.Writer
	conn   *Conn
}

func (c *conversation) stop() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *conversation) commands() map[string]script.Cmd {
	return map[string]script.Cmd{
		"mcp-serve": script.Command(script.CmdUsage{
			Summary: "serve a named in-process MCP service",
			Args:    "name",
		}, c.serve),
		"mcp-start": script.Command(script.CmdUsage{
			Summary: "start an MCP server process speaking on stdin and stdout",
			Args:    "command [args...]",
		}, c.start),
		"mcp": script.Command(script.CmdUsage{
			Summary: "send a request and print the indented result to stdout",
			Args:    "method [params]",
			Detail: []string{
				"An error response fails the command and is printed to stderr",
				"as 'error <code>: <message>'.",
			},
		}, c.call),
		"mcp-notify": script.Command(script.CmdUsage{
			Summary: "send a notification",
			Args:    "method [params]",
		}, c.notify),
		"mcp-stop": script.Command(script.CmdUsage{
			Summary: "disconnect from the current server",
		}, func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 0 {
				return nil, script.ErrUsage
			}
			return nil, c.stop()
		}),
	}
}

func (c *conversation) serve(s *script.State, args ...string) (script.WaitFunc, error) {
	if len(args) != 1 {
		return nil, script.ErrUsage
	}
	build, ok := c.runner.Services[args[0]]
	if !ok {
		names := make([]string, 0, len(c.runner.Services))
		for name := range c.runner.Services {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown service %q (have %s)", args[0], strings.Join(names, ", "))
	}
	svc, err := build()
	if err != nil {
		return nil, err
	}
	if err := c.stop(); err != nil {
		s.Logf("previous server: %v\n", err)
	}
	c.conn = Serve(svc, c.debug)
	return nil, nil
}

func (c *conversation) start(s *script.State, args ...string) (script.WaitFunc, error) {
	if len(args) < 1 {
		return nil, script.ErrUsage
	}
	if err := c.stop(); err != nil {
		s.Logf("previous server: %v\n", err)
	}
	conn, err := Start(s.Context(), s.Getwd(), s.Environ(), c.debug, args[0], args[1:]...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return nil, nil
}

func params(args []string) (json.RawMessage, error) {
	switch len(args) {
	case 0:
		return nil, script.ErrUsage
	case 1:
		return nil, nil
	case 2:
		if !json.Valid([]byte(args[1])) {
			return nil, fmt.Errorf("params for %s are not valid JSON: %s", args[0], args[1])
		}
		return json.RawMessage(args[1]), nil
	}
	return nil, script.ErrUsage
}

func (c *conversation) call(s *script.State, args ...string) (script.WaitFunc, error) {
	p, err := params(args)
	if err != nil {
		return nil, err
	}
	if c.conn == nil {
		return failure(errNoServer), nil
	}
	var result json.RawMessage
	err = c.conn.Client.Call(s.Context(), args[0], p, &result)
	var rpcErr *mcpcore.RPCError
	if errors.As(err, &rpcErr) {
		return failure(fmt.Errorf("error %d: %s", rpcErr.Code, rpcErr.Message)), nil
	}
	if err != nil {
		return failure(err), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, result, "", "  "); err != nil {
		return nil, fmt.Errorf("formatting %s result: %w", args[0], err)
	}
	out.WriteByte('\n')
	return func(*script.State) (string, string, error) {
		return out.String(), "", nil
	}, nil
}

func (c *conversation) notify(s *script.State, args ...string) (script.WaitFunc, error) {
	p, err := params(args)
	if err != nil {
		return nil, err
	}
	if c.conn == nil {
		return failure(errNoServer), nil
	}
	if err := c.conn.Client.Notify(s.Context(), args[0], p); err != nil {
		return failure(err), nil
	}
	return nil, nil
}

var errNoServer = errors.New("no MCP server running; use mcp-serve or mcp-start first")

// failure reports err as the command's error and its standard error, so
// scripts can match it with stderr.
func failure(err error) script.WaitFunc {
	return func(*script.State) (string, string, error) {
		return "", err.Error() + "\n", err
	}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
