// Command mcptest runs MCP conversation scripts.
//
// Each script is a txtar archive; see package internal/mcptest for the
// commands available. Scripts can drive any server binary with mcp-start,
// or the built-in echo service with mcp-serve echo.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tmc/mcpcore"
	"github.com/tmc/mcpcore/internal/mcptest"
)

func main() {
	var (
		verbose = flag.Bool("v", false, "print the transcript of passing scripts too")
		fail    = flag.Bool("f", false, "fail fast (stop on first failure)")
		debug   = flag.Bool("debug", false, "trace every message on standard error")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mcptest [flags] <script.txt...>\n")
		fmt.Fprintf(os.Stderr, "       mcptest [flags] <dir>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &mcptest.Runner{
		Services: map[string]func() (*mcpcore.Service, error){
			"echo": func() (*mcpcore.Service, error) { return mcptest.EchoService() },
		},
	}
	if *debug {
		r.Debug = os.Stderr
	}

	files, err := expand(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcptest: %v\n", err)
		os.Exit(2)
	}
	failed := false
	for _, file := range files {
		if *verbose {
			fmt.Printf("=== RUN   %s\n", file)
		}
		var log strings.Builder
		if err := r.RunFile(ctx, file, &log); err != nil {
			failed = true
			fmt.Printf("--- FAIL: %s\n%s\n%s\n", file, indent(log.String()), indent(err.Error()))
			if *fail {
				break
			}
			continue
		}
		if *verbose {
			io.WriteString(os.Stdout, indent(log.String())+"\n")
			fmt.Printf("--- PASS: %s\n", file)
		}
	}
	if failed {
		os.Exit(1)
	}
}

// expand turns the command-line arguments into script files. A directory
// stands for the .txt and .txtar files in it.
func expand(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			for _, pat := range []string{"*.txt", "*.txtar"} {
				m, err := filepath.Glob(filepath.Join(arg, pat))
				if err != nil {
					return nil, err
				}
				files = append(files, m...)
			}
			continue
		}
		m, err := filepath.Glob(arg)
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			return nil, fmt.Errorf("no scripts match %s", arg)
		}
		files = append(files, m...)
	}
	return files, nil
}

func indent(s string) string {
	return "\t" + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n\t")
}
