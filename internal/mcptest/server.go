package mcptest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"time"

	"github.com/tmc/mcpcore"
)

// Conn is a client connected to a running server.
type Conn struct {
	Client *mcpcore.Client
	close  func() error
}

// Close disconnects the client and waits for the server to stop.
func (c *Conn) Close() error { return c.close() }

// Serve serves svc in-process and returns a connected client. If debug
// is non-nil, every message is copied to it.
func Serve(svc *mcpcore.Service, debug io.Writer) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	serverConn, clientConn := net.Pipe()
	done := make(chan error, 1)
	go func() { done <- mcpcore.NewServer(svc).ServeConn(ctx, serverConn) }()

	client := mcpcore.NewClient(newDebugTransport(clientConn, debug))
	return &Conn{
		Client: client,
		close: func() error {
			client.Close()
			cancel()
			return <-done
		},
	}
}

// stopTimeout bounds how long Close waits for a server process to exit
// after its stdin is closed.
const stopTimeout = 5 * time.Second

// Start runs a server process in dir with the given environment and
// returns a client speaking to its stdin and stdout. The process's
// standard error is copied to debug when debug is non-nil.
func Start(ctx context.Context, dir string, env []string, debug io.Writer, name string, args ...string) (*Conn, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	if debug != nil {
		fmt.Fprintf(debug, "# starting %v\n", cmd.Args)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting server: %w", err)
	}

	logged := make(chan struct{})
	go func() {
		defer close(logged)
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			if debug != nil {
				fmt.Fprintf(debug, "# stderr: %s\n", sc.Text())
			}
		}
	}()

	client := mcpcore.NewClient(newDebugTransport(mcpcore.PipeTransport{Reader: stdout, Writer: stdin}, debug))
	return &Conn{
		Client: client,
		close: func() error {
			// Closing stdin is the server's signal to exit.
			client.Close()
			exited := make(chan error, 1)
			go func() {
				<-logged
				exited <- cmd.Wait()
			}()
			select {
			case err := <-exited:
				return err
			case <-time.After(stopTimeout):
				cmd.Process.Kill()
				<-exited
				return fmt.Errorf("server %s did not exit after %v", name, stopTimeout)
			}
		},
	}, nil
}

// debugTransport copies every message to out.
type debugTransport struct {
	rw  io.ReadWriteCloser
	out io.Writer
}

func newDebugTransport(rw io.ReadWriteCloser, out io.Writer) io.ReadWriteCloser {
	if out == nil {
		return rw
	}
	return &debugTransport{rw: rw, out: out}
}

func (d *debugTransport) Read(p []byte) (n int, err error) {
	n, err = d.rw.Read(p)
	if n > 0 {
		fmt.Fprintf(d.out, "# <- %s\n", bytes.TrimSpace(p[:n]))
	}
	if err != nil && err != io.EOF {
		fmt.Fprintf(d.out, "# read error: %v\n", err)
	}
	return n, err
}

func (d *debugTransport) Write(p []byte) (n int, err error) {
	fmt.Fprintf(d.out, "# -> %s\n", bytes.TrimSpace(p))
	return d.rw.Write(p)
}

func (d *debugTransport) Close() error {
	return d.rw.Close()
}
