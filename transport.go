package mcpcore

import (
	"io"
	"os"
)

// Transport carries newline-delimited JSON-RPC messages between client and
// server.
type Transport interface {
	io.ReadWriteCloser
}

// StdioTransport implements Transport over stdin/stdout
type StdioTransport struct {
	in  io.Reader
	out io.Writer
}

// NewStdioTransport creates a new stdio transport
func NewStdioTransport() *StdioTransport {
	return &StdioTransport{
		in:  os.Stdin,
		out: os.Stdout,
	}
}

func (t *StdioTransport) Read(p []byte) (n int, err error)  { return t.in.Read(p) }
func (t *StdioTransport) Write(p []byte) (n int, err error) { return t.out.Write(p) }

// Close is a no-op; the process owns stdin and stdout.
func (t *StdioTransport) Close() error { return nil }

// PipeTransport joins a reader and a writer into a Transport, closing
// both on Close when they implement io.Closer.
type PipeTransport struct {
	io.Reader
	io.Writer
}

func (t PipeTransport) Close() error {
	var err error
	if c, ok := t.Writer.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := t.Reader.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
