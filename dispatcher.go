package mcpcore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Dispatcher answers catalog, call and read requests from a pair of
// registries. Every outcome of CallTool and ReadResource is an envelope:
// unknown names, invalid arguments and handler faults are reported as text
// content rather than as errors.
//
// A Dispatcher holds no lock while a handler runs.
type Dispatcher struct {
	tools     *ToolRegistry
	resources *ResourceRegistry
	logger    *slog.Logger
	observer  Observer
	limiter   *RateLimiter
}

// NewDispatcher returns a dispatcher over the given registries. Nil
// registries are treated as empty and a nil logger discards output.
// The registries must not be modified while the dispatcher is in use.
func NewDispatcher(tools *ToolRegistry, resources *ResourceRegistry, logger *slog.Logger) *Dispatcher {
	if tools == nil {
		tools = NewToolRegistry()
	}
	if resources == nil {
		resources = NewResourceRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{tools: tools, resources: resources, logger: logger}
}

// ListTools returns the tool catalog in registration order.
func (d *Dispatcher) ListTools() []ToolInfo {
	specs := d.tools.List()
	out := make([]ToolInfo, len(specs))
	for i, t := range specs {
		out[i] = ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Params.JSONSchema(),
		}
	}
	return out
}

// ListResources returns the resource catalog in registration order.
func (d *Dispatcher) ListResources() []ResourceInfo {
	specs := d.resources.List()
	out := make([]ResourceInfo, len(specs))
	for i, r := range specs {
		out[i] = ResourceInfo{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MimeType:    r.ContentType,
		}
	}
	return out
}

// CallTool invokes the named tool with raw arguments.
func (d *Dispatcher) CallTool(ctx context.Context, name string, raw map[string]any) *CallResult {
	start := time.Now()
	res, outcome, err := d.callTool(ctx, name, raw)

	log := d.logger.With(slog.String("tool", name), slog.Duration("dur", time.Since(start)))
	switch outcome {
	case OutcomeOK:
		log.DebugContext(ctx, "tool.call.ok")
	case OutcomeUnknown, OutcomeInvalid:
		log.WarnContext(ctx, "tool.call.reject", slog.String("outcome", string(outcome)), slog.String("err", err.Error()))
	default:
		log.ErrorContext(ctx, "tool.call.fail", slog.String("outcome", string(outcome)), slog.String("err", err.Error()))
	}
	if d.observer != nil {
		d.observer.ToolCalled(ctx, ToolEvent{
			Session:  SessionID(ctx),
			Tool:     name,
			Outcome:  outcome,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return res
}

func (d *Dispatcher) callTool(ctx context.Context, name string, raw map[string]any) (*CallResult, Outcome, error) {
	spec, err := d.tools.Get(name)
	if err != nil {
		return ErrorText("Unknown tool: " + name), OutcomeUnknown, err
	}
	if d.limiter != nil {
		err := d.limiter.Allow(MethodCallTool)
		if err == nil {
			err = d.limiter.AllowTool(name)
		}
		if err != nil {
			return ErrorText("Error: " + err.Error()), OutcomeRateLimited, err
		}
	}
	args, err := spec.Params.Validate(raw)
	if err != nil {
		return ErrorText(fmt.Sprintf("Invalid arguments for tool %s: %v", name, err)), OutcomeInvalid, err
	}
	res, err := invokeTool(ctx, spec, args)
	if err != nil {
		return ErrorText("Error: " + err.Error()), OutcomeFault, &ToolError{Tool: name, Err: err}
	}
	if res == nil || len(res.Content) == 0 {
		err := fmt.Errorf("tool %s returned no content", name)
		return ErrorText("Error: " + err.Error()), OutcomeNoContent, err
	}
	return res, OutcomeOK, nil
}

// ReadResource reads the resource at uri. The returned contents always carry
// the requested uri.
func (d *Dispatcher) ReadResource(ctx context.Context, uri string) *ReadResult {
	start := time.Now()
	res, outcome, err := d.readResource(ctx, uri)

	log := d.logger.With(slog.String("uri", uri), slog.Duration("dur", time.Since(start)))
	switch outcome {
	case OutcomeOK:
		log.DebugContext(ctx, "resource.read.ok")
	case OutcomeUnknown:
		log.WarnContext(ctx, "resource.read.reject", slog.String("err", err.Error()))
	default:
		log.ErrorContext(ctx, "resource.read.fail", slog.String("outcome", string(outcome)), slog.String("err", err.Error()))
	}
	if d.observer != nil {
		d.observer.ResourceRead(ctx, ResourceEvent{
			Session:  SessionID(ctx),
			URI:      uri,
			Outcome:  outcome,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return res
}

func (d *Dispatcher) readResource(ctx context.Context, uri string) (*ReadResult, Outcome, error) {
	spec, err := d.resources.Resolve(uri)
	if err != nil {
		return readResult(uri, DefaultContentType, "Resource not found: "+uri), OutcomeUnknown, err
	}
	if d.limiter != nil {
		if err := d.limiter.Allow(MethodReadResource); err != nil {
			return readResult(uri, DefaultContentType, "Error: "+err.Error()), OutcomeRateLimited, err
		}
	}
	text, err := invokeResolver(ctx, spec, uri)
	if err != nil {
		return readResult(uri, DefaultContentType, "Error: "+err.Error()), OutcomeFault, &ResourceError{URI: uri, Err: err}
	}
	return readResult(uri, spec.ContentType, text), OutcomeOK, nil
}

// invokeTool and invokeResolver are the only places handler code runs.
// A panic is converted to an error.

func invokeTool(ctx context.Context, spec ToolSpec, args Arguments) (res *CallResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &panicError{value: r}
		}
	}()
	return spec.Handler(ctx, args)
}

func invokeResolver(ctx context.Context, spec ResourceSpec, uri string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", &panicError{value: r}
		}
	}()
	return spec.Resolver(ctx, uri)
}
