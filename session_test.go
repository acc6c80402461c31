package mcpcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func newEchoService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc := NewService("test-server", "1.0.0", opts...)
	err := svc.RegisterTool(ToolSpec{
		Name:        "echo",
		Description: "Echo back the provided text",
		Params:      Schema{{Name: "text", Kind: KindString, Required: true}},
		Handler: func(ctx context.Context, args Arguments) (*CallResult, error) {
			return Text("Echo: " + args.String("text")), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	err = svc.RegisterResource(ResourceSpec{URI: "test://info", Resolver: nopResolver("info")})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	sess := newEchoService(t).NewSession()
	if sess.State() != StateUninitialized {
		t.Fatalf("new session state = %v", sess.State())
	}

	if _, err := sess.CallTool(ctx, "echo", map[string]any{"text": "hi"}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("CallTool before initialize = %v, want ErrNotInitialized", err)
	}
	if _, err := sess.ListTools(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListTools before initialize = %v, want ErrNotInitialized", err)
	}
	if _, err := sess.ListResources(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListResources before initialize = %v, want ErrNotInitialized", err)
	}
	if _, err := sess.ReadResource(ctx, "test://info"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReadResource before initialize = %v, want ErrNotInitialized", err)
	}
	if err := sess.Ping(ctx); err != nil {
		t.Errorf("Ping before initialize: %v", err)
	}

	res, err := sess.Initialize(ctx, &InitializeParams{
		ProtocolVersion: "2024-11-05",
		ClientInfo:      Implementation{Name: "client", Version: "0.1"},
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if res.ProtocolVersion != "2024-11-05" || res.ServerInfo != (Implementation{Name: "test-server", Version: "1.0.0"}) {
		t.Errorf("Initialize result = %+v", res)
	}
	if res.Capabilities.Tools == nil || res.Capabilities.Resources == nil {
		t.Errorf("capabilities = %+v, want tools and resources", res.Capabilities)
	}
	if sess.State() != StateReady || sess.ProtocolVersion() != "2024-11-05" {
		t.Errorf("after Initialize: state %v, version %q", sess.State(), sess.ProtocolVersion())
	}
	if _, err := sess.Initialize(ctx, nil); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Initialize = %v, want ErrAlreadyInitialized", err)
	}

	call, err := sess.CallTool(ctx, "echo", map[string]any{"text": "hi"})
	if err != nil || call.String() != "Echo: hi" {
		t.Errorf("CallTool = %v, %v", call, err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("state after Close = %v", sess.State())
	}

	if _, err := sess.CallTool(ctx, "echo", map[string]any{"text": "hi"}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("CallTool after close = %v, want ErrSessionClosed", err)
	}
	if _, err := sess.ReadResource(ctx, "test://info"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ReadResource after close = %v, want ErrSessionClosed", err)
	}
	if _, err := sess.ListTools(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ListTools after close = %v, want ErrSessionClosed", err)
	}
	if _, err := sess.Initialize(ctx, nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Initialize after close = %v, want ErrSessionClosed", err)
	}
	if err := sess.Ping(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Ping after close = %v, want ErrSessionClosed", err)
	}
	if err := sess.Notify(ctx, MethodInitialized, nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Notify after close = %v, want ErrSessionClosed", err)
	}
}

func TestSessionCloseUninitialized(t *testing.T) {
	sess := newEchoService(t).NewSession()
	sess.Close()
	if _, err := sess.CallTool(context.Background(), "echo", nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("CallTool = %v, want ErrSessionClosed", err)
	}
}

func TestNegotiateVersion(t *testing.T) {
	for requested, want := range map[string]string{
		"2025-06-18": "2025-06-18",
		"2025-03-26": "2025-03-26",
		"2024-11-05": "2024-11-05",
		"2030-01-01": LatestProtocolVersion,
		"":           LatestProtocolVersion,
	} {
		sess := newEchoService(t).NewSession()
		res, err := sess.Initialize(context.Background(), &InitializeParams{ProtocolVersion: requested})
		if err != nil {
			t.Fatal(err)
		}
		if res.ProtocolVersion != want {
			t.Errorf("requested %q: got %q, want %q", requested, res.ProtocolVersion, want)
		}
	}
}

func TestSessionSurvivesFaults(t *testing.T) {
	ctx := context.Background()
	svc := newEchoService(t)
	svc.RegisterTool(ToolSpec{Name: "boom", Handler: func(context.Context, Arguments) (*CallResult, error) {
		var m map[string]int
		m["x"] = 1 // nil map write
		return nil, nil
	}})
	sess := svc.NewSession()
	sess.Initialize(ctx, nil)

	res, err := sess.CallTool(ctx, "boom", nil)
	if err != nil {
		t.Fatalf("CallTool(boom): %v", err)
	}
	if !res.IsError || res.String() != "Error: assignment to entry in nil map" {
		t.Errorf("CallTool(boom) = %+v", res)
	}
	if sess.State() != StateReady {
		t.Fatalf("state after fault = %v", sess.State())
	}
	if res, _ := sess.CallTool(ctx, "echo", map[string]any{"text": "still here"}); res.String() != "Echo: still here" {
		t.Errorf("CallTool after fault = %q", res.String())
	}
}

func TestSessionHandlerRunsUnlocked(t *testing.T) {
	ctx := context.Background()
	svc := NewService("reentrant", "1.0.0")
	var sess *Session
	svc.RegisterTool(ToolSpec{Name: "inspect", Handler: func(ctx context.Context, _ Arguments) (*CallResult, error) {
		// Each of these takes the session lock.
		tools, err := sess.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		return Textf("%s %d %t", sess.State(), len(tools), SessionID(ctx) == sess.ID()), nil
	}})
	svc.RegisterResource(ResourceSpec{URI: "self://state", Resolver: func(ctx context.Context, uri string) (string, error) {
		return sess.State().String(), nil
	}})
	sess = svc.NewSession()
	sess.Initialize(ctx, nil)

	res, err := sess.CallTool(ctx, "inspect", nil)
	if err != nil || res.String() != "ready 1 true" {
		t.Errorf("CallTool(inspect) = %v, %v", res, err)
	}
	read, err := sess.ReadResource(ctx, "self://state")
	if err != nil || read.String() != "ready" {
		t.Errorf("ReadResource = %v, %v", read, err)
	}
}

func TestSessionSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := newEchoService(t)
	early := svc.NewSession()
	early.Initialize(ctx, nil)

	svc.RegisterTool(ToolSpec{Name: "late", Handler: nopTool})
	late := svc.NewSession()
	late.Initialize(ctx, nil)

	if tools, _ := early.ListTools(ctx); len(tools) != 1 {
		t.Errorf("early session sees %d tools, want 1", len(tools))
	}
	if res, _ := early.CallTool(ctx, "late", nil); res.String() != "Unknown tool: late" {
		t.Errorf("early session called late tool: %q", res.String())
	}
	if tools, _ := late.ListTools(ctx); len(tools) != 2 {
		t.Errorf("late session sees %d tools, want 2", len(tools))
	}
	if early.ID() == late.ID() {
		t.Error("sessions share an ID")
	}
}

func TestSessionsInParallel(t *testing.T) {
	svc := newEchoService(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			sess := svc.NewSession()
			defer sess.Close()
			if _, err := sess.Initialize(ctx, nil); err != nil {
				errs <- err
				return
			}
			for j := range 50 {
				text := fmt.Sprintf("%d-%d", i, j)
				res, err := sess.CallTool(ctx, "echo", map[string]any{"text": text})
				if err != nil {
					errs <- err
					return
				}
				if res.String() != "Echo: "+text {
					errs <- fmt.Errorf("got %q for %s", res.String(), text)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSessionRateLimit(t *testing.T) {
	ctx := context.Background()
	svc := newEchoService(t, WithRateLimiting(RateLimitConfig{
		ToolRPS:     map[string]float64{"echo": 0.001},
		ToolBurst:   map[string]int{"echo": 1},
		MethodRPS:   map[string]float64{MethodListTools: 0.001},
		MethodBurst: map[string]int{MethodListTools: 1},
	}))
	sess := svc.NewSession()
	sess.Initialize(ctx, nil)

	if res, _ := sess.CallTool(ctx, "echo", map[string]any{"text": "1"}); res.IsError {
		t.Fatalf("first call limited: %q", res.String())
	}
	res, err := sess.CallTool(ctx, "echo", map[string]any{"text": "2"})
	if err != nil {
		t.Fatalf("limited call returned error %v", err)
	}
	if !res.IsError || res.String() != "Error: rate limit exceeded for tool echo" {
		t.Errorf("limited call = %+v", res)
	}

	if _, err := sess.ListTools(ctx); err != nil {
		t.Fatalf("first ListTools: %v", err)
	}
	if _, err := sess.ListTools(ctx); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second ListTools = %v, want ErrRateLimited", err)
	}

	// Limits are per session.
	other := svc.NewSession()
	other.Initialize(ctx, nil)
	if res, _ := other.CallTool(ctx, "echo", map[string]any{"text": "3"}); res.IsError {
		t.Errorf("fresh session limited: %q", res.String())
	}
}

func TestSessionNotify(t *testing.T) {
	ctx := context.Background()
	var (
		mu  sync.Mutex
		got []string
	)
	record := func(ctx context.Context, method string, params json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, method+" "+string(params)+" "+fmt.Sprint(SessionID(ctx) != ""))
		return nil
	}
	svc := newEchoService(t, WithNotificationHandler(MethodInitialized, record))
	svc.Handle(MethodCancelled, record)
	svc.Handle(MethodCancelled, func(context.Context, string, json.RawMessage) error {
		return errors.New("cannot cancel")
	})

	sess := svc.NewSession()
	if err := sess.Notify(ctx, MethodInitialized, nil); err != nil {
		t.Errorf("Notify(initialized): %v", err)
	}
	if err := sess.Notify(ctx, "notifications/unknown", json.RawMessage(`{}`)); err != nil {
		t.Errorf("Notify(unknown): %v", err)
	}
	err := sess.Notify(ctx, MethodCancelled, json.RawMessage(`{"requestId":1}`))
	if err == nil || err.Error() != "handler error: cannot cancel" {
		t.Errorf("Notify(cancelled) = %v", err)
	}

	want := []string{
		MethodInitialized + "  true",
		MethodCancelled + ` {"requestId":1} true`,
	}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("handlers saw %q, want %q", got, want)
	}
}

func TestSessionObserver(t *testing.T) {
	ctx := context.Background()
	obs := &recorder{}
	sess := newEchoService(t, WithObserver(obs)).NewSession()
	sess.Initialize(ctx, nil)
	sess.CallTool(ctx, "echo", map[string]any{"text": "x"})
	sess.ReadResource(ctx, "test://info")

	if len(obs.tools) != 1 || obs.tools[0].Session != sess.ID() || obs.tools[0].Outcome != OutcomeOK {
		t.Errorf("tool events = %+v", obs.tools)
	}
	if len(obs.reads) != 1 || obs.reads[0].Session != sess.ID() || obs.reads[0].URI != "test://info" {
		t.Errorf("read events = %+v", obs.reads)
	}
}

func TestServiceInstructions(t *testing.T) {
	sess := newEchoService(t, WithInstructions("Use echo to test.")).NewSession()
	res, err := sess.Initialize(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Instructions != "Use echo to test." {
		t.Errorf("Instructions = %q", res.Instructions)
	}
}
