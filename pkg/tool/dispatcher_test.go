package tool

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()

	err := r.Register(types.Tool{Name: "echo"}, func(ctx context.Context, args string) Result {
		return Result{Success: true, Message: "echoed " + args}
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newTestDispatcher(t *testing.T, r *Registry) *Dispatcher {
	t.Helper()
	d := NewDispatcher(r, nil)
	d.SetRetryDelay(time.Millisecond)
	return d
}

func TestDispatchSuccess(t *testing.T) {
	d := newTestDispatcher(t, testRegistry(t))

	results, execs := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "c1", Name: "echo", Arguments: `{"x":1}`},
	})

	if len(results) != 1 || !results[0].Success {
		t.Fatalf("unexpected results: %+v", results)
	}
	if execs[0].Status != types.ExecutionCompleted || execs[0].Attempts != 1 {
		t.Errorf("unexpected execution: %+v", execs[0])
	}
}

func TestDispatchMalformedArgumentsNoRetry(t *testing.T) {
	calls := 0
	r := NewRegistry()
	r.Register(types.Tool{Name: "counter"}, func(ctx context.Context, args string) Result {
		calls++
		return Result{Success: true}
	})
	d := newTestDispatcher(t, r)

	results, execs := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "c1", Name: "counter", Arguments: `{not json`},
	})

	if results[0].Success {
		t.Error("expected failure for malformed arguments")
	}
	if !strings.Contains(results[0].Error, CodeInvalidArgs) {
		t.Errorf("expected %s in error, got %q", CodeInvalidArgs, results[0].Error)
	}
	if calls != 0 {
		t.Errorf("handler should never run on malformed args, ran %d times", calls)
	}
	if execs[0].Attempts != 1 {
		t.Errorf("unretryable errors record exactly 1 attempt, got %d", execs[0].Attempts)
	}
}

func TestDispatchUnknownToolNoRetry(t *testing.T) {
	d := newTestDispatcher(t, testRegistry(t))

	results, execs := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "c1", Name: "does_not_exist", Arguments: `{}`},
	})

	if results[0].Success {
		t.Error("expected failure for unknown tool")
	}
	if !strings.Contains(results[0].Error, CodeToolNotFound) {
		t.Errorf("expected %s, got %q", CodeToolNotFound, results[0].Error)
	}
	if execs[0].Attempts != 1 {
		t.Errorf("unretryable errors record exactly 1 attempt, got %d", execs[0].Attempts)
	}
}

func TestDispatchRetriesUpToCap(t *testing.T) {
	attempts := 0
	r := NewRegistry()
	r.Register(types.Tool{Name: "flaky"}, func(ctx context.Context, args string) Result {
		attempts++
		return Result{Success: false, Error: "transient failure"}
	})
	d := newTestDispatcher(t, r)

	results, execs := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "c1", Name: "flaky", Arguments: `{}`},
	})

	if attempts != MaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", MaxRetries+1, attempts)
	}
	if execs[0].Status != types.ExecutionFailed || execs[0].Attempts != MaxRetries+1 {
		t.Errorf("unexpected execution: %+v", execs[0])
	}
	if !strings.Contains(results[0].Error, fmt.Sprintf("after %d attempts", MaxRetries+1)) {
		t.Errorf("failure text should note attempt count: %q", results[0].Error)
	}
}

func TestDispatchRecoversOnRetry(t *testing.T) {
	attempts := 0
	r := NewRegistry()
	r.Register(types.Tool{Name: "eventually"}, func(ctx context.Context, args string) Result {
		attempts++
		if attempts < 2 {
			return Result{Success: false, Error: "not yet"}
		}
		return Result{Success: true, Message: "done"}
	})
	d := newTestDispatcher(t, r)

	results, execs := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "c1", Name: "eventually", Arguments: `{}`},
	})

	if !results[0].Success {
		t.Fatalf("expected eventual success: %+v", results[0])
	}
	if !strings.Contains(results[0].Content, "attempt 2") {
		t.Errorf("success content should note the attempt: %q", results[0].Content)
	}
	if execs[0].Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", execs[0].Attempts)
	}
}

func TestDispatchPreservesOrder(t *testing.T) {
	d := newTestDispatcher(t, testRegistry(t))

	calls := []types.ToolCall{
		{ID: "c1", Name: "echo", Arguments: `{"n":1}`},
		{ID: "c2", Name: "missing", Arguments: `{}`},
		{ID: "c3", Name: "echo", Arguments: `{"n":3}`},
	}
	results, _ := d.Dispatch(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, call := range calls {
		if results[i].ToolCallID != call.ID {
			t.Errorf("result %d out of order: %s != %s", i, results[i].ToolCallID, call.ID)
		}
	}
}

func TestDispatchSequentialVisibility(t *testing.T) {
	// A later call in the batch must observe the effect of an earlier one.
	state := map[string]string{}
	r := NewRegistry()
	r.Register(types.Tool{Name: "write"}, func(ctx context.Context, args string) Result {
		state["file"] = "written"
		return Result{Success: true, Message: "wrote"}
	})
	r.Register(types.Tool{Name: "read"}, func(ctx context.Context, args string) Result {
		if state["file"] == "" {
			return Result{Success: false, Error: "file missing"}
		}
		return Result{Success: true, Message: state["file"]}
	})
	d := newTestDispatcher(t, r)

	results, _ := d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "c1", Name: "write", Arguments: `{}`},
		{ID: "c2", Name: "read", Arguments: `{}`},
	})

	if !results[1].Success || results[1].Content != "written" {
		t.Errorf("later call did not observe earlier write: %+v", results[1])
	}
}

func TestOnUpdateObserver(t *testing.T) {
	d := newTestDispatcher(t, testRegistry(t))

	var statuses []types.ExecutionStatus
	d.OnUpdate(func(e *types.ToolExecution) {
		statuses = append(statuses, e.Status)
	})

	d.Dispatch(context.Background(), []types.ToolCall{
		{ID: "c1", Name: "echo", Arguments: `{}`},
	})

	want := []types.ExecutionStatus{types.ExecutionPending, types.ExecutionExecuting, types.ExecutionCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d updates, got %d: %v", len(want), len(statuses), statuses)
	}
	for i, s := range want {
		if statuses[i] != s {
			t.Errorf("update %d: expected %s, got %s", i, s, statuses[i])
		}
	}
}
