package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ben-ranford/noderesolve/internal/app"
)

type fakeRunner struct {
	output  string
	err     error
	lastReq app.Request
}

type failWriter struct{}
type failOnNthWrite struct {
	n     int
	count int
}

func (f *fakeRunner) Execute(_ context.Context, req app.Request) (string, error) {
	f.lastReq = req
	return f.output, f.err
}

func (*failWriter) Write([]byte) (int, error) {
	return 0, errors.New("write failed")
}

func (w *failOnNthWrite) Write(b []byte) (int, error) {
	w.count++
	if w.count == w.n {
		return 0, errors.New("write failed")
	}
	return len(b), nil
}

var resolveArgs = []string{"resolve", "lodash"}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	c := New(&fakeRunner{}, &out, &errOut)
	if code := c.Run(context.Background(), []string{"--help"}); code != 0 {
		t.Fatalf("expected code 0, got %d", code)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("expected usage output")
	}
}

func TestRunHelpWriterFailure(t *testing.T) {
	c := New(&fakeRunner{}, &failWriter{}, &bytes.Buffer{})
	if code := c.Run(context.Background(), []string{"--help"}); code != 1 {
		t.Fatalf("expected help writer failure to return code 1, got %d", code)
	}
}

func TestRunParseError(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	c := New(&fakeRunner{}, &out, &errOut)
	if code := c.Run(context.Background(), []string{"nope"}); code != 2 {
		t.Fatalf("expected parse error code 2, got %d", code)
	}
	if !strings.Contains(errOut.String(), "unknown command") || !strings.Contains(errOut.String(), "Usage:") {
		t.Fatalf("expected parse error output, got %q", errOut.String())
	}
}

func TestRunParseErrorWriterFailures(t *testing.T) {
	for _, n := range []int{1, 2} {
		c := New(&fakeRunner{}, &bytes.Buffer{}, &failOnNthWrite{n: n})
		if code := c.Run(context.Background(), []string{"nope"}); code != 1 {
			t.Fatalf("expected write %d failure to return code 1, got %d", n, code)
		}
	}
}

func TestRunExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", want: 0},
		{name: "unresolved", err: app.ErrUnresolved, want: 3},
		{name: "wrapped unresolved", err: errors.Join(errors.New("batch"), app.ErrUnresolved), want: 3},
		{name: "runtime", err: errors.New("boom"), want: 1},
		{name: "canceled", err: context.Canceled, want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var errOut bytes.Buffer
			c := New(&fakeRunner{err: tc.err}, &bytes.Buffer{}, &errOut)
			if code := c.Run(context.Background(), resolveArgs); code != tc.want {
				t.Fatalf("expected exit code %d, got %d", tc.want, code)
			}
			if tc.err != nil && !strings.Contains(errOut.String(), tc.err.Error()) {
				t.Fatalf("expected runner error on stderr, got %q", errOut.String())
			}
		})
	}
}

func TestRunPrintsOutputBeforeUnresolvedError(t *testing.T) {
	var out bytes.Buffer
	c := New(&fakeRunner{output: "report", err: app.ErrUnresolved}, &out, &bytes.Buffer{})
	if code := c.Run(context.Background(), resolveArgs); code != 3 {
		t.Fatalf("expected code 3, got %d", code)
	}
	if out.String() != "report\n" {
		t.Fatalf("expected report on stdout, got %q", out.String())
	}
}

func TestRunForwardsParsedRequest(t *testing.T) {
	runner := &fakeRunner{output: "ok\n"}
	var out bytes.Buffer
	c := New(runner, &out, &bytes.Buffer{})
	if code := c.Run(context.Background(), []string{"load", "__optional-peer-dep:vue:ui"}); code != 0 {
		t.Fatalf("expected code 0, got %d", code)
	}
	if runner.lastReq.Mode != app.ModeLoad || runner.lastReq.Load.ID != "__optional-peer-dep:vue:ui" {
		t.Fatalf("unexpected forwarded request %#v", runner.lastReq)
	}
	if out.String() != "ok\n" {
		t.Fatalf("expected output without extra newline, got %q", out.String())
	}
}

func TestRunOutputWriterFailure(t *testing.T) {
	c := New(&fakeRunner{output: "ok"}, &failWriter{}, &bytes.Buffer{})
	if code := c.Run(context.Background(), resolveArgs); code != 1 {
		t.Fatalf("expected output writer failure to return code 1, got %d", code)
	}
}

func TestUsageReturnsText(t *testing.T) {
	if !strings.Contains(Usage(), "noderesolve resolve") || !strings.Contains(Usage(), "noderesolve load") {
		t.Fatalf("expected usage text to include both commands")
	}
}
