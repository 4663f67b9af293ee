package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Neskrux/CrmInvest-sub003/internal/boleto"
)

func TestReportExitCodes(t *testing.T) {
	log := zaptest.NewLogger(t)
	cases := []struct {
		name string
		res  *boleto.BatchResult
		err  error
		want int
	}{
		{"completed with failures", &boleto.BatchResult{Sent: 1, Failed: 3}, nil, exitOK},
		{"validation", nil, &boleto.ValidationError{Field: "dayOffset", Reason: "x"}, exitFailed},
		{"in progress", nil, boleto.ErrRunInProgress, exitFailed},
		{"selection", nil, errors.New("db down"), exitFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := report(&buf, log, tc.res, tc.err); got != tc.want {
				t.Fatalf("exit %d, want %d", got, tc.want)
			}
			var out map[string]any
			if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
				t.Fatalf("output is not json: %q", buf.String())
			}
		})
	}
}

func TestRunRejectsBadOffsetAsValidationFailure(t *testing.T) {
	for _, args := range [][]string{nil, {"tres"}, {"7"}, {"2"}, {"1", "3"}} {
		var buf bytes.Buffer
		if got := run(args, &buf); got != exitFailed {
			t.Fatalf("run(%q): exit %d, want %d", args, got, exitFailed)
		}
		var out struct {
			Status int    `json:"status"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("run(%q) output is not json: %q", args, buf.String())
		}
		if out.Status != 400 || !strings.Contains(out.Error, "dayOffset") {
			t.Fatalf("run(%q) = %+v", args, out)
		}
	}
}
