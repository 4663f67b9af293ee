package main

import (
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/boleto"
)

// report writes the result as JSON and maps it onto the process exit code
// the same way the HTTP endpoint maps it onto a status.
func report(w io.Writer, log *zap.Logger, res *boleto.BatchResult, runErr error) int {
	status := boleto.StatusFor(runErr)
	if runErr != nil {
		log.Error("boleto job failed", zap.Int("status", status), zap.Error(runErr))
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "error": runErr.Error()})
		return exitFailed
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		log.Error("encode result", zap.Error(err))
	}
	if status < 200 || status > 299 {
		return exitFailed
	}
	return exitOK
}
