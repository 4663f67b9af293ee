package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/boleto"
	"github.com/Neskrux/CrmInvest-sub003/internal/bootstrap"
	pkg "github.com/Neskrux/CrmInvest-sub003/pkg/routes"
)

const (
	exitOK     = 0
	exitFailed = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// parseOffset rejects the argument the same way the HTTP endpoint rejects a
// bad body, so both surface as a ValidationError.
func parseOffset(args []string) (int, error) {
	if len(args) != 1 {
		return 0, &boleto.ValidationError{Field: "dayOffset", Reason: "usage: boleto-job <dayOffset>"}
	}
	offset, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, &boleto.ValidationError{Field: "dayOffset", Reason: fmt.Sprintf("not an integer: %q", args[0])}
	}
	if _, err := boleto.KindForOffset(offset); err != nil {
		return 0, err
	}
	return offset, nil
}

func run(args []string, stdout io.Writer) int {
	offset, err := parseOffset(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return report(stdout, zap.NewNop(), nil, err)
	}
	bootstrap.Loadenv()

	var (
		svc *boleto.Service
		log *zap.Logger
	)
	app := fx.New(
		pkg.CoreModules,
		pkg.WithZap,
		fx.Populate(&svc, &log),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	res, err := svc.Run(context.Background(), offset)
	return report(stdout, log, res, err)
}
