package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/Neskrux/CrmInvest-sub003/internal/auth"
	"github.com/Neskrux/CrmInvest-sub003/internal/bootstrap"
	"github.com/Neskrux/CrmInvest-sub003/internal/config"
	pkg "github.com/Neskrux/CrmInvest-sub003/pkg/routes"
)

func main() {
	bootstrap.Loadenv()
	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(issueToken(os.Args[2:]))
	}

	app := fx.New(
		pkg.CoreModules,
		pkg.EchoModules,
		pkg.WithZap,
	)
	app.Run()
}

// issueToken prints a signed token for an external scheduler or an operator.
func issueToken(args []string) int {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	subject := fs.String("sub", "scheduler", "token subject")
	role := fs.String("role", auth.RoleScheduler, "role granted to the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	httpCfg, err := config.LoadHTTP()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	tok, err := auth.GenerateJWT([]byte(httpCfg.JWTKey), *subject, "", *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(tok)
	return 0
}
