// Command admin-token prints a bearer token for POST /api/rounds/start.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"numbers-game-backend/internal/services"
)

var CLI struct {
	Secret  string        `env:"ADMIN_JWT_SECRET" required:"" help:"HMAC secret shared with the server"`
	Subject string        `short:"s" default:"operator" help:"Operator name recorded in the token"`
	TTL     time.Duration `short:"t" default:"1h" help:"Token lifetime"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Description("Issue an operator token for round control."),
	)

	token, err := services.NewJWTService(CLI.Secret).GenerateToken(CLI.Subject, CLI.TTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		ctx.Exit(1)
	}

	fmt.Println(token)
}
