// Command provision manages administrator accounts outside the web login
// flow: bootstrap the first super admin, reset a password, deactivate.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bistro/auth/internal/config"
	"bistro/auth/internal/database"
	"bistro/auth/internal/log"
	"bistro/auth/internal/models"
	"bistro/auth/internal/service"
)

const passwordEnv = "BISTRO_PROVISION_PASSWORD"

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  provision create -email EMAIL -name NAME [-role admin|super_admin] [-password PASSWORD]
  provision set-password -id ACCOUNT_ID [-password PASSWORD]
  provision deactivate -id ACCOUNT_ID

The password may also be supplied through %s.
`, passwordEnv)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("service", "provision").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	reaper := service.NewReaper(store, cfg.Reaper.Retention, cfg.Database.QueryTimeout, logger)
	accounts := service.NewAccountService(store, reaper, logger)

	if err := run(ctx, accounts, os.Args[1], os.Args[2:]); err != nil {
		logger.Error().Err(err).Str("command", os.Args[1]).Msg("provision failed")
		store.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, accounts *service.AccountService, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", string(models.AdminRoleAdmin), "admin or super_admin")
	id := fs.String("id", "", "account id")
	password := fs.String("password", "", "password (prefer "+passwordEnv+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := *password
	if secret == "" {
		secret = os.Getenv(passwordEnv)
	}

	switch command {
	case "create":
		identity, err := accounts.Create(ctx, service.CreateAccountInput{
			Email:    *email,
			Name:     *name,
			Password: secret,
			Role:     models.AdminRole(*role),
		})
		if err != nil {
			return err
		}
		fmt.Println(identity.ID)
	case "set-password":
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		n, err := accounts.ChangePassword(ctx, *id, secret)
		if err != nil {
			return err
		}
		fmt.Printf("password updated, %d sessions revoked\n", n)
	case "deactivate":
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		n, err := accounts.Deactivate(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Printf("account deactivated, %d sessions revoked\n", n)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
