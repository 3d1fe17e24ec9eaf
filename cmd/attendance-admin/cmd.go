package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/noah-isme/attendance-api/internal/models"
)

const minPasswordLength = 6

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type adminUpserter interface {
	UpsertAdmin(ctx context.Context, user *models.User) error
}

type migrateFunc func(ctx context.Context) ([]string, error)

type commandLine struct {
	users   adminUpserter
	migrate migrateFunc
	logger  *zap.Logger
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate - apply pending database migrations")
	fmt.Fprintln(cli.out, "  createadmin -username USERNAME -email EMAIL - create or reset an admin account")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	createAdminCmd.SetOutput(cli.out)
	createAdminUname := createAdminCmd.String("username", "", "The admin's username. The password will be prompted next.")
	createAdminEmail := createAdminCmd.String("email", "", "The admin's email address.")

	switch args[1] {
	case "migrate":
		applied, err := cli.migrate(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cli.out, "database is up to date")
			return nil
		}
		fmt.Fprintf(cli.out, "applied %s\n", strings.Join(applied, ", "))
		return nil
	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		username := strings.TrimSpace(*createAdminUname)
		email := strings.TrimSpace(*createAdminEmail)
		if username == "" || email == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) < minPasswordLength {
			return fmt.Errorf("password must be at least %d characters", minPasswordLength)
		}
		return cli.createAdmin(ctx, username, email, string(pwd))
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) createAdmin(ctx context.Context, username, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{Username: username, Email: email, PasswordHash: string(hash)}
	if err := cli.users.UpsertAdmin(ctx, user); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	cli.logger.Info("admin account ready", zap.String("username", username), zap.String("user_id", user.ID))
	fmt.Fprintf(cli.out, "admin %q ready\n", username)
	return nil
}
