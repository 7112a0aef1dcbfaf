// Command issuetoken is an operator tool to bootstrap peercash:
//
//	issuetoken secret
//	issuetoken token --user-id <uuid> [--role admin] [--ttl 24h]
//
// Tokens are signed with SECRET_KEY (env, '.env' file or --secret-key flag).
package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/service/auth/tokenmanager"
)

const SecretKeyBytesLen = 32

func main() {
	// '.env' is optional, real environment wins
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "issuetoken: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("command required: secret or token")
	}

	switch args[0] {
	case "secret":
		return generateSecret(out)
	case "token":
		return issueToken(args[1:], getenv, out)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func generateSecret(out io.Writer) error {
	b := make([]byte, SecretKeyBytesLen)

	_, err := rand.Read(b)
	if err != nil {
		return fmt.Errorf("error while generating secret key: %w", err)
	}

	_, err = fmt.Fprintln(out, hex.EncodeToString(b))
	return err
}

func issueToken(args []string, getenv func(string) string, out io.Writer) error {
	var (
		userID    string
		role      string
		secretKey string
		ttl       time.Duration
	)

	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	fs.StringVarP(&userID, "user-id", "u", "", "Account id of the principal")
	fs.StringVarP(&role, "role", "r", string(models.RoleUser), "Principal role (user, admin)")
	fs.StringVarP(&secretKey, "secret-key", "s", getenv("SECRET_KEY"), "Secret key to sign token")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	r := models.Role(role)
	if r != models.RoleUser && r != models.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}

	m, err := tokenmanager.New(tokenmanager.Config{SecretKey: secretKey, AccessTTL: ttl})
	if err != nil {
		return err
	}

	issued, err := m.Issue(models.Principal{ID: id, Role: r})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, issued.Value)
	return err
}
