// Package custodygrant generates grant keys and signs actor grants for the
// custody service.
package custodygrant

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/grant"
)

const usage = "usage: custody-grant keygen | issue -user ID -role USER|MANAGER|ADMIN [-ttl 12h]"

// Run dispatches the keygen and issue subcommands. Issue reads the signing
// key from the CUSTODY_GRANT_* environment.
func Run(args []string, out io.Writer, reader io.Reader, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "keygen":
		return Keygen(out, reader)
	case "issue":
		cfg, err := grant.LoadSignerConfigFromEnv(now)
		if err != nil {
			return err
		}
		return Issue(out, args[1:], cfg)
	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
}

// Keygen generates a grant key pair and writes shell exports.
func Keygen(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate grant key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", grant.EnvPrivateKey, grant.EncodeKey(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", grant.EnvPublicKey, grant.EncodeKey(publicKey)); err != nil {
		return err
	}
	return nil
}

// Issue parses issue flags and writes one signed grant.
func Issue(out io.Writer, args []string, cfg grant.SignerConfig) error {
	if out == nil {
		return errors.New("output is required")
	}
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userID := fs.String("user", "", "user id carried by the grant")
	role := fs.String("role", string(domain.PrivilegeUser), "privilege: USER, MANAGER or ADMIN")
	ttl := fs.Duration("ttl", grant.DefaultTTL, "grant lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse issue flags: %w", err)
	}

	privilege, ok := domain.ParsePrivilege(strings.ToUpper(strings.TrimSpace(*role)))
	if !ok {
		return fmt.Errorf("role %q is invalid", *role)
	}
	token, err := grant.Issue(cfg, domain.Actor{ID: strings.TrimSpace(*userID), Privilege: privilege}, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
