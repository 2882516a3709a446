package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/costscope/costscope/internal/config"
	"github.com/costscope/costscope/internal/service"
)

// runAdmin dispatches admin subcommands (hash-token, list-principals).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "hash-token":
		return runAdminHashToken(args[1:])
	case "list-principals":
		return runAdminListPrincipals(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: costscope admin <command> [options]

Commands:
  hash-token        Hash a bearer token for the principals file
  list-principals   List principals from the principals file
  help              Show this help message

Examples:
  costscope admin hash-token
  costscope admin hash-token --token s3cret
  costscope admin list-principals --file principals.yaml
`)
}

func runAdminHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	token := fs.String("token", "", "token to hash (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw := *token
	if raw == "" {
		var err error
		raw, err = promptSecret("Token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		confirm, err := promptSecret("Confirm token: ")
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		if raw != confirm {
			return fmt.Errorf("tokens do not match")
		}
	}
	if raw == "" {
		return fmt.Errorf("token must not be empty")
	}

	hash, err := service.HashToken(raw)
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}
	fmt.Println(hash)
	return nil
}

func runAdminListPrincipals(args []string) error {
	fs := flag.NewFlagSet("list-principals", flag.ContinueOnError)
	file := fs.String("file", "", "principals file (defaults to configured path)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *file
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Auth.PrincipalsFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read principals file: %w", err)
	}

	var doc struct {
		Principals []struct {
			ID            string   `yaml:"id"`
			Name          string   `yaml:"name"`
			Organizations []int64  `yaml:"organizations"`
			Roles         []string `yaml:"roles"`
		} `yaml:"principals"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse principals file: %w", err)
	}

	if len(doc.Principals) == 0 {
		fmt.Println("No principals found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tORGANIZATIONS\tROLES")
	for i := range doc.Principals {
		p := doc.Principals[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%v\n", p.ID, p.Name, p.Organizations, p.Roles)
	}
	return w.Flush()
}

// ensureCredentials prompts for the upstream password when it is absent from
// both config file and environment, so the secret never has to live on disk.
func ensureCredentials(cfg *config.Upstream) error {
	if cfg.Password != "" {
		return nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return fmt.Errorf("upstream password not configured and stdin is not a terminal")
	}
	pass, err := promptSecret(fmt.Sprintf("Upstream password for %s: ", cfg.Username))
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if pass == "" {
		return fmt.Errorf("upstream password must not be empty")
	}
	cfg.Password = pass
	return nil
}

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
