package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rickgao/prosper-api/internal/apikey"
	"github.com/rickgao/prosper-api/internal/app"
	"github.com/rickgao/prosper-api/internal/config"
	"github.com/rickgao/prosper-api/internal/database"
)

const usage = `usage: manageapi [-config path] [-env path] <command> [flags]

commands:
  create [-user name] [-info text]   issue a new api key
  revoke -key key                    revoke an api key
  list                               list issued keys
`

func main() {
	configPath := flag.String("config", "configs/publicapi.local.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.LoadEnv(*envPath); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.ConnectSQL(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := apikey.NewStore(db, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare api_keys", "error", err)
		os.Exit(1)
	}

	if err := dispatch(ctx, store, flag.Args(), os.Stdin, os.Stdout); err != nil {
		logger.Error("manageapi failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

// keyStore is the part of *apikey.Store the commands use.
type keyStore interface {
	Create(ctx context.Context, userName, userInfo string) (*apikey.Key, error)
	Revoke(ctx context.Context, key string) error
	List(ctx context.Context) ([]apikey.Key, error)
}

func dispatch(ctx context.Context, store keyStore, args []string, in io.Reader, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return createKey(ctx, store, rest, in, out)
	case "revoke":
		return revokeKey(ctx, store, rest, out)
	case "list":
		return listKeys(ctx, store, out)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func createKey(ctx context.Context, store keyStore, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	user := fs.String("user", "", "user name the key is issued to")
	info := fs.String("info", "", "contact or identifying info")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(in)
	if *user == "" {
		*user = prompt(reader, out, "user name: ")
	}
	if *user == "" {
		return fmt.Errorf("user name is required")
	}
	if *info == "" {
		*info = prompt(reader, out, "id info: ")
	}

	key, err := store.Create(ctx, *user, *info)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "api key for %s: %s\n", key.UserName, key.APIKey)
	return nil
}

func revokeKey(ctx context.Context, store keyStore, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	key := fs.String("key", "", "api key to revoke")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("-key is required")
	}

	if err := store.Revoke(ctx, *key); err != nil {
		return err
	}
	fmt.Fprintf(out, "revoked %s\n", *key)
	return nil
}

func listKeys(ctx context.Context, store keyStore, out io.Writer) error {
	keys, err := store.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tUSER\tINFO\tGENERATED\tLAST ACCESSED\tREVOKED")
	for _, k := range keys {
		last := "-"
		if k.LastAccessed.Valid {
			last = k.LastAccessed.Time.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n",
			k.APIKey, k.UserName, k.UserInfo,
			k.KeyGenerated.UTC().Format(time.RFC3339), last, k.Revoked)
	}
	return tw.Flush()
}

func prompt(r *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}
