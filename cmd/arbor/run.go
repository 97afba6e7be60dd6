package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jacentio/arbor/dynamo"
	"github.com/jacentio/arbor/localstore"
	"github.com/jacentio/arbor/store"
)

var errUnknownCommand = errors.New("unknown command")

var commands = map[string]bool{
	"tables":       true,
	"create-table": true,
	"load":         true,
	"query":        true,
	"scan":         true,
	"update":       true,
	"delete":       true,
}

type commandFlags struct {
	configPath string
	localPath  string
	memory     bool
	endpoint   string
	region     string
	table      string
	verbose    bool

	from   string
	to     string
	fields string
}

// apply lets command-line flags override the file and environment.
func (f commandFlags) apply(cfg *FileConfig) {
	if f.localPath != "" {
		cfg.LocalPath = f.localPath
	}
	if f.endpoint != "" {
		cfg.DynamoDB.Endpoint = f.endpoint
	}
	if f.region != "" {
		cfg.DynamoDB.Region = f.region
	}
	if f.table != "" {
		cfg.Table.TableName = f.table
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

// run parses flags for cmd, opens the configured backend and executes cmd.
func run(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	if !commands[cmd] {
		return errUnknownCommand
	}

	fs := flag.NewFlagSet("arbor "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f commandFlags
	fs.StringVar(&f.configPath, "config", "", "path to arbor.yaml")
	fs.StringVar(&f.localPath, "local", "", "badger directory to use instead of DynamoDB")
	fs.BoolVar(&f.memory, "memory", false, "use an in-memory store")
	fs.StringVar(&f.endpoint, "endpoint", "", "DynamoDB endpoint URL")
	fs.StringVar(&f.region, "region", "", "AWS region")
	fs.StringVar(&f.table, "table", "", "table name")
	fs.BoolVar(&f.verbose, "v", false, "log at debug level")
	switch cmd {
	case "query":
		fs.StringVar(&f.from, "from", "", "lowest sort key to return")
		fs.StringVar(&f.to, "to", "", "highest sort key to return")
		fallthrough
	case "scan":
		fs.StringVar(&f.fields, "fields", "", "comma-separated attributes to return besides the key")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadFileConfig(f.configPath)
	if err != nil {
		return err
	}
	cfg.applyEnv(os.Getenv)
	f.apply(&cfg)

	logger := newLogger(stderr, cfg.LogLevel)

	s, closeStore, err := openStore(ctx, cfg, f.memory, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	table, err := store.New(s, cfg.Table, store.WithLogger(logger))
	if err != nil {
		return err
	}

	a := &app{table: table, out: stdout}
	return a.dispatch(ctx, cmd, f, fs.Args())
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// openStore returns the local badger store when memory or cfg.LocalPath asks
// for it, and DynamoDB otherwise.
func openStore(ctx context.Context, cfg FileConfig, memory bool, logger *slog.Logger) (store.Store, func() error, error) {
	if memory || cfg.LocalPath != "" {
		ls, err := localstore.Open(localstore.Options{
			Path:     cfg.LocalPath,
			InMemory: memory,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return ls, ls.Close, nil
	}

	client, err := dynamo.NewClient(ctx, cfg.DynamoDB)
	if err != nil {
		return nil, nil, err
	}
	return dynamo.New(client, dynamo.WithLogger(logger)), func() error { return nil }, nil
}

type app struct {
	table *store.Table
	out   io.Writer
}

func (a *app) dispatch(ctx context.Context, cmd string, f commandFlags, args []string) error {
	switch cmd {
	case "tables":
		if err := wantArgs(args, 0, ""); err != nil {
			return err
		}
		names, err := a.table.ListTables(ctx)
		if err != nil {
			return err
		}
		if names == nil {
			names = []string{}
		}
		return a.print(names)

	case "create-table":
		if err := wantArgs(args, 0, ""); err != nil {
			return err
		}
		if err := a.table.CreateTable(ctx); err != nil {
			return err
		}
		return a.print(map[string]string{"table": a.table.Name(), "status": "created"})

	case "load":
		if err := wantArgs(args, 1, "<file|->"); err != nil {
			return err
		}
		return a.load(ctx, args[0])

	case "query":
		if err := wantArgs(args, 1, "<partition>"); err != nil {
			return err
		}
		return a.query(ctx, f, args[0])

	case "scan":
		if err := wantArgs(args, 2, "<low> <high>"); err != nil {
			return err
		}
		return a.scan(ctx, f, args[0], args[1])

	case "update":
		key, rest, err := a.key(args, 2, "<field> <json>")
		if err != nil {
			return err
		}
		rec, err := a.table.Update(ctx, key, rest[0], parseValue(rest[1]))
		if err != nil {
			return err
		}
		return a.print(rec)

	case "delete":
		key, _, err := a.key(args, 0, "")
		if err != nil {
			return err
		}
		if err := a.table.Delete(ctx, key); err != nil {
			return err
		}
		return a.print(map[string]string{"status": "deleted"})
	}
	return errUnknownCommand
}

type failedReport struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type batchReport struct {
	Outcome string         `json:"outcome"`
	Written int            `json:"written"`
	Failed  []failedReport `json:"failed,omitempty"`
}

func (a *app) load(ctx context.Context, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	result, err := a.table.InsertDocument(ctx, r)
	if err != nil {
		return err
	}

	report := batchReport{Outcome: result.Outcome().String(), Written: result.Written}
	for _, fr := range result.Failed {
		report.Failed = append(report.Failed, failedReport{Index: fr.Index, Error: fr.Err.Error()})
	}
	if err := a.print(report); err != nil {
		return err
	}
	return result.Err()
}

func (a *app) query(ctx context.Context, f commandFlags, partition string) error {
	schema := a.table.Schema()
	pk, err := schema.PartitionKey.Parse(partition)
	if err != nil {
		return err
	}

	opts := projection(f.fields)
	if f.from != "" || f.to != "" {
		if f.from == "" || f.to == "" {
			return errors.New("--from and --to must be given together")
		}
		low, err := schema.SortKey.Parse(f.from)
		if err != nil {
			return err
		}
		high, err := schema.SortKey.Parse(f.to)
		if err != nil {
			return err
		}
		opts = append(opts, store.WithSortRange(low, high))
	}

	result, err := a.table.Query(ctx, pk, opts...)
	if err != nil {
		return err
	}
	return a.print(result.Records)
}

func (a *app) scan(ctx context.Context, f commandFlags, lowText, highText string) error {
	def := a.table.Schema().PartitionKey
	low, err := def.Parse(lowText)
	if err != nil {
		return err
	}
	high, err := def.Parse(highText)
	if err != nil {
		return err
	}

	result, err := a.table.Scan(ctx, low, high, projection(f.fields)...)
	if err != nil {
		return err
	}
	return a.print(result.Records)
}

// key parses the leading key arguments for the table's schema and returns
// the remaining extra arguments.
func (a *app) key(args []string, extra int, usage string) (store.Key, []string, error) {
	schema := a.table.Schema()
	n := 1
	keyUsage := "<pk>"
	if schema.HasSortKey() {
		n = 2
		keyUsage = "<pk> <sk>"
	}
	if err := wantArgs(args, n+extra, strings.TrimSpace(keyUsage+" "+usage)); err != nil {
		return store.Key{}, nil, err
	}

	var key store.Key
	var err error
	if key.Partition, err = schema.PartitionKey.Parse(args[0]); err != nil {
		return store.Key{}, nil, err
	}
	if schema.HasSortKey() {
		if key.Sort, err = schema.SortKey.Parse(args[1]); err != nil {
			return store.Key{}, nil, err
		}
	}
	return key, args[n:], nil
}

func projection(fields string) []store.QueryOption {
	if fields == "" {
		return nil
	}
	var names []string
	for _, name := range strings.Split(fields, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return []store.QueryOption{store.WithProjection(names...)}
}

// parseValue reads text as JSON, falling back to a plain string so that
// `arbor update 2013 Rush note hello` needs no quoting.
func parseValue(text string) store.Value {
	v, err := store.ParseJSON([]byte(text))
	if err != nil {
		return store.String(text)
	}
	return v
}

func wantArgs(args []string, n int, usage string) error {
	if len(args) != n {
		if usage == "" {
			return fmt.Errorf("expected no arguments, got %d", len(args))
		}
		return fmt.Errorf("expected %s, got %d argument(s)", usage, len(args))
	}
	return nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
