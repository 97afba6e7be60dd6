// arbor loads, queries and edits a DynamoDB table from the command line.
//
// # Commands
//
//	arbor tables                          List tables
//	arbor create-table                    Create the configured table
//	arbor load <file|->                   Bulk-insert a JSON array of records
//	arbor query [--from A --to B] <pk>    Rows in one partition, in sort key order
//	arbor scan <low> <high>               Rows whose partition key is in [low, high]
//	arbor update <pk> [sk] <field> <json> Set one attribute on a row
//	arbor delete <pk> [sk]                Delete a row
//
// Flags go before positional arguments. Output is JSON on stdout; logs go to
// stderr.
//
// # Backends
//
// By default arbor talks to DynamoDB using the standard AWS configuration
// chain. Point it at DynamoDB Local with --endpoint http://localhost:8000, or
// skip DynamoDB entirely:
//
//	arbor load --local ./data moviedata.json
//	arbor query --memory 2013
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Printf("arbor version %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cmd, os.Args[2:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintf(os.Stderr, "arbor: unknown command %q\n\n", cmd)
			printUsage()
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "arbor %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`arbor - DynamoDB table loader and query tool

Usage:
  arbor <command> [flags] [args]

Commands:
  tables                           List tables
  create-table                     Create the configured table
  load <file|->                    Bulk-insert a JSON array of records
  query <partition>                Rows in one partition (--from/--to bound the sort key)
  scan <low> <high>                Rows whose partition key lies in [low, high]
  update <pk> [sk] <field> <json>  Set one attribute on a row
  delete <pk> [sk]                 Delete a row

Common flags:
  --config path    arbor.yaml to use (default: search upwards)
  --local dir      store data in a local badger directory
  --memory         store data in memory (lost on exit)
  --endpoint url   DynamoDB endpoint, e.g. http://localhost:8000
  --region name    AWS region
  --table name     table name
  --v              debug logging

Configuration (optional):
  arbor.yaml is read from the working directory or any parent:

    table:
      tableName: Movies
      schema:
        partitionKey: {name: year, type: N}
        sortKey: {name: title, type: S}
      batchSize: 25
      maxRetries: 3
    dynamodb:
      region: us-east-1
      endpoint: http://localhost:8000

  ARBOR_TABLE, ARBOR_ENDPOINT, ARBOR_REGION and ARBOR_LOCAL_PATH override the file.`)
}
