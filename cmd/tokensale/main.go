// tokensale: Merkle-whitelisted token sale host
//
// This is the main entry point for the sale host. It runs the instruction
// engine over a persistent account store, records receipts to the ledger,
// and serves the JSON-RPC query surface. The whitelist subcommand builds
// Merkle roots and membership proofs from a key file offline.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fortiblox/x1-tokensale/internal/types"
	"github.com/fortiblox/x1-tokensale/pkg/accounts"
	"github.com/fortiblox/x1-tokensale/pkg/ledger"
	"github.com/fortiblox/x1-tokensale/pkg/merkle"
	"github.com/fortiblox/x1-tokensale/pkg/rpc"
	"github.com/fortiblox/x1-tokensale/pkg/runtime"
)

// Version information
var (
	Version   = rpc.Version
	GitCommit = "dev"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tokensale <command> [flags]

Commands:
  run        start the sale host (account store, ledger, JSON-RPC)
  whitelist  compute the Merkle root and proofs for a whitelist key file
  snapshot   write a snapshot of the account store
  restore    load a snapshot into the account store
  version    print version and exit

Run 'tokensale <command> -h' for command flags.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "whitelist":
		err = whitelistCmd(os.Args[2:])
	case "snapshot":
		err = snapshotCmd(os.Args[2:])
	case "restore":
		err = restoreCmd(os.Args[2:])
	case "version":
		fmt.Printf("tokensale %s (%s)\n", Version, GitCommit)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("tokensale %s: %v", os.Args[1], err)
	}
}

// runCmd starts the sale host and blocks until a shutdown signal.
func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	dataDir := fs.String("data-dir", "tokensale-data", "Data directory for the account store and ledger")
	rpcAddr := fs.String("rpc-addr", ":8899", "RPC server listen address")
	logRequests := fs.Bool("log-requests", false, "Log RPC requests")
	syncWrites := fs.Bool("sync-writes", false, "Sync account store writes to disk")
	fs.Parse(args)

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	log.Printf("Starting tokensale %s", Version)

	dbConfig := accounts.DefaultBadgerDBConfig(filepath.Join(*dataDir, "accounts"))
	dbConfig.SyncWrites = *syncWrites
	db, err := accounts.NewBadgerDB(dbConfig)
	if err != nil {
		return fmt.Errorf("open account store: %w", err)
	}
	defer db.Close()

	ld, err := ledger.Open(ledger.DefaultConfig(filepath.Join(*dataDir, "ledger.db")))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ld.Close()

	rt := runtime.New(runtime.DefaultConfig(), db, ld)
	log.Printf("Program %s at slot %d, %d receipts", rt.ProgramID(), rt.Slot(), ld.Count())

	rpcConfig := rpc.DefaultConfig()
	rpcConfig.Addr = *rpcAddr
	rpcConfig.LogRequests = *logRequests
	server := rpc.New(rpcConfig, &rpc.HostBackend{DB: db, Runtime: rt, Ledger: ld})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("RPC server listening on %s", *rpcAddr)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("rpc server: %w", err)
	}

	log.Println("tokensale stopped")
	return nil
}

// whitelistCmd builds the Merkle tree for a key file and prints the root,
// plus a membership proof when -prove is given.
func whitelistCmd(args []string) error {
	fs := flag.NewFlagSet("whitelist", flag.ExitOnError)
	keysPath := fs.String("keys", "", "File with one base58 buyer address per line")
	prove := fs.String("prove", "", "Print a membership proof for this address")
	fs.Parse(args)

	if *keysPath == "" {
		return fmt.Errorf("-keys is required")
	}

	pubkeys, err := readKeyFile(*keysPath)
	if err != nil {
		return err
	}
	if len(pubkeys) == 0 {
		return fmt.Errorf("%s: no addresses", *keysPath)
	}

	tree := merkle.NewTreeFromPubkeys(pubkeys)
	fmt.Printf("members: %d\n", tree.Len())
	fmt.Printf("root: %s\n", tree.Root())

	if *prove != "" {
		addr, err := types.PubkeyFromBase58(*prove)
		if err != nil {
			return fmt.Errorf("prove address: %w", err)
		}
		proof, err := tree.ProvePubkey(addr)
		if err != nil {
			return fmt.Errorf("prove %s: %w", addr, err)
		}
		for _, node := range proof {
			side := "L"
			if node.Side == merkle.SideRight {
				side = "R"
			}
			fmt.Printf("%s %s\n", side, node.Data)
		}
	}
	return nil
}

// snapshotCmd writes the full account state to a snapshot file.
func snapshotCmd(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data-dir", "tokensale-data", "Data directory for the account store")
	out := fs.String("out", "", "Snapshot output path")
	fs.Parse(args)

	if *out == "" {
		return fmt.Errorf("-out is required")
	}

	db, err := accounts.NewBadgerDB(accounts.DefaultBadgerDBConfig(filepath.Join(*dataDir, "accounts")))
	if err != nil {
		return fmt.Errorf("open account store: %w", err)
	}
	defer db.Close()

	if err := accounts.WriteSnapshot(db, *out); err != nil {
		return err
	}

	count, _ := db.AccountsCount()
	log.Printf("Wrote snapshot of %d accounts at slot %d to %s", count, db.GetSlot(), *out)
	return nil
}

// restoreCmd loads a snapshot file into the account store.
func restoreCmd(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	dataDir := fs.String("data-dir", "tokensale-data", "Data directory for the account store")
	in := fs.String("in", "", "Snapshot input path")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := accounts.NewBadgerDB(accounts.DefaultBadgerDBConfig(filepath.Join(*dataDir, "accounts")))
	if err != nil {
		return fmt.Errorf("open account store: %w", err)
	}
	defer db.Close()

	header, err := accounts.LoadSnapshot(db, *in)
	if err != nil {
		return err
	}

	log.Printf("Restored %d accounts at slot %d from %s", header.AccountsCount, header.Slot, *in)
	return nil
}

// readKeyFile parses one base58 address per line, skipping blanks and
// # comments.
func readKeyFile(path string) ([]types.Pubkey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pubkeys []types.Pubkey
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		pubkey, err := types.PubkeyFromBase58(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		pubkeys = append(pubkeys, pubkey)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pubkeys, nil
}
