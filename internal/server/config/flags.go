package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/sealpost/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-i string   key server id
//	-a string   gRPC bind address (e.g., ":50051")
//	-p string   letter program id
//	-o string   policy object id
//	-n string   ledger database driver ("pgx" or "sqlite")
//	-d string   ledger database DSN
//	-k string   private key file
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-i", "-a", "-p", "-o", "-n", "-d", "-k", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerID, "i", config.ServerID, "key server id")
	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.ProgramID, "p", config.ProgramID, "letter program id")
	fs.StringVar(&config.PolicyObjectID, "o", config.PolicyObjectID, "policy object id")
	fs.StringVar(&config.DatabaseDriver, "n", config.DatabaseDriver, "ledger database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "ledger database DSN")
	fs.StringVar(&config.KeyFile, "k", config.KeyFile, "private key file")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
