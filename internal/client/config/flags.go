package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags. See
// the package documentation for the list.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-k", "-t", "-p", "-o", "-n", "-d", "-b", "-w", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	servers := flagx.StringList(cfg.KeyServers)
	fs.Var(&servers, "k", "key servers (id=host:port, comma separated)")
	fs.IntVar(&cfg.Threshold, "t", cfg.Threshold, "decryption threshold")
	fs.StringVar(&cfg.ProgramID, "p", cfg.ProgramID, "letter program id")
	fs.StringVar(&cfg.PolicyObjectID, "o", cfg.PolicyObjectID, "policy object id")
	fs.StringVar(&cfg.DatabaseDriver, "n", cfg.DatabaseDriver, "ledger database driver")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "ledger database DSN")
	fs.StringVar(&cfg.BlobBackend, "b", cfg.BlobBackend, "blob backend")
	fs.StringVar(&cfg.KeystorePath, "w", cfg.KeystorePath, "wallet keystore path")
	credentialTTL := fs.Int("s", int(cfg.CredentialTTL.Minutes()), "session credential lifetime (in minutes)")
	fs.StringVar(&cfg.Locale, "l", cfg.Locale, "locale")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.KeyServers = []string(servers)
	cfg.CredentialTTL = time.Duration(*credentialTTL) * time.Minute
}
