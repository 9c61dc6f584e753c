// Package config loads runtime configuration for the sealpost CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-k list     key servers, "id=host:port,id=host:port"
//	-t int      decryption threshold
//	-p string   letter program id
//	-o string   policy object id
//	-n string   ledger database driver ("pgx" or "sqlite")
//	-d string   ledger database DSN
//	-b string   blob backend ("walrus", "s3" or "memory")
//	-w string   wallet keystore path
//	-s int      session credential lifetime (minutes)
//	-l string   locale for countdowns ("en", "zh")
//
// # JSON schema
//
// Durations use timex.Duration, so values can be strings like "10m" or
// integer nanoseconds:
//
//	{
//	  "key_servers": ["ks-1=127.0.0.1:50051", "ks-2=127.0.0.1:50052"],
//	  "threshold": 2,
//	  "blob_backend": "s3",
//	  "credential_ttl": "5m"
//	}
package config
