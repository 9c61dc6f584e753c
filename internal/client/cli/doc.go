// Package cli provides the interactive sealpost command-line client.
//
// It wires configuration, the ledger, the blob store and the key server
// quorum into a letters.Service, unlocks the local wallet and runs a REPL.
//
// Commands:
//   - create            write and send a letter
//   - read <id>         decrypt a letter once it is delivered
//   - attachment <id>   decrypt and save a letter's attachment
//   - status <id>       public metadata and time until delivery
//   - sent / inbox      letters sent by / addressed to this wallet
//   - whoami            print the wallet address
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
