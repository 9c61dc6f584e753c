package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dmitrijs2005/sealpost/internal/client/keystore"
	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/session"
)

// getPassword is an indirection so tests can avoid the terminal.
var getPassword = GetPassword

var ErrPassphraseMismatch = errors.New("passphrases do not match")

// Unlock opens the wallet keystore, creating a new wallet on first use.
func (app *App) Unlock(ctx context.Context) error {
	path := app.config.KeystorePath

	if !keystore.Exists(path) {
		return app.createWallet(path)
	}

	pass, err := getPassword("Wallet passphrase", app.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)

	w, err := keystore.Load(path, pass)
	if err != nil {
		return err
	}
	app.wallet = w
	log.Printf("Wallet %s unlocked", w.Address())
	return nil
}

func (app *App) createWallet(path string) error {
	fmt.Fprintf(app.out, "No wallet at %s, creating a new one\n", path)

	pass, err := getPassword("New passphrase", app.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)

	again, err := getPassword("Repeat passphrase", app.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(pass, again) {
		return ErrPassphraseMismatch
	}

	w, err := session.GenerateWallet(nil)
	if err != nil {
		return err
	}
	if err := keystore.Save(path, w, pass); err != nil {
		return err
	}
	app.wallet = w
	fmt.Fprintf(app.out, "Created wallet %s\n", w.Address())
	return nil
}
