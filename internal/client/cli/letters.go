package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/deliverytime"
	"github.com/dmitrijs2005/sealpost/internal/filex"
	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
	"github.com/dmitrijs2005/sealpost/internal/letters"
)

var (
	ErrLocked       = errors.New("wallet is locked")
	ErrUsage        = errors.New("usage: <command> <letter id>")
	ErrDeliveryTime = errors.New("delivery time: want YYYY-MM-DD HH:MM, RFC 3339 or +duration")
)

const deliveryLayout = "2006-01-02 15:04"

// parseDeliveryTime accepts "+90m" style offsets from now, local
// "YYYY-MM-DD HH:MM" and RFC 3339.
func parseDeliveryTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil || d < 0 {
			return time.Time{}, ErrDeliveryTime
		}
		return now.Add(d), nil
	}
	if t, err := time.ParseInLocation(deliveryLayout, s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrDeliveryTime
}

func parseID(args []string) (uint64, error) {
	if len(args) != 1 {
		return 0, ErrUsage
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, ErrUsage
	}
	return id, nil
}

// Create prompts for a draft and sends it.
func (app *App) Create(ctx context.Context) error {
	if app.wallet == nil {
		return ErrLocked
	}

	title, err := GetSimpleText(app.reader, "Title", app.out)
	if err != nil {
		return err
	}
	body, err := GetMultiline(app.reader, "Letter text", app.out)
	if err != nil {
		return err
	}
	recipients, err := GetList(app.reader, "Recipient addresses", app.out)
	if err != nil {
		return err
	}
	when, err := GetSimpleText(app.reader, "Deliver at (YYYY-MM-DD HH:MM or +duration)", app.out)
	if err != nil {
		return err
	}
	delivery, err := parseDeliveryTime(when, app.now())
	if err != nil {
		return err
	}
	public, err := GetYesNo(app.reader, "Public letter?", app.out)
	if err != nil {
		return err
	}
	path, err := GetSimpleText(app.reader, "Attachment path (empty for none)", app.out)
	if err != nil {
		return err
	}

	d := letters.Draft{
		Title:        title,
		Body:         []byte(body),
		Recipients:   recipients,
		DeliveryTime: delivery,
		IsPublic:     public,
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read attachment: %w", err)
		}
		d.Attachment = data
		d.FileName = filepath.Base(path)
	}

	id, err := app.letters.Create(ctx, app.wallet, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "Letter #%d sealed until %s\n", id, delivery.Format(deliveryLayout))
	return nil
}

// Read decrypts a letter body. A letter that is not yet readable is reported
// with its remaining time rather than as an error.
func (app *App) Read(ctx context.Context, args []string) error {
	if app.wallet == nil {
		return ErrLocked
	}
	id, err := parseID(args)
	if err != nil {
		return err
	}

	text, err := app.letters.ReadContent(ctx, id, app.wallet)
	if letters.IsNotYetAuthorized(err) {
		return app.notYet(ctx, id)
	}
	if err != nil {
		return app.withRetryHint(err)
	}

	fmt.Fprintln(app.out, string(text))
	return nil
}

// Attachment decrypts a letter's attachment into the download directory.
func (app *App) Attachment(ctx context.Context, args []string) error {
	if app.wallet == nil {
		return ErrLocked
	}
	id, err := parseID(args)
	if err != nil {
		return err
	}

	att, err := app.letters.DownloadAttachment(ctx, id, app.wallet)
	if letters.IsNotYetAuthorized(err) {
		return app.notYet(ctx, id)
	}
	if err != nil {
		return app.withRetryHint(err)
	}

	dir, err := filex.EnsureSubdDir("", app.config.DownloadDir)
	if err != nil {
		return err
	}
	saved, err := filex.SaveUnique(dir, att.Name, att.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "Saved %s (%s, %d bytes)\n", saved, att.Type, len(att.Data))
	return nil
}

// withRetryHint tells the user when a failed read is worth repeating.
func (app *App) withRetryHint(err error) error {
	if common.IsRetryable(err) {
		fmt.Fprintln(app.out, "Key servers did not release enough shares in time; try again.")
	}
	return err
}

func (app *App) notYet(ctx context.Context, id uint64) error {
	v, err := app.letters.View(ctx, id, app.now(), app.locale)
	if err != nil {
		return err
	}
	if v.Status == deliverytime.Pending {
		fmt.Fprintf(app.out, "Letter #%d is sealed, opens %s\n", id, v.Remaining)
		return nil
	}
	fmt.Fprintf(app.out, "Letter #%d is not addressed to you\n", id)
	return nil
}

// Status prints public metadata without decrypting anything.
func (app *App) Status(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	v, err := app.letters.View(ctx, id, app.now(), app.locale)
	if err != nil {
		return err
	}

	l := v.Letter
	fmt.Fprintf(app.out, "#%d %q from %s\n", l.ID, l.Title, l.Sender)
	fmt.Fprintf(app.out, "  delivery: %s (%s)\n", v.DeliveryDate, v.Remaining)
	fmt.Fprintf(app.out, "  status:   %s\n", v.Status)
	if l.IsPublic {
		fmt.Fprintln(app.out, "  public")
	} else {
		fmt.Fprintf(app.out, "  recipients: %s\n", strings.Join(l.Recipients, ", "))
	}
	if l.HasAttachment() {
		fmt.Fprintf(app.out, "  attachment: %s\n", l.FileName)
	}
	return nil
}

func (app *App) Sent(ctx context.Context) error {
	if app.wallet == nil {
		return ErrLocked
	}
	list, err := app.letters.Sent(ctx, app.wallet.Address())
	if err != nil {
		return err
	}
	app.printList(list)
	return nil
}

func (app *App) Inbox(ctx context.Context) error {
	if app.wallet == nil {
		return ErrLocked
	}
	list, err := app.letters.Received(ctx, app.wallet.Address())
	if err != nil {
		return err
	}
	app.printList(list)
	return nil
}

func (app *App) printList(list []*models.Letter) {
	if len(list) == 0 {
		fmt.Fprintln(app.out, "No letters")
		return
	}
	now := app.now()
	for _, l := range list {
		fmt.Fprintf(app.out, "#%-6d %-9s %s  %s\n", l.ID, l.Status(now), l.DeliveryTime().Local().Format(deliveryLayout), l.Title)
	}
}

func (app *App) WhoAmI(ctx context.Context) error {
	if app.wallet == nil {
		return ErrLocked
	}
	fmt.Fprintln(app.out, app.wallet.Address())
	return nil
}
