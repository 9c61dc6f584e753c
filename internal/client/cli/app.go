package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/blobstore"
	"github.com/dmitrijs2005/sealpost/internal/client/config"
	"github.com/dmitrijs2005/sealpost/internal/client/keyclient"
	"github.com/dmitrijs2005/sealpost/internal/deliverytime"
	"github.com/dmitrijs2005/sealpost/internal/ledger"
	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
	"github.com/dmitrijs2005/sealpost/internal/ledger/repositories/repomanager"
	"github.com/dmitrijs2005/sealpost/internal/letters"
	"github.com/dmitrijs2005/sealpost/internal/logging"
	"github.com/dmitrijs2005/sealpost/internal/session"
	"github.com/dmitrijs2005/sealpost/internal/threshold"
)

// letterService is the part of letters.Service the commands use.
type letterService interface {
	Create(ctx context.Context, sender session.Signer, d letters.Draft) (uint64, error)
	ReadContent(ctx context.Context, id uint64, signer session.Signer) ([]byte, error)
	DownloadAttachment(ctx context.Context, id uint64, signer session.Signer) (*letters.Attachment, error)
	View(ctx context.Context, id uint64, now time.Time, loc deliverytime.Locale) (*letters.View, error)
	Sent(ctx context.Context, addr string) ([]*models.Letter, error)
	Received(ctx context.Context, addr string) ([]*models.Letter, error)
}

type App struct {
	config  *config.Config
	letters letterService
	wallet  session.Signer
	locale  deliverytime.Locale
	now     func() time.Time
	reader  *bufio.Reader
	out     io.Writer
	logger  logging.Logger
	closers []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, "text", c.LogLevel)

	app := &App{
		config: c,
		locale: deliverytime.ParseLocale(c.Locale),
		now:    time.Now,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		logger: logger,
	}

	servers, err := app.dialKeyServers()
	if err != nil {
		app.Close()
		return nil, err
	}

	blobs, err := newBlobStore(ctx, c)
	if err != nil {
		app.Close()
		return nil, err
	}

	db, repos, err := repomanager.Open(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db)

	if err := repos.RunMigrations(ctx, db); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	led := ledger.NewService(db, repos, c.ProgramID, c.PolicyObjectID, ledger.WithLogger(logger))
	crypto := threshold.NewService(servers, threshold.WithLogger(logger))

	app.letters = letters.NewService(led, blobs, crypto, letters.Config{
		ProgramID:      c.ProgramID,
		PolicyObjectID: c.PolicyObjectID,
		Threshold:      c.Threshold,
		CredentialTTL:  c.CredentialTTL,
	}, letters.WithLogger(logger))

	return app, nil
}

func (app *App) dialKeyServers() ([]threshold.KeyServer, error) {
	endpoints, err := app.config.Endpoints()
	if err != nil {
		return nil, err
	}

	servers := make([]threshold.KeyServer, 0, len(endpoints))
	for _, e := range endpoints {
		kc, err := keyclient.NewKeyServerClient(e.ID, e.Address, keyclient.WithTimeout(app.config.RequestTimeout))
		if err != nil {
			return nil, fmt.Errorf("key server %s: %w", e.ID, err)
		}
		app.closers = append(app.closers, kc)
		servers = append(servers, kc)
	}
	return servers, nil
}

// newBlobStore picks the attachment backend named by c.BlobBackend.
func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, error) {
	switch c.BlobBackend {
	case "walrus":
		return blobstore.NewWalrusStore(c.WalrusPublisher, c.WalrusAggregator,
			blobstore.WithEpochs(c.WalrusEpochs)), nil
	case "s3":
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return blobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

// Close releases key server connections and the database.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) getStatus() string {
	if app.wallet == nil {
		return ""
	}
	addr := app.wallet.Address()
	if len(addr) > 10 {
		addr = addr[:6] + ".." + addr[len(addr)-4:]
	}
	return fmt.Sprintf("(%s)", addr)
}

// Run unlocks the wallet and serves the REPL until the user exits.
func (app *App) Run(ctx context.Context) {
	defer app.Close()

	fmt.Fprintln(app.out, "Welcome to sealpost (type 'help' for commands)")

	if err := app.Unlock(ctx); err != nil {
		fmt.Fprintln(app.out, "error:", err)
		return
	}

	runREPL(ctx, app, app.getStatus, app.reader)
}
