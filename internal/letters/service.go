// Package letters implements the sender and recipient workflows on top of
// the ledger, the blob store and the key server quorum.
package letters

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/approval"
	"github.com/dmitrijs2005/sealpost/internal/blobstore"
	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/deliverytime"
	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
	"github.com/dmitrijs2005/sealpost/internal/logging"
	"github.com/dmitrijs2005/sealpost/internal/session"
	"github.com/dmitrijs2005/sealpost/internal/sniff"
	"github.com/dmitrijs2005/sealpost/internal/threshold"
)

const DefaultThreshold = 2

// Ledger is the part of the ledger the workflows need.
type Ledger interface {
	CreateLetter(ctx context.Context, sender string, in models.LetterInput) (uint64, error)
	GetLetter(ctx context.Context, id uint64) (*models.Letter, error)
	LettersSentBy(ctx context.Context, addr string) ([]*models.Letter, error)
	LettersReceivedBy(ctx context.Context, addr string) ([]*models.Letter, error)
}

type Config struct {
	ProgramID      string
	PolicyObjectID string
	Threshold      int
	CredentialTTL  time.Duration
}

type Service struct {
	ledger Ledger
	blobs  blobstore.Store
	crypto *threshold.Service
	gate   *approval.Gate
	cfg    Config
	now    func() time.Time
	logger logging.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(l Ledger, blobs blobstore.Store, crypto *threshold.Service, cfg Config, opts ...Option) *Service {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = session.DefaultTTL
	}
	s := &Service{
		ledger: l,
		blobs:  blobs,
		crypto: crypto,
		gate:   approval.NewGate(cfg.ProgramID),
		cfg:    cfg,
		now:    time.Now,
		logger: logging.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "letters")
	return s
}

// Draft is a letter before encryption.
type Draft struct {
	Title        string
	Body         []byte
	Recipients   []string
	DeliveryTime time.Time
	IsPublic     bool
	Attachment   []byte
	FileName     string
}

// Create encrypts the body and the optional attachment, uploads the
// attachment and records the letter. Nothing is recorded when any step fails;
// an uploaded attachment may be left orphaned in the blob store.
func (s *Service) Create(ctx context.Context, sender session.Signer, d Draft) (uint64, error) {
	obj, err := s.crypto.Encrypt(ctx, s.cfg.PolicyObjectID, s.cfg.ProgramID, d.Body, s.cfg.Threshold)
	if err != nil {
		return 0, fmt.Errorf("encrypt content: %w", err)
	}

	in := models.LetterInput{
		Title:          d.Title,
		Content:        base64.StdEncoding.EncodeToString(obj.Marshal()),
		Recipients:     d.Recipients,
		DeliveryTimeMs: d.DeliveryTime.UnixMilli(),
		IsPublic:       d.IsPublic,
		FileName:       d.FileName,
		ClockRef:       common.ClockObjectID,
	}

	if len(d.Attachment) > 0 {
		att, err := s.crypto.Encrypt(ctx, s.cfg.PolicyObjectID, s.cfg.ProgramID, d.Attachment, s.cfg.Threshold)
		if err != nil {
			return 0, fmt.Errorf("encrypt attachment: %w", err)
		}
		blobID, err := s.blobs.Put(ctx, att.Marshal())
		if err != nil {
			return 0, fmt.Errorf("upload attachment: %w", err)
		}
		in.AttachBlobID = blobID
		in.AttachIdentity = att.Identity.String()
	}

	id, err := s.ledger.CreateLetter(ctx, sender.Address(), in)
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "letter sent", "letter_id", id, "sender", sender.Address(), "attachment", in.AttachBlobID != "")
	return id, nil
}

// ReadContent decrypts the letter body for the holder of signer. Before the
// delivery time, or for a non-party of a private letter, the result is
// common.ErrAccessDenied.
func (s *Service) ReadContent(ctx context.Context, id uint64, signer session.Signer) ([]byte, error) {
	l, err := s.ledger.GetLetter(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(l.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: content is not base64", common.ErrCorruptCiphertext)
	}

	return s.decrypt(ctx, l.ID, data, signer)
}

// Attachment is a decrypted attachment ready to be saved.
type Attachment struct {
	Name string
	Type string
	Data []byte
}

func (s *Service) DownloadAttachment(ctx context.Context, id uint64, signer session.Signer) (*Attachment, error) {
	l, err := s.ledger.GetLetter(ctx, id)
	if err != nil {
		return nil, err
	}
	if !l.HasAttachment() {
		return nil, common.ErrNoAttachment
	}

	blob, err := s.blobs.Get(ctx, l.AttachBlobID)
	if err != nil {
		return nil, err
	}

	data, err := s.decrypt(ctx, l.ID, blob, signer)
	if err != nil {
		return nil, err
	}

	return &Attachment{
		Name: sniff.FileName(l.FileName, data),
		Type: sniff.Detect(data),
		Data: data,
	}, nil
}

// decrypt runs one read: fresh credential, wallet signature, approval proof,
// share fetch.
func (s *Service) decrypt(ctx context.Context, letterID uint64, data []byte, signer session.Signer) ([]byte, error) {
	cred, err := session.Issue(signer.Address(), s.cfg.ProgramID, s.cfg.CredentialTTL, s.now())
	if err != nil {
		return nil, err
	}
	signed, err := cred.Sign(ctx, signer)
	if err != nil {
		return nil, fmt.Errorf("sign session credential: %w", err)
	}

	proof, err := s.gate.BuildApprovalProof(letterID, s.cfg.PolicyObjectID, common.ClockObjectID)
	if err != nil {
		return nil, err
	}

	pt, err := s.crypto.Decrypt(ctx, data, signed, proof, s.cfg.Threshold)
	if err != nil {
		s.logger.Debug(ctx, "decrypt failed", "letter_id", letterID, "requester", signer.Address(), "error", err)
		return nil, err
	}
	return pt, nil
}

// View is what anyone can see about a letter without decrypting it.
type View struct {
	Letter       *models.Letter
	Status       deliverytime.Status
	Remaining    string
	DeliveryDate string
	Ciphertext   string
}

func (s *Service) View(ctx context.Context, id uint64, now time.Time, loc deliverytime.Locale) (*View, error) {
	l, err := s.ledger.GetLetter(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{
		Letter:       l,
		Status:       l.Status(now),
		Remaining:    deliverytime.Remaining(now, l.DeliveryTime(), loc),
		DeliveryDate: deliverytime.FormatDate(l.DeliveryTime()),
		Ciphertext:   l.Content,
	}, nil
}

func (s *Service) Sent(ctx context.Context, addr string) ([]*models.Letter, error) {
	return s.ledger.LettersSentBy(ctx, addr)
}

func (s *Service) Received(ctx context.Context, addr string) ([]*models.Letter, error) {
	return s.ledger.LettersReceivedBy(ctx, addr)
}

// IsNotYetAuthorized reports whether err means the caller may not read the
// letter (yet), as opposed to a technical failure.
func IsNotYetAuthorized(err error) bool {
	return errors.Is(err, common.ErrAccessDenied)
}

// IsTechnical reports whether err is a failure unrelated to authorization.
func IsTechnical(err error) bool {
	return err != nil && !IsNotYetAuthorized(err)
}
