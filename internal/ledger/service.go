// Package ledger is the authority for letters: it assigns ids, keeps the
// records immutable and evaluates the approval predicate key servers consult
// before releasing a share.
package ledger

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/sealpost/internal/approval"
	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/dbx"
	"github.com/dmitrijs2005/sealpost/internal/identity"
	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
	"github.com/dmitrijs2005/sealpost/internal/ledger/repositories/repomanager"
	"github.com/dmitrijs2005/sealpost/internal/logging"
	"github.com/dmitrijs2005/sealpost/internal/threshold"
)

const MaxTitleLength = 200

var addressRe = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

// ValidAddress reports whether s is a lowercase 32-byte hex account address.
func ValidAddress(s string) bool {
	return addressRe.MatchString(s)
}

type Service struct {
	db             *sql.DB
	repos          repomanager.RepositoryManager
	programID      string
	policyObjectID string
	clock          Clock
	logger         logging.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService builds a ledger for one program and its policy object.
func NewService(db *sql.DB, repos repomanager.RepositoryManager, programID, policyObjectID string, opts ...Option) *Service {
	s := &Service{
		db:             db,
		repos:          repos,
		programID:      programID,
		policyObjectID: policyObjectID,
		clock:          SystemClock{},
		logger:         logging.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "ledger")
	return s
}

func (s *Service) ProgramID() string      { return s.programID }
func (s *Service) PolicyObjectID() string { return s.policyObjectID }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidLetter, fmt.Sprintf(format, args...))
}

// CreateLetter validates in and stores it with its recipients in a single
// transaction. Either the letter exists afterwards with a fresh id or nothing
// was written.
func (s *Service) CreateLetter(ctx context.Context, sender string, in models.LetterInput) (uint64, error) {
	now := s.clock.Now()

	l, err := s.validate(sender, in, now.UnixMilli())
	if err != nil {
		return 0, err
	}

	id, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (uint64, error) {
		repo := s.repos.Letters(tx)
		id, err := repo.Create(ctx, l)
		if err != nil {
			return 0, err
		}
		if err := repo.AddRecipients(ctx, id, l.Recipients); err != nil {
			return 0, err
		}
		return id, nil
	})
	if err != nil {
		s.logger.Error(ctx, "create letter failed", "sender", sender, "error", err)
		return 0, fmt.Errorf("create letter: %w", err)
	}

	s.logger.Info(ctx, "letter created", "letter_id", id, "sender", sender,
		"recipients", len(l.Recipients), "public", l.IsPublic)
	return id, nil
}

func (s *Service) validate(sender string, in models.LetterInput, nowMs int64) (*models.Letter, error) {
	if !ValidAddress(sender) {
		return nil, invalid("sender %q is not an address", sender)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > MaxTitleLength {
		return nil, invalid("title must be 1..%d characters", MaxTitleLength)
	}
	for _, r := range in.Recipients {
		if !ValidAddress(r) {
			return nil, invalid("recipient %q is not an address", r)
		}
	}
	if in.DeliveryTimeMs <= nowMs {
		return nil, invalid("delivery time must be in the future")
	}
	if !approval.SameObject(in.ClockRef, common.ClockObjectID) {
		return nil, invalid("unknown clock %q", in.ClockRef)
	}

	contentID, err := s.objectIdentity(in.Content)
	if err != nil {
		return nil, invalid("content: %v", err)
	}

	l := &models.Letter{
		Title:           title,
		Sender:          sender,
		Content:         in.Content,
		ContentIdentity: string(contentID),
		Recipients:      append([]string{}, in.Recipients...),
		DeliveryTimeMs:  in.DeliveryTimeMs,
		IsPublic:        in.IsPublic,
		FileName:        strings.TrimSpace(in.FileName),
		CreatedAtMs:     nowMs,
	}

	if in.AttachBlobID != "" {
		aid, err := identity.Parse(in.AttachIdentity)
		if err != nil || !aid.HasPolicy(s.policyObjectID) {
			return nil, invalid("attachment identity does not belong to the policy")
		}
		l.AttachBlobID = in.AttachBlobID
		l.AttachIdentity = string(aid)
	}
	return l, nil
}

// objectIdentity checks that content is an encrypted object for this
// program and policy and returns its identity.
func (s *Service) objectIdentity(content string) (identity.Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", err
	}
	obj, err := threshold.Unmarshal(raw)
	if err != nil {
		return "", err
	}
	if obj.ProgramID != s.programID {
		return "", fmt.Errorf("encrypted for program %s", obj.ProgramID)
	}
	if !obj.Identity.HasPolicy(s.policyObjectID) {
		return "", errors.New("identity outside policy")
	}
	return obj.Identity, nil
}

func (s *Service) GetLetter(ctx context.Context, id uint64) (*models.Letter, error) {
	return s.repos.Letters(s.db).Get(ctx, id)
}

func (s *Service) LettersSentBy(ctx context.Context, addr string) ([]*models.Letter, error) {
	return s.repos.Letters(s.db).ListBySender(ctx, addr)
}

func (s *Service) LettersReceivedBy(ctx context.Context, addr string) ([]*models.Letter, error) {
	return s.repos.Letters(s.db).ListByRecipient(ctx, addr)
}

// CheckApproval evaluates the approval call in proof for requester and the
// identity whose share is requested. A malformed or foreign proof is a
// denial, not an error; errors are reserved for storage failures.
func (s *Service) CheckApproval(ctx context.Context, proof []byte, id identity.Identity, requester string) (bool, error) {
	call, err := approval.Parse(proof)
	if err != nil {
		s.logger.Debug(ctx, "approval denied", "reason", "malformed proof")
		return false, nil
	}

	deny := func(reason string) (bool, error) {
		s.logger.Debug(ctx, "approval denied", "letter_id", call.LetterID, "requester", requester, "reason", reason)
		return false, nil
	}

	if call.Target != approval.Target(s.programID) {
		return deny("foreign target")
	}
	if !approval.SameObject(call.PolicyObjectID, s.policyObjectID) || !id.HasPolicy(s.policyObjectID) {
		return deny("identity outside policy")
	}
	if !approval.SameObject(call.ClockRef, common.ClockObjectID) {
		return deny("unknown clock")
	}

	l, err := s.GetLetter(ctx, call.LetterID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return deny("no such letter")
		}
		return false, err
	}
	if string(id) != l.ContentIdentity && (l.AttachIdentity == "" || string(id) != l.AttachIdentity) {
		return deny("identity belongs to another letter")
	}
	if s.clock.Now().UnixMilli() < l.DeliveryTimeMs {
		return deny("not delivered")
	}
	if l.IsPublic || l.IsParty(requester) {
		return true, nil
	}
	return deny("not a party")
}
