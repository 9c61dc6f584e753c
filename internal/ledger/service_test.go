package ledger

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sealpost/internal/approval"
	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/identity"
	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
	"github.com/dmitrijs2005/sealpost/internal/ledger/repositories/repomanager"
	"github.com/dmitrijs2005/sealpost/internal/threshold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	program = "0xc0ffee"
	policy  = "0x25f4151fa12aaaa7cbc224968179bc1a50fe4cdc20a78b4a67d6a36f69136f4b"
)

var (
	alice = "0x" + strings.Repeat("a", 64)
	bob   = "0x" + strings.Repeat("b", 64)
	carol = "0x" + strings.Repeat("c", 64)
	t0    = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newLedger(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	db, m, err := repomanager.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, m.RunMigrations(context.Background(), db))

	clock := &fakeClock{now: t0}
	return NewService(db, m, program, policy, WithClock(clock)), clock
}

func newIdentity(t *testing.T, last byte) identity.Identity {
	t.Helper()
	id, err := identity.Derive(policy, []byte{0, 0, 0, 0, last})
	require.NoError(t, err)
	return id
}

func content(t *testing.T, programID string, id identity.Identity) string {
	t.Helper()
	obj := &threshold.EncryptedObject{
		Version:      threshold.ObjectVersion,
		ProgramID:    programID,
		Identity:     id,
		Threshold:    1,
		Shares:       []threshold.WrappedShare{{ServerID: "a", Index: 1, Data: []byte("wrapped")}},
		EphemeralKey: make([]byte, 32),
		Nonce:        make([]byte, 12),
		Ciphertext:   []byte("sealed"),
	}
	return base64.StdEncoding.EncodeToString(obj.Marshal())
}

func input(t *testing.T, id identity.Identity, delivery time.Time, public bool, recipients ...string) models.LetterInput {
	return models.LetterInput{
		Title:          "To the future",
		Content:        content(t, program, id),
		Recipients:     recipients,
		DeliveryTimeMs: delivery.UnixMilli(),
		IsPublic:       public,
		ClockRef:       common.ClockObjectID,
	}
}

func proof(t *testing.T, letterID uint64) []byte {
	t.Helper()
	p, err := approval.NewGate(program).BuildApprovalProof(letterID, policy, common.ClockObjectID)
	require.NoError(t, err)
	return p
}

func TestCreateLetter_AndRead(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()

	id1, err := svc.CreateLetter(ctx, alice, input(t, newIdentity(t, 1), t0.Add(time.Hour), false, bob, bob))
	require.NoError(t, err)
	id2, err := svc.CreateLetter(ctx, alice, input(t, newIdentity(t, 2), t0.Add(time.Hour), true))
	require.NoError(t, err)
	assert.Equal(t, id1+1, id2)

	l, err := svc.GetLetter(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, alice, l.Sender)
	assert.Equal(t, []string{bob, bob}, l.Recipients)
	assert.Equal(t, string(newIdentity(t, 1)), l.ContentIdentity)
	assert.Equal(t, t0.UnixMilli(), l.CreatedAtMs)

	sent, err := svc.LettersSentBy(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	inbox, err := svc.LettersReceivedBy(ctx, bob)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, id1, inbox[0].ID)

	_, err = svc.GetLetter(ctx, 404)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreateLetter_Validation(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()
	future := t0.Add(time.Minute)

	tests := map[string]struct {
		sender string
		mutate func(in *models.LetterInput)
	}{
		"bad sender":      {sender: "alice", mutate: func(*models.LetterInput) {}},
		"empty title":     {sender: alice, mutate: func(in *models.LetterInput) { in.Title = "  " }},
		"long title":      {sender: alice, mutate: func(in *models.LetterInput) { in.Title = strings.Repeat("x", MaxTitleLength+1) }},
		"bad recipient":   {sender: alice, mutate: func(in *models.LetterInput) { in.Recipients = []string{"0xB0B"} }},
		"past delivery":   {sender: alice, mutate: func(in *models.LetterInput) { in.DeliveryTimeMs = t0.UnixMilli() }},
		"wrong clock":     {sender: alice, mutate: func(in *models.LetterInput) { in.ClockRef = "0x7" }},
		"not base64":      {sender: alice, mutate: func(in *models.LetterInput) { in.Content = "%%%" }},
		"not an object":   {sender: alice, mutate: func(in *models.LetterInput) { in.Content = base64.StdEncoding.EncodeToString([]byte("hi")) }},
		"foreign program": {sender: alice, mutate: func(in *models.LetterInput) { in.Content = content(t, "0xbad", newIdentity(t, 1)) }},
		"bad attachment identity": {sender: alice, mutate: func(in *models.LetterInput) {
			in.AttachBlobID, in.AttachIdentity = "blob-1", "0102030405060708"
		}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			in := input(t, newIdentity(t, 1), future, false, bob)
			tc.mutate(&in)
			_, err := svc.CreateLetter(ctx, tc.sender, in)
			require.ErrorIs(t, err, common.ErrInvalidLetter)
		})
	}

	sent, err := svc.LettersSentBy(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestCreateLetter_RollsBackOnRecipientFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, &repomanager.PostgresRepositoryManager{}, program, policy,
		WithClock(ClockFunc(func() time.Time { return t0 })))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO letters`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO letter_recipients`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = svc.CreateLetter(context.Background(), alice, input(t, newIdentity(t, 1), t0.Add(time.Hour), false, bob))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLetter_WithAttachment(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()

	in := input(t, newIdentity(t, 1), t0.Add(time.Hour), false, bob)
	in.AttachBlobID, in.AttachIdentity, in.FileName = "blob-1", string(newIdentity(t, 9)), " photo "
	id, err := svc.CreateLetter(ctx, alice, in)
	require.NoError(t, err)

	l, err := svc.GetLetter(ctx, id)
	require.NoError(t, err)
	assert.True(t, l.HasAttachment())
	assert.Equal(t, "photo", l.FileName)

	svc.clock.(*fakeClock).now = t0.Add(time.Hour)
	ok, err := svc.CheckApproval(ctx, proof(t, id), newIdentity(t, 9), bob)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckApproval(t *testing.T) {
	svc, clock := newLedger(t)
	ctx := context.Background()
	delivery := t0.Add(time.Hour)

	private, err := svc.CreateLetter(ctx, alice, input(t, newIdentity(t, 1), delivery, false, bob))
	require.NoError(t, err)
	public, err := svc.CreateLetter(ctx, alice, input(t, newIdentity(t, 2), delivery, true))
	require.NoError(t, err)

	type tc struct {
		name      string
		at        time.Time
		proof     []byte
		id        identity.Identity
		requester string
		want      bool
	}
	foreignTarget, err := approval.NewGate("0xother").BuildApprovalProof(private, policy, common.ClockObjectID)
	require.NoError(t, err)
	wrongClock, err := approval.NewGate(program).BuildApprovalProof(private, policy, "0x7")
	require.NoError(t, err)
	otherPolicy, err := approval.NewGate(program).BuildApprovalProof(private, "0x1234", common.ClockObjectID)
	require.NoError(t, err)

	tests := []tc{
		{"recipient before delivery", delivery.Add(-time.Millisecond), proof(t, private), newIdentity(t, 1), bob, false},
		{"recipient at delivery", delivery, proof(t, private), newIdentity(t, 1), bob, true},
		{"sender after delivery", delivery.Add(time.Hour), proof(t, private), newIdentity(t, 1), alice, true},
		{"stranger after delivery", delivery.Add(time.Hour), proof(t, private), newIdentity(t, 1), carol, false},
		{"public before delivery", delivery.Add(-time.Second), proof(t, public), newIdentity(t, 2), carol, false},
		{"public after delivery", delivery.Add(time.Second), proof(t, public), newIdentity(t, 2), carol, true},
		{"identity of another letter", delivery.Add(time.Second), proof(t, public), newIdentity(t, 1), carol, false},
		{"unknown letter", delivery.Add(time.Second), proof(t, 999), newIdentity(t, 1), bob, false},
		{"malformed proof", delivery.Add(time.Second), []byte("junk"), newIdentity(t, 1), bob, false},
		{"foreign target", delivery.Add(time.Second), foreignTarget, newIdentity(t, 1), bob, false},
		{"wrong clock", delivery.Add(time.Second), wrongClock, newIdentity(t, 1), bob, false},
		{"other policy", delivery.Add(time.Second), otherPolicy, newIdentity(t, 1), bob, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.now = tt.at
			got, err := svc.CheckApproval(ctx, tt.proof, tt.id, tt.requester)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckApproval_StorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, &repomanager.PostgresRepositoryManager{}, program, policy, WithClock(&fakeClock{now: t0}))
	mock.ExpectQuery(`FROM letters WHERE id`).WillReturnError(sql.ErrConnDone)

	_, err = svc.CheckApproval(context.Background(), proof(t, 1), newIdentity(t, 1), bob)
	require.ErrorIs(t, err, sql.ErrConnDone)
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(alice))
	assert.False(t, ValidAddress("0x"+strings.Repeat("A", 64)))
	assert.False(t, ValidAddress("0xabc"))
}
