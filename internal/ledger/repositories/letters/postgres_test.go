package letters

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "title", "sender", "content", "content_identity", "delivery_time_ms", "is_public",
	"attach_blob_id", "attach_identity", "file_name", "created_at_ms"}

func newRepoWithMock(t *testing.T) (Repository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestRebind(t *testing.T) {
	pg := &sqlRepository{ph: dollar}
	lite := &sqlRepository{ph: question}

	q := `SELECT a FROM t WHERE b = ? AND c = ?`
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT INTO letters \(title, sender, content, content_identity, delivery_time_ms, is_public,\s+attach_blob_id, attach_identity, file_name, created_at_ms\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10\)\s+RETURNING id`
	mock.ExpectQuery(q).
		WithArgs("hello", "0xa", "Y29udGVudA==", "abcd", int64(1000), true, "", "", "", int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.Create(context.Background(), &models.Letter{
		Title:           "hello",
		Sender:          "0xa",
		Content:         "Y29udGVudA==",
		ContentIdentity: "abcd",
		DeliveryTimeMs:  1000,
		IsPublic:        true,
		CreatedAtMs:     500,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO letters`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Letter{})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestAddRecipients(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `INSERT INTO letter_recipients \(letter_id, position, recipient\) VALUES \(\$1, \$2, \$3\)`
	mock.ExpectExec(q).WithArgs(int64(7), 0, "0xb").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(7), 1, "0xb").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(7), 2, "0xc").WillReturnError(errors.New("constraint"))

	err := repo.AddRecipients(context.Background(), 7, []string{"0xb", "0xb", "0xc"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT id, title, .* FROM letters WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(3), "t", "0xa", "c", "id", int64(10), false, "blob", "aid", "f.pdf", int64(5)))
	mock.ExpectQuery(`SELECT recipient FROM letter_recipients WHERE letter_id = \$1 ORDER BY position`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"recipient"}).AddRow("0xb").AddRow("0xc"))

	got, err := repo.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, &models.Letter{
		ID:              3,
		Title:           "t",
		Sender:          "0xa",
		Content:         "c",
		ContentIdentity: "id",
		Recipients:      []string{"0xb", "0xc"},
		DeliveryTimeMs:  10,
		AttachBlobID:    "blob",
		AttachIdentity:  "aid",
		FileName:        "f.pdf",
		CreatedAtMs:     5,
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM letters WHERE id = \$1`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 9)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListBySender(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM letters WHERE sender = \$1 ORDER BY id DESC`).
		WithArgs("0xa").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), "b", "0xa", "c", "i2", int64(10), true, "", "", "", int64(5)).
			AddRow(int64(1), "a", "0xa", "c", "i1", int64(10), false, "", "", "", int64(5)))
	mock.ExpectQuery(`FROM letter_recipients`).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"recipient"}))
	mock.ExpectQuery(`FROM letter_recipients`).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"recipient"}).AddRow("0xb"))

	got, err := repo.ListBySender(context.Background(), "0xa")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].ID)
	assert.Empty(t, got[0].Recipients)
	assert.Equal(t, []string{"0xb"}, got[1].Recipients)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByRecipient_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE id IN \(SELECT letter_id FROM letter_recipients WHERE recipient = \$1\)`).
		WithArgs("0xb").
		WillReturnError(errors.New("boom"))

	_, err := repo.ListByRecipient(context.Background(), "0xb")
	require.Error(t, err)
}

func TestListByRecipient_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM letters`).
		WithArgs("0xb").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	_, err := repo.ListByRecipient(context.Background(), "0xb")
	require.Error(t, err)
}
