package credits

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	return NewRepository(db), mock
}

func pairedRecords() (*Credit, *Request) {
	auditors := pq.Int64Array{4, 9, 2}
	credit := &Credit{ID: 42, Name: "Mangrove restoration", Amount: 400, Price: 12.5, CreatorID: 10,
		DocuURL: "https://docs.example.org/mangrove.pdf", Auditors: auditors, ReqStatus: ReqStatusPending, IsActive: true}
	req := &Request{ID: uuid.New(), CreditID: 42, CreatorID: 10, Auditors: auditors}
	return credit, req
}

func TestCreateWithRequestCommitsBoth(t *testing.T) {
	repo, mock := newMockRepository(t)
	credit, req := pairedRecords()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "credits"`)).WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "requests"`)).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithRequest(context.Background(), credit, req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithRequestRollsBackWhenRequestInsertFails(t *testing.T) {
	repo, mock := newMockRepository(t)
	credit, req := pairedRecords()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "credits"`)).WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "requests"`)).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := repo.CreateWithRequest(context.Background(), credit, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert request for credit 42")
	// An unexpected COMMIT would fail the call above and leave the rollback unmet.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithRequestRollsBackWhenCreditInsertFails(t *testing.T) {
	repo, mock := newMockRepository(t)
	credit, req := pairedRecords()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "credits"`)).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.CreateWithRequest(context.Background(), credit, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert credit 42")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireCommitsBothFlags(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "credits" SET`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "purchased_credits" SET "is_expired"`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Expire(context.Background(), 7, 70))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireRollsBackWhenPurchaseUpdateFails(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "credits" SET`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "purchased_credits" SET "is_expired"`)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Expire(context.Background(), 7, 70)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to expire purchase 70")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireRollsBackWhenCreditIsGone(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "credits" SET`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Expire(context.Background(), 7, 70)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vanished")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCreditMissingIsNil(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "credits"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	credit, err := repo.GetCredit(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, credit)
	assert.NoError(t, mock.ExpectationsWereMet())
}
