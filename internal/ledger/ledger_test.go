package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"minibank/internal/models"
	"minibank/internal/money"
	"minibank/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// LedgerTestSuite exercises the transfer engine against a real in-memory
// database.
type LedgerTestSuite struct {
	suite.Suite
	db     *storage.DB
	ledger *Ledger
	alice  *models.User
	bob    *models.User
	acctA  *models.Account // alice's, starts at 100.00
	acctB  *models.Account // bob's, starts at 0.00
}

func (s *LedgerTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(s.T(), err, "failed to create test database")
	s.db = db
	s.ledger = New(db)

	dob := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	s.alice, err = db.CreateUser("alice", "alice@example.com", "x", dob, false)
	require.NoError(s.T(), err)
	s.bob, err = db.CreateUser("bob", "bob@example.com", "x", dob, false)
	require.NoError(s.T(), err)

	s.acctA, err = db.CreateAccount(s.alice.ID, "Alice Main", money.FromMinor(10000), "EUR", "ES")
	require.NoError(s.T(), err)
	s.acctB, err = db.CreateAccount(s.bob.ID, "Bob Main", money.FromMinor(0), "EUR", "ES")
	require.NoError(s.T(), err)
}

func (s *LedgerTestSuite) TearDownTest() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *LedgerTestSuite) balances() (a, b money.Amount) {
	acctA, err := s.db.GetAccountByID(s.acctA.ID)
	require.NoError(s.T(), err)
	acctB, err := s.db.GetAccountByID(s.acctB.ID)
	require.NoError(s.T(), err)
	return acctA.Balance, acctB.Balance
}

func (s *LedgerTestSuite) transactionCount() int {
	txs, err := s.db.ListTransactionsBySourceOwner(s.alice.ID)
	require.NoError(s.T(), err)
	more, err := s.db.ListTransactionsBySourceOwner(s.bob.ID)
	require.NoError(s.T(), err)
	return len(txs) + len(more)
}

func (s *LedgerTestSuite) TestSuccessfulTransfer() {
	rec, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(4000), "")
	require.NoError(s.T(), err)

	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(6000), a, "source should be debited")
	assert.Equal(s.T(), money.FromMinor(4000), b, "destination should be credited")

	assert.Equal(s.T(), s.acctA.AccountNumber, rec.FromAccount)
	assert.Equal(s.T(), s.acctB.AccountNumber, rec.ToAccount)
	assert.Equal(s.T(), money.FromMinor(4000), rec.Amount)
	assert.NotEmpty(s.T(), rec.ID)

	assert.Equal(s.T(), 1, s.transactionCount(), "exactly one transaction recorded")
}

func (s *LedgerTestSuite) TestConservation() {
	beforeA, beforeB := s.balances()
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(3725), "")
	require.NoError(s.T(), err)

	afterA, afterB := s.balances()
	assert.Equal(s.T(), beforeA+beforeB, afterA+afterB, "money must be conserved")
}

func (s *LedgerTestSuite) TestInsufficientFunds() {
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(15000), "")
	assert.ErrorIs(s.T(), err, ErrInsufficientFunds)

	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(10000), a, "source unchanged")
	assert.Equal(s.T(), money.FromMinor(0), b, "destination unchanged")
	assert.Zero(s.T(), s.transactionCount(), "no transaction recorded")
}

func (s *LedgerTestSuite) TestUnauthorizedCaller() {
	// Bob tries to debit Alice's account.
	_, err := s.ledger.Transfer(context.Background(), s.bob.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(100), "")
	assert.ErrorIs(s.T(), err, ErrUnauthorized)

	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(10000), a)
	assert.Equal(s.T(), money.FromMinor(0), b)
	assert.Zero(s.T(), s.transactionCount())
}

func (s *LedgerTestSuite) TestCreditToForeignAccountAllowed() {
	// Alice may credit Bob's account; only source ownership is checked.
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(100), "")
	assert.NoError(s.T(), err)
}

func (s *LedgerTestSuite) TestSelfTransferRejected() {
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctA.AccountNumber, money.FromMinor(100), "")
	assert.ErrorIs(s.T(), err, ErrSelfTransfer)

	a, _ := s.balances()
	assert.Equal(s.T(), money.FromMinor(10000), a)
	assert.Zero(s.T(), s.transactionCount())
}

func (s *LedgerTestSuite) TestNegativeAmountRejected() {
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(-500), "")
	assert.ErrorIs(s.T(), err, ErrInvalidAmount)

	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(10000), a)
	assert.Equal(s.T(), money.FromMinor(0), b)
	assert.Zero(s.T(), s.transactionCount())
}

func (s *LedgerTestSuite) TestZeroAmountRejected() {
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(0), "")
	assert.ErrorIs(s.T(), err, ErrInvalidAmount)
}

func (s *LedgerTestSuite) TestUnknownSourceAccount() {
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		"000000000000", s.acctB.AccountNumber, money.FromMinor(100), "")
	assert.ErrorIs(s.T(), err, ErrAccountNotFound)
}

func (s *LedgerTestSuite) TestUnknownDestinationAccount() {
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, "000000000000", money.FromMinor(100), "")
	assert.ErrorIs(s.T(), err, ErrAccountNotFound)

	a, _ := s.balances()
	assert.Equal(s.T(), money.FromMinor(10000), a, "no debit on failed lookup")
}

func (s *LedgerTestSuite) TestPreconditionOrder() {
	// Missing source account wins over everything else, including the
	// degenerate amount.
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		"000000000000", "000000000000", money.FromMinor(-1), "")
	assert.ErrorIs(s.T(), err, ErrAccountNotFound)

	// Ownership is checked before the self-transfer and amount rules.
	_, err = s.ledger.Transfer(context.Background(), s.bob.ID,
		s.acctA.AccountNumber, s.acctA.AccountNumber, money.FromMinor(-1), "")
	assert.ErrorIs(s.T(), err, ErrUnauthorized)

	// Self-transfer is checked before the amount.
	_, err = s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctA.AccountNumber, money.FromMinor(-1), "")
	assert.ErrorIs(s.T(), err, ErrSelfTransfer)
}

func (s *LedgerTestSuite) TestIdempotentReplay() {
	key := "retry-3f1c"
	first, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(4000), key)
	require.NoError(s.T(), err)

	second, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(4000), key)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), first.ID, second.ID, "replay must return the recorded transaction")

	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(6000), a, "transfer applied exactly once")
	assert.Equal(s.T(), money.FromMinor(4000), b)
	assert.Equal(s.T(), 1, s.transactionCount())
}

func (s *LedgerTestSuite) TestKeyReuseWithDifferentRequestRejected() {
	key := "retry-7a2d"
	_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(4000), key)
	require.NoError(s.T(), err)

	// Same key, different amount.
	_, err = s.ledger.Transfer(context.Background(), s.alice.ID,
		s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(9000), key)
	assert.ErrorIs(s.T(), err, ErrIdempotencyMismatch)

	// Same key, swapped direction.
	_, err = s.ledger.Transfer(context.Background(), s.bob.ID,
		s.acctB.AccountNumber, s.acctA.AccountNumber, money.FromMinor(4000), key)
	assert.ErrorIs(s.T(), err, ErrIdempotencyMismatch)

	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(6000), a, "only the original transfer applied")
	assert.Equal(s.T(), money.FromMinor(4000), b)
	assert.Equal(s.T(), 1, s.transactionCount())
}

func (s *LedgerTestSuite) TestDistinctKeysApplySeparately() {
	for _, key := range []string{"key-1", "key-2"} {
		_, err := s.ledger.Transfer(context.Background(), s.alice.ID,
			s.acctA.AccountNumber, s.acctB.AccountNumber, money.FromMinor(1000), key)
		require.NoError(s.T(), err)
	}
	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(8000), a)
	assert.Equal(s.T(), money.FromMinor(2000), b)
}

func (s *LedgerTestSuite) TestConcurrentOpposingTransfers() {
	// Start both accounts at 500.00 and run 1000 alternating 0.01
	// transfers. The sum must be conserved and, with balanced counts,
	// both balances return to 500.00.
	require.NoError(s.T(), s.seedBalance(s.acctA.ID, 50000))
	require.NoError(s.T(), s.seedBalance(s.acctB.ID, 50000))

	const transfers = 1000
	var wg sync.WaitGroup
	errs := make(chan error, transfers)

	for i := 0; i < transfers; i++ {
		wg.Add(1)
		caller, from, to := s.alice.ID, s.acctA.AccountNumber, s.acctB.AccountNumber
		if i%2 == 1 {
			caller, from, to = s.bob.ID, s.acctB.AccountNumber, s.acctA.AccountNumber
		}
		go func() {
			defer wg.Done()
			_, err := s.ledger.Transfer(context.Background(), caller, from, to, money.FromMinor(1), "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(s.T(), err)
	}

	a, b := s.balances()
	assert.Equal(s.T(), money.FromMinor(100000), a+b, "total must be conserved")
	assert.Equal(s.T(), money.FromMinor(50000), a)
	assert.Equal(s.T(), money.FromMinor(50000), b)
}

// seedBalance sets a balance directly through a unit of work, for test setup
// only.
func (s *LedgerTestSuite) seedBalance(accountID int64, minor int64) error {
	unit, err := s.db.BeginUnit(context.Background())
	if err != nil {
		return err
	}
	defer unit.Rollback()
	if err := unit.UpdateBalance(accountID, money.FromMinor(minor)); err != nil {
		return err
	}
	return unit.Commit()
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}
