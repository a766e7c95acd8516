package storage

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	repo  *SQLiteRepository
	ctx   context.Context
	admin core.User
	alice core.User
	bob   core.User
}

func (s *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(filepath.Join(s.T().TempDir(), "test.db"))
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
	s.ctx = context.Background()

	s.admin = s.mustUser("admin", core.RoleAdmin)
	s.alice = s.mustUser("alice", core.RoleUser)
	s.bob = s.mustUser("bob", core.RoleUser)
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) mustUser(name string, role core.Role) core.User {
	u, err := s.repo.CreateUser(s.ctx, name, "hash-"+name, role)
	require.NoError(s.T(), err)
	return u
}

func (s *RepositoryTestSuite) mustCategory(name string) core.Category {
	c, err := s.repo.FindCategory(s.ctx, name)
	require.NoError(s.T(), err)
	return c
}

func (s *RepositoryTestSuite) mustTx(owner core.User, cents int64, category string, date string) int64 {
	c := s.mustCategory(category)
	d, err := core.ParseDate(date)
	require.NoError(s.T(), err)
	id, err := s.repo.CreateTransaction(s.ctx, core.Transaction{
		UserID:     owner.ID,
		Amount:     core.Money{Cents: cents},
		Type:       c.Type,
		CategoryID: c.ID,
		Date:       d,
	})
	require.NoError(s.T(), err)
	return id
}

func (s *RepositoryTestSuite) TestUsers() {
	_, err := s.repo.CreateUser(s.ctx, "alice", "other", core.RoleUser)
	assert.ErrorIs(s.T(), err, core.ErrDuplicateUser)

	got, err := s.repo.GetUserByUsername(s.ctx, "alice")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.alice.ID, got.ID)
	assert.Equal(s.T(), core.RoleUser, got.Role)
	assert.Equal(s.T(), "hash-alice", got.PasswordHash)

	_, err = s.repo.GetUserByUsername(s.ctx, "nobody")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestSessions() {
	now := time.Now().UTC().Truncate(time.Second)
	sess := core.Session{
		ID:         "sid-1",
		UserID:     s.alice.ID,
		Role:       core.RoleUser,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(15 * time.Minute),
	}
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, sess))

	got, err := s.repo.GetSession(s.ctx, "sid-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice", got.Username)
	assert.True(s.T(), got.ExpiresAt.Equal(sess.ExpiresAt))

	later := now.Add(10 * time.Minute)
	require.NoError(s.T(), s.repo.TouchSession(s.ctx, "sid-1", later, later.Add(15*time.Minute)))
	got, err = s.repo.GetSession(s.ctx, "sid-1")
	require.NoError(s.T(), err)
	assert.True(s.T(), got.ExpiresAt.Equal(later.Add(15*time.Minute)))

	n, err := s.repo.DeleteExpiredSessions(s.ctx, later.Add(time.Hour))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), n)

	_, err = s.repo.GetSession(s.ctx, "sid-1")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestDefaultCategoriesSeeded() {
	all, err := s.repo.ListCategories(s.ctx, "")
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 15)

	income, err := s.repo.ListCategories(s.ctx, core.Income)
	require.NoError(s.T(), err)
	assert.Len(s.T(), income, 6)
	for _, c := range income {
		assert.Equal(s.T(), core.Income, c.Type)
	}
}

func (s *RepositoryTestSuite) TestCategoryDeleteGuard() {
	used, err := s.repo.CreateCategory(s.ctx, core.Category{Name: "Pets", Type: core.Expense, Icon: "🐶"})
	require.NoError(s.T(), err)
	unused, err := s.repo.CreateCategory(s.ctx, core.Category{Name: "Garden", Type: core.Expense, Icon: "🌱"})
	require.NoError(s.T(), err)

	_, err = s.repo.CreateCategory(s.ctx, core.Category{Name: "Pets", Type: core.Expense})
	assert.ErrorIs(s.T(), err, core.ErrDuplicateCategory)

	s.mustTx(s.alice, 1200, "Pets", "2024-01-10")

	n, err := s.repo.CountTransactionsByCategory(s.ctx, used.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, n)

	assert.ErrorIs(s.T(), s.repo.DeleteCategory(s.ctx, used.ID), core.ErrCategoryInUse)
	assert.NoError(s.T(), s.repo.DeleteCategory(s.ctx, unused.ID))
	assert.ErrorIs(s.T(), s.repo.DeleteCategory(s.ctx, unused.ID), core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestFindCategoryByID() {
	c := s.mustCategory("Rent")
	byID, err := s.repo.FindCategory(s.ctx, "  "+itoa(c.ID))
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Rent", byID.Name)

	_, err = s.repo.FindCategory(s.ctx, "Nope")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestCategoryLookupsSeeWrites() {
	c := s.mustCategory("Rent")
	_, err := s.repo.GetCategory(s.ctx, c.ID)
	require.NoError(s.T(), err)

	c.Name = "Housing"
	require.NoError(s.T(), s.repo.UpdateCategory(s.ctx, c))

	byID, err := s.repo.GetCategory(s.ctx, c.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Housing", byID.Name)

	_, err = s.repo.FindCategory(s.ctx, "Rent")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	byName, err := s.repo.FindCategory(s.ctx, "Housing")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), c.ID, byName.ID)

	require.NoError(s.T(), s.repo.DeleteCategory(s.ctx, c.ID))
	_, err = s.repo.GetCategory(s.ctx, c.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestListTransactionsFiltersAndOrder() {
	first := s.mustTx(s.alice, 1000, "Rent", "2024-01-05")
	second := s.mustTx(s.alice, 2000, "Rent", "2024-01-05")
	s.mustTx(s.alice, 500, "Transport", "2024-02-01")
	s.mustTx(s.bob, 700, "Rent", "2024-01-20")
	s.mustTx(s.admin, 10000, "Salary", "2024-01-31")

	all, err := s.repo.ListTransactions(s.ctx, core.TransactionFilter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 5)
	assert.Equal(s.T(), "2024-02-01", all[0].Date.String())
	// same date: higher id first
	assert.Equal(s.T(), second, all[3].ID)
	assert.Equal(s.T(), first, all[4].ID)

	own, err := s.repo.ListTransactions(s.ctx, core.TransactionFilter{OwnerID: s.alice.ID})
	require.NoError(s.T(), err)
	assert.Len(s.T(), own, 3)
	for _, t := range own {
		assert.Equal(s.T(), "alice", t.Username)
	}

	rent, err := s.repo.ListTransactions(s.ctx, core.TransactionFilter{Category: "Rent"})
	require.NoError(s.T(), err)
	assert.Len(s.T(), rent, 3)

	rentByID, err := s.repo.ListTransactions(s.ctx, core.TransactionFilter{Category: itoa(s.mustCategory("Rent").ID)})
	require.NoError(s.T(), err)
	assert.Len(s.T(), rentByID, 3)

	income, err := s.repo.ListTransactions(s.ctx, core.TransactionFilter{Type: core.Income})
	require.NoError(s.T(), err)
	assert.Len(s.T(), income, 1)

	window, err := s.repo.ListTransactions(s.ctx, core.TransactionFilter{
		StartDate: core.NewDate(2024, 1, 5),
		EndDate:   core.NewDate(2024, 1, 20),
	})
	require.NoError(s.T(), err)
	assert.Len(s.T(), window, 3, "both bounds are inclusive")
}

func (s *RepositoryTestSuite) TestFilterValuesAreBound() {
	s.mustTx(s.alice, 1000, "Rent", "2024-01-05")

	got, err := s.repo.ListTransactions(s.ctx, core.TransactionFilter{Category: "x' OR '1'='1"})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got)
}

func (s *RepositoryTestSuite) TestUpdateAndDeleteTransaction() {
	id := s.mustTx(s.alice, 1000, "Rent", "2024-01-05")
	tx, err := s.repo.GetTransaction(s.ctx, id)
	require.NoError(s.T(), err)

	tx.Amount = core.Money{Cents: 4200}
	tx.Description = "January"
	tx.AttachmentFilename = "receipt.pdf"
	tx.AttachmentPath = "20240105_120000_receipt.pdf"
	require.NoError(s.T(), s.repo.UpdateTransaction(s.ctx, tx))

	byKey, err := s.repo.GetTransactionByAttachment(s.ctx, "20240105_120000_receipt.pdf")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), id, byKey.ID)
	assert.Equal(s.T(), int64(4200), byKey.Amount.Cents)
	assert.Equal(s.T(), s.alice.ID, byKey.UserID)

	require.NoError(s.T(), s.repo.DeleteTransaction(s.ctx, id))
	_, err = s.repo.GetTransaction(s.ctx, id)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	assert.ErrorIs(s.T(), s.repo.DeleteTransaction(s.ctx, id), core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestCreateTransactionRejectsInvalidAmount() {
	c := s.mustCategory("Rent")
	_, err := s.repo.CreateTransaction(s.ctx, core.Transaction{
		UserID:     s.alice.ID,
		Type:       core.Expense,
		CategoryID: c.ID,
		Date:       core.NewDate(2024, 1, 1),
	})
	assert.ErrorIs(s.T(), err, core.ErrInvalidAmount)
}

func (s *RepositoryTestSuite) TestAggregates() {
	s.mustTx(s.admin, 10000, "Salary", "2024-01-31")
	s.mustTx(s.alice, 4000, "Rent", "2024-01-05")
	s.mustTx(s.alice, 1500, "Transport", "2024-02-01")
	s.mustTx(s.bob, 500, "Transport", "2024-02-03")

	income, expense, err := s.repo.TransactionTotals(s.ctx, core.TransactionFilter{})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(10000), income.Cents)
	assert.Equal(s.T(), int64(6000), expense.Cents)

	cats, err := s.repo.CategoryTotals(s.ctx, core.TransactionFilter{Type: core.Expense})
	require.NoError(s.T(), err)
	require.Len(s.T(), cats, 2)
	assert.Equal(s.T(), "Rent", cats[0].Category)
	assert.Equal(s.T(), "Transport", cats[1].Category)
	assert.Equal(s.T(), int64(2000), cats[1].Total.Cents)
	assert.Equal(s.T(), 2, cats[1].Count)

	months, err := s.repo.PeriodTotals(s.ctx, core.TransactionFilter{}, core.GranularityMonth)
	require.NoError(s.T(), err)
	require.Len(s.T(), months, 2)
	assert.Equal(s.T(), "2024-01", months[0].Period)
	assert.Equal(s.T(), int64(10000), months[0].Income.Cents)
	assert.Equal(s.T(), int64(4000), months[0].Expense.Cents)
	assert.Equal(s.T(), int64(2000), months[1].Expense.Cents)

	days, err := s.repo.PeriodTotals(s.ctx, core.TransactionFilter{OwnerID: s.alice.ID}, core.GranularityDay)
	require.NoError(s.T(), err)
	require.Len(s.T(), days, 2)
	assert.Equal(s.T(), "2024-01-05", days[0].Period)

	empty, expenseNone, err := s.repo.TransactionTotals(s.ctx, core.TransactionFilter{Category: "Bonus"})
	require.NoError(s.T(), err)
	assert.Zero(s.T(), empty.Cents)
	assert.Zero(s.T(), expenseNone.Cents)
}

func (s *RepositoryTestSuite) TestNotesAreOwnerScoped() {
	now := time.Now().UTC().Truncate(time.Second)
	n, err := s.repo.CreateNote(s.ctx, core.Note{UserID: s.alice.ID, Title: "todo", Color: core.DefaultNoteColor, CreatedAt: now, UpdatedAt: now})
	require.NoError(s.T(), err)

	_, err = s.repo.GetNote(s.ctx, s.bob.ID, n.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	assert.ErrorIs(s.T(), s.repo.DeleteNote(s.ctx, s.bob.ID, n.ID), core.ErrNotFound)

	n.Title = "done"
	n.UpdatedAt = now.Add(time.Minute)
	require.NoError(s.T(), s.repo.UpdateNote(s.ctx, n))

	notes, err := s.repo.ListNotes(s.ctx, s.alice.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), notes, 1)
	assert.Equal(s.T(), "done", notes[0].Title)

	require.NoError(s.T(), s.repo.DeleteNote(s.ctx, s.alice.ID, n.ID))
}

func (s *RepositoryTestSuite) TestRemindersOrderUndatedLast() {
	now := time.Now().UTC().Truncate(time.Second)
	soon := now.Add(time.Hour)
	later := now.Add(48 * time.Hour)
	for _, rm := range []core.Reminder{
		{UserID: s.alice.ID, Title: "undated", CreatedAt: now},
		{UserID: s.alice.ID, Title: "later", DueDate: &later, CreatedAt: now},
		{UserID: s.alice.ID, Title: "soon", DueDate: &soon, CreatedAt: now},
	} {
		_, err := s.repo.CreateReminder(s.ctx, rm)
		require.NoError(s.T(), err)
	}

	got, err := s.repo.ListReminders(s.ctx, s.alice.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 3)
	assert.Equal(s.T(), "soon", got[0].Title)
	assert.Equal(s.T(), "later", got[1].Title)
	assert.Equal(s.T(), "undated", got[2].Title)
	assert.Nil(s.T(), got[2].DueDate)

	got[0].IsCompleted = true
	require.NoError(s.T(), s.repo.UpdateReminder(s.ctx, got[0]))
	done, err := s.repo.GetReminder(s.ctx, s.alice.ID, got[0].ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), done.IsCompleted)
}

func (s *RepositoryTestSuite) TestEvents() {
	now := time.Now().UTC().Truncate(time.Second)
	end := now.Add(time.Hour)
	e, err := s.repo.CreateEvent(s.ctx, core.CalendarEvent{
		UserID: s.alice.ID, Title: "Dentist", StartTime: now, EndTime: &end,
		Color: core.DefaultEventColor, CreatedAt: now,
	})
	require.NoError(s.T(), err)

	got, err := s.repo.GetEvent(s.ctx, s.alice.ID, e.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), got.EndTime)
	assert.True(s.T(), got.EndTime.Equal(end))

	got.EndTime = nil
	require.NoError(s.T(), s.repo.UpdateEvent(s.ctx, got))

	list, err := s.repo.ListEvents(s.ctx, s.alice.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)
	assert.Nil(s.T(), list[0].EndTime)

	others, err := s.repo.ListEvents(s.ctx, s.bob.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), others)
}

func (s *RepositoryTestSuite) TestPing() {
	assert.NoError(s.T(), s.repo.Ping(s.ctx))
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
