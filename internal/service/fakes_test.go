package service_test

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/linemk/sim-exchange/internal/domain/models"
	"github.com/linemk/sim-exchange/internal/lib/money"
	"github.com/linemk/sim-exchange/internal/storage"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User // ключ – username
	// hidden – имена, которые первый поиск не находит: так выглядит гонка двух регистраций
	hidden map[string]bool
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User), hidden: make(map[string]bool)}
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hidden[username] {
		delete(f.hidden, username)
		return nil, storage.ErrUserNotFound
	}
	user, ok := f.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUserTx(ctx context.Context, tx *sql.Tx, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return nil, storage.ErrUserExists
	}
	user.ID = int64(len(f.users) + 1)
	f.users[user.Username] = user
	return user, nil
}

func (f *fakeUserRepo) DeleteUser(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, u := range f.users {
		if u.ID == id {
			delete(f.users, name)
			return nil
		}
	}
	return storage.ErrUserNotFound
}

func (f *fakeUserRepo) PromoteAdmin(ctx context.Context, id int64, passHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			u.PassHash = passHash
			u.IsAdmin = true
			return nil
		}
	}
	return storage.ErrUserNotFound
}

// fakePortfolioRepo хранит копии, чтобы изменения без SavePortfolioTx не были видны.
type fakePortfolioRepo struct {
	mu         sync.Mutex
	portfolios map[int64]*models.Portfolio
	conflict   map[int64]bool
	saves      int
}

var _ storage.PortfolioStorage = (*fakePortfolioRepo)(nil)

func newFakePortfolioRepo() *fakePortfolioRepo {
	return &fakePortfolioRepo{
		portfolios: make(map[int64]*models.Portfolio),
		conflict:   make(map[int64]bool),
	}
}

func (f *fakePortfolioRepo) put(p *models.Portfolio) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portfolios[p.UserID] = p.Clone()
}

func (f *fakePortfolioRepo) get(userID int64) *models.Portfolio {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.portfolios[userID]
	if !ok {
		return nil
	}
	return p.Clone()
}

func (f *fakePortfolioRepo) CreatePortfolioTx(ctx context.Context, tx *sql.Tx, userID int64, cash money.Money) error {
	f.put(&models.Portfolio{
		UserID:          userID,
		Cash:            cash,
		PumpGainPercent: money.Zero,
		Holdings:        make(map[string]models.Holding),
	})
	return nil
}

func (f *fakePortfolioRepo) GetPortfolio(ctx context.Context, userID int64) (*models.Portfolio, error) {
	p := f.get(userID)
	if p == nil {
		return nil, storage.ErrPortfolioNotFound
	}
	return p, nil
}

func (f *fakePortfolioRepo) LockPortfolioTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Portfolio, error) {
	f.mu.Lock()
	conflict := f.conflict[userID]
	f.mu.Unlock()
	if conflict {
		return nil, storage.ErrStorageConflict
	}
	return f.GetPortfolio(ctx, userID)
}

func (f *fakePortfolioRepo) SavePortfolioTx(ctx context.Context, tx *sql.Tx, p *models.Portfolio) error {
	f.mu.Lock()
	f.saves++
	f.mu.Unlock()
	f.put(p)
	return nil
}

type fakeTransactionRepo struct {
	mu        sync.Mutex
	records   []*models.Transaction
	lastLimit int
}

var _ storage.TransactionStorage = (*fakeTransactionRepo)(nil)

func (f *fakeTransactionRepo) CreateTransactionTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = int64(len(f.records) + 1)
	f.records = append(f.records, t)
	return t.ID, nil
}

func (f *fakeTransactionRepo) GetTransactionsByUserID(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var out []*models.Transaction
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func (f *fakeTransactionRepo) all() []*models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Transaction(nil), f.records...)
}

// fakePumpRepo отдаёт копии пампов, как это делает настоящее хранилище.
type fakePumpRepo struct {
	mu     sync.Mutex
	pumps  map[int64]models.SimulatedPump
	nextID int64
}

var _ storage.PumpStorage = (*fakePumpRepo)(nil)

func newFakePumpRepo() *fakePumpRepo {
	return &fakePumpRepo{pumps: make(map[int64]models.SimulatedPump)}
}

func (f *fakePumpRepo) CreatePumpTx(ctx context.Context, tx *sql.Tx, p *models.SimulatedPump) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.pumps[p.ID] = *p
	return p.ID, nil
}

func (f *fakePumpRepo) GetActivePumpsByUserIDTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.SimulatedPump, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SimulatedPump
	for _, id := range f.sortedIDs() {
		p := f.pumps[id]
		if p.UserID == userID && p.IsActive {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (f *fakePumpRepo) UpdatePumpTx(ctx context.Context, tx *sql.Tx, p *models.SimulatedPump) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pumps[p.ID]; !ok {
		return storage.ErrPumpNotFound
	}
	f.pumps[p.ID] = *p
	return nil
}

func (f *fakePumpRepo) ListActivePumpUserIDs(ctx context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[int64]bool)
	var ids []int64
	for _, p := range f.pumps {
		if p.IsActive && !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakePumpRepo) GetPumpsByUserID(ctx context.Context, userID int64) ([]*models.SimulatedPump, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.sortedIDs()
	var out []*models.SimulatedPump
	for i := len(ids) - 1; i >= 0; i-- {
		p := f.pumps[ids[i]]
		if p.UserID == userID {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (f *fakePumpRepo) get(id int64) models.SimulatedPump {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pumps[id]
}

func (f *fakePumpRepo) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.pumps))
	for id := range f.pumps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
