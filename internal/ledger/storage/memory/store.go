// Package memory provides a map-backed store for tests and zero-setup runs.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wandeoki/afritrace/internal/ledger/storage"
	"github.com/wandeoki/afritrace/internal/ledger/storage/cursor"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Store implements every storage interface over in-memory maps.
//
// InTx runs against a deep clone of the state and swaps it in on success, so
// a failed transaction leaves no partial writes behind.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	products map[string]storage.ProductRecord
	steps    map[string]storage.SupplyChainStepRecord
	disputes map[string]storage.DisputeRecord
	offsets  map[string]storage.CarbonOffsetRecord
	users    map[string]storage.UserRecord
	applied  map[string]storage.AppliedEvent
}

func newState() *state {
	return &state{
		products: make(map[string]storage.ProductRecord),
		steps:    make(map[string]storage.SupplyChainStepRecord),
		disputes: make(map[string]storage.DisputeRecord),
		offsets:  make(map[string]storage.CarbonOffsetRecord),
		users:    make(map[string]storage.UserRecord),
		applied:  make(map[string]storage.AppliedEvent),
	}
}

// clone copies every map. Record values are copied by assignment; big.Int
// fields are never mutated in place (Put/Get always store and return fresh
// copies), so sharing the pointers across clones is safe.
func (st *state) clone() *state {
	next := newState()
	for k, v := range st.products {
		next.products[k] = v
	}
	for k, v := range st.steps {
		next.steps[k] = v
	}
	for k, v := range st.disputes {
		next.disputes[k] = v
	}
	for k, v := range st.offsets {
		next.offsets[k] = v
	}
	for k, v := range st.users {
		next.users[k] = v
	}
	for k, v := range st.applied {
		next.applied[k] = v
	}
	return next
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{state: newState()}
}

// Stores returns the bundle backed by the live state.
func (s *Store) Stores() storage.Bundle {
	return storage.Bundle{
		Products: s,
		Steps:    s,
		Disputes: s,
		Offsets:  s,
		Users:    s,
		Applied:  s,
	}
}

// InTx runs fn against a cloned state and swaps it in when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(storage.Bundle) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txStore := &Store{state: s.state.clone()}
	if err := fn(txStore.Stores()); err != nil {
		return err
	}
	s.state = txStore.state
	return nil
}

// PutProduct persists a product record.
func (s *Store) PutProduct(ctx context.Context, p storage.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("product id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	s.state.products[p.ID] = p
	return nil
}

// GetProduct fetches a product record by id.
func (s *Store) GetProduct(ctx context.Context, id string) (storage.ProductRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProductRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	if !ok {
		return storage.ProductRecord{}, storage.ErrNotFound
	}
	return p, nil
}

// ListRecentProducts returns a page of products ordered by creation time descending.
func (s *Store) ListRecentProducts(ctx context.Context, pageSize int, pageToken string) (storage.ProductPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProductPage{}, err
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var after *cursor.Cursor
	if pageToken != "" {
		c, err := cursor.Decode(pageToken)
		if err != nil {
			return storage.ProductPage{}, fmt.Errorf("decode page token: %w", err)
		}
		after = &c
	}

	s.mu.Lock()
	all := make([]storage.ProductRecord, 0, len(s.state.products))
	for _, p := range s.state.products {
		all = append(all, p)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	var page storage.ProductPage
	for _, p := range all {
		if after != nil && !afterCursor(p, *after) {
			continue
		}
		if len(page.Products) == pageSize {
			token, err := cursor.Encode(cursor.Cursor{
				CreatedAtMillis: page.Products[pageSize-1].CreatedAt.UnixMilli(),
				ID:              page.Products[pageSize-1].ID,
			})
			if err != nil {
				return storage.ProductPage{}, err
			}
			page.NextPageToken = token
			return page, nil
		}
		page.Products = append(page.Products, p)
	}
	return page, nil
}

// afterCursor reports whether p sorts strictly after the cursor position in
// the createdAt-descending ordering.
func afterCursor(p storage.ProductRecord, c cursor.Cursor) bool {
	millis := p.CreatedAt.UnixMilli()
	if millis != c.CreatedAtMillis {
		return millis < c.CreatedAtMillis
	}
	return p.ID < c.ID
}

// PutStep persists a supply-chain checkpoint.
func (s *Store) PutStep(ctx context.Context, step storage.SupplyChainStepRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(step.ID) == "" {
		return fmt.Errorf("step id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	step.Timestamp = step.Timestamp.UTC()
	s.state.steps[step.ID] = step
	return nil
}

// GetStep fetches a supply-chain checkpoint by id.
func (s *Store) GetStep(ctx context.Context, id string) (storage.SupplyChainStepRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SupplyChainStepRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.state.steps[id]
	if !ok {
		return storage.SupplyChainStepRecord{}, storage.ErrNotFound
	}
	return step, nil
}

// ListStepsByProduct returns all checkpoints for a product in timestamp order.
func (s *Store) ListStepsByProduct(ctx context.Context, productID string) ([]storage.SupplyChainStepRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var steps []storage.SupplyChainStepRecord
	for _, step := range s.state.steps {
		if step.ProductID == productID {
			steps = append(steps, step)
		}
	}
	s.mu.Unlock()
	sort.Slice(steps, func(i, j int) bool {
		if !steps[i].Timestamp.Equal(steps[j].Timestamp) {
			return steps[i].Timestamp.Before(steps[j].Timestamp)
		}
		return steps[i].ID < steps[j].ID
	})
	return steps, nil
}

// PutDispute persists a dispute record.
func (s *Store) PutDispute(ctx context.Context, d storage.DisputeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("dispute id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	s.state.disputes[d.ID] = d
	return nil
}

// GetDispute fetches a dispute record by id.
func (s *Store) GetDispute(ctx context.Context, id string) (storage.DisputeRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.DisputeRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.state.disputes[id]
	if !ok {
		return storage.DisputeRecord{}, storage.ErrNotFound
	}
	return d, nil
}

// PutOffset persists a carbon offset log entry.
func (s *Store) PutOffset(ctx context.Context, o storage.CarbonOffsetRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("offset id is required")
	}
	if o.Amount == nil {
		return fmt.Errorf("offset amount is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Amount = new(big.Int).Set(o.Amount)
	o.Timestamp = o.Timestamp.UTC()
	s.state.offsets[o.ID] = o
	return nil
}

// GetOffset fetches a carbon offset log entry by id.
func (s *Store) GetOffset(ctx context.Context, id string) (storage.CarbonOffsetRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CarbonOffsetRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.offsets[id]
	if !ok {
		return storage.CarbonOffsetRecord{}, storage.ErrNotFound
	}
	o.Amount = new(big.Int).Set(o.Amount)
	return o, nil
}

// ListOffsetsByUser returns all offsets credited to a user in timestamp order.
func (s *Store) ListOffsetsByUser(ctx context.Context, user string) ([]storage.CarbonOffsetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var offsets []storage.CarbonOffsetRecord
	for _, o := range s.state.offsets {
		if o.User == user {
			o.Amount = new(big.Int).Set(o.Amount)
			offsets = append(offsets, o)
		}
	}
	s.mu.Unlock()
	sort.Slice(offsets, func(i, j int) bool {
		if !offsets[i].Timestamp.Equal(offsets[j].Timestamp) {
			return offsets[i].Timestamp.Before(offsets[j].Timestamp)
		}
		return offsets[i].ID < offsets[j].ID
	})
	return offsets, nil
}

// PutUser persists a user record.
func (s *Store) PutUser(ctx context.Context, u storage.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if u.CarbonCredits == nil {
		return fmt.Errorf("user carbon credits are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.CarbonCredits = new(big.Int).Set(u.CarbonCredits)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	s.state.users[u.ID] = u
	return nil
}

// GetUser fetches a user record by id.
func (s *Store) GetUser(ctx context.Context, id string) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.state.users[id]
	if !ok {
		return storage.UserRecord{}, storage.ErrNotFound
	}
	u.CarbonCredits = new(big.Int).Set(u.CarbonCredits)
	return u, nil
}

// EnsureUser creates the user with a zero balance when absent and returns
// the stored record either way.
func (s *Store) EnsureUser(ctx context.Context, id string, createdAt time.Time) (storage.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserRecord{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.UserRecord{}, fmt.Errorf("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.state.users[id]; ok {
		u.CarbonCredits = new(big.Int).Set(u.CarbonCredits)
		return u, nil
	}
	u := storage.UserRecord{
		ID:            id,
		CarbonCredits: big.NewInt(0),
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     createdAt.UTC(),
	}
	s.state.users[id] = u
	u.CarbonCredits = new(big.Int).Set(u.CarbonCredits)
	return u, nil
}

// Seen reports whether the event occurrence has been committed before.
func (s *Store) Seen(ctx context.Context, txHash string, logIndex uint32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.applied[appliedKey(txHash, logIndex)]
	return ok, nil
}

// MarkSeen records a committed event occurrence.
func (s *Store) MarkSeen(ctx context.Context, e storage.AppliedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(e.TxHash) == "" {
		return fmt.Errorf("transaction hash is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.AppliedAt = e.AppliedAt.UTC()
	s.state.applied[appliedKey(e.TxHash, e.LogIndex)] = e
	return nil
}

func appliedKey(txHash string, logIndex uint32) string {
	return fmt.Sprintf("%s-%d", strings.TrimSpace(txHash), logIndex)
}
