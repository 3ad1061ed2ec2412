// Package testutil provides deterministic collaborators for engine and
// scenario tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
	"github.com/roach88/storesync/internal/twin"
)

// Patch is one recorded profile patch.
type Patch struct {
	UserID string
	Fields map[string]any
}

// FakeRemote is an in-process remote tier backed by twin.Memory. It
// implements remote.ProfileStore, remote.CatalogService, remote.Feed and
// the checkout collaborators.
//
// Payloads are JSON round-tripped on the way in and out so the engine sees
// the same loosely typed values it would get over the wire.
//
// Publish delivers realtime changes synchronously on the caller's
// goroutine. Thread-safety: all methods are safe for concurrent use.
type FakeRemote struct {
	Memory *twin.Memory

	mu       sync.Mutex
	fail     map[string]error
	calls    []string
	patches  []Patch
	subs     map[int]fakeSub
	nextSub  int
	verified string
	echo     bool
}

type fakeSub struct {
	topic   remote.Topic
	handler func(remote.Change)
}

// NewFakeRemote creates an empty fake remote tier.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		Memory: twin.NewMemory(),
		fail:   make(map[string]error),
		subs:   make(map[int]fakeSub),
	}
}

// FailOn makes every call to op return err until cleared with a nil err.
// op is the method name, e.g. "GetProfile".
func (f *FakeRemote) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// SetVerifiedUser sets the user VerifySession reports. Empty means the
// session is rejected.
func (f *FakeRemote) SetVerifiedUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = userID
}

// EchoPatches makes profile patches and favorite changes publish a
// profile UPDATE, the way the realtime backend does.
func (f *FakeRemote) EchoPatches(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echo = on
}

// Calls returns the method names invoked so far, in order.
func (f *FakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times op was invoked.
func (f *FakeRemote) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// Patches returns the recorded profile patches.
func (f *FakeRemote) Patches() []Patch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Patch(nil), f.patches...)
}

// SetProfile replaces a stored profile document field by field.
func (f *FakeRemote) SetProfile(userID string, fields map[string]any) {
	f.Memory.PatchProfile(userID, normalize(fields))
}

// Subscribers returns the number of open subscriptions.
func (f *FakeRemote) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Publish delivers a change to every matching subscription.
func (f *FakeRemote) Publish(ch remote.Change) {
	f.mu.Lock()
	var handlers []func(remote.Change)
	for i := 0; i < f.nextSub; i++ {
		s, ok := f.subs[i]
		if !ok {
			continue
		}
		if s.topic.Table != ch.Table || (s.topic.Event != "" && s.topic.Event != ch.Event) {
			continue
		}
		if !remote.MatchFilter(s.topic.Filter, ch.Record) {
			continue
		}
		handlers = append(handlers, s.handler)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ch)
	}
}

func (f *FakeRemote) enter(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.fail[op]
}

func (f *FakeRemote) echoProfile(doc map[string]any) {
	f.mu.Lock()
	echo := f.echo
	f.mu.Unlock()
	if echo {
		f.Publish(remote.Change{Table: remote.TableProfiles, Event: remote.EventUpdate, Record: normalize(doc)})
	}
}

// GetProfile implements remote.ProfileStore.
func (f *FakeRemote) GetProfile(_ context.Context, userID string) (map[string]any, error) {
	if err := f.enter("GetProfile"); err != nil {
		return nil, err
	}
	doc, ok := f.Memory.Profile(userID)
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, model.ErrNotFound)
	}
	return normalize(doc), nil
}

// PatchProfile implements remote.ProfileStore.
func (f *FakeRemote) PatchProfile(_ context.Context, userID string, fields map[string]any) error {
	if err := f.enter("PatchProfile"); err != nil {
		return err
	}
	fields = normalize(fields)
	f.mu.Lock()
	f.patches = append(f.patches, Patch{UserID: userID, Fields: fields})
	f.mu.Unlock()
	f.echoProfile(f.Memory.PatchProfile(userID, fields))
	return nil
}

// ListFavorites implements remote.ProfileStore.
func (f *FakeRemote) ListFavorites(_ context.Context, userID string) ([]string, error) {
	if err := f.enter("ListFavorites"); err != nil {
		return nil, err
	}
	return f.Memory.Favorites(userID), nil
}

// AddFavorite implements remote.ProfileStore.
func (f *FakeRemote) AddFavorite(_ context.Context, userID, productID string) error {
	if err := f.enter("AddFavorite"); err != nil {
		return err
	}
	f.echoProfile(f.Memory.SetFavorite(userID, productID, true))
	return nil
}

// RemoveFavorite implements remote.ProfileStore.
func (f *FakeRemote) RemoveFavorite(_ context.Context, userID, productID string) error {
	if err := f.enter("RemoveFavorite"); err != nil {
		return err
	}
	f.echoProfile(f.Memory.SetFavorite(userID, productID, false))
	return nil
}

// ListMissions implements remote.ProfileStore.
func (f *FakeRemote) ListMissions(_ context.Context, userID string) ([]model.MissionProgress, error) {
	if err := f.enter("ListMissions"); err != nil {
		return nil, err
	}
	return f.Memory.Missions(userID), nil
}

// UpsertMission implements remote.ProfileStore.
func (f *FakeRemote) UpsertMission(_ context.Context, userID string, p model.MissionProgress) error {
	if err := f.enter("UpsertMission"); err != nil {
		return err
	}
	f.Memory.UpsertMission(userID, p)
	return nil
}

// InsertInventory implements remote.ProfileStore.
func (f *FakeRemote) InsertInventory(_ context.Context, g model.InventoryGrant) error {
	if err := f.enter("InsertInventory"); err != nil {
		return err
	}
	f.Memory.InsertInventory(g)
	return nil
}

// ListProducts implements remote.CatalogService.
func (f *FakeRemote) ListProducts(context.Context) ([]model.Product, error) {
	if err := f.enter("ListProducts"); err != nil {
		return nil, err
	}
	return f.Memory.Products(), nil
}

// ListReviews implements remote.CatalogService.
func (f *FakeRemote) ListReviews(context.Context) ([]model.Review, error) {
	if err := f.enter("ListReviews"); err != nil {
		return nil, err
	}
	return f.Memory.Reviews(), nil
}

// InsertReview implements remote.CatalogService and publishes the insert.
func (f *FakeRemote) InsertReview(_ context.Context, r model.Review) error {
	if err := f.enter("InsertReview"); err != nil {
		return err
	}
	f.Memory.InsertReview(r)
	f.Publish(remote.Change{
		Table:  remote.TableReviews,
		Event:  remote.EventInsert,
		Record: map[string]any{"id": r.ID, "product_id": r.ProductID, "rating": float64(r.Rating)},
	})
	return nil
}

// Subscribe implements remote.Feed.
func (f *FakeRemote) Subscribe(_ context.Context, topic remote.Topic, handler func(remote.Change)) (remote.Subscription, error) {
	if err := f.enter("Subscribe"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fakeSub{topic: topic, handler: handler}
	return &fakeSubscription{f: f, id: id}, nil
}

type fakeSubscription struct {
	f  *FakeRemote
	id int
}

func (s *fakeSubscription) Close() error {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	delete(s.f.subs, s.id)
	return nil
}

// VerifySession implements checkout.Verifier.
func (f *FakeRemote) VerifySession(context.Context) (string, error) {
	if err := f.enter("VerifySession"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verified == "" {
		return "", model.ErrSessionExpired
	}
	return f.verified, nil
}

// PlaceOrder implements checkout.Processor.
func (f *FakeRemote) PlaceOrder(_ context.Context, o remote.Order) (remote.Receipt, error) {
	if err := f.enter("PlaceOrder"); err != nil {
		return remote.Receipt{}, err
	}
	f.Memory.PlaceOrder(o)
	return remote.Receipt{OrderID: o.ID, TotalCents: o.TotalCents}, nil
}

// normalize JSON round-trips v into generic maps, slices and float64s.
func normalize(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testutil: payload not JSON encodable: %v", err))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("testutil: %v", err))
	}
	return out
}
