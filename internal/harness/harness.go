package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/storesync/internal/checkout"
	"github.com/roach88/storesync/internal/clock"
	"github.com/roach88/storesync/internal/engine"
	"github.com/roach88/storesync/internal/identity"
	"github.com/roach88/storesync/internal/modal"
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
	"github.com/roach88/storesync/internal/store"
	"github.com/roach88/storesync/internal/testutil"
)

// DefaultStart is the wall time scenarios start at unless they set one.
var DefaultStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Harness is one scenario execution: an engine wired to a fake remote
// tier, a manual clock and deterministic ids.
type Harness struct {
	eng    *engine.Engine
	remote *testutil.FakeRemote
	clock  *clock.Manual
	local  *store.Store
}

type actionFunc func(ctx context.Context, h *Harness, args map[string]any) (string, error)

// actions maps scenario action names to engine operations. The returned
// string is an optional outcome detail recorded in the trace.
var actions = map[string]actionFunc{
	"login":    doLogin,
	"logout":   func(ctx context.Context, h *Harness, _ map[string]any) (string, error) { return "", h.eng.Logout(ctx) },
	"drain":    doDrain,
	"advance":  doAdvance,
	"set_date": doSetDate,

	"add_to_cart":      doAddToCart,
	"update_quantity":  doUpdateQuantity,
	"remove_from_cart": doRemoveFromCart,
	"toggle_favorite":  doToggleFavorite,
	"spin":             doSpin,
	"checkout":         doCheckout,

	"update_mission":  doUpdateMission,
	"claim_mission":   doClaimMission,
	"purchase_reward": doPurchaseReward,
	"view_product":    doViewProduct,
	"share_product":   doShareProduct,
	"submit_review":   doSubmitReview,
	"update_profile":  doUpdateProfile,

	"open":     doOpen,
	"close":    doClose,
	"back":     doBack,
	"navigate": doNavigate,

	"publish":        doPublish,
	"verify_session": doVerifySession,
	"fail":           doFail,
	"recover":        doRecover,
	"calls":          doCalls,
}

// Run executes a scenario and returns the result. Each scenario runs
// against fresh in-memory stores.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	ctx := context.Background()
	if err := h.eng.Start(ctx); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	h.eng.Drain()

	result := NewResult()
	for i, step := range scenario.Steps {
		n := i + 1
		detail, err := actions[step.Action](ctx, h, step.Args)
		result.AddTrace(n, step.Action, step.Args, outcome(detail, err))
		h.checkStep(n, step, err, result)
	}
	result.Final = h.summary()
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	start, err := scenario.startTime()
	if err != nil {
		return nil, err
	}
	seed, err := scenario.seed()
	if err != nil {
		return nil, err
	}

	local, err := store.OpenSession()
	if err != nil {
		return nil, fmt.Errorf("open local tier: %w", err)
	}
	session, err := store.OpenSession()
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("open session tier: %w", err)
	}

	ctx := context.Background()
	for _, l := range scenario.Local {
		if len(l.Favorites) > 0 {
			store.Favorites.Save(ctx, local, l.Identity, l.Favorites)
		}
		if len(l.Cart) > 0 {
			lines := make([]model.CartLine, 0, len(l.Cart))
			for _, c := range l.Cart {
				lines = append(lines, model.CartLine{ProductID: c.Product, Quantity: c.Quantity, PriceSnapshot: c.Price})
			}
			store.Cart.Save(ctx, local, l.Identity, lines)
		}
		store.Discount.Save(ctx, local, l.Identity, l.Discount)
		store.SpinUsed.Save(ctx, local, l.Identity, l.SpinUsed)
	}

	fake := testutil.NewFakeRemote()
	seed.Apply(fake.Memory)
	fake.SetVerifiedUser(scenario.VerifiedUser)

	mc := clock.NewManual(start)
	eng := engine.New(engine.Options{
		Local:     local,
		Session:   session,
		Profiles:  fake,
		Products:  fake,
		Feed:      fake,
		Checkout:  checkout.NewService(fake, fake),
		Scheduler: mc,
		Picker:    testutil.NewPicker(scenario.Picks...),
		IDs:       engine.NewSequenceGenerator("id"),
		Inline:    true,
	})

	return &Harness{eng: eng, remote: fake, clock: mc, local: local}, nil
}

func (h *Harness) close() {
	h.eng.Close()
	h.local.Close()
}

func (h *Harness) checkStep(n int, step Step, err error, result *Result) {
	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	got := ""
	if err != nil {
		got = errorCode(err)
	}
	if got != want {
		switch {
		case want == "":
			result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", n, step.Action, err))
		case got == "":
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got success", n, step.Action, want))
		default:
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %v", n, step.Action, want, err))
		}
	}

	if step.Expect == nil || len(step.Expect.State) == 0 {
		return
	}
	actual, err := snapshotMap(h.eng.Snapshot())
	if err != nil {
		result.AddError(fmt.Sprintf("step %d (%s): snapshot: %v", n, step.Action, err))
		return
	}
	expected, err := normalize(step.Expect.State)
	if err != nil {
		result.AddError(fmt.Sprintf("step %d (%s): expected state: %v", n, step.Action, err))
		return
	}
	if mismatch, ok := matchSubset(actual, expected, "state"); !ok {
		result.AddError(fmt.Sprintf("step %d (%s): %s", n, step.Action, mismatch))
	}
}

// summary renders the final state on one line.
func (h *Harness) summary() string {
	s := h.eng.Snapshot()
	cart := make([]string, 0, len(s.Cart))
	for _, l := range s.Cart {
		cart = append(cart, fmt.Sprintf("%sx%d", l.ProductID, l.Quantity))
	}
	return fmt.Sprintf("user=%s synced=%t coins=%d cart=[%s] favorites=[%s] discount=%d spent=%t wheel=%s overlays=[%s]",
		s.Identity.ID,
		s.Synced,
		s.Identity.Coins,
		strings.Join(cart, ","),
		strings.Join(s.Favorites, ","),
		s.Discount.Percent,
		s.Discount.Spent,
		s.Wheel,
		strings.Join(s.Overlays, ","),
	)
}

func outcome(detail string, err error) string {
	if err != nil {
		return "error " + errorCode(err)
	}
	if detail == "" {
		return "ok"
	}
	return "ok " + detail
}

func errorCode(err error) string {
	var me *model.Error
	if errors.As(err, &me) {
		return string(me.Code)
	}
	return "ERROR"
}

func snapshotMap(s engine.Snapshot) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// scenarioSession builds the authentication session a login step
// persists. The token is signed with a throwaway key; identity resolution
// only reads its claims.
func scenarioSession(userID, email, name string, now time.Time) (identity.Session, error) {
	exp := now.Add(time.Hour).Unix()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   exp,
	})
	signed, err := tok.SignedString([]byte("storesync-scenario"))
	if err != nil {
		return identity.Session{}, err
	}
	sess := identity.Session{
		AccessToken: signed,
		ExpiresAt:   exp,
		User:        identity.SessionUser{ID: userID, Email: email},
	}
	if name != "" {
		sess.User.Metadata = map[string]any{"full_name": name}
	}
	return sess, nil
}

func doLogin(ctx context.Context, h *Harness, args map[string]any) (string, error) {
	user, err := argString(args, "user")
	if err != nil {
		return "", err
	}
	email := optString(args, "email", user+"@example.com")
	sess, err := scenarioSession(user, email, optString(args, "name", ""), h.clock.Now())
	if err != nil {
		return "", err
	}
	return "", h.eng.Login(ctx, sess)
}

func doDrain(_ context.Context, h *Harness, _ map[string]any) (string, error) {
	return fmt.Sprintf("events=%d", h.eng.Drain()), nil
}

func doAdvance(_ context.Context, h *Harness, args map[string]any) (string, error) {
	d, err := argDuration(args, "duration")
	if err != nil {
		return "", err
	}
	h.clock.Advance(d)
	return "", nil
}

func doSetDate(_ context.Context, h *Harness, args map[string]any) (string, error) {
	s, err := argString(args, "time")
	if err != nil {
		return "", err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", fmt.Errorf("time: %w", err)
	}
	h.clock.Set(t)
	return "", nil
}

func doAddToCart(_ context.Context, h *Harness, args map[string]any) (string, error) {
	p, err := argString(args, "product")
	if err != nil {
		return "", err
	}
	var md map[string]string
	if raw, ok := args["metadata"].(map[string]any); ok {
		md = make(map[string]string, len(raw))
		for k, v := range raw {
			md[k] = fmt.Sprint(v)
		}
	}
	h.eng.AddToCart(p, optInt(args, "quantity", 1), md)
	return "", nil
}

func doUpdateQuantity(_ context.Context, h *Harness, args map[string]any) (string, error) {
	p, err := argString(args, "product")
	if err != nil {
		return "", err
	}
	delta, err := argInt(args, "delta")
	if err != nil {
		return "", err
	}
	if !h.eng.UpdateQuantity(p, delta) {
		return "missing", nil
	}
	return "", nil
}

func doRemoveFromCart(_ context.Context, h *Harness, args map[string]any) (string, error) {
	p, err := argString(args, "product")
	if err != nil {
		return "", err
	}
	if !h.eng.RemoveFromCart(p) {
		return "missing", nil
	}
	return "", nil
}

func doToggleFavorite(_ context.Context, h *Harness, args map[string]any) (string, error) {
	p, err := argString(args, "product")
	if err != nil {
		return "", err
	}
	if h.eng.ToggleFavorite(p) {
		return "added", nil
	}
	return "removed", nil
}

func doSpin(_ context.Context, h *Harness, _ map[string]any) (string, error) {
	spin, ok := h.eng.SpinWheel()
	if !ok {
		return "refused", nil
	}
	return fmt.Sprintf("percent=%d", spin.Percent), nil
}

func doCheckout(ctx context.Context, h *Harness, _ map[string]any) (string, error) {
	r, err := h.eng.Checkout(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("total=%d", r.TotalCents), nil
}

func doUpdateMission(_ context.Context, h *Harness, args map[string]any) (string, error) {
	id, err := argString(args, "mission")
	if err != nil {
		return "", err
	}
	value, err := argInt(args, "value")
	if err != nil {
		return "", err
	}
	p, err := h.eng.UpdateMission(id, value, optBool(args, "absolute", false), optBool(args, "sync", true))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("progress=%d completed=%t", p.Progress, p.Completed), nil
}

func doClaimMission(_ context.Context, h *Harness, args map[string]any) (string, error) {
	id, err := argString(args, "mission")
	if err != nil {
		return "", err
	}
	coins, err := h.eng.ClaimMission(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("coins=%d", coins), nil
}

func doPurchaseReward(ctx context.Context, h *Harness, args map[string]any) (string, error) {
	id, err := argString(args, "reward")
	if err != nil {
		return "", err
	}
	g, err := h.eng.PurchaseReward(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("grant=%s expires=%s", g.ID, g.ExpiresAt), nil
}

func doViewProduct(_ context.Context, h *Harness, args map[string]any) (string, error) {
	p, err := argString(args, "product")
	if err != nil {
		return "", err
	}
	h.eng.ViewProduct(p)
	return "", nil
}

func doShareProduct(_ context.Context, h *Harness, args map[string]any) (string, error) {
	p, err := argString(args, "product")
	if err != nil {
		return "", err
	}
	h.eng.ShareProduct(p)
	return "", nil
}

func doSubmitReview(ctx context.Context, h *Harness, args map[string]any) (string, error) {
	p, err := argString(args, "product")
	if err != nil {
		return "", err
	}
	rating, err := argInt(args, "rating")
	if err != nil {
		return "", err
	}
	r, err := h.eng.SubmitReview(ctx, p, rating, optString(args, "comment", ""))
	if err != nil {
		return "", err
	}
	return "review=" + r.ID, nil
}

func doUpdateProfile(_ context.Context, h *Harness, args map[string]any) (string, error) {
	var edit engine.ProfileEdit
	for key, dst := range map[string]**string{
		"full_name":  &edit.FullName,
		"location":   &edit.Location,
		"birth_date": &edit.BirthDate,
		"phone":      &edit.Phone,
		"avatar_url": &edit.AvatarURL,
	} {
		if v, ok := args[key].(string); ok {
			*dst = &v
		}
	}
	h.eng.UpdateProfile(edit)
	return "", nil
}

func doOpen(_ context.Context, h *Harness, args map[string]any) (string, error) {
	o, err := argOverlay(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("changed=%t", h.eng.OpenOverlay(o)), nil
}

func doClose(_ context.Context, h *Harness, args map[string]any) (string, error) {
	o, err := argOverlay(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("changed=%t", h.eng.CloseOverlay(o)), nil
}

func doBack(_ context.Context, h *Harness, _ map[string]any) (string, error) {
	res := h.eng.Back()
	switch {
	case res.Closed != nil:
		return "closed=" + res.Closed.String(), nil
	case res.Restored != nil:
		return "restored=" + res.Restored.Tab, nil
	}
	return "noop", nil
}

func doNavigate(_ context.Context, h *Harness, args map[string]any) (string, error) {
	tab, err := argString(args, "tab")
	if err != nil {
		return "", err
	}
	h.eng.Navigate(modal.Location{Tab: tab, Collection: optString(args, "collection", "")})
	return "", nil
}

func doPublish(_ context.Context, h *Harness, args map[string]any) (string, error) {
	table, err := argString(args, "table")
	if err != nil {
		return "", err
	}
	record, _ := args["record"].(map[string]any)
	h.remote.Publish(remote.Change{
		Table:  table,
		Event:  optString(args, "event", remote.EventUpdate),
		Record: record,
	})
	return "", nil
}

func doVerifySession(_ context.Context, h *Harness, args map[string]any) (string, error) {
	h.remote.SetVerifiedUser(optString(args, "user", ""))
	return "", nil
}

func doFail(_ context.Context, h *Harness, args map[string]any) (string, error) {
	op, err := argString(args, "op")
	if err != nil {
		return "", err
	}
	h.remote.FailOn(op, errors.New(optString(args, "error", "injected failure")))
	return "", nil
}

func doRecover(_ context.Context, h *Harness, args map[string]any) (string, error) {
	op, err := argString(args, "op")
	if err != nil {
		return "", err
	}
	h.remote.FailOn(op, nil)
	return "", nil
}

func doCalls(_ context.Context, h *Harness, args map[string]any) (string, error) {
	op, err := argString(args, "op")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("count=%d", h.remote.CallCount(op)), nil
}
