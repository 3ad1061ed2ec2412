// Package catalog holds the static mission and reward catalog and the
// client-side aggregation over the product catalog service.
//
// The mission/reward catalog is written in CUE so that constraints (target
// at least 1, known triggers, optional stock) are enforced when the catalog
// is compiled rather than when a mission is first updated.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed catalog.cue
var defaultCatalogSource string

// Trigger names the engine event that advances a mission.
type Trigger string

const (
	TriggerFirstPurchase Trigger = "first_purchase"
	TriggerPurchaseCount Trigger = "purchase_count"
	TriggerLoginStreak   Trigger = "login_streak"
	TriggerLoginDays     Trigger = "login_days"
	TriggerFavorites     Trigger = "favorites"
	TriggerReviews       Trigger = "reviews"
	TriggerShares        Trigger = "shares"
	TriggerProductViews  Trigger = "product_views"
)

// Mission is a static mission definition.
type Mission struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Trigger     Trigger `json:"trigger"`
	Target      int     `json:"target"`
	Reward      int64   `json:"reward"`
}

// Reward is a redeemable item. Stock nil means unlimited.
type Reward struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Cost      int64  `json:"cost"`
	Stock     *int   `json:"stock,omitempty"`
	ValidDays int    `json:"valid_days"`
}

// Catalog is the compiled mission and reward catalog.
// Missions and rewards keep their declaration order.
type Catalog struct {
	Missions []Mission
	Rewards  []Reward

	missionIndex map[string]int
	rewardIndex  map[string]int
}

// CompileError describes a catalog that failed validation.
type CompileError struct {
	Field   string
	Message string
}

func (e *CompileError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("catalog: %s: %s", e.Field, e.Message)
	}
	return "catalog: " + e.Message
}

// Default compiles the embedded catalog. It panics on failure because the
// embedded source is covered by tests.
func Default() *Catalog {
	c, err := Compile("catalog.cue", defaultCatalogSource)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog invalid: %v", err))
	}
	return c
}

// Load compiles a catalog from a CUE file on disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Compile(path, string(data))
}

// Compile parses CUE source into a Catalog.
func Compile(filename, src string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{
		missionIndex: make(map[string]int),
		rewardIndex:  make(map[string]int),
	}

	missions := v.LookupPath(cue.ParsePath("missions"))
	if missions.Exists() {
		iter, err := missions.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			m, err := compileMission(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			c.missionIndex[m.ID] = len(c.Missions)
			c.Missions = append(c.Missions, m)
		}
	}

	rewards := v.LookupPath(cue.ParsePath("rewards"))
	if rewards.Exists() {
		iter, err := rewards.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			r, err := compileReward(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			c.rewardIndex[r.ID] = len(c.Rewards)
			c.Rewards = append(c.Rewards, r)
		}
	}

	if len(c.Missions) == 0 {
		return nil, &CompileError{Field: "missions", Message: "at least one mission is required"}
	}
	return c, nil
}

// Mission returns the mission definition for id.
func (c *Catalog) Mission(id string) (Mission, bool) {
	i, ok := c.missionIndex[id]
	if !ok {
		return Mission{}, false
	}
	return c.Missions[i], true
}

// Reward returns the reward definition for id.
func (c *Catalog) Reward(id string) (Reward, bool) {
	i, ok := c.rewardIndex[id]
	if !ok {
		return Reward{}, false
	}
	return c.Rewards[i], true
}

// ByTrigger returns the missions advanced by trigger in declaration order.
func (c *Catalog) ByTrigger(t Trigger) []Mission {
	var out []Mission
	for _, m := range c.Missions {
		if m.Trigger == t {
			out = append(out, m)
		}
	}
	return out
}

func compileMission(id string, v cue.Value) (Mission, error) {
	m := Mission{ID: id}
	var err error
	if m.Title, err = lookupString(v, "title"); err != nil {
		return Mission{}, fieldError("missions."+id+".title", err)
	}
	if m.Description, err = lookupString(v, "description"); err != nil {
		return Mission{}, fieldError("missions."+id+".description", err)
	}
	trigger, err := lookupString(v, "trigger")
	if err != nil {
		return Mission{}, fieldError("missions."+id+".trigger", err)
	}
	m.Trigger = Trigger(trigger)
	target, err := v.LookupPath(cue.ParsePath("target")).Int64()
	if err != nil {
		return Mission{}, fieldError("missions."+id+".target", err)
	}
	m.Target = int(target)
	if m.Reward, err = v.LookupPath(cue.ParsePath("reward")).Int64(); err != nil {
		return Mission{}, fieldError("missions."+id+".reward", err)
	}
	return m, nil
}

func compileReward(id string, v cue.Value) (Reward, error) {
	r := Reward{ID: id}
	var err error
	if r.Title, err = lookupString(v, "title"); err != nil {
		return Reward{}, fieldError("rewards."+id+".title", err)
	}
	if r.Cost, err = v.LookupPath(cue.ParsePath("cost")).Int64(); err != nil {
		return Reward{}, fieldError("rewards."+id+".cost", err)
	}
	stock := v.LookupPath(cue.ParsePath("stock"))
	if stock.Exists() && !stock.IsNull() {
		n, err := stock.Int64()
		if err != nil {
			return Reward{}, fieldError("rewards."+id+".stock", err)
		}
		s := int(n)
		r.Stock = &s
	}
	days, err := v.LookupPath(cue.ParsePath("valid_days")).Int64()
	if err != nil {
		return Reward{}, fieldError("rewards."+id+".valid_days", err)
	}
	r.ValidDays = int(days)
	return r, nil
}

func lookupString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	return fv.String()
}

func fieldError(field string, err error) error {
	return &CompileError{Field: field, Message: cueerrors.Details(err, nil)}
}

func formatCUEError(err error) error {
	return &CompileError{Message: cueerrors.Details(err, nil)}
}
