// Package modal keeps open overlays consistent with platform back
// navigation: each overlay opening pushes one history frame, and a back
// signal closes an open overlay before it is allowed to change tabs.
package modal

import "fmt"

// Overlay identifies a modal surface.
type Overlay int

const (
	ImageViewer Overlay = iota
	ProductDetail
	Checkout
	Cart
	Profile
	Subscription
	SpinWheel
	Share
)

var overlayNames = map[Overlay]string{
	ImageViewer:   "image_viewer",
	ProductDetail: "product_detail",
	Checkout:      "checkout",
	Cart:          "cart",
	Profile:       "profile",
	Subscription:  "subscription",
	SpinWheel:     "spin_wheel",
	Share:         "share",
}

func (o Overlay) String() string {
	if n, ok := overlayNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Overlay(%d)", int(o))
}

// ParseOverlay returns the overlay named s.
func ParseOverlay(s string) (Overlay, error) {
	for o, n := range overlayNames {
		if n == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown overlay %q", s)
}

// BackPriority is the order in which a back signal looks for an open
// overlay to close. Overlays that can only be opened on top of others come
// first, so a back signal closes the most recently opened surface.
var BackPriority = []Overlay{
	ImageViewer,
	Share,
	SpinWheel,
	Checkout,
	Subscription,
	ProductDetail,
	Profile,
	Cart,
}

// Location is the tab/collection navigation state beneath the overlays.
type Location struct {
	Tab        string `json:"tab"`
	Collection string `json:"collection,omitempty"`
}

// Frame is one pushed navigation-history entry.
type Frame struct {
	Overlay  *Overlay `json:"overlay,omitempty"`
	Location Location `json:"location"`
}

// Navigator is the platform history.
type Navigator interface {
	Push(Frame)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Frame)

// Push calls f.
func (f NavigatorFunc) Push(fr Frame) { f(fr) }

// BackResult describes what a back signal did.
type BackResult struct {
	// Closed is the overlay that was closed, nil if none was open.
	Closed *Overlay
	// Restored is the location restored when no overlay was open.
	Restored *Location
}

// Controller tracks overlay flags and the location history.
// Not safe for concurrent use.
type Controller struct {
	nav      Navigator
	open     map[Overlay]bool
	location Location
	history  []Location
}

// NewController creates a controller at the given starting location.
// A nil navigator discards frames.
func NewController(nav Navigator, start Location) *Controller {
	if nav == nil {
		nav = NavigatorFunc(func(Frame) {})
	}
	return &Controller{nav: nav, open: make(map[Overlay]bool), location: start}
}

// Open sets an overlay flag. Only a false to true transition pushes a frame.
func (c *Controller) Open(o Overlay) bool {
	if c.open[o] {
		return false
	}
	c.open[o] = true
	ov := o
	c.nav.Push(Frame{Overlay: &ov, Location: c.location})
	return true
}

// Close clears an overlay flag without touching history.
func (c *Controller) Close(o Overlay) bool {
	if !c.open[o] {
		return false
	}
	delete(c.open, o)
	return true
}

// IsOpen reports whether o is open.
func (c *Controller) IsOpen(o Overlay) bool { return c.open[o] }

// OpenOverlays returns open overlays in back-priority order.
func (c *Controller) OpenOverlays() []Overlay {
	var out []Overlay
	for _, o := range BackPriority {
		if c.open[o] {
			out = append(out, o)
		}
	}
	return out
}

// Navigate moves to a new tab/collection, pushing a frame so that back
// returns to the previous location.
func (c *Controller) Navigate(to Location) {
	if to == c.location {
		return
	}
	c.history = append(c.history, c.location)
	c.location = to
	c.nav.Push(Frame{Location: to})
}

// Location returns the current tab/collection.
func (c *Controller) Location() Location { return c.location }

// Back consumes a back signal. The first open overlay in BackPriority is
// closed; only when none is open does the previous location get restored.
func (c *Controller) Back() BackResult {
	for _, o := range BackPriority {
		if c.open[o] {
			delete(c.open, o)
			closed := o
			return BackResult{Closed: &closed}
		}
	}
	if n := len(c.history); n > 0 {
		c.location = c.history[n-1]
		c.history = c.history[:n-1]
		loc := c.location
		return BackResult{Restored: &loc}
	}
	return BackResult{}
}
