// Package twin is an in-memory stand-in for the remote tier: profile
// documents, favorites and mission rows, the product catalog, session
// tokens, orders and the realtime feed. It backs the remote client tests
// and the serve-twin command.
package twin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
)

// Options configures a Server.
type Options struct {
	// TokenSecret signs access tokens. Empty generates a random secret.
	TokenSecret string
	TokenTTL    time.Duration
	// RequireAuth restricts /profiles/{id} to a bearer token whose subject
	// is {id}.
	RequireAuth bool
	Seed        *Seed
}

// Server is the twin HTTP server.
type Server struct {
	Memory *Memory
	Hub    *Hub
	Tokens *Tokens

	requireAuth bool
	router      chi.Router
}

// New creates a server and applies the seed, if any.
func New(opts Options) *Server {
	s := &Server{
		Memory:      NewMemory(),
		Hub:         NewHub(),
		Tokens:      NewTokens(opts.TokenSecret, opts.TokenTTL),
		requireAuth: opts.RequireAuth,
	}
	if opts.Seed != nil {
		opts.Seed.Apply(s.Memory)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/profiles/{id}", func(r chi.Router) {
		if s.requireAuth {
			r.Use(s.ownerOnly)
		}
		r.Get("/", s.getProfile)
		r.Patch("/", s.patchProfile)
		r.Get("/favorites", s.listFavorites)
		r.Put("/favorites/{product}", s.putFavorite)
		r.Delete("/favorites/{product}", s.deleteFavorite)
		r.Get("/missions", s.listMissions)
		r.Put("/missions/{mission}", s.putMission)
		r.Post("/inventory", s.postInventory)
	})

	r.Get("/products", s.listProducts)
	r.Get("/reviews", s.listReviews)
	r.Post("/reviews", s.postReview)

	r.Post("/auth/token", s.issueToken)
	r.Get("/auth/verify", s.verify)
	r.Post("/orders", s.postOrder)

	r.Handle("/realtime", s.Hub)
	return r
}

// === Profiles ===

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.Memory.Profile(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) patchProfile(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc := s.Memory.PatchProfile(chi.URLParam(r, "id"), fields)
	s.Hub.Publish(remote.Change{Table: remote.TableProfiles, Event: remote.EventUpdate, Record: doc})
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	favs := s.Memory.Favorites(userID)
	rows := make([]map[string]string, 0, len(favs))
	for _, p := range favs {
		rows = append(rows, map[string]string{"user_id": userID, "product_id": p})
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) putFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, true)
}

func (s *Server) deleteFavorite(w http.ResponseWriter, r *http.Request) {
	s.setFavorite(w, r, false)
}

func (s *Server) setFavorite(w http.ResponseWriter, r *http.Request, on bool) {
	doc := s.Memory.SetFavorite(chi.URLParam(r, "id"), chi.URLParam(r, "product"), on)
	s.Hub.Publish(remote.Change{Table: remote.TableProfiles, Event: remote.EventUpdate, Record: doc})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Memory.Missions(chi.URLParam(r, "id")))
}

func (s *Server) putMission(w http.ResponseWriter, r *http.Request) {
	var p model.MissionProgress
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.MissionID = chi.URLParam(r, "mission")
	if p.Claimed && !p.Completed {
		writeError(w, http.StatusUnprocessableEntity, "claimed requires completed")
		return
	}
	s.Memory.UpsertMission(chi.URLParam(r, "id"), p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) postInventory(w http.ResponseWriter, r *http.Request) {
	var g model.InventoryGrant
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	g.UserID = chi.URLParam(r, "id")
	if g.ID == "" {
		g.ID = uuid.Must(uuid.NewV7()).String()
	}
	s.Memory.InsertInventory(g)
	writeJSON(w, http.StatusCreated, g)
}

// === Catalog ===

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Memory.Products())
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Memory.Reviews())
}

func (s *Server) postReview(w http.ResponseWriter, r *http.Request) {
	var rv model.Review
	if err := json.NewDecoder(r.Body).Decode(&rv); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if rv.ProductID == "" || rv.Rating < 1 || rv.Rating > 5 || strings.TrimSpace(rv.Comment) == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid review")
		return
	}
	if rv.ID == "" {
		rv.ID = uuid.Must(uuid.NewV7()).String()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	s.Memory.InsertReview(rv)
	s.Hub.Publish(remote.Change{Table: remote.TableReviews, Event: remote.EventInsert, Record: reviewRecord(rv)})
	writeJSON(w, http.StatusCreated, rv)
}

func reviewRecord(rv model.Review) map[string]any {
	return map[string]any{
		"id":          rv.ID,
		"product_id":  rv.ProductID,
		"rating":      rv.Rating,
		"comment":     rv.Comment,
		"author_name": rv.AuthorName,
		"created_at":  rv.CreatedAt.Format(time.RFC3339),
	}
}

// === Auth and orders ===

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string         `json:"user_id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	pair, err := s.Tokens.Issue(req.UserID, req.Email, req.UserMetadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subject(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": sub})
}

func (s *Server) postOrder(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subject(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var o remote.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if o.UserID != sub {
		writeError(w, http.StatusForbidden, "order owner does not match session")
		return
	}
	if len(o.Lines) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "order has no lines")
		return
	}
	subtotal := model.CartTotal(o.Lines)
	if o.SubtotalCents != subtotal || o.TotalCents != model.ApplyDiscount(subtotal, o.DiscountPercent) {
		writeError(w, http.StatusUnprocessableEntity, "order totals do not match lines")
		return
	}
	if o.ID == "" {
		o.ID = uuid.Must(uuid.NewV7()).String()
	}
	s.Memory.PlaceOrder(o)
	writeJSON(w, http.StatusCreated, remote.Receipt{OrderID: o.ID, TotalCents: o.TotalCents, ChargedAt: time.Now().UTC()})
}

// ownerOnly rejects requests whose bearer subject is not the {id} param.
func (s *Server) ownerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := s.subject(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if sub != chi.URLParam(r, "id") {
			writeError(w, http.StatusForbidden, "token does not own this profile")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) subject(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", errors.New("missing bearer token")
	}
	return s.Tokens.Verify(token)
}

// === JSON helpers ===

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Debug("write response failed", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
