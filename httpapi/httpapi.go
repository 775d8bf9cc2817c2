// Package httpapi serves the admin dashboard and a few read-only player
// views over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/wfunc/gardien/auth"
	"github.com/wfunc/gardien/geo"
	"github.com/wfunc/gardien/quest"
	"github.com/wfunc/gardien/services"
)

type ctxKey struct{}

type API struct {
	game   *services.GameService
	issuer *auth.Issuer
}

func New(game *services.GameService, issuer *auth.Issuer) *API {
	return &API{game: game, issuer: issuer}
}

// Routes builds the router. Extra handlers (metrics, websocket) are mounted
// by the caller.
func (a *API) Routes(allowedOrigins []string) chi.Router {
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Post("/auth/login", a.login)

	mux.Get("/keys", a.globalKeys)
	mux.Get("/quests", a.quests)
	mux.Get("/nearby", a.nearby)

	mux.Group(func(r chi.Router) {
		r.Use(a.authenticate)
		r.Get("/me/hub", a.hub)
		r.Get("/me/inventory", a.inventory)

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.adminOnly)
			r.Get("/users", a.searchUsers)
			r.Post("/users/{userId}/promote", a.promote)
			r.Get("/reviews", a.pendingReviews)
			r.Post("/reviews/{userId}/{questId}", a.decide)
			r.Get("/reviews/{userId}/{questId}/image", a.proofImage)
		})
	})

	return mux
}

func claimsFrom(r *http.Request) *auth.Claims {
	c, _ := r.Context().Value(ctxKey{}).(*auth.Claims)
	return c
}

func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, nil, true, "missing bearer token")
			return
		}
		claims, err := a.issuer.Parse(token)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

// adminOnly checks the live role rather than the token's, so promotions take
// effect without a new login.
func (a *API) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.game.User(claimsFrom(r).UserID)
		if err != nil || !user.IsAdmin() {
			writeError(w, services.ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, nil, true, "invalid body")
		return
	}
	user, err := a.game.Login(r.Context(), req.DeviceID, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := a.issuer.Issue(user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  services.UserSummary{ID: user.ID, Name: user.Name, Role: user.Role, CreatedAt: user.CreatedAt},
	}, false, "")
}

func (a *API) globalKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":        a.game.GlobalKeys(),
		"union_ready": a.game.UnionReady(),
	}, false, "")
}

func (a *API) quests(w http.ResponseWriter, r *http.Request) {
	all := a.game.Catalog().All()
	out := make([]quest.Public, 0, len(all))
	for _, q := range all {
		out = append(out, q.Public())
	}
	writeJSON(w, http.StatusOK, out, false, "")
}

func (a *API) nearby(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, nil, true, "lat and lng are required")
		return
	}
	writeJSON(w, http.StatusOK, a.game.Nearby(geo.Point{Lat: lat, Lng: lng}), false, "")
}

func (a *API) hub(w http.ResponseWriter, r *http.Request) {
	entries, err := a.game.Hub(claimsFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries, false, "")
}

func (a *API) inventory(w http.ResponseWriter, r *http.Request) {
	slots, err := a.game.Inventory(claimsFrom(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots, false, "")
}

func (a *API) searchUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.game.SearchUsers(r.URL.Query().Get("q")), false, "")
}

func (a *API) promote(w http.ResponseWriter, r *http.Request) {
	err := a.game.PromoteToAdmin(r.Context(), claimsFrom(r).UserID, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil, false, "promoted")
}

// reviewView omits the image bytes; they are fetched separately.
type reviewView struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	QuestID     int    `json:"quest_id"`
	QuestTitle  string `json:"quest_title"`
	RequestedAt string `json:"requested_at"`
	HasProof    bool   `json:"has_proof"`
}

func (a *API) pendingReviews(w http.ResponseWriter, r *http.Request) {
	pending := a.game.PendingReviews()
	out := make([]reviewView, 0, len(pending))
	for _, p := range pending {
		out = append(out, reviewView{
			UserID:      p.UserID,
			UserName:    p.UserName,
			QuestID:     p.QuestID,
			QuestTitle:  p.QuestTitle,
			RequestedAt: p.RequestedAt.Format(time.RFC3339),
			HasProof:    p.Proof != nil,
		})
	}
	writeJSON(w, http.StatusOK, out, false, "")
}

type decisionRequest struct {
	Decision services.Decision `json:"decision"`
}

func (a *API) decide(w http.ResponseWriter, r *http.Request) {
	questID, err := strconv.Atoi(chi.URLParam(r, "questId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, nil, true, "invalid quest id")
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, nil, true, "invalid body")
		return
	}
	err = a.game.ReviewDecision(r.Context(), claimsFrom(r).UserID, chi.URLParam(r, "userId"), questID, req.Decision)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil, false, string(req.Decision))
}

func (a *API) proofImage(w http.ResponseWriter, r *http.Request) {
	questID, err := strconv.Atoi(chi.URLParam(r, "questId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, nil, true, "invalid quest id")
		return
	}
	user, err := a.game.User(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	proof, ok := user.GameState.Proofs[questID]
	if !ok {
		writeJSON(w, http.StatusNotFound, nil, true, "no proof")
		return
	}
	w.Header().Set("Content-Type", proof.MimeType)
	w.WriteHeader(http.StatusOK)
	w.Write(proof.Data)
}
