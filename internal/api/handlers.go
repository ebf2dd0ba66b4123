package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
)

// maxMealText caps a meal note submitted through the API.
const maxMealText = 2000

// healthHandler reports store reachability and queued work.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if ids, err := s.st.ListIdentities(ctx); err != nil {
		slog.Warn("Health check: store unavailable", "error", err)
		health["status"] = "degraded"
		health["error"] = "Profile store unavailable"
	} else {
		health["registered_users"] = len(ids)
	}
	if s.opts.Queue != nil {
		health["pending_messages"] = s.opts.Queue.Pending()
	}

	statusCode := http.StatusOK
	if health["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, health)
}

// sweepHandler runs one water reminder sweep (POST /api/reminders/sweep).
func (s *Server) sweepHandler(w http.ResponseWriter, r *http.Request) {
	if s.reminders == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Reminders are not configured"))
		return
	}
	tally, err := s.reminders.Sweep(r.Context())
	if err != nil {
		slog.Error("Server.sweepHandler: sweep failed", "error", err, "sent", tally.Sent, "failed", tally.Failed)
		writeJSONResponse(w, http.StatusInternalServerError, models.APIResponse{
			Status:  models.APIStatusError,
			Message: "Reminder sweep failed",
			Result:  tally,
		})
		return
	}
	slog.Info("Server.sweepHandler: sweep completed", "sent", tally.Sent, "failed", tally.Failed)
	writeJSONResponse(w, http.StatusOK, models.Success(tally))
}

// userCountHandler returns the number of registered users (GET /api/users/count).
func (s *Server) userCountHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.st.ListIdentities(r.Context())
	if err != nil {
		slog.Error("Server.userCountHandler: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to count users"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"count": len(ids)}))
}

type addMealRequest struct {
	Identity string `json:"identity"`
	Text     string `json:"text"`
}

// addMealHandler appends a meal note for a registered user (POST /api/meals).
func (s *Server) addMealHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req addMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.addMealHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	req.Identity = strings.TrimSpace(req.Identity)
	req.Text = strings.TrimSpace(req.Text)
	switch {
	case req.Identity == "":
		writeJSONResponse(w, http.StatusBadRequest, models.Error("identity is required"))
		return
	case req.Text == "":
		writeJSONResponse(w, http.StatusBadRequest, models.Error("text is required"))
		return
	case len([]rune(req.Text)) > maxMealText:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("text is too long"))
		return
	}
	if !s.st.Exists(r.Context(), req.Identity) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("User is not registered"))
		return
	}

	entry := models.MealLogEntry{Identity: req.Identity, Text: req.Text, CreatedAt: time.Now().UTC()}
	if err := s.st.AddMeal(r.Context(), entry); err != nil {
		slog.Error("Server.addMealHandler: AddMeal failed", "error", err, "identity", req.Identity)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store meal"))
		return
	}
	slog.Info("Server.addMealHandler: meal recorded", "identity", req.Identity)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Meal recorded", nil))
}

// listMealsHandler returns meal notes, newest first (GET /api/meals?identity=&limit=).
func (s *Server) listMealsHandler(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.URL.Query().Get("identity"))
	if identity == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("identity query parameter is required"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	meals, err := s.st.ListMeals(r.Context(), identity, limit)
	if err != nil {
		slog.Error("Server.listMealsHandler: ListMeals failed", "error", err, "identity", identity)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch meals"))
		return
	}
	if meals == nil {
		meals = []models.MealLogEntry{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(meals))
}
