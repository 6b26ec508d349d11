package handlers

import (
	"net/http"

	"github.com/coinledger/backend/internal/services"
)

type GameHandler struct {
	games *services.GameBalanceService
}

func NewGameHandler(games *services.GameBalanceService) *GameHandler {
	return &GameHandler{games: games}
}

// ListGames returns every game with its running coin balance
// @Summary List games
// @Tags games
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.GameBalance
// @Router /games [get]
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListGames(r.Context())
	if err != nil {
		writeServiceError(w, "GAMES", err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GetGame returns one game
// @Summary Get game
// @Tags games
// @Produce json
// @Security BearerAuth
// @Param name path string true "Game name"
// @Success 200 {object} models.GameBalance
// @Failure 404 {object} services.ErrorResponse
// @Router /games/{name} [get]
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	name, ok := pathText(w, r, "name", "game name")
	if !ok {
		return
	}

	game, err := h.games.GetGame(r.Context(), name)
	if err != nil {
		writeServiceError(w, "GAMES", err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// CreateGame registers a game
// @Summary Register game
// @Tags games
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateGameRequest true "Game"
// @Success 201 {object} models.GameBalance
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /games [post]
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req services.CreateGameRequest
	if !decodeJSON(w, r, "GAMES", &req) {
		return
	}

	game, err := h.games.CreateGame(r.Context(), req)
	if err != nil {
		writeServiceError(w, "GAMES", err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}
