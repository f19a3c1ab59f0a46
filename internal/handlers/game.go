package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"numbers-game-backend/internal/models"
	"numbers-game-backend/internal/services"
)

type GameHandler struct {
	gameEngine *services.GameEngine
}

func NewGameHandler(gameEngine *services.GameEngine) *GameHandler {
	return &GameHandler{gameEngine: gameEngine}
}

func (h *GameHandler) StartRound(c *gin.Context) {
	round := h.gameEngine.StartNewRound()
	c.JSON(http.StatusOK, models.NewRoundResponse(round))
}

func (h *GameHandler) GetCurrentRound(c *gin.Context) {
	round, ok := h.gameEngine.CurrentRound()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, models.NewRoundResponse(round))
}

func (h *GameHandler) PlaceBet(c *gin.Context) {
	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bindError(err))
		return
	}

	switch h.gameEngine.PlaceBet(req.ToBet()) {
	case models.PlaceBetAccepted:
		c.JSON(http.StatusAccepted, gin.H{"success": true})
	case models.PlaceBetClosed:
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Code:    string(models.ErrorCodeRoundClosed),
			Message: "Betting is closed",
		})
	case models.PlaceBetDuplicate:
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Code:    string(models.ErrorCodeDuplicate),
			Message: "You have already placed a bet this round",
		})
	case models.PlaceBetInvalid:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Code:    string(models.ErrorCodeInvalid),
			Message: "Invalid bet",
		})
	}
}

func (h *GameHandler) GetLastSettlement(c *gin.Context) {
	settlement, ok := h.gameEngine.LastSettlement()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, models.NewSettlementResponse(settlement))
}

// bindError turns validator failures into a per-field VALIDATION payload;
// anything else (malformed JSON, wrong types) is BAD_INPUT.
func bindError(err error) models.ErrorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.ErrorResponse{
			Code:    string(models.ErrorCodeBadInput),
			Message: err.Error(),
		}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if _, seen := fields[field]; seen {
			continue
		}
		fields[field] = validationMessage(fe)
	}
	return models.ErrorResponse{
		Code:   string(models.ErrorCodeValidation),
		Errors: fields,
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "dmin":
		return "must be at least " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}
