package http

import (
	"net/http"

	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type roomHandlers struct {
	orch *orch.Orchestrator
}

type CreateRoomResponse struct {
	RoomToken domain.RoomToken `json:"roomToken"`
}

type StatsResponse struct {
	Rooms      int `json:"rooms"`
	EmptyRooms int `json:"emptyRooms"`
	Members    int `json:"members"`
	Messages   int `json:"messages"`
	Sessions   int `json:"sessions"`
}

func (h *roomHandlers) createRoom(c *gin.Context) {
	token, err := h.orch.CreateRoom()
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create room"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", token.Short()).Str("client", c.GetString("client_id")).Msg("room created")
	c.JSON(http.StatusOK, CreateRoomResponse{RoomToken: token})
}

func (h *roomHandlers) checkRoom(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	c.JSON(http.StatusOK, h.orch.CheckRoom(domain.RoomToken(token)))
}

func (h *roomHandlers) stats(c *gin.Context) {
	var resp StatsResponse
	for _, info := range h.orch.Rooms.Snapshot() {
		resp.Rooms++
		if info.Empty() {
			resp.EmptyRooms++
		}
		resp.Members += info.MemberCount
		resp.Messages += info.MessageCount
	}
	resp.Sessions = h.orch.Sessions.Count()
	c.JSON(http.StatusOK, resp)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
