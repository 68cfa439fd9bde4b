package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/globot/syncbot/internal/service"
	"github.com/globot/syncbot/utils/snowflake"
)

// Publisher enqueues inbound platform events on the relay topic.
type Publisher interface {
	Send(key string, message any) error
}

// AdminHandler exposes the administrative operations plus the gateway ingest
// edge. The command layer on the chat platform calls these; it only extracts
// arguments and formats responses.
type AdminHandler struct {
	Graph     service.IChannelGraph
	Ledger    service.IWarningLedger
	Stats     service.IStatsAggregator
	Publisher Publisher
	IDs       *snowflake.Generator
}

func NewAdminHandler(graph service.IChannelGraph, ledger service.IWarningLedger, stats service.IStatsAggregator, publisher Publisher, ids *snowflake.Generator) *AdminHandler {
	return &AdminHandler{
		Graph:     graph,
		Ledger:    ledger,
		Stats:     stats,
		Publisher: publisher,
		IDs:       ids,
	}
}

type addChannelRequest struct {
	ChannelID      string `json:"channel_id" binding:"required"`
	GuildID        string `json:"guild_id" binding:"required"`
	GroupID        string `json:"group_id" binding:"required"`
	Language       string `json:"language" binding:"required"`
	DeliveryHandle string `json:"delivery_handle" binding:"required"`
}

func (h *AdminHandler) AddChannel(c *gin.Context) {
	var req addChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	binding, err := h.Graph.Bind(c.Request.Context(), req.ChannelID, req.GuildID, req.GroupID, req.Language, req.DeliveryHandle)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, binding)
}

func (h *AdminHandler) RemoveChannel(c *gin.Context) {
	channelID := c.Param("id")
	if err := h.Graph.Unbind(c.Request.Context(), channelID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": channelID})
}

type setLogsChannelRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

func (h *AdminHandler) SetLogsChannel(c *gin.Context) {
	guildID := c.Param("id")

	var req setLogsChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.Graph.SetLogsChannel(c.Request.Context(), guildID, req.ChannelID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"guild_id": guildID, "logs_channel_id": req.ChannelID})
}

func (h *AdminHandler) GetWarnings(c *gin.Context) {
	guildID := c.Param("id")
	userID := c.Param("user_id")

	record, err := h.Ledger.Get(c.Request.Context(), guildID, userID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	snapshot, err := h.Stats.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

type ingestRequest struct {
	ChannelID   string   `json:"channel_id" binding:"required"`
	GuildID     string   `json:"guild_id" binding:"required"`
	AuthorID    string   `json:"author_id" binding:"required"`
	AuthorName  string   `json:"author_name"`
	Text        string   `json:"text"`
	Attachments []string `json:"attachments"`
	MessageID   string   `json:"message_id"`
	Relayed     bool     `json:"relayed"`
}

// IngestMessage accepts an inbound platform event from the gateway and
// enqueues it on the relay topic. Events arriving without a message ID get
// one assigned so the seen-filter can dedupe redeliveries.
func (h *AdminHandler) IngestMessage(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.MessageID == "" {
		id, err := h.IDs.Next()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		req.MessageID = strconv.FormatInt(id, 10)
	}

	// Key by source channel so events from one channel stay ordered.
	if err := h.Publisher.Send(req.ChannelID, req); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message_id": req.MessageID})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAlreadyBound):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidLanguage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotBound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
