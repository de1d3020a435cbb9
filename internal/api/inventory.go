package api

import (
	"net/http"

	"procurement-service/internal/service"

	"github.com/gin-gonic/gin"
)

type itemBody struct {
	BranchID int64  `json:"branch_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Quantity int    `json:"quantity"`
}

func (b itemBody) input() service.ItemInput {
	return service.ItemInput{
		BranchID: b.BranchID,
		Name:     b.Name,
		Category: b.Category,
		Status:   b.Status,
		Quantity: b.Quantity,
	}
}

type itemStatusBody struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) listItems(c *gin.Context) {
	branchID, ok := queryInt(c, "branch_id")
	if !ok {
		return
	}

	items, err := h.inventory.List(c.Request.Context(), actorFrom(c), branchID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) createItem(c *gin.Context) {
	var body itemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.inventory.Create(c.Request.Context(), actorFrom(c), body.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item, "status_label": item.Status.Label()})
}

func (h *Handler) getItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	item, err := h.inventory.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "status_label": item.Status.Label()})
}

func (h *Handler) updateItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body itemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.inventory.Update(c.Request.Context(), actorFrom(c), id, body.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "status_label": item.Status.Label()})
}

// setItemStatus accepts any spelling the status normalizer recognises
func (h *Handler) setItemStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body itemStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.inventory.SetStatus(c.Request.Context(), actorFrom(c), id, body.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "status_label": item.Status.Label()})
}

func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.inventory.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
