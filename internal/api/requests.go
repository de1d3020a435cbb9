package api

import (
	"net/http"

	"procurement-service/internal/models"
	"procurement-service/internal/service"
	"procurement-service/internal/store"

	"github.com/gin-gonic/gin"
)

type createRequestBody struct {
	ItemRef       string             `json:"item_ref"`
	Quantity      int                `json:"quantity"`
	Type          models.RequestType `json:"request_type"`
	Justification string             `json:"justification"`
}

type transitionBody struct {
	Status         string `json:"status"`
	Notes          string `json:"notes"`
	IdempotencyKey string `json:"idempotency_key"`
}

type reviseBody struct {
	Quantity       int     `json:"quantity"`
	Justification  *string `json:"justification"`
	Notes          string  `json:"notes"`
	IdempotencyKey string  `json:"idempotency_key"`
}

type followUpBody struct {
	Notes          string `json:"notes"`
	IdempotencyKey string `json:"idempotency_key"`
}

// createRequest files a request for the custodian's own branch
func (h *Handler) createRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	actor := actorFrom(c)
	req, err := h.lifecycle.Create(c.Request.Context(), actor, service.CreateRequestCommand{
		BranchID:      actor.BranchID,
		ItemRef:       body.ItemRef,
		Quantity:      body.Quantity,
		Type:          body.Type,
		Justification: body.Justification,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

// listRequests lists requests visible to the caller
func (h *Handler) listRequests(c *gin.Context) {
	actor := actorFrom(c)

	branchID, ok := queryInt(c, "branch_id")
	if !ok {
		return
	}
	requesterID, ok := queryInt(c, "requester_id")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}

	filter := store.RequestFilter{
		BranchID:    branchID,
		RequesterID: requesterID,
		Limit:       int(limit),
		Offset:      int(offset),
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseRequestStatus(raw)
		if !ok {
			badRequest(c, "Invalid status filter", nil)
			return
		}
		filter.Status = status
	}
	if !actor.IsManager() {
		if branchID != 0 && branchID != actor.BranchID {
			writeError(c, &service.ForbiddenError{Role: actor.Role, Action: "act on another branch"})
			return
		}
		filter.BranchID = actor.BranchID
	}

	reqs, err := h.lifecycle.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// loadVisible fetches the request named by the path and checks the caller may see it
func (h *Handler) loadVisible(c *gin.Context) (*models.PurchaseRequest, bool) {
	id, ok := pathID(c)
	if !ok {
		return nil, false
	}

	req, err := h.lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if err := service.AuthorizeView(actorFrom(c), req); err != nil {
		writeError(c, err)
		return nil, false
	}
	return req, true
}

func (h *Handler) getRequest(c *gin.Context) {
	req, ok := h.loadVisible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) getHistory(c *gin.Context) {
	req, ok := h.loadVisible(c)
	if !ok {
		return
	}

	entries, err := h.lifecycle.History(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": req.ID, "history": entries})
}

// transitionRequest applies an approve, reject, revision or resubmit decision
func (h *Handler) transitionRequest(c *gin.Context) {
	var body transitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	target, ok := models.ParseRequestStatus(body.Status)
	if !ok {
		writeError(c, &service.ValidationError{Field: "status", Reason: "unknown status " + body.Status})
		return
	}

	req, ok := h.loadVisible(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	if err := service.AuthorizeTransition(actor, req, target); err != nil {
		writeError(c, err)
		return
	}

	updated, err := h.lifecycle.Transition(c.Request.Context(), actor, service.TransitionCommand{
		RequestID:      req.ID,
		NewStatus:      target,
		Notes:          body.Notes,
		IdempotencyKey: idempotencyKey(c, body.IdempotencyKey),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) reviseRequest(c *gin.Context) {
	var body reviseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	req, ok := h.loadVisible(c)
	if !ok {
		return
	}
	actor := actorFrom(c)
	if err := service.AuthorizeRevise(actor, req); err != nil {
		writeError(c, err)
		return
	}

	updated, err := h.lifecycle.Revise(c.Request.Context(), actor, service.ReviseCommand{
		RequestID:      req.ID,
		Quantity:       body.Quantity,
		Justification:  body.Justification,
		Notes:          body.Notes,
		IdempotencyKey: idempotencyKey(c, body.IdempotencyKey),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) followUpRequest(c *gin.Context) {
	var body followUpBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	req, ok := h.loadVisible(c)
	if !ok {
		return
	}

	err := h.lifecycle.FollowUp(c.Request.Context(), actorFrom(c), service.FollowUpCommand{
		RequestID:      req.ID,
		Notes:          body.Notes,
		IdempotencyKey: idempotencyKey(c, body.IdempotencyKey),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": req.ID, "status": req.Status})
}
