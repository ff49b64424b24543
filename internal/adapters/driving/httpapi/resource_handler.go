package httpapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/prdeepak/ms365-access/internal/connectors/microsoft"
	"github.com/prdeepak/ms365-access/internal/connectors/microsoft/calendar"
	"github.com/prdeepak/ms365-access/internal/connectors/microsoft/onedrive"
	"github.com/prdeepak/ms365-access/internal/connectors/microsoft/outlook"
	"github.com/prdeepak/ms365-access/internal/connectors/microsoft/sharepoint"
	"github.com/prdeepak/ms365-access/internal/core/domain"
	"github.com/prdeepak/ms365-access/internal/core/services"
)

// GraphClient performs one Graph call with a bearer token.
type GraphClient interface {
	Do(ctx context.Context, accessToken string, req microsoft.Request) (json.RawMessage, error)
}

// ResourceHandler serves the Microsoft 365 resource routes. Every call goes
// through the gate; handlers never see how the token was obtained.
type ResourceHandler struct {
	gate  *services.Gate
	graph GraphClient
}

// NewResourceHandler creates a new resource handler.
func NewResourceHandler(gate *services.Gate, graph GraphClient) *ResourceHandler {
	return &ResourceHandler{gate: gate, graph: graph}
}

// Register sets up resource routes.
func (h *ResourceHandler) Register(app *fiber.App) {
	app.Get("/me", h.Me)

	mail := app.Group("/mail")
	mail.Get("/messages", h.ListMessages)
	mail.Delete("/messages/:id", h.DeleteMessage)
	mail.Post("/send", h.SendMail)

	cal := app.Group("/calendar")
	cal.Get("/events", h.ListEvents)
	cal.Delete("/events/:id", h.DeleteEvent)

	files := app.Group("/files")
	files.Get("/children", h.ListChildren)
	files.Delete("/items/:id", h.DeleteItem)

	app.Get("/sharepoint/sites", h.ListSites)
}

// Me returns the signed-in user's profile.
func (h *ResourceHandler) Me(c fiber.Ctx) error {
	return h.fetch(c, microsoft.Request{
		Resource: domain.ResourceProfile,
		Path:     "/me",
	})
}

// ListMessages lists one mail folder.
func (h *ResourceHandler) ListMessages(c fiber.Ctx) error {
	q, err := outlook.ParseListQuery(c.Queries())
	if err != nil {
		return writeResourceError(c, err)
	}
	req, err := q.Request()
	if err != nil {
		return writeResourceError(c, err)
	}
	return h.fetch(c, req)
}

// DeleteMessage deletes one message.
func (h *ResourceHandler) DeleteMessage(c fiber.Ctx) error {
	id := c.Params("id")
	req, err := outlook.DeleteRequest(id)
	if err != nil {
		return writeResourceError(c, err)
	}
	return h.sensitive(c, domain.SensitiveOp{
		Resource: domain.ResourceMail,
		Action:   "delete",
		Target:   id,
	}, req)
}

// SendMail sends a message as the signed-in user.
func (h *ResourceHandler) SendMail(c fiber.Ctx) error {
	var in outlook.SendInput
	if err := c.Bind().JSON(&in); err != nil {
		return sendError(c, fiber.StatusBadRequest, CodeInvalidRequest, "body must be valid JSON")
	}
	if err := in.Validate(); err != nil {
		return writeResourceError(c, err)
	}
	return h.sensitive(c, domain.SensitiveOp{
		Resource: domain.ResourceMail,
		Action:   "send",
		Detail:   map[string]any{"recipients": in.RecipientCount()},
	}, in.Request())
}

// ListEvents lists events, optionally within a time window.
func (h *ResourceHandler) ListEvents(c fiber.Ctx) error {
	q, err := calendar.ParseListQuery(c.Queries())
	if err != nil {
		return writeResourceError(c, err)
	}
	return h.fetch(c, q.Request())
}

// DeleteEvent deletes one event.
func (h *ResourceHandler) DeleteEvent(c fiber.Ctx) error {
	id := c.Params("id")
	req, err := calendar.DeleteRequest(id)
	if err != nil {
		return writeResourceError(c, err)
	}
	return h.sensitive(c, domain.SensitiveOp{
		Resource: domain.ResourceCalendar,
		Action:   "delete",
		Target:   id,
	}, req)
}

// ListChildren lists a drive folder.
func (h *ResourceHandler) ListChildren(c fiber.Ctx) error {
	q, err := onedrive.ParseChildrenQuery(c.Queries())
	if err != nil {
		return writeResourceError(c, err)
	}
	req, err := q.Request()
	if err != nil {
		return writeResourceError(c, err)
	}
	return h.fetch(c, req)
}

// DeleteItem deletes one drive item.
func (h *ResourceHandler) DeleteItem(c fiber.Ctx) error {
	id := c.Params("id")
	req, err := onedrive.DeleteRequest(id)
	if err != nil {
		return writeResourceError(c, err)
	}
	return h.sensitive(c, domain.SensitiveOp{
		Resource: domain.ResourceFiles,
		Action:   "delete",
		Target:   id,
	}, req)
}

// ListSites searches SharePoint sites.
func (h *ResourceHandler) ListSites(c fiber.Ctx) error {
	q, err := sharepoint.ParseSitesQuery(c.Queries())
	if err != nil {
		return writeResourceError(c, err)
	}
	return h.fetch(c, q.Request())
}

func (h *ResourceHandler) fetch(c fiber.Ctx, req microsoft.Request) error {
	var body json.RawMessage
	err := h.gate.WithAccessToken(c.Context(), func(ctx context.Context, token string) error {
		var err error
		body, err = h.graph.Do(ctx, token, req)
		return err
	})
	if err != nil {
		return writeResourceError(c, err)
	}
	return sendRaw(c, body)
}

func (h *ResourceHandler) sensitive(c fiber.Ctx, op domain.SensitiveOp, req microsoft.Request) error {
	var body json.RawMessage
	err := h.gate.Sensitive(c.Context(), op, func(ctx context.Context, token string) error {
		var err error
		body, err = h.graph.Do(ctx, token, req)
		return err
	})
	if err != nil {
		return writeResourceError(c, err)
	}
	if body == nil {
		return c.JSON(fiber.Map{"message": fmt.Sprintf("%s %s succeeded", op.Resource, op.Action)})
	}
	return sendRaw(c, body)
}

// sendRaw passes Graph's JSON through. An empty body becomes 204.
func sendRaw(c fiber.Ctx, body json.RawMessage) error {
	if body == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(fiber.StatusOK).Send(body)
}
