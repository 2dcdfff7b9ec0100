package api

import (
	"github.com/gofiber/fiber/v2"

	"flaremail/store"
	"flaremail/utils"
)

// MailHandler exposes the mailbox as a JSON API.
type MailHandler struct{}

// NewMailHandler creates a new mail API handler.
func NewMailHandler() *MailHandler {
	return &MailHandler{}
}

func (h *MailHandler) mailStore(c *fiber.Ctx) (*store.MailStore, error) {
	app, err := AppFromCtx(c)
	if err != nil {
		return nil, err
	}
	m := app.Mail()
	if m == nil {
		return nil, utils.UnauthorizedError("Not signed in", nil)
	}
	return m, nil
}

func mailboxResponse(c *fiber.Ctx, state store.MailState, mails interface{}) error {
	return c.JSON(fiber.Map{
		"success": state.Error == "",
		"error":   state.Error,
		"mails":   mails,
	})
}

// GetInbox fetches and returns the inbox, newest first.
func (h *MailHandler) GetInbox(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}
	m.FetchInbox(c.Context())
	state := m.State()
	return mailboxResponse(c, state, state.Inbox)
}

// GetSent fetches and returns the sent collection, newest first.
func (h *MailHandler) GetSent(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}
	m.FetchSent(c.Context())
	state := m.State()
	return mailboxResponse(c, state, state.Sent)
}

// ComposeRequest is a mail send request.
type ComposeRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Compose sends a mail from the signed-in identity.
func (h *MailHandler) Compose(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}

	var req ComposeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if !utils.ValidEmailShape(req.To) {
		return utils.BadRequestError("Invalid recipient address", nil)
	}

	from, _ := c.Locals("email").(string)
	m.SendMail(c.Context(), from, req.To, req.Subject, utils.SanitizeMailHTML(req.HTML))

	state := m.State()
	if state.Error != "" {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   state.Error,
		})
	}
	resp := fiber.Map{"success": true}
	if len(state.Sent) > 0 {
		resp["mail"] = state.Sent[0]
	}
	return c.JSON(resp)
}

// MarkRead flips the read flag of an inbox mail.
func (h *MailHandler) MarkRead(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}
	mailID := c.Params("id")
	if mailID == "" {
		return utils.BadRequestError("Mail ID required", nil)
	}

	m.MarkRead(c.Context(), mailID)
	state := m.State()
	return c.JSON(fiber.Map{
		"success": state.Error == "",
		"error":   state.Error,
	})
}

// DeleteInbox removes a mail from the inbox partition.
func (h *MailHandler) DeleteInbox(c *fiber.Ctx) error {
	return h.deleteMail(c, func(m *store.MailStore, id string) {
		m.DeleteInboxMail(c.Context(), id)
	})
}

// DeleteSent removes a mail from the sent partition.
func (h *MailHandler) DeleteSent(c *fiber.Ctx) error {
	return h.deleteMail(c, func(m *store.MailStore, id string) {
		m.DeleteSentMail(c.Context(), id)
	})
}

func (h *MailHandler) deleteMail(c *fiber.Ctx, del func(*store.MailStore, string)) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}
	mailID := c.Params("id")
	if mailID == "" {
		return utils.BadRequestError("Mail ID required", nil)
	}

	del(m, mailID)
	state := m.State()
	return c.JSON(fiber.Map{
		"success": state.Error == "",
		"error":   state.Error,
	})
}
