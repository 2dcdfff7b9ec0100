// handlers/web/mail.go
package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"flaremail/handlers/api"
	"flaremail/middleware"
	"flaremail/models"
	"flaremail/store"
	"flaremail/utils"
)

type MailHandler struct {
	pollEvery string // HTMX trigger spec derived from the poll cadence
}

// NewMailHandler creates a new instance of MailHandler
func NewMailHandler(pollInterval time.Duration) *MailHandler {
	return &MailHandler{
		pollEvery: fmt.Sprintf("%dms", pollInterval.Milliseconds()),
	}
}

func (h *MailHandler) mailStore(c *fiber.Ctx) (*store.MailStore, error) {
	app, err := api.AppFromCtx(c)
	if err != nil {
		return nil, err
	}
	m := app.Mail()
	if m == nil {
		return nil, utils.UnauthorizedError("Not signed in", nil)
	}
	return m, nil
}

func unreadCount(inbox []models.Mail) int {
	n := 0
	for _, m := range inbox {
		if !m.Read {
			n++
		}
	}
	return n
}

// HandleHome renders the dashboard with mailbox counters.
func (h *MailHandler) HandleHome(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}
	m.FetchInbox(c.Context())
	m.FetchSent(c.Context())
	state := m.State()

	return c.Render("home", fiber.Map{
		"Email":       c.Locals("email"),
		"InboxCount":  len(state.Inbox),
		"SentCount":   len(state.Sent),
		"UnreadCount": unreadCount(state.Inbox),
		"Error":       state.Error,
		"CSRFToken":   middleware.GenerateCSRFToken(c),
	})
}

// HandleInbox renders the inbox page. The list itself refreshes through
// the HTMX partial below.
func (h *MailHandler) HandleInbox(c *fiber.Ctx) error {
	return h.renderMailbox(c, models.PartitionInbox)
}

// HandleSent renders the sent page.
func (h *MailHandler) HandleSent(c *fiber.Ctx) error {
	return h.renderMailbox(c, models.PartitionSent)
}

func (h *MailHandler) renderMailbox(c *fiber.Ctx, view string) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}
	if view == models.PartitionInbox {
		m.FetchInbox(c.Context())
	} else {
		m.FetchSent(c.Context())
	}
	state := m.State()

	mails := state.Inbox
	if view == models.PartitionSent {
		mails = state.Sent
	}

	return c.Render("mailbox", fiber.Map{
		"Email":     c.Locals("email"),
		"View":      view,
		"Mails":     mails,
		"Loading":   state.LoadingInbox && view == models.PartitionInbox,
		"Selected":  state.Selected,
		"Error":     state.Error,
		"PollEvery": h.pollEvery,
		"CSRFToken": middleware.GenerateCSRFToken(c),
	})
}

// ShowCompose renders the compose form.
func (h *MailHandler) ShowCompose(c *fiber.Ctx) error {
	return c.Render("compose", fiber.Map{
		"Email":     c.Locals("email"),
		"To":        c.Query("to", ""),
		"Subject":   "",
		"Body":      "",
		"Error":     "",
		"CSRFToken": middleware.GenerateCSRFToken(c),
	})
}

// HandleCompose processes the compose form and sends the mail.
func (h *MailHandler) HandleCompose(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}

	to := strings.TrimSpace(c.FormValue("to"))
	subject := strings.TrimSpace(c.FormValue("subject"))
	body := c.FormValue("html")

	renderError := func(message string) error {
		return c.Status(fiber.StatusBadRequest).Render("compose", fiber.Map{
			"Email":     c.Locals("email"),
			"Error":     message,
			"To":        to,
			"Subject":   subject,
			"Body":      body,
			"CSRFToken": middleware.GenerateCSRFToken(c),
		})
	}

	if to == "" {
		return renderError("Recipient is required")
	}
	if !utils.ValidEmailShape(to) {
		return renderError("Invalid recipient address")
	}

	from, _ := c.Locals("email").(string)
	m.SendMail(c.Context(), from, to, subject, utils.SanitizeMailHTML(body))

	if state := m.State(); state.Error != "" {
		return renderError(state.Error)
	}
	return c.Redirect("/sent")
}

// MailList is the HTMX partial polled by the mailbox pages. Unchanged
// inbox data short-circuits in the store, so re-rendering stays cheap.
func (h *MailHandler) MailList(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}

	view := c.Params("view")
	if view != models.PartitionInbox && view != models.PartitionSent {
		return utils.BadRequestError("Unknown mailbox view", nil)
	}
	if view == models.PartitionInbox {
		m.FetchInbox(c.Context())
	} else {
		m.FetchSent(c.Context())
	}
	state := m.State()

	mails := state.Inbox
	if view == models.PartitionSent {
		mails = state.Sent
	}

	return c.Render("partials/mail_list", fiber.Map{
		"View":     view,
		"Mails":    mails,
		"Selected": state.Selected,
		"Error":    state.Error,
	}, "")
}

// ViewMail opens one mail in the reading pane. Opening an unread inbox
// mail marks it read.
func (h *MailHandler) ViewMail(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}

	view := c.Params("view")
	mailID := c.Params("id")
	if mailID == "" {
		return utils.BadRequestError("Mail ID required", nil)
	}

	state := m.State()
	mails := state.Inbox
	if view == models.PartitionSent {
		mails = state.Sent
	}

	var found *models.Mail
	for i := range mails {
		if mails[i].ID == mailID {
			found = &mails[i]
			break
		}
	}
	if found == nil {
		return utils.NotFoundError("Mail not found", nil)
	}

	m.SelectMail(*found)
	if view == models.PartitionInbox && !found.Read {
		m.MarkRead(c.Context(), mailID)
	}
	state = m.State()

	return c.Render("partials/mail_view", fiber.Map{
		"View":  view,
		"Mail":  state.Selected,
		"Error": state.Error,
	}, "")
}

// CloseMail clears the reading pane.
func (h *MailHandler) CloseMail(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}
	m.ClearSelected()
	return c.SendString("")
}

// DeleteMail removes a record from the given view and returns the
// refreshed list partial.
func (h *MailHandler) DeleteMail(c *fiber.Ctx) error {
	m, err := h.mailStore(c)
	if err != nil {
		return err
	}

	view := c.Params("view")
	mailID := c.Params("id")
	if mailID == "" {
		return utils.BadRequestError("Mail ID required", nil)
	}

	switch view {
	case models.PartitionInbox:
		m.DeleteInboxMail(c.Context(), mailID)
	case models.PartitionSent:
		m.DeleteSentMail(c.Context(), mailID)
	default:
		return utils.BadRequestError("Unknown mailbox view", nil)
	}

	state := m.State()
	mails := state.Inbox
	if view == models.PartitionSent {
		mails = state.Sent
	}

	return c.Render("partials/mail_list", fiber.Map{
		"View":     view,
		"Mails":    mails,
		"Selected": state.Selected,
		"Error":    state.Error,
	}, "")
}
