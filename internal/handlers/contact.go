package handlers

import (
	"fmt"
	"net/http"

	"github.com/AnshRaj112/municipal-portal-backend/internal/services"
	"github.com/AnshRaj112/municipal-portal-backend/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate sanitises the form in place and returns the first failing field.
func (c *ContactRequest) Validate() error {
	c.Name = utils.SanitizeText(c.Name)
	c.Email = utils.NormalizeEmail(c.Email)
	c.Subject = utils.SanitizeText(c.Subject)
	c.Message = utils.SanitizeText(c.Message)

	if err := utils.MinLength("name", c.Name, 2, "Name must be at least 2 characters"); err != nil {
		return err
	}
	if !utils.IsValidEmail(c.Email) {
		return &utils.ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	if err := utils.MinLength("subject", c.Subject, 3, "Subject must be at least 3 characters"); err != nil {
		return err
	}
	return utils.MinLength("message", c.Message, 10, "Message must be at least 10 characters long")
}

// SubmitContact acknowledges a contact-form message. Messages are not
// stored; they are logged and, when a mailer is configured, forwarded to
// the contact inbox.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	ip := h.Resolver.ClientIP(r)
	if !h.allow(w, r, services.ActionContact, ip) {
		return
	}

	ref := uuid.NewString()
	h.screen("contact", ref, req.Subject, req.Message)
	h.log.Info("contact form received",
		zap.String("reference", ref),
		zap.String("name", req.Name),
		zap.String("email", req.Email),
		zap.String("subject", req.Subject),
		zap.String("ip", ip),
	)

	if h.Mailer != nil && h.ContactInbox != "" {
		err := h.Mailer.Send(r.Context(), services.Email{
			To:        h.ContactInbox,
			Subject:   "[Contact] " + req.Subject,
			PlainText: fmt.Sprintf("From: %s <%s>\nReference: %s\n\n%s", req.Name, req.Email, ref, req.Message),
			ReplyTo:   req.Email,
		})
		if err != nil {
			h.log.Error("failed to forward contact message", zap.String("reference", ref), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Thank you for contacting us. We'll get back to you soon!",
	})
}
