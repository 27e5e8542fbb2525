// Package http serves the wallet dashboard: HTML pages and HTMX partials
// rendered from embedded templates, JSON chart payloads, and the
// operational endpoints.
//
// This file builds HTMX responses: a fluent API for HX-Trigger headers and
// consistent error formatting.
package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"carteira/internal/core"
)

// HTMXResponseBuilder accumulates status, headers, HX-Trigger events and a
// body, then writes them in one go.
type HTMXResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a response builder with a default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data interface{}) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerSimulationDone signals a finished simulation so the page can
// refresh dependent fragments. Mode is "tempo" or "taxa".
func (b *HTMXResponseBuilder) TriggerSimulationDone(mode string) *HTMXResponseBuilder {
	return b.Trigger("simulation:done", map[string]string{"mode": mode})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a show-notification trigger.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]interface{}{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

// TriggerSuccessNotification is a convenience method for success notifications.
func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

// TriggerErrorNotification is a convenience method for error notifications.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the response body as bytes.
func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

// BodyString sets the response body as a string.
func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body = []byte(content)
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates a standard error response with HTML formatting.
// The message is HTML-escaped.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}

// statusForError maps computation errors onto response codes. Every engine
// sentinel is a client-correctable 422; anything else is a 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidInput),
		errors.Is(err, core.ErrInvalidGranularity),
		errors.Is(err, core.ErrFieldNotFound),
		errors.Is(err, core.ErrAggregation),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrGoalUnreachable),
		errors.Is(err, core.ErrNoSolution):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// errorMessage picks the user-facing text for a computation error. The two
// simulation outcomes get explanatory guidance; other sentinels carry safe
// messages of their own; unexpected errors stay generic.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrGoalUnreachable):
		return "Meta inalcançável: o patrimônio não atinge o valor desejado nem em 100 anos. Aumente os aportes ou a taxa."
	case errors.Is(err, core.ErrNoSolution):
		return "Nenhuma taxa mensal de até 100% alcança a meta nesse prazo. Alongue o prazo ou aumente os aportes."
	case statusForError(err) == http.StatusUnprocessableEntity:
		return err.Error()
	}
	return "Erro interno ao processar a requisição"
}

// CoreErrorResponse renders a computation error with the matching status,
// never masking it behind defaults.
func CoreErrorResponse(err error) *HTMXResponseBuilder {
	return ErrorResponse(statusForError(err), errorMessage(err))
}
