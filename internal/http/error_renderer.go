package httpx

import (
	"context"
	"errors"
	"maps"
	"net/http"

	"github.com/senpy/sen-dashboard/internal/domain/guard"
	apperrors "github.com/senpy/sen-dashboard/internal/errors"
	"github.com/senpy/sen-dashboard/internal/validation"
)

// ErrorOpts contains the options needed to re-render a form after a failed
// submission.
type ErrorOpts struct {
	W http.ResponseWriter
	R *http.Request
	// Err is the error that occurred (optional when only field errors are set)
	Err error
	// FieldErrors contains field-level validation errors (field name → error message)
	FieldErrors map[string]string
	// Template is the fragment re-rendered with the errors, e.g. "report-step-details".
	Template string
	// PageMeta contains page metadata (title, current page, etc.)
	PageMeta PageMeta
	// Data carries the submitted values back into the form.
	Data map[string]any
	// StatusCode overrides the status derived from Err.
	StatusCode int
	// ShowToast triggers a toast notification with the error message.
	ShowToast bool
}

// statusFor maps an application error to its HTTP status.
func statusFor(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeAuthentication:
		return http.StatusUnauthorized
	case apperrors.ErrCodeValidation, apperrors.ErrCodeGeolocationUnavailable:
		return http.StatusBadRequest
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
}

// RenderFormError re-renders a form fragment with a general message and
// per-field errors pulled from the error chain.
func (h *UIHandlers) RenderFormError(opts ErrorOpts) {
	builder := NewTemplateData(opts.R, opts.PageMeta)

	fieldErrors := map[string]string{}
	maps.Copy(fieldErrors, opts.FieldErrors)
	general := processError(opts.Err, fieldErrors)

	builder.WithFieldErrors(fieldErrors)
	switch {
	case general != "":
		builder.WithError(general)
	case len(fieldErrors) > 0:
		builder.WithError(errMsgFixFields)
	}
	for k, v := range opts.Data {
		builder.With(k, v)
	}

	if opts.ShowToast && general != "" {
		triggerToast(opts.W, general, "error")
	}

	status := opts.StatusCode
	if status == 0 {
		status = http.StatusBadRequest
		if opts.Err != nil {
			status = statusFor(opts.Err)
		}
	}
	h.renderFragment(opts.W, opts.R, status, opts.Template, builder.Build())
}

// processError returns the user-facing message for err and copies any
// validation field errors into fieldErrors. It returns "" for nil.
func processError(err error, fieldErrors map[string]string) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "La solicitud tardó demasiado. Intente nuevamente."
	}
	if errors.Is(err, context.Canceled) {
		return "La solicitud fue cancelada."
	}

	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		maps.Copy(fieldErrors, fe)
	}

	return apperrors.UserMessage(err, errMsgUnexpected)
}

// renderError renders the error page, or the error fragment for htmx swaps,
// with the status derived from err.
func (h *UIHandlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger().ErrorContext(r.Context(), "request failed",
			"error", err,
			"path", r.URL.Path,
			"method", r.Method,
		)
	}
	h.renderErrorStatus(w, r, status, apperrors.UserMessage(err, errMsgUnexpected))
}

func (h *UIHandlers) renderErrorStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := NewTemplateData(r, PageMeta{Title: http.StatusText(status)}).
		WithError(message).
		With("Status", status).
		With("StatusText", http.StatusText(status)).
		Build()

	if IsHTMX(r) {
		h.renderFragment(w, r, status, "error-fragment", data)
		return
	}
	if err := h.T.RenderError(w, status, data); err != nil {
		h.logAndRenderTemplateError(w, r, err, "error page render")
	}
}

// Unmatched sends a request that no route serves to /home or /login by
// session state, the same place the guard sends unknown paths.
func (h *UIHandlers) Unmatched(w http.ResponseWriter, r *http.Request) {
	s, _ := GetSessionFromContext(r.Context())
	redirectTo(w, r, guard.Fallback(guard.StateOf(s)))
}

// Forbidden renders the 403 page shown to non-administrators.
func (h *UIHandlers) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, apperrors.Forbidden("No tiene permisos para acceder a esta sección."))
}

// CSRFFailed renders the page shown when a form is submitted without a valid token.
func (h *UIHandlers) CSRFFailed(w http.ResponseWriter, r *http.Request) {
	h.renderErrorStatus(w, r, http.StatusForbidden, "La sesión del formulario expiró. Recargue la página e intente nuevamente.")
}
