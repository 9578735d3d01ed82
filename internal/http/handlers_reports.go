package httpx

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/senpy/sen-dashboard/internal/domain/emergency"
)

// Report form steps.
const (
	reportStepDetails = 1
	reportStepContact = 2
)

// step1Fields are the form fields collected by the first step.
var step1Fields = map[string]bool{"type": true, "title": true, "description": true, "severity": true}

func reportMeta() PageMeta {
	return PageMeta{Title: "Nuevo Reporte | " + appTitle, PageTitle: "Reportar Emergencia", CurrentPage: PageReport}
}

// reportFormData carries the submitted values and the step to render.
func reportFormData(step int, form emergency.CreateReportRequest) map[string]any {
	return map[string]any{
		"Step":        step,
		"Form":        form,
		"ReportTypes": emergency.ReportTypes,
		"Severities":  []emergency.Severity{emergency.SeverityLow, emergency.SeverityMedium, emergency.SeverityHigh},
	}
}

func defaultReportForm() emergency.CreateReportRequest {
	return emergency.CreateReportRequest{ReportDetails: emergency.ReportDetails{Severity: emergency.SeverityMedium}}
}

// NewReport renders the first step of the report form, as a modal fragment
// for htmx or inside the shell otherwise.
// GET /reports/new.
func (h *UIHandlers) NewReport(w http.ResponseWriter, r *http.Request) {
	if WantsPartial(r) {
		data := NewTemplateData(r, reportMeta()).Build()
		for k, v := range reportFormData(reportStepDetails, defaultReportForm()) {
			data[k] = v
		}
		h.renderFragment(w, r, http.StatusOK, "report-form", data)
		return
	}
	h.Page(w, r, PageSpec{
		Meta: reportMeta(),
		Fetch: func(_ context.Context, data map[string]any) error {
			for k, v := range reportFormData(reportStepDetails, defaultReportForm()) {
				data[k] = v
			}
			return nil
		},
	})
}

// ReportStep validates the first step and moves on to the location and
// contact step. A "back" submission returns to the first step unvalidated.
// POST /reports/step.
func (h *UIHandlers) ReportStep(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.RenderFormError(ErrorOpts{W: w, R: r, Template: "report-form", PageMeta: reportMeta(),
			FieldErrors: map[string]string{"_": "Formulario inválido."},
			Data:        reportFormData(reportStepDetails, defaultReportForm())})
		return
	}
	form := emergency.CreateReportRequest{ReportDetails: parseReportDetails(r)}
	if r.PostFormValue("back") != "" {
		data := NewTemplateData(r, reportMeta()).Build()
		for k, v := range reportFormData(reportStepDetails, form) {
			data[k] = v
		}
		h.renderFragment(w, r, http.StatusOK, "report-form", data)
		return
	}
	if err := h.Reports.ValidateDetails(form.ReportDetails); err != nil {
		h.RenderFormError(ErrorOpts{W: w, R: r, Err: err, Template: "report-form", PageMeta: reportMeta(),
			Data: reportFormData(reportStepDetails, form)})
		return
	}

	data := NewTemplateData(r, reportMeta()).Build()
	for k, v := range reportFormData(reportStepContact, form) {
		data[k] = v
	}
	h.renderFragment(w, r, http.StatusOK, "report-form", data)
}

// CreateReport records a complete submission. Errors in first-step fields
// send the citizen back to that step.
// POST /reports.
func (h *UIHandlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.RenderFormError(ErrorOpts{W: w, R: r, Template: "report-form", PageMeta: reportMeta(),
			FieldErrors: map[string]string{"_": "Formulario inválido."},
			Data:        reportFormData(reportStepDetails, defaultReportForm())})
		return
	}
	form, parseErrs := parseReportRequest(r)
	if len(parseErrs) > 0 {
		h.RenderFormError(ErrorOpts{W: w, R: r, FieldErrors: parseErrs, Template: "report-form", PageMeta: reportMeta(),
			Data: reportFormData(stepForErrors(parseErrs), form)})
		return
	}

	report, err := h.Reports.Create(r.Context(), sessionID(r), form)
	if err != nil {
		errs := map[string]string{}
		processError(err, errs)
		h.RenderFormError(ErrorOpts{W: w, R: r, Err: err, Template: "report-form", PageMeta: reportMeta(),
			Data: reportFormData(stepForErrors(errs), form)})
		return
	}

	SetHXTrigger(w, "reportCreated", map[string]string{"id": report.ID})
	triggerToast(w, "Reporte enviado: "+report.DisplayID(), "success")
	data := NewTemplateData(r, reportMeta()).With("Report", report).Build()
	h.renderFragment(w, r, http.StatusCreated, "report-success", data)
}

// stepForErrors picks the earliest step holding one of the failing fields.
func stepForErrors(errs map[string]string) int {
	for field := range errs {
		if step1Fields[field] {
			return reportStepDetails
		}
	}
	return reportStepContact
}

func parseReportDetails(r *http.Request) emergency.ReportDetails {
	d := emergency.ReportDetails{
		Type:        emergency.ReportType(strings.TrimSpace(r.PostFormValue("type"))),
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Severity:    emergency.Severity(strings.TrimSpace(r.PostFormValue("severity"))),
	}
	if d.Severity == "" {
		d.Severity = emergency.SeverityMedium
	}
	return d
}

// parseReportRequest reads the whole form. Unparseable numbers are reported
// per field; empty optional numbers stay nil.
func parseReportRequest(r *http.Request) (emergency.CreateReportRequest, map[string]string) {
	errs := map[string]string{}
	req := emergency.CreateReportRequest{
		ReportDetails: parseReportDetails(r),
		Address:       r.PostFormValue("address"),
		ReporterName:  r.PostFormValue("reporter_name"),
		ReporterPhone: r.PostFormValue("reporter_phone"),
		ReporterEmail: strings.TrimSpace(r.PostFormValue("reporter_email")),
	}

	if v, ok := optionalFloat(r.PostFormValue("lat")); ok {
		req.Lat = v
	} else {
		errs["lat"] = "Ingrese una latitud numérica."
	}
	if v, ok := optionalFloat(r.PostFormValue("lng")); ok {
		req.Lng = v
	} else {
		errs["lng"] = "Ingrese una longitud numérica."
	}
	if raw := strings.TrimSpace(r.PostFormValue("affected_people")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs["affected_people"] = "Ingrese un número entero."
		} else {
			req.AffectedPeople = &n
		}
	}
	return req, errs
}

func optionalFloat(raw string) (*float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}
