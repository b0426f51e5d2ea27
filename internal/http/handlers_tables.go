package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"allowance/internal/core"
	applog "allowance/internal/log"
)

// handleExport streams a table's bytes as a download. A missing file
// parameter means the ledger.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("file"))
	if name == "" {
		name = core.TableLedger.String()
	}
	table, err := core.ParseTable(name)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	data, err := s.svc.Export(r.Context(), table)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	NewResponse().
		Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, table)).
		Body("text/csv; charset=utf-8", data).
		Write(w)
}

// handleImport replaces a table with the uploaded csvfile and redirects
// back to the UI.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, "upload too large").Write(w)
			return
		}
		BadRequestError("bad request").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	name := strings.TrimSpace(r.FormValue("file"))
	upload, _, err := r.FormFile("csvfile")
	if name == "" || err != nil {
		BadRequestError("bad request").Write(w)
		return
	}
	defer upload.Close()

	table, err := core.ParseTable(name)
	if err != nil {
		writeError(w, r, applog.OpImport, err)
		return
	}
	if err := s.svc.Import(r.Context(), table, upload); err != nil {
		writeError(w, r, applog.OpImport, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Table imported",
		applog.FieldTable, table.String(),
		applog.FieldOperation, applog.OpImport)
	http.Redirect(w, r, "/", http.StatusFound)
}
