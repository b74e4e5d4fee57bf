package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/ledgercsv"
	applog "kakeibo/internal/log"
)

// handleBackupCSV streams the full ledger as CSV and leaves a rotated
// snapshot in the backup dir as a side effect.
func (s *Server) handleBackupCSV(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context(), "")
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List transactions error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	if s.backupDir != "" {
		path, err := ledgercsv.WriteBackup(s.backupDir, txs)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Backup write failed", "error", err)
		} else {
			if _, err := ledgercsv.KeepNewest(s.backupDir, s.backupKeep); err != nil {
				s.logger.ErrorContext(r.Context(), "Backup prune failed", "error", err)
			}
			s.logger.InfoContext(r.Context(), "Backup snapshot written", "path", path)
		}
	}

	filename := fmt.Sprintf("kakeibo_backup_%s.csv", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := ledgercsv.Export(w, txs); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export failed", "error", err)
	}
}

// handleImportCSV accepts a multipart upload with a file part and a mode
// field. Append adds rows to the existing ledger; replace swaps it out
// entirely. A file with any invalid row is rejected whole.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form upload")
		return
	}

	mode := strings.TrimSpace(r.FormValue("mode"))
	if mode == "" {
		mode = "append"
	}
	if mode != "append" && mode != "replace" {
		writeError(w, http.StatusBadRequest, "mode must be append or replace")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	txs, err := ledgercsv.Import(file)
	if err != nil {
		var rowErrs ledgercsv.RowErrors
		if errors.As(err, &rowErrs) {
			writeError(w, http.StatusUnprocessableEntity, "invalid rows: "+rowErrs.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var imported []core.Transaction
	switch mode {
	case "replace":
		imported, err = s.store.ReplaceAll(r.Context(), txs)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Replace import failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to replace ledger")
			return
		}
		s.publish(r.Context(), amqp.OpReplaced, 0)
	default:
		// All rows land in one batch; a store failure leaves the ledger as it
		// was, and events only go out for committed rows.
		imported, err = s.store.AppendAll(r.Context(), txs)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Append import failed",
				"rows", len(txs), "error", err)
			writeError(w, http.StatusInternalServerError, "failed to append transactions")
			return
		}
		for _, tx := range imported {
			s.publish(r.Context(), amqp.OpCreated, tx.ID)
		}
	}

	s.invalidateRegistries()
	s.logger.InfoContext(r.Context(), "CSV import completed", "mode", mode, "count", len(imported))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "import completed",
		"imported_count": len(imported),
	})
}

// handleDownloadLog serves the newest server log file as an attachment.
func (s *Server) handleDownloadLog(w http.ResponseWriter, r *http.Request) {
	if s.logDir == "" {
		writeError(w, http.StatusNotFound, "log directory not configured")
		return
	}
	path, err := applog.LatestLogFile(s.logDir)
	if err != nil {
		writeError(w, http.StatusNotFound, "no log file available")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

type clientLogRequest struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component"`
}

// handleClientLog forwards a client-side log record into the server log.
// Always 204: the client treats this as fire-and-forget.
func (s *Server) handleClientLog(w http.ResponseWriter, r *http.Request) {
	var req clientLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	component := sanitizeInput(req.Component)
	if component == "" {
		component = applog.ComponentClient
	}
	msg := sanitizeInput(req.Message)

	switch strings.ToLower(strings.TrimSpace(req.Level)) {
	case "error":
		s.logger.ErrorContext(r.Context(), "Client log", "client_component", component, "message", msg)
	case "warn", "warning":
		s.logger.WarnContext(r.Context(), "Client log", "client_component", component, "message", msg)
	case "debug":
		s.logger.DebugContext(r.Context(), "Client log", "client_component", component, "message", msg)
	default:
		s.logger.InfoContext(r.Context(), "Client log", "client_component", component, "message", msg)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLogout clears the session cookie. Session issuance lives outside
// this service; the endpoint exists so clients have a uniform logout call.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.InfoContext(r.Context(), "Session cleared")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
