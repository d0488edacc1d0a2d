package telemetry

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/guidecane/internal/monitoring"
)

// AttachAdminRoutes mounts the debug endpoints on mux: live SQL through
// tailsql, a session listing and an on-demand database backup.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.DB, &tailsql.DBOptions{
		Label: "Telemetry DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("sessions", "Recorded sessions (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions, err := s.Sessions(100)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to list sessions: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sessions)
	}))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(s.serveBackup))
	return nil
}

func (s *Store) serveBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "guidecane-backup-")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create backup dir: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			monitoring.Logf("[Telemetry] failed to remove backup dir: %v", err)
		}
	}()

	name := fmt.Sprintf("telemetry-backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(dir, name)
	if _, err := s.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	f, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to open backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		monitoring.Logf("[Telemetry] backup transfer failed: %v", err)
	}
}
