package handlers

import (
	"log/slog"
	"net/http"
)

// ReloadResponse reports the settings in effect after a reload.
type ReloadResponse struct {
	Clouds   []string `json:"clouds"`
	LogLevel string   `json:"log_level"`
}

// ConfigReloader reloads its configuration and exposes the result.
type ConfigReloader interface {
	Reloader
	ConfigProvider
}

// ReloadHandler handles requests to reload configuration from disk. Only
// the cloud list and the log level take effect without a restart.
type ReloadHandler struct {
	logger   *slog.Logger
	reloader ConfigReloader
}

// NewReloadHandler creates a new ReloadHandler.
func NewReloadHandler(logger *slog.Logger, reloader ConfigReloader) *ReloadHandler {
	return &ReloadHandler{
		logger:   logger,
		reloader: reloader,
	}
}

// ServeHTTP implements http.Handler.
func (h *ReloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("reloading configuration")

	if err := h.reloader.Reload(); err != nil {
		h.logger.Error("failed to reload configuration", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload configuration: "+err.Error())
		return
	}

	cfg := h.reloader.Config()
	clouds := cfg.Clouds
	if clouds == nil {
		clouds = []string{}
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		Clouds:   clouds,
		LogLevel: cfg.Logging.Level,
	})
}
