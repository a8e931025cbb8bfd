package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/accessory"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/config"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/fakhrymubarak/weatherlink-sensor/internal/service"
	"go.uber.org/zap"
)

type AccessoryHandler struct {
	AccessoryService service.AccessoryServiceInterface
	logger           *zap.SugaredLogger
}

// AccessoryResponse is the body of GET /accessory.
type AccessoryResponse struct {
	Information    accessory.Information         `json:"information"`
	Characteristic accessory.CharacteristicValue `json:"current_temperature"`
}

func NewAccessoryHandler(svc service.AccessoryServiceInterface, logger ...*zap.SugaredLogger) *AccessoryHandler {
	l := config.GetLogger()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &AccessoryHandler{
		AccessoryService: svc,
		logger:           l,
	}
}

// Register mounts the accessory routes on mux.
func (h *AccessoryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/temperature", h.HandleTemperature)
	mux.HandleFunc("/accessory", h.HandleAccessory)
	mux.HandleFunc("/healthz", h.HandleHealth)
}

func (h *AccessoryHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Errorw("could not encode json", "error", err)
	}
}

func (h *AccessoryHandler) writeError(w http.ResponseWriter, statusCode int, errMsg string) {
	h.writeJSONResponse(w, statusCode, model.Response{
		Error:   &errMsg,
		Message: "Error",
	})
}

// allowGet answers 405 for anything but GET and reports whether to continue.
func (h *AccessoryHandler) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

func (h *AccessoryHandler) HandleTemperature(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}

	reading, err := h.AccessoryService.GetCurrentTemperature(r.Context())
	if err != nil {
		h.logger.Warnw("Temperature request failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "Failed to fetch temperature")
		return
	}

	message := "Success"
	if reading.Stale {
		message = "Stale"
	}
	h.writeJSONResponse(w, http.StatusOK, model.Response{
		Data:    reading,
		Message: message,
	})
}

func (h *AccessoryHandler) HandleAccessory(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}
	h.writeJSONResponse(w, http.StatusOK, model.Response{
		Data: AccessoryResponse{
			Information:    h.AccessoryService.Information(),
			Characteristic: h.AccessoryService.Characteristic(),
		},
		Message: "Success",
	})
}

func (h *AccessoryHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
