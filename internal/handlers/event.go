package handlers

import (
	"net/http"
	"time"

	"github.com/inventariopro/inventariopro/httpx"
	"github.com/inventariopro/inventariopro/internal/services"
	"go.uber.org/zap"
)

// EventHandler serves events and their rooms.
type EventHandler struct {
	Svc *services.EventService
	Log *zap.Logger
}

func NewEventHandler(svc *services.EventService, log *zap.Logger) *EventHandler {
	return &EventHandler{Svc: svc, Log: nopIfNil(log)}
}

func (h *EventHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /events", h.List)
	mux.HandleFunc("POST /events", h.Create)
	mux.HandleFunc("GET /events/{id}", h.Get)
	mux.HandleFunc("PUT /events/{id}", h.Update)
	mux.HandleFunc("DELETE /events/{id}", h.Delete)

	mux.HandleFunc("GET /events/{id}/rooms", h.ListRooms)
	mux.HandleFunc("POST /events/{id}/rooms", h.CreateRoom)
	mux.HandleFunc("GET /rooms/{id}", h.GetRoom)
	mux.HandleFunc("PUT /rooms/{id}", h.RenameRoom)
	mux.HandleFunc("DELETE /rooms/{id}", h.DeleteRoom)
}

// eventRequest takes RFC 3339 timestamps for the dates.
type eventRequest struct {
	Name        string     `json:"name"`
	Location    string     `json:"location"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	Description string     `json:"description"`
}

func (e eventRequest) input() services.EventInput {
	return services.EventInput{
		Name:        e.Name,
		Location:    e.Location,
		StartDate:   e.StartDate,
		EndDate:     e.EndDate,
		Description: e.Description,
	}
}

type roomRequest struct {
	Name string `json:"name"`
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.Svc.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, events)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in eventRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	e, err := h.Svc.CreateEvent(r.Context(), in.input())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.Svc.GetEvent(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in eventRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	e, err := h.Svc.UpdateEvent(r.Context(), id, in.input())
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteEvent(r.Context(), id); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rooms, err := h.Svc.ListRooms(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rooms)
}

func (h *EventHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in roomRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	room, err := h.Svc.CreateRoom(r.Context(), id, in.Name)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, room)
}

func (h *EventHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.Svc.GetRoom(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, room)
}

func (h *EventHandler) RenameRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in roomRequest
	if err := httpx.Decode(r, &in); err != nil {
		badJSON(w)
		return
	}
	room, err := h.Svc.RenameRoom(r.Context(), id, in.Name)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, room)
}

func (h *EventHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteRoom(r.Context(), id); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
