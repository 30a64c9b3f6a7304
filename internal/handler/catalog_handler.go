package handler

import (
	"net/http"
	"strings"

	"github.com/pesio-ai/be-app-crm/internal/service"
)

// catalogRoutes registers CRUD routes for a services or statuses table. Each
// action is gated by the matching grant of the module.
func (h *HTTPHandler) catalogRoutes(mux *http.ServeMux, module string) {
	catalog := h.svc.Catalogs[module]
	if catalog == nil {
		return
	}
	c := catalogHandler{h: h, svc: catalog, module: module, item: catalogItems[module]}
	base := "/" + module

	mux.Handle("GET "+base, h.authed(h.grant(module, service.ActionView, c.index)))
	mux.Handle("POST "+base, h.authed(h.grant(module, service.ActionCreate, c.store)))
	mux.Handle("GET "+base+"/{id}", h.authed(h.grant(module, service.ActionView, c.show)))
	mux.Handle("PUT "+base+"/{id}", h.authed(h.grant(module, service.ActionEdit, c.update)))
	mux.Handle("DELETE "+base+"/{id}", h.authed(h.grant(module, service.ActionDelete, c.destroy)))
}

// catalogItems names a single entry of each catalog in responses
var catalogItems = map[string]string{
	service.ModuleServices: "service",
	service.ModuleStatuses: "status",
}

type catalogHandler struct {
	h      *HTTPHandler
	svc    *service.CatalogService
	module string
	item   string
}

type catalogBody struct {
	Name string `json:"name"`
}

func (c catalogHandler) index(w http.ResponseWriter, r *http.Request) {
	entries, err := c.svc.Index(r.Context())
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{c.module: entries})
}

func (c catalogHandler) store(w http.ResponseWriter, r *http.Request) {
	var body catalogBody
	if err := decodeJSON(r, &body); err != nil {
		c.h.writeError(w, r, err)
		return
	}

	entry, err := c.svc.Store(r.Context(), ActorFrom(r.Context()), body.Name)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": capitalize(c.item) + " created successfully.",
		c.item:    entry,
	})
}

func (c catalogHandler) show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}

	entry, err := c.svc.Show(r.Context(), id)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (c catalogHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}

	var body catalogBody
	if err := decodeJSON(r, &body); err != nil {
		c.h.writeError(w, r, err)
		return
	}

	entry, err := c.svc.Update(r.Context(), id, body.Name)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": capitalize(c.item) + " updated successfully.",
		c.item:    entry,
	})
}

func (c catalogHandler) destroy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}

	if err := c.svc.Destroy(r.Context(), id); err != nil {
		c.h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": capitalize(c.item) + " deleted successfully."})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
