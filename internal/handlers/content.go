package handlers

import (
	"net/http"

	"github.com/AnshRaj112/municipal-portal-backend/internal/content"
	"github.com/go-chi/chi/v5"
)

type DepartmentsResponse struct {
	Success     bool                 `json:"success"`
	Departments []content.Department `json:"departments"`
}

type DepartmentResponse struct {
	Success    bool                `json:"success"`
	Department *content.Department `json:"department"`
}

type ZonalOfficesResponse struct {
	Success bool                  `json:"success"`
	Zones   []content.ZonalOffice `json:"zones"`
}

type ZonalOfficeResponse struct {
	Success bool                 `json:"success"`
	Zone    *content.ZonalOffice `json:"zone"`
}

type ServicesResponse struct {
	Success  bool              `json:"success"`
	Services []content.Service `json:"services"`
}

type CategoriesResponse struct {
	Success    bool               `json:"success"`
	Categories []content.Category `json:"categories"`
}

func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DepartmentsResponse{Success: true, Departments: h.Content.Departments})
}

func (h *Handler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	d, err := h.Content.Department(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, DepartmentResponse{Success: true, Department: d})
}

func (h *Handler) ListZonalOffices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ZonalOfficesResponse{Success: true, Zones: h.Content.ZonalOffices})
}

func (h *Handler) GetZonalOffice(w http.ResponseWriter, r *http.Request) {
	z, err := h.Content.ZonalOffice(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ZonalOfficeResponse{Success: true, Zone: z})
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServicesResponse{Success: true, Services: h.Content.Services})
}

func (h *Handler) ListComplaintCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CategoriesResponse{Success: true, Categories: h.Content.Categories()})
}
