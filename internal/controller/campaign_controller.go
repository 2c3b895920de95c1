package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/disparoja/dispatch-backend/internal/errors"
	"github.com/disparoja/dispatch-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

// tenantID pulls the tenant from the gateway-injected header. Auth lives in
// front of this service.
func tenantID(r *http.Request) string {
	return r.Header.Get("X-Tenant-ID")
}

func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}

	var input service.CreateCampaignInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.Create(tenant, input)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}

	campaigns, err := c.CampaignService.ListCampaigns(tenant)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{"data": campaigns})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignDetails(chi.URLParam(r, "id"), tenant)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(details)
}

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}

	result, err := c.CampaignService.Start(r.Context(), chi.URLParam(r, "id"), tenant, userID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(result)
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.Pause(chi.URLParam(r, "id"), tenant)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(campaign)
}

// writeError maps the admission error taxonomy onto status codes, keeping
// the human-actionable message intact.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *appErrors.CampaignNotFoundError
		running    *appErrors.AlreadyRunningError
		quota      *appErrors.QuotaExceededError
		empty      *appErrors.EmptyCampaignError
		processed  *appErrors.AllLeadsProcessedError
		noInstance *appErrors.InstanceUnresolvedError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &running):
		status = http.StatusConflict
	case errors.As(err, &quota):
		status = http.StatusTooManyRequests
	case errors.As(err, &empty), errors.As(err, &processed), errors.As(err, &noInstance):
		status = http.StatusUnprocessableEntity
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
