package controller

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/disparoja/dispatch-backend/internal/service"

	"github.com/go-chi/chi/v5"
)

type UsageController struct {
	Usage *service.UsageService
}

func (c *UsageController) GetInstanceUsage(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}
	instanceName := chi.URLParam(r, "instanceName")

	used, err := c.Usage.UsedToday(tenant, instanceName, service.FeatureWhatsAppMessages)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"instance_name": instanceName,
		"used_today":    used,
	})
}

// ResetInstanceUsage zeroes today's counter for an instance. Operator
// override for when a ban scare turned out to be a false alarm.
func (c *UsageController) ResetInstanceUsage(w http.ResponseWriter, r *http.Request) {
	tenant := tenantID(r)
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}
	instanceName := chi.URLParam(r, "instanceName")

	if err := c.Usage.Reset(tenant, instanceName, service.FeatureWhatsAppMessages); err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"message": fmt.Sprintf("quota reset for instance %s", instanceName),
	})
}
