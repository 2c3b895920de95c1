package queue

// DispatchJob is the payload enqueued once per lead at admission time. It is
// immutable after enqueue; rescheduling only changes the delivery delay.
type DispatchJob struct {
	LeadID       string   `json:"lead_id"`
	LeadName     string   `json:"lead_name"`
	CampaignID   string   `json:"campaign_id"`
	TenantID     string   `json:"tenant_id"`
	Recipient    string   `json:"recipient"`
	Message      string   `json:"message"`
	Variations   []string `json:"variations,omitempty"`
	InstanceName string   `json:"instance_name"`
	DailyLimit   int      `json:"daily_limit"`
	IsFirst      bool     `json:"is_first"`
}
