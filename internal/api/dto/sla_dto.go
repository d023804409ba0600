package dto

// SLACheckRequest triggers one sweep. WarnRatio falls back to the configured
// default when omitted; DryRun counts without writing.
type SLACheckRequest struct {
	WarnRatio *float64 `json:"warn_ratio"`
	DryRun    bool     `json:"dry_run"`
}

// SLACheckResponse reports one sweep's emissions.
type SLACheckResponse struct {
	Warnings int  `json:"warnings"`
	Breaches int  `json:"breaches"`
	DryRun   bool `json:"dry_run"`
}
