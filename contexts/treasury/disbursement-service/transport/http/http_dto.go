package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type SettingsResponse struct {
	TokenRef           string `json:"token_ref"`
	AmountCeiling      string `json:"amount_ceiling"`
	TreasuryCredential string `json:"treasury_credential"`
	DailyTarget        int    `json:"daily_target"`
	LifetimeTarget     int    `json:"lifetime_target"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

// UpdateSettingsRequest is a partial update; omitted fields keep their stored value.
type UpdateSettingsRequest struct {
	TokenRef           string `json:"token_ref"`
	AmountCeiling      string `json:"amount_ceiling"`
	TreasuryCredential string `json:"treasury_credential"`
	DailyTarget        *int   `json:"daily_target"`
	LifetimeTarget     *int   `json:"lifetime_target"`
}

type StatusResponse struct {
	Running        bool   `json:"running"`
	NextPendingAt  string `json:"next_pending_at,omitempty"`
	PendingCount   int    `json:"pending_count"`
	SubmittedCount int    `json:"submitted_count"`
	ConfirmedCount int    `json:"confirmed_count"`
	FailedCount    int    `json:"failed_count"`
	IdleIdentities int    `json:"idle_identities"`
}

type IdentitySummaryResponse struct {
	Total    int `json:"total"`
	Unused   int `json:"unused"`
	Reserved int `json:"reserved"`
	Used     int `json:"used"`
}

type RuntimeResponse struct {
	Running bool `json:"running"`
}

type ResetResponse struct {
	Reset   bool `json:"reset"`
	Created int  `json:"created"`
}

type ScheduleRunResponse struct {
	ScheduledCount int    `json:"scheduled_count"`
	Reason         string `json:"reason,omitempty"`
}

type SweepDTO struct {
	Processed int `json:"processed"`
	Submitted int `json:"submitted"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

type SettleRunResponse struct {
	Submission   SweepDTO `json:"submission"`
	Confirmation SweepDTO `json:"confirmation"`
}

type DisbursementDTO struct {
	ID            string `json:"id"`
	IdentityID    string `json:"identity_id"`
	TokenRef      string `json:"token_ref"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	ScheduledFor  string `json:"scheduled_for"`
	LedgerTxRef   string `json:"ledger_tx_ref,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type RecentResponse struct {
	Items []DisbursementDTO `json:"items"`
}
