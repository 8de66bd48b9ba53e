package luarmor

// User is the provider's entitlement record. The issued key and the Discord
// id are the two lookup keys; either resolves the same record. Identifier is
// the hardware lock assigned on first use.
type User struct {
	UserKey         string `json:"user_key"`
	DiscordID       string `json:"discord_id,omitempty"`
	Note            string `json:"note,omitempty"`
	Status          string `json:"status,omitempty"`
	Banned          int    `json:"banned,omitempty"`
	BanReason       string `json:"ban_reason,omitempty"`
	BanExpire       int64  `json:"ban_expire,omitempty"`
	UnbanToken      string `json:"unban_token,omitempty"`
	Identifier      string `json:"identifier,omitempty"`
	TotalResets     int    `json:"total_resets,omitempty"`
	LastReset       int64  `json:"last_reset,omitempty"`
	TotalExecutions int    `json:"total_executions,omitempty"`
	AuthExpire      int64  `json:"auth_expire,omitempty"`
	RegisteredAt    int64  `json:"registered_at,omitempty"`
	LastUsedAt      int64  `json:"last_used_at,omitempty"`
}

// CreateUserParams are the inputs for CreateUser. AuthExpire is a unix
// timestamp; zero means a non-expiring key.
type CreateUserParams struct {
	DiscordID  string `json:"discord_id,omitempty"`
	Note       string `json:"note,omitempty"`
	AuthExpire int64  `json:"auth_expire,omitempty"`
}

// Settings is the provider project configuration surface the bot touches.
type Settings struct {
	Name            string `json:"name,omitempty"`
	WebhookURL      string `json:"webhook_url,omitempty"`
	UnbanWebhookURL string `json:"unban_webhook_url,omitempty"`
	HWIDCheck       *bool  `json:"hwid_check,omitempty"`
}

// KeyStats is the per-API-key usage summary.
type KeyStats struct {
	TotalUsers      int `json:"total_users"`
	ActiveUsers     int `json:"active_users"`
	BannedUsers     int `json:"banned_users"`
	TotalExecutions int `json:"total_executions"`
}

// Result is the uniform shape every public operation returns. Operations
// never panic or leak raw errors past this boundary.
//
// Success=false with Message set means "try again later" (rate limited or
// circuit open) and callers should show a wait notice. Success=false with
// Error set is a hard failure. Success=true with a zero Data value means the
// call worked but found nothing.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

func succeed[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func failValidation[T any](msg string) Result[T] {
	return Result[T]{Success: false, Error: msg}
}
