package luarmor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// guard keeps every public operation inside the uniform Result boundary:
// nothing panics or leaks a raw error past it.
func guard[T any](c *Client, op string, fn func() Result[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("operation panic", zap.String("operation", op), zap.Any("panic", r))
			res = Result[T]{Success: false, Error: fmt.Sprintf("internal error in %s", op), IsError: true}
		}
	}()
	return fn()
}

// resultFromError maps a classified failure into the uniform shape. Rate
// limits and an open breaker become a friendly wait notice in Message;
// everything else is a hard error.
func resultFromError[T any](err error) Result[T] {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if TryLater(err) {
			msg := "The licensing service is having issues. Please try again in a minute."
			if apiErr.Type == ErrorTypeRateLimit {
				wait := apiErr.RetryAfter.Round(time.Second)
				if wait <= 0 {
					wait = time.Minute
				}
				msg = fmt.Sprintf("Rate limited. Please try again in %s.", wait)
			}
			return Result[T]{Success: false, Message: msg}
		}
		return Result[T]{Success: false, Error: apiErr.Message, IsError: true}
	}
	return Result[T]{Success: false, Error: err.Error(), IsError: true}
}

func credentialFailure[T any](err *APIError) Result[T] {
	return Result[T]{Success: false, Error: err.Message, IsError: true}
}

func orDefault(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// cacheUser writes the record through both tiers under every lookup key the
// record carries.
func (c *Client) cacheUser(ctx context.Context, u *User) {
	keys := make([]string, 0, 2)
	if u.DiscordID != "" {
		keys = append(keys, "discord:"+u.DiscordID)
	}
	if u.UserKey != "" {
		keys = append(keys, "key:"+u.UserKey)
	}
	if len(keys) > 0 {
		c.cache.PutUser(ctx, u, keys...)
	}
}

func (c *Client) invalidateUser(ctx context.Context, discordID, userKey string) {
	keys := make([]string, 0, 2)
	if discordID != "" {
		keys = append(keys, "discord:"+discordID)
	}
	if userKey != "" {
		keys = append(keys, "key:"+userKey)
	}
	if len(keys) > 0 {
		c.cache.Invalidate(ctx, keys...)
	}
}

// fetchUser is the shared read path: fresh cache, then network, then stale
// cache as a last resort when the provider is failing. A nil user with nil
// error means the call worked and found nothing.
func (c *Client) fetchUser(ctx context.Context, cacheKey, query, opName string) (*User, error) {
	if u, ok := c.cache.GetUser(ctx, cacheKey, c.userFreshness); ok {
		c.metrics.RecordCacheHit("user")
		return u, nil
	}
	c.metrics.RecordCacheMiss("user")

	raw, err := c.request(ctx, http.MethodGet, c.projectPath("/users"+query), nil, PriorityNormal)
	if err != nil {
		if u, ok := c.cache.GetUser(ctx, cacheKey, c.staleWindow); ok {
			c.metrics.RecordStaleServed(opName)
			c.logger.Warn("serving stale cache entry",
				zap.String("key", cacheKey), zap.Error(err))
			return u, nil
		}
		return nil, err
	}

	u, ok := normalizeUsers(raw).first()
	if !ok {
		return nil, nil
	}
	c.cacheUser(ctx, u)
	return u, nil
}

// GetUserByDiscordID fetches the entitlement record linked to a Discord id.
// A successful result with nil Data means no record exists.
func (c *Client) GetUserByDiscordID(ctx context.Context, discordID string) Result[*User] {
	return guard(c, "get_user_by_discord_id", func() Result[*User] {
		if verr := validateDiscordID(discordID); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		u, err, shared := doFlight(c.flights, ctx, "user:discord:"+discordID, func() (*User, error) {
			return c.fetchUser(ctx, "discord:"+discordID, "?discord_id="+discordID, "get_user_by_discord_id")
		})
		if shared {
			c.metrics.RecordDedupHit("get_user_by_discord_id")
		}
		if err != nil {
			return resultFromError[*User](err)
		}
		return succeed(u)
	})
}

// GetUserByKey fetches the entitlement record for an issued key.
func (c *Client) GetUserByKey(ctx context.Context, userKey string) Result[*User] {
	return guard(c, "get_user_by_key", func() Result[*User] {
		if verr := validateUserKey(userKey); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		u, err, shared := doFlight(c.flights, ctx, "user:key:"+userKey, func() (*User, error) {
			return c.fetchUser(ctx, "key:"+userKey, "?user_key="+url.QueryEscape(userKey), "get_user_by_key")
		})
		if shared {
			c.metrics.RecordDedupHit("get_user_by_key")
		}
		if err != nil {
			return resultFromError[*User](err)
		}
		return succeed(u)
	})
}

// ListUsers fetches every user in the project. It is the most expensive and
// most cache-tolerant read, so it gets its own longer freshness window.
func (c *Client) ListUsers(ctx context.Context) Result[[]User] {
	return guard(c, "list_users", func() Result[[]User] {
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[[]User](cerr)
		}

		users, err, shared := doFlight(c.flights, ctx, "users:all", func() ([]User, error) {
			if cached, ok := c.cache.GetList(ctx, c.listFreshness); ok {
				c.metrics.RecordCacheHit("list")
				return cached, nil
			}
			c.metrics.RecordCacheMiss("list")

			raw, err := c.request(ctx, http.MethodGet, c.projectPath("/users"), nil, PriorityLow)
			if err != nil {
				if cached, ok := c.cache.GetList(ctx, c.staleWindow); ok {
					c.metrics.RecordStaleServed("list_users")
					c.logger.Warn("serving stale user list", zap.Error(err))
					return cached, nil
				}
				return nil, err
			}

			env := normalizeUsers(raw)
			var users []User
			switch env.kind {
			case envelopeList:
				users = env.users
			case envelopeSingle:
				users = []User{*env.user}
			}
			c.cache.PutList(ctx, users)
			return users, nil
		})
		if shared {
			c.metrics.RecordDedupHit("list_users")
		}
		if err != nil {
			return resultFromError[[]User](err)
		}
		return succeed(users)
	})
}

// CreateUser provisions a new entitlement.
func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) Result[*User] {
	return guard(c, "create_user", func() Result[*User] {
		if params.DiscordID != "" {
			if verr := validateDiscordID(params.DiscordID); verr != nil {
				return failValidation[*User](verr.Message)
			}
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		raw, err := c.request(ctx, http.MethodPost, c.projectPath("/users"), params, PriorityHigh)
		if err != nil {
			return resultFromError[*User](err)
		}

		ack := parseAck(raw)
		if ack.UserKey == "" && !ack.Success {
			if u, ok := normalizeUsers(raw).first(); ok {
				c.cache.InvalidateList(ctx)
				return succeed(u)
			}
			return Result[*User]{Success: false, Error: orDefault(ack.Message, "failed to create user"), IsError: true}
		}

		u := &User{
			UserKey:    ack.UserKey,
			DiscordID:  params.DiscordID,
			Note:       params.Note,
			AuthExpire: params.AuthExpire,
		}
		c.cache.InvalidateList(ctx)
		return Result[*User]{Success: true, Data: u, Message: ack.Message}
	})
}

// ResetHWIDByKey clears the hardware lock for an issued key. Mutations never
// substitute cached success for a failed provider call.
func (c *Client) ResetHWIDByKey(ctx context.Context, userKey string) Result[*User] {
	return guard(c, "reset_hwid_by_key", func() Result[*User] {
		if verr := validateUserKey(userKey); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		raw, err := c.request(ctx, http.MethodPost, c.projectPath("/users/resethwid"),
			map[string]string{"user_key": userKey}, PriorityHigh)
		if err != nil {
			return resultFromError[*User](err)
		}
		ack := parseAck(raw)
		if !ack.Success {
			return Result[*User]{Success: false, Error: orDefault(ack.Message, "HWID reset failed"), IsError: true}
		}

		c.invalidateUser(ctx, "", userKey)
		return Result[*User]{Success: true, Message: ack.Message}
	})
}

// ResetHWIDByDiscordID clears the hardware lock for the record linked to a
// Discord id. If the id-based endpoint does not report success it falls back
// to the key-based endpoint using the cached or fetched record, since not
// every provider deployment supports both. A successful reset starts a local
// per-user cooldown as a self-service abuse guard.
func (c *Client) ResetHWIDByDiscordID(ctx context.Context, discordID string) Result[*User] {
	return guard(c, "reset_hwid_by_discord_id", func() Result[*User] {
		if verr := validateDiscordID(discordID); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		opKey := "reset:" + discordID
		if remaining, limited := c.cooldowns.Limited(opKey); limited {
			return Result[*User]{
				Success: false,
				Message: fmt.Sprintf("HWID reset is on cooldown. Please try again in %s.", remaining.Round(time.Second)),
			}
		}

		var (
			done    bool
			message string
			userKey string
		)
		raw, err := c.request(ctx, http.MethodPost, c.projectPath("/users/resethwid"),
			map[string]string{"discord_id": discordID}, PriorityHigh)
		if err == nil {
			ack := parseAck(raw)
			done = ack.Success
			message = ack.Message
		}

		if !done {
			u, ferr := c.fetchUser(ctx, "discord:"+discordID, "?discord_id="+discordID, "reset_hwid_fallback")
			switch {
			case ferr != nil:
				err = ferr
			case u == nil || u.UserKey == "":
				return Result[*User]{Success: false, Error: "No license found for this Discord ID", IsError: true}
			default:
				userKey = u.UserKey
				raw, kerr := c.request(ctx, http.MethodPost, c.projectPath("/users/resethwid"),
					map[string]string{"user_key": u.UserKey}, PriorityHigh)
				if kerr != nil {
					err = kerr
				} else {
					ack := parseAck(raw)
					done = ack.Success
					message = orDefault(ack.Message, message)
				}
			}
		}

		if !done {
			if err != nil {
				return resultFromError[*User](err)
			}
			return Result[*User]{Success: false, Error: orDefault(message, "HWID reset failed"), IsError: true}
		}

		c.cooldowns.Set(opKey, c.resetCooldown)
		c.invalidateUser(ctx, discordID, userKey)
		c.recordHWIDReset(ctx, discordID)
		return Result[*User]{Success: true, Message: message}
	})
}

// LinkDiscordID attaches a Discord id to an issued key.
func (c *Client) LinkDiscordID(ctx context.Context, userKey, discordID string) Result[*User] {
	return guard(c, "link_discord_id", func() Result[*User] {
		if verr := validateUserKey(userKey); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if verr := validateDiscordID(discordID); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		raw, err := c.request(ctx, http.MethodPost, c.projectPath("/users/linkdiscord"),
			map[string]string{"user_key": userKey, "discord_id": discordID}, PriorityHigh)
		if err != nil {
			return resultFromError[*User](err)
		}
		ack := parseAck(raw)
		if !ack.Success {
			return Result[*User]{Success: false, Error: orDefault(ack.Message, "failed to link Discord ID"), IsError: true}
		}

		c.invalidateUser(ctx, discordID, userKey)
		c.cache.InvalidateList(ctx)
		return Result[*User]{Success: true, Message: ack.Message}
	})
}

// DeleteUser revokes an issued key.
func (c *Client) DeleteUser(ctx context.Context, userKey string) Result[*User] {
	return guard(c, "delete_user", func() Result[*User] {
		if verr := validateUserKey(userKey); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		raw, err := c.request(ctx, http.MethodDelete,
			c.projectPath("/users?user_key="+url.QueryEscape(userKey)), nil, PriorityHigh)
		if err != nil {
			return resultFromError[*User](err)
		}
		ack := parseAck(raw)
		if !ack.Success {
			return Result[*User]{Success: false, Error: orDefault(ack.Message, "failed to delete user"), IsError: true}
		}

		c.invalidateUser(ctx, "", userKey)
		c.cache.InvalidateList(ctx)
		return Result[*User]{Success: true, Message: ack.Message}
	})
}

// Unban redeems an unban token.
func (c *Client) Unban(ctx context.Context, unbanToken string) Result[*User] {
	return guard(c, "unban", func() Result[*User] {
		if verr := validateUnbanToken(unbanToken); verr != nil {
			return failValidation[*User](verr.Message)
		}
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*User](cerr)
		}

		raw, err := c.request(ctx, http.MethodGet,
			c.projectPath("/users/unban?unban_token="+url.QueryEscape(unbanToken)), nil, PriorityHigh)
		if err != nil {
			return resultFromError[*User](err)
		}
		ack := parseAck(raw)
		if !ack.Success {
			return Result[*User]{Success: false, Error: orDefault(ack.Message, "failed to unban"), IsError: true}
		}
		return Result[*User]{Success: true, Message: ack.Message}
	})
}

// GetSettings reads the provider project settings.
func (c *Client) GetSettings(ctx context.Context) Result[*Settings] {
	return guard(c, "get_settings", func() Result[*Settings] {
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*Settings](cerr)
		}

		raw, err := c.request(ctx, http.MethodGet, c.projectPath(""), nil, PriorityNormal)
		if err != nil {
			return resultFromError[*Settings](err)
		}
		var settings Settings
		if uerr := json.Unmarshal(raw, &settings); uerr != nil {
			return succeed[*Settings](nil)
		}
		return succeed(&settings)
	})
}

// UpdateSettings patches the provider project settings, filling webhook URLs
// from the environment-supplied configuration when not set explicitly.
func (c *Client) UpdateSettings(ctx context.Context, settings Settings) Result[*Settings] {
	return guard(c, "update_settings", func() Result[*Settings] {
		if cerr := c.checkCredentials(); cerr != nil {
			return credentialFailure[*Settings](cerr)
		}

		if settings.WebhookURL == "" {
			settings.WebhookURL = c.cfg.WebhookURL
		}
		if settings.UnbanWebhookURL == "" {
			settings.UnbanWebhookURL = c.cfg.UnbanWebhookURL
		}

		raw, err := c.request(ctx, http.MethodPatch, c.projectPath(""), settings, PriorityHigh)
		if err != nil {
			return resultFromError[*Settings](err)
		}
		ack := parseAck(raw)
		if !ack.Success {
			return Result[*Settings]{Success: false, Error: orDefault(ack.Message, "failed to update settings"), IsError: true}
		}
		return Result[*Settings]{Success: true, Data: &settings, Message: ack.Message}
	})
}

// GetKeyStats reads the API key usage summary.
func (c *Client) GetKeyStats(ctx context.Context) Result[*KeyStats] {
	return guard(c, "get_key_stats", func() Result[*KeyStats] {
		if c.cfg.APIKey == "" {
			return credentialFailure[*KeyStats](&APIError{Type: ErrorTypeClient, Message: "LUARMOR_API_KEY is not configured"})
		}

		raw, err := c.request(ctx, http.MethodGet, "/keys/"+url.PathEscape(c.cfg.APIKey)+"/stats", nil, PriorityLow)
		if err != nil {
			return resultFromError[*KeyStats](err)
		}
		var stats KeyStats
		if uerr := json.Unmarshal(raw, &stats); uerr != nil {
			return succeed[*KeyStats](nil)
		}
		return succeed(&stats)
	})
}
