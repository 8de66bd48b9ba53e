package luarmor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/bimoraa/atomic-bot-sub001/internal/store"
)

const (
	collectionHWIDResets   = "hwid_resets"
	collectionUnlockedMode = "unlocked_mode"
)

type resetRecord struct {
	DiscordID string    `json:"discord_id"`
	Count     int       `json:"count"`
	LastReset time.Time `json:"last_reset"`
}

type unlockedRecord struct {
	DiscordID string    `json:"discord_id"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// recordHWIDReset bumps the persisted per-user reset counter. Tracking is
// best effort: a store failure must not fail the reset itself.
func (c *Client) recordHWIDReset(ctx context.Context, discordID string) {
	if c.persistent == nil {
		return
	}
	var rec resetRecord
	err := c.persistent.FindOne(ctx, collectionHWIDResets, discordID, &rec)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("reset tracking read failed", zap.String("discord_id", discordID), zap.Error(err))
		return
	}
	rec.DiscordID = discordID
	rec.Count++
	rec.LastReset = c.now()
	if err := c.persistent.UpsertOne(ctx, collectionHWIDResets, discordID, &rec); err != nil {
		c.logger.Warn("reset tracking write failed", zap.String("discord_id", discordID), zap.Error(err))
	}
}

// ResetStats returns the persisted HWID reset tracking for a user. A user
// with no recorded resets returns a zero count and zero time.
func (c *Client) ResetStats(ctx context.Context, discordID string) (int, time.Time, error) {
	if c.persistent == nil {
		return 0, time.Time{}, nil
	}
	var rec resetRecord
	err := c.persistent.FindOne(ctx, collectionHWIDResets, discordID, &rec)
	if errors.Is(err, store.ErrNotFound) {
		return 0, time.Time{}, nil
	}
	if err != nil {
		return 0, time.Time{}, err
	}
	return rec.Count, rec.LastReset, nil
}

// SetUnlockedMode persists the auto-enable unlocked-mode flag for a user.
func (c *Client) SetUnlockedMode(ctx context.Context, discordID string, enabled bool) error {
	if c.persistent == nil {
		return nil
	}
	rec := unlockedRecord{
		DiscordID: discordID,
		Enabled:   enabled,
		UpdatedAt: c.now(),
	}
	return c.persistent.UpsertOne(ctx, collectionUnlockedMode, discordID, &rec)
}

// UnlockedMode reads the persisted unlocked-mode flag for a user.
func (c *Client) UnlockedMode(ctx context.Context, discordID string) (bool, error) {
	if c.persistent == nil {
		return false, nil
	}
	var rec unlockedRecord
	err := c.persistent.FindOne(ctx, collectionUnlockedMode, discordID, &rec)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Enabled, nil
}
