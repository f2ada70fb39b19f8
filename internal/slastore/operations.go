package slastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

const (
	activeSetKey = "sla:active"
	recordKeyFmt = "sla:record:%s:%s"
	leaseKey     = "reconciler:lease"
)

func recordKey(tenantID, findingID string) string {
	return fmt.Sprintf(recordKeyFmt, tenantID, findingID)
}

func member(tenantID, findingID string) string {
	return tenantID + "|" + findingID
}

// Register stores an SLA record and adds it to the active set. Idempotent:
// re-registering an existing record keeps the original deadline and fired
// escalation level, so broker redeliveries cannot reset a timer.
func (c *Client) Register(ctx context.Context, record *models.SLARecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal sla record: %w", err)
	}

	// SetNX keeps the original deadline and fired level on re-registration
	if err := c.rdb.SetNX(ctx, recordKey(record.TenantID, record.FindingID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store sla record: %w", err)
	}

	if err := c.rdb.SAdd(ctx, activeSetKey, member(record.TenantID, record.FindingID)).Err(); err != nil {
		return fmt.Errorf("failed to add to active set: %w", err)
	}

	return nil
}

// Get fetches one SLA record, nil if absent
func (c *Client) Get(ctx context.Context, tenantID, findingID string) (*models.SLARecord, error) {
	data, err := c.rdb.Get(ctx, recordKey(tenantID, findingID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sla record: %w", err)
	}

	var record models.SLARecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sla record: %w", err)
	}
	return &record, nil
}

// ListActive returns every open SLA record
func (c *Client) ListActive(ctx context.Context) ([]*models.SLARecord, error) {
	members, err := c.rdb.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active sla records: %w", err)
	}

	records := make([]*models.SLARecord, 0, len(members))
	for _, m := range members {
		tenantID, findingID, ok := splitMember(m)
		if !ok {
			continue
		}
		record, err := c.Get(ctx, tenantID, findingID)
		if err != nil || record == nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// SetEscalation persists the escalation level already fired. Written before
// the alert is published: a crash in between re-fires nothing, which keeps
// each level at most-once per finding.
func (c *Client) SetEscalation(ctx context.Context, record *models.SLARecord, level models.EscalationLevel) error {
	record.Escalation = level

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal sla record: %w", err)
	}

	if err := c.rdb.Set(ctx, recordKey(record.TenantID, record.FindingID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update escalation level: %w", err)
	}
	return nil
}

// Remove deletes an SLA record once its finding reached a closed state
func (c *Client) Remove(ctx context.Context, tenantID, findingID string) error {
	if err := c.rdb.Del(ctx, recordKey(tenantID, findingID)).Err(); err != nil {
		return fmt.Errorf("failed to delete sla record: %w", err)
	}
	if err := c.rdb.SRem(ctx, activeSetKey, member(tenantID, findingID)).Err(); err != nil {
		return fmt.Errorf("failed to remove from active set: %w", err)
	}
	return nil
}

// AcquireLease takes the single-flight reconciler lease. Only one
// reconciler instance may run across the whole deployment; the lease
// expires on its own if the holder dies mid-run.
func (c *Client) AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, leaseKey, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire reconciler lease: %w", err)
	}
	return ok, nil
}

// ReleaseLease drops the lease if still held by this holder
func (c *Client) ReleaseLease(ctx context.Context, holder string) error {
	current, err := c.rdb.Get(ctx, leaseKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read reconciler lease: %w", err)
	}
	if current != holder {
		return nil
	}
	return c.rdb.Del(ctx, leaseKey).Err()
}

func splitMember(m string) (string, string, bool) {
	for i := 0; i < len(m); i++ {
		if m[i] == '|' {
			return m[:i], m[i+1:], true
		}
	}
	return "", "", false
}
