// Package service implements the federation domain managers: operators,
// entities, evidence, attachments, blacklist and the audit log. Each
// manager wraps the persistence store, consults the cache on reads, and
// emits audit entries for state changes through the audit service.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/cache"
	"github.com/abuseshield/federation/pkg/federation/models"
)

// Cache key prefixes, one per record kind.
const (
	keyOperator    = "operator:"
	keyOperatorKey = "operator_key:" // api key -> uuid alias
	keyEntity      = "entity:"
	keyEntityHash  = "entity_hash:" // hash -> uuid alias
	keyEvidence    = "evidence:"
	keyBlacklist   = "blacklist:"
)

// cacheReader loads a record of type T through the cache: try the cache
// first, fall back to the store on a miss, and populate the cache (policy
// permitting) on the way out. Cache failures degrade to a plain store
// read unless the cache is configured to throw.
func cacheRead[T any](
	ctx context.Context,
	c cache.Cache,
	policy config.CacheKindPolicy,
	prefix, id string,
	fromFields func(map[string]string) (*T, error),
	toFields func(*T) map[string]string,
	load func(context.Context) (*T, error),
) (*T, error) {
	key := prefix + id
	if policy.Enabled {
		fields, found, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			if rec, err := fromFields(fields); err == nil {
				return rec, nil
			}
			// Unparseable entry: drop it and fall through to the store.
			_ = c.Invalidate(ctx, key)
		}
	}

	rec, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if policy.Enabled {
		exceeded, err := c.LimitExceeded(ctx, prefix, policy.Limit)
		if err != nil {
			return nil, err
		}
		if !exceeded {
			if err := c.Set(ctx, key, toFields(rec), policy.TTL); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

// preCache stores a freshly written record when pre_cache_enabled is
// set, so the first read after a write is already warm. Write-path
// caching is best effort and never fails the write behind it.
func preCache(
	ctx context.Context,
	c cache.Cache,
	cfg *config.Config,
	policy config.CacheKindPolicy,
	prefix, id string,
	fields map[string]string,
) {
	if !cfg.Cache.PreCacheEnabled || !policy.Enabled {
		return
	}
	if exceeded, err := c.LimitExceeded(ctx, prefix, policy.Limit); err != nil || exceeded {
		return
	}
	_ = c.Set(ctx, prefix+id, fields, policy.TTL)
}

func boolField(b bool) string {
	return strconv.FormatBool(b)
}

func parseBoolField(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func timeField(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeField(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func operatorToFields(op *models.Operator) map[string]string {
	return map[string]string{
		"uuid":             op.UUID,
		"name":             op.Name,
		"api_key":          op.APIKey,
		"manage_operators": boolField(op.ManageOperators),
		"manage_blacklist": boolField(op.ManageBlacklist),
		"is_client":        boolField(op.IsClient),
		"disabled":         boolField(op.Disabled),
		"created":          timeField(op.Created),
		"updated":          timeField(op.Updated),
	}
}

func operatorFromFields(fields map[string]string) (*models.Operator, error) {
	created, err := parseTimeField(fields["created"])
	if err != nil {
		return nil, err
	}
	updated, err := parseTimeField(fields["updated"])
	if err != nil {
		return nil, err
	}
	return &models.Operator{
		UUID:            fields["uuid"],
		Name:            fields["name"],
		APIKey:          fields["api_key"],
		ManageOperators: parseBoolField(fields["manage_operators"]),
		ManageBlacklist: parseBoolField(fields["manage_blacklist"]),
		IsClient:        parseBoolField(fields["is_client"]),
		Disabled:        parseBoolField(fields["disabled"]),
		Created:         created,
		Updated:         updated,
	}, nil
}

func entityToFields(e *models.Entity) map[string]string {
	return map[string]string{
		"uuid":    e.UUID,
		"hash":    e.Hash,
		"id":      e.ID,
		"host":    e.Host,
		"created": timeField(e.Created),
	}
}

func entityFromFields(fields map[string]string) (*models.Entity, error) {
	created, err := parseTimeField(fields["created"])
	if err != nil {
		return nil, err
	}
	return &models.Entity{
		UUID:    fields["uuid"],
		Hash:    fields["hash"],
		ID:      fields["id"],
		Host:    fields["host"],
		Created: created,
	}, nil
}

func evidenceToFields(ev *models.Evidence) map[string]string {
	return map[string]string{
		"uuid":         ev.UUID,
		"entity":       ev.EntityUUID,
		"operator":     ev.OperatorUUID,
		"confidential": boolField(ev.Confidential),
		"text_content": ev.TextContent,
		"tag":          ev.Tag,
		"note":         ev.Note,
		"created":      timeField(ev.Created),
	}
}

func evidenceFromFields(fields map[string]string) (*models.Evidence, error) {
	created, err := parseTimeField(fields["created"])
	if err != nil {
		return nil, err
	}
	return &models.Evidence{
		UUID:         fields["uuid"],
		EntityUUID:   fields["entity"],
		OperatorUUID: fields["operator"],
		Confidential: parseBoolField(fields["confidential"]),
		TextContent:  fields["text_content"],
		Tag:          fields["tag"],
		Note:         fields["note"],
		Created:      created,
	}, nil
}

func blacklistToFields(b *models.Blacklist) map[string]string {
	fields := map[string]string{
		"uuid":     b.UUID,
		"operator": b.OperatorUUID,
		"entity":   b.EntityUUID,
		"type":     string(b.Type),
		"lifted":   boolField(b.Lifted),
		"created":  timeField(b.Created),
	}
	if b.EvidenceUUID != nil {
		fields["evidence"] = *b.EvidenceUUID
	}
	if b.LiftedBy != nil {
		fields["lifted_by"] = *b.LiftedBy
	}
	if b.Expires != nil {
		fields["expires"] = timeField(*b.Expires)
	}
	return fields
}

func blacklistFromFields(fields map[string]string) (*models.Blacklist, error) {
	created, err := parseTimeField(fields["created"])
	if err != nil {
		return nil, err
	}
	rec := &models.Blacklist{
		UUID:         fields["uuid"],
		OperatorUUID: fields["operator"],
		EntityUUID:   fields["entity"],
		Type:         models.BlacklistType(fields["type"]),
		Lifted:       parseBoolField(fields["lifted"]),
		Created:      created,
	}
	if v, ok := fields["evidence"]; ok && v != "" {
		rec.EvidenceUUID = &v
	}
	if v, ok := fields["lifted_by"]; ok && v != "" {
		rec.LiftedBy = &v
	}
	if v, ok := fields["expires"]; ok && v != "" {
		expires, err := parseTimeField(v)
		if err != nil {
			return nil, err
		}
		rec.Expires = &expires
	}
	return rec, nil
}

// clampPage normalizes pagination input: limit is clamped to [1, max]
// (zero or out-of-range values become max) and page to >= 1.
func clampPage(limit, page, max int) (int, int) {
	if limit < 1 || limit > max {
		limit = max
	}
	if page < 1 {
		page = 1
	}
	return limit, page
}
