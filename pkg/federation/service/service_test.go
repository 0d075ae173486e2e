package service

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/abuseshield/federation/pkg/config"
	"github.com/abuseshield/federation/pkg/federation/cache"
	"github.com/abuseshield/federation/pkg/federation/models"
	"github.com/abuseshield/federation/pkg/federation/storage"
	"github.com/abuseshield/federation/pkg/federation/store"
)

type testEnv struct {
	cfg         *config.Config
	store       *store.GORMStore
	files       *storage.Store
	operators   *OperatorService
	entities    *EntityService
	evidence    *EvidenceService
	attachments *AttachmentService
	blacklist   *BlacklistService
	auditlog    *AuditLogService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.APIKey = strings.Repeat("M", models.APIKeyLength)
	cfg.Server.StoragePath = filepath.Join(t.TempDir(), "storage")
	cfg.Cache = config.CacheConfig{}

	st, err := store.New(&config.DatabaseConfig{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	files, err := storage.New(cfg.Server.StoragePath, cfg.Server.MaxStorageFiles)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	c := cache.Noop{}
	return &testEnv{
		cfg:         cfg,
		store:       st,
		files:       files,
		operators:   NewOperatorService(st, c, cfg),
		entities:    NewEntityService(st, c, files, cfg),
		evidence:    NewEvidenceService(st, c, files, cfg),
		attachments: NewAttachmentService(st, files, cfg),
		blacklist:   NewBlacklistService(st, c, cfg),
		auditlog:    NewAuditLogService(st, cfg),
	}
}

func TestCreateOperator(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if len(op.APIKey) != models.APIKeyLength {
		t.Errorf("API key length = %d, want %d", len(op.APIKey), models.APIKeyLength)
	}
	if op.ManageOperators || op.ManageBlacklist || op.IsClient {
		t.Error("new operator should have no permissions")
	}

	tests := []struct {
		name    string
		opName  string
		wantErr error
	}{
		{name: "empty name", opName: "", wantErr: models.ErrInvalidArgument},
		{name: "too long", opName: strings.Repeat("x", models.MaxOperatorNameLength+1), wantErr: models.ErrInvalidArgument},
		{name: "reserved name", opName: models.MasterOperatorName, wantErr: models.ErrInvalidArgument},
		{name: "duplicate", opName: "alice", wantErr: models.ErrDuplicateOperator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.operators.CreateOperator(ctx, tt.opName); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateOperator(%q) = %v, want %v", tt.opName, err, tt.wantErr)
			}
		})
	}
}

func TestGetMasterOperator(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	master, err := env.operators.GetMasterOperator(ctx)
	if err != nil {
		t.Fatalf("GetMasterOperator: %v", err)
	}
	if !master.IsMaster() {
		t.Error("materialized operator is not master")
	}
	if !master.ManageOperators || !master.ManageBlacklist || !master.IsClient {
		t.Error("master should carry all permissions")
	}
	if master.APIKey != env.cfg.Server.APIKey {
		t.Error("master key does not match configuration")
	}

	again, err := env.operators.GetMasterOperator(ctx)
	if err != nil {
		t.Fatalf("second GetMasterOperator: %v", err)
	}
	if again.UUID != master.UUID {
		t.Error("master row materialized twice")
	}

	// A rotated configured key is tracked on the stored row.
	env.cfg.Server.APIKey = strings.Repeat("N", models.APIKeyLength)
	rotated, err := env.operators.GetMasterOperator(ctx)
	if err != nil {
		t.Fatalf("GetMasterOperator after rotation: %v", err)
	}
	if rotated.APIKey != env.cfg.Server.APIKey {
		t.Error("rotated key not persisted")
	}
}

func TestMasterOperatorImmutable(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	master, err := env.operators.GetMasterOperator(ctx)
	if err != nil {
		t.Fatalf("GetMasterOperator: %v", err)
	}

	if _, err := env.operators.DisableOperator(ctx, master.UUID); !errors.Is(err, models.ErrMasterImmutable) {
		t.Errorf("disable: got %v, want ErrMasterImmutable", err)
	}
	if _, err := env.operators.RefreshAPIKey(ctx, master.UUID); !errors.Is(err, models.ErrMasterImmutable) {
		t.Errorf("refresh: got %v, want ErrMasterImmutable", err)
	}
	if err := env.operators.DeleteOperator(ctx, master.UUID); !errors.Is(err, models.ErrMasterImmutable) {
		t.Errorf("delete: got %v, want ErrMasterImmutable", err)
	}
	if _, err := env.operators.SetManageOperators(ctx, master.UUID, false); !errors.Is(err, models.ErrMasterImmutable) {
		t.Errorf("toggle: got %v, want ErrMasterImmutable", err)
	}
}

func TestDisableEnableOperator(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}

	if _, err := env.operators.EnableOperator(ctx, op.UUID); !errors.Is(err, models.ErrAlreadyEnabled) {
		t.Errorf("enabling an enabled operator: got %v, want ErrAlreadyEnabled", err)
	}
	if _, err := env.operators.DisableOperator(ctx, op.UUID); err != nil {
		t.Fatalf("DisableOperator: %v", err)
	}
	if _, err := env.operators.DisableOperator(ctx, op.UUID); !errors.Is(err, models.ErrAlreadyDisabled) {
		t.Errorf("disabling twice: got %v, want ErrAlreadyDisabled", err)
	}
	if _, err := env.operators.EnableOperator(ctx, op.UUID); err != nil {
		t.Fatalf("EnableOperator: %v", err)
	}
}

func TestRefreshAPIKey(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	oldKey := op.APIKey

	refreshed, err := env.operators.RefreshAPIKey(ctx, op.UUID)
	if err != nil {
		t.Fatalf("RefreshAPIKey: %v", err)
	}
	if refreshed.APIKey == oldKey {
		t.Error("key unchanged after refresh")
	}
	if len(refreshed.APIKey) != models.APIKeyLength {
		t.Errorf("refreshed key length = %d", len(refreshed.APIKey))
	}

	if _, err := env.operators.GetOperatorByAPIKey(ctx, oldKey); !errors.Is(err, models.ErrOperatorNotFound) {
		t.Errorf("old key still authenticates: %v", err)
	}
	if _, err := env.operators.GetOperatorByAPIKey(ctx, refreshed.APIKey); err != nil {
		t.Errorf("new key does not authenticate: %v", err)
	}
}

func TestRegisterEntity(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	entity, created, err := env.entities.RegisterEntity(ctx, "abuser", "example.com")
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}
	if !created {
		t.Error("first registration should create")
	}
	if entity.Hash != models.HashEntity("abuser", "example.com") {
		t.Error("hash mismatch")
	}

	again, created, err := env.entities.RegisterEntity(ctx, "abuser", "example.com")
	if err != nil {
		t.Fatalf("second RegisterEntity: %v", err)
	}
	if created {
		t.Error("second registration should not create")
	}
	if again.UUID != entity.UUID {
		t.Error("idempotent registration returned a different UUID")
	}

	if _, _, err := env.entities.RegisterEntity(ctx, "", "example.com"); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("empty id: got %v, want ErrInvalidArgument", err)
	}
	long := strings.Repeat("x", models.MaxEntityFieldLength+1)
	if _, _, err := env.entities.RegisterEntity(ctx, long, ""); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("oversized id: got %v, want ErrInvalidArgument", err)
	}
}

func TestResolveEntity(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	entity, _, err := env.entities.RegisterEntity(ctx, "abuser", "example.com")
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	byUUID, err := env.entities.ResolveEntity(ctx, entity.UUID)
	if err != nil || byUUID.UUID != entity.UUID {
		t.Errorf("resolve by UUID: %v", err)
	}
	byHash, err := env.entities.ResolveEntity(ctx, entity.Hash)
	if err != nil || byHash.UUID != entity.UUID {
		t.Errorf("resolve by hash: %v", err)
	}
	if _, err := env.entities.ResolveEntity(ctx, "garbage"); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("resolve garbage: got %v, want ErrInvalidArgument", err)
	}
}

func TestBlacklistEntity(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "admin")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	entity, _, err := env.entities.RegisterEntity(ctx, "abuser", "example.com")
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	// By hash, no expiry.
	rec, err := env.blacklist.BlacklistEntity(ctx, op.UUID, entity.Hash, models.BlacklistSpam, "", nil)
	if err != nil {
		t.Fatalf("BlacklistEntity by hash: %v", err)
	}
	if rec.EntityUUID != entity.UUID {
		t.Error("hash not resolved to entity UUID")
	}

	// Expiry below the configured minimum is rejected.
	tooSoon := time.Now().Add(time.Minute)
	if _, err := env.blacklist.BlacklistEntity(ctx, op.UUID, entity.UUID, models.BlacklistSpam, "", &tooSoon); !errors.Is(err, models.ErrExpiresTooSoon) {
		t.Errorf("near expiry: got %v, want ErrExpiresTooSoon", err)
	}
	farEnough := time.Now().Add(env.cfg.Server.MinBlacklistTime + time.Minute)
	if _, err := env.blacklist.BlacklistEntity(ctx, op.UUID, entity.UUID, models.BlacklistSpam, "", &farEnough); err != nil {
		t.Errorf("valid expiry rejected: %v", err)
	}

	if _, err := env.blacklist.BlacklistEntity(ctx, op.UUID, entity.UUID, models.BlacklistType("RUDENESS"), "", nil); !errors.Is(err, models.ErrInvalidBlacklistType) {
		t.Errorf("bad type: got %v, want ErrInvalidBlacklistType", err)
	}
}

func TestQueryEntity(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "admin")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	entity, _, err := env.entities.RegisterEntity(ctx, "abuser", "example.com")
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	if _, err := env.evidence.AddEvidence(ctx, entity.UUID, op.UUID, "public report", "", "", false); err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}
	if _, err := env.evidence.AddEvidence(ctx, entity.UUID, op.UUID, "secret report", "", "", true); err != nil {
		t.Fatalf("AddEvidence confidential: %v", err)
	}
	rec, err := env.blacklist.BlacklistEntity(ctx, op.UUID, entity.UUID, models.BlacklistSpam, "", nil)
	if err != nil {
		t.Fatalf("BlacklistEntity: %v", err)
	}
	if _, err := env.blacklist.LiftBlacklist(ctx, rec.UUID, op.UUID); err != nil {
		t.Fatalf("LiftBlacklist: %v", err)
	}

	public, err := env.entities.QueryEntity(ctx, entity, false, false)
	if err != nil {
		t.Fatalf("QueryEntity: %v", err)
	}
	if len(public.Evidence) != 1 {
		t.Errorf("public evidence = %d, want 1", len(public.Evidence))
	}
	if len(public.Blacklist) != 0 {
		t.Errorf("public blacklist = %d, want 0 (record lifted)", len(public.Blacklist))
	}

	full, err := env.entities.QueryEntity(ctx, entity, true, true)
	if err != nil {
		t.Fatalf("full QueryEntity: %v", err)
	}
	if len(full.Evidence) != 2 {
		t.Errorf("full evidence = %d, want 2", len(full.Evidence))
	}
	if len(full.Blacklist) != 1 {
		t.Errorf("full blacklist = %d, want 1", len(full.Blacklist))
	}
}

func TestAddEvidenceValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "admin")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	entity, _, err := env.entities.RegisterEntity(ctx, "abuser", "")
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}

	atCap := strings.Repeat("x", models.MaxEvidenceTextLength)
	if _, err := env.evidence.AddEvidence(ctx, entity.UUID, op.UUID, atCap, "", "", false); err != nil {
		t.Errorf("text at the cap rejected: %v", err)
	}
	if _, err := env.evidence.AddEvidence(ctx, entity.UUID, op.UUID, atCap+"x", "", "", false); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("text over the cap: got %v, want ErrInvalidArgument", err)
	}

	missing := "123e4567-e89b-12d3-a456-426614174000"
	if _, err := env.evidence.AddEvidence(ctx, missing, op.UUID, "x", "", "", false); !errors.Is(err, models.ErrEntityNotFound) {
		t.Errorf("missing entity: got %v, want ErrEntityNotFound", err)
	}
}

func TestAttachmentLifecycle(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "admin")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	entity, _, err := env.entities.RegisterEntity(ctx, "abuser", "")
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}
	ev, err := env.evidence.AddEvidence(ctx, entity.UUID, op.UUID, "report", "", "", false)
	if err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}

	att, err := env.attachments.Upload(ctx, ev.UUID, "../logs/dump.txt", strings.NewReader("plain text content"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if att.FileName != "dump.txt" {
		t.Errorf("FileName = %q, want dump.txt", att.FileName)
	}
	if att.FileSize != int64(len("plain text content")) {
		t.Errorf("FileSize = %d", att.FileSize)
	}
	if !strings.HasPrefix(att.FileMime, "text/plain") {
		t.Errorf("FileMime = %q, want text/plain", att.FileMime)
	}

	gotAtt, f, err := env.attachments.OpenFile(ctx, att.UUID)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.Close()
	if gotAtt.UUID != att.UUID {
		t.Error("OpenFile returned a different row")
	}

	if err := env.attachments.DeleteAttachment(ctx, att.UUID); err != nil {
		t.Fatalf("DeleteAttachment: %v", err)
	}
	if _, err := env.attachments.GetAttachment(ctx, att.UUID); !errors.Is(err, models.ErrAttachmentNotFound) {
		t.Errorf("row survives delete: %v", err)
	}
	n, err := env.files.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("orphan files after delete: %d", n)
	}
}

func TestUploadEmptyFile(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	op, err := env.operators.CreateOperator(ctx, "admin")
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	entity, _, err := env.entities.RegisterEntity(ctx, "abuser", "")
	if err != nil {
		t.Fatalf("RegisterEntity: %v", err)
	}
	ev, err := env.evidence.AddEvidence(ctx, entity.UUID, op.UUID, "report", "", "", false)
	if err != nil {
		t.Fatalf("AddEvidence: %v", err)
	}

	if _, err := env.attachments.Upload(ctx, ev.UUID, "empty.bin", strings.NewReader("")); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("empty upload: got %v, want ErrInvalidArgument", err)
	}

	// Neither a row nor a file may exist for the rejected upload.
	n, err := env.files.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("orphan files after empty upload: %d", n)
	}
	count, err := env.attachments.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 0 {
		t.Errorf("attachment rows after empty upload: %d", count)
	}
}

func TestUploadToMissingEvidence(t *testing.T) {
	env := setupEnv(t)

	missing := "123e4567-e89b-12d3-a456-426614174000"
	_, err := env.attachments.Upload(context.Background(), missing, "x.txt", strings.NewReader("x"))
	if !errors.Is(err, models.ErrEvidenceNotFound) {
		t.Fatalf("got %v, want ErrEvidenceNotFound", err)
	}

	// The rejected upload must not leave a file behind.
	n, err := env.files.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("orphan files after failed upload: %d", n)
	}
}

func TestAuditCreateEntryNeverFails(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// A broken operator reference violates the FK; the entry is dropped
	// and logged but the call returns normally.
	bogus := "123e4567-e89b-12d3-a456-426614174000"
	env.auditlog.CreateEntry(ctx, models.AuditOther, "dangling ref", &bogus, nil)

	count, err := env.auditlog.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 0 {
		t.Errorf("entry with dangling reference persisted: %d", count)
	}

	env.auditlog.CreateEntry(ctx, models.AuditOther, "valid entry", nil, nil)
	count, err = env.auditlog.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 1 {
		t.Errorf("valid entry not persisted: %d", count)
	}
}

func TestPreCachePopulatesOnWrite(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("Failed to parse miniredis port: %v", err)
	}

	run := func(t *testing.T, preCacheEnabled bool) (*testEnv, *cache.RedisCache) {
		t.Helper()

		env := setupEnv(t)
		env.cfg.Cache = config.CacheConfig{
			Enabled:         true,
			Host:            mr.Host(),
			Port:            port,
			PreCacheEnabled: preCacheEnabled,
			Operators:       config.CacheKindPolicy{Enabled: true, Limit: 100, TTL: time.Minute},
			Entities:        config.CacheKindPolicy{Enabled: true, Limit: 100, TTL: time.Minute},
			Evidence:        config.CacheKindPolicy{Enabled: true, Limit: 100, TTL: time.Minute},
			Blacklist:       config.CacheKindPolicy{Enabled: true, Limit: 100, TTL: time.Minute},
		}
		c, err := cache.New(context.Background(), &env.cfg.Cache)
		if err != nil {
			t.Fatalf("Failed to connect cache: %v", err)
		}
		t.Cleanup(func() { c.Close() })

		env.operators = NewOperatorService(env.store, c, env.cfg)
		env.entities = NewEntityService(env.store, c, env.files, env.cfg)
		env.evidence = NewEvidenceService(env.store, c, env.files, env.cfg)
		env.blacklist = NewBlacklistService(env.store, c, env.cfg)
		return env, c
	}

	t.Run("enabled", func(t *testing.T) {
		env, c := run(t, true)
		ctx := context.Background()

		op, err := env.operators.CreateOperator(ctx, "alice")
		if err != nil {
			t.Fatalf("CreateOperator: %v", err)
		}
		entity, _, err := env.entities.RegisterEntity(ctx, "abuser", "example.com")
		if err != nil {
			t.Fatalf("RegisterEntity: %v", err)
		}
		ev, err := env.evidence.AddEvidence(ctx, entity.UUID, op.UUID, "report", "", "", false)
		if err != nil {
			t.Fatalf("AddEvidence: %v", err)
		}
		rec, err := env.blacklist.BlacklistEntity(ctx, op.UUID, entity.UUID, models.BlacklistSpam, "", nil)
		if err != nil {
			t.Fatalf("BlacklistEntity: %v", err)
		}

		for _, key := range []string{
			keyOperator + op.UUID,
			keyEntity + entity.UUID,
			keyEvidence + ev.UUID,
			keyBlacklist + rec.UUID,
		} {
			exists, err := c.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists(%s): %v", key, err)
			}
			if !exists {
				t.Errorf("%s not cached after the write", key)
			}
		}
	})

	t.Run("disabled", func(t *testing.T) {
		env, c := run(t, false)
		ctx := context.Background()

		op, err := env.operators.CreateOperator(ctx, "bob")
		if err != nil {
			t.Fatalf("CreateOperator: %v", err)
		}
		exists, err := c.Exists(ctx, keyOperator+op.UUID)
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if exists {
			t.Error("write cached although pre_cache_enabled is off")
		}
	})
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, page, max    int
		wantLimit, wantPage int
	}{
		{limit: 10, page: 2, max: 100, wantLimit: 10, wantPage: 2},
		{limit: 0, page: 0, max: 100, wantLimit: 100, wantPage: 1},
		{limit: 500, page: 1, max: 100, wantLimit: 100, wantPage: 1},
		{limit: -3, page: -7, max: 100, wantLimit: 100, wantPage: 1},
		{limit: 100, page: 1, max: 100, wantLimit: 100, wantPage: 1},
		{limit: 1, page: 1, max: 100, wantLimit: 1, wantPage: 1},
	}
	for _, tt := range tests {
		gotLimit, gotPage := clampPage(tt.limit, tt.page, tt.max)
		if gotLimit != tt.wantLimit || gotPage != tt.wantPage {
			t.Errorf("clampPage(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.limit, tt.page, tt.max, gotLimit, gotPage, tt.wantLimit, tt.wantPage)
		}
	}
}
