package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/streamforge/schema-registry/internal/compatibility"
	compatavro "github.com/streamforge/schema-registry/internal/compatibility/avro"
	compatjson "github.com/streamforge/schema-registry/internal/compatibility/jsonschema"
	"github.com/streamforge/schema-registry/internal/filestore"
	"github.com/streamforge/schema-registry/internal/schema"
	"github.com/streamforge/schema-registry/internal/schema/avro"
	"github.com/streamforge/schema-registry/internal/schema/jsonschema"
	"github.com/streamforge/schema-registry/internal/storage"
	"github.com/streamforge/schema-registry/internal/storage/memory"
)

const (
	userV1 = `{"type":"record","name":"User","namespace":"example","fields":[
		{"name":"id","type":"int"}]}`
	userV2 = `{"type":"record","name":"User","namespace":"example","fields":[
		{"name":"id","type":"int"},
		{"name":"email","type":"string","default":""}]}`
	// no default on email, so a reader of this cannot read v1 data
	userNoDefault = `{"type":"record","name":"User","namespace":"example","fields":[
		{"name":"id","type":"int"},
		{"name":"email","type":"string"}]}`
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	providers := schema.NewRegistry()
	providers.Register(avro.NewProvider())
	providers.Register(jsonschema.NewProvider())

	compat := compatibility.NewChecker()
	compat.Register(schema.TypeAvro, compatavro.NewChecker())
	compat.Register(schema.TypeJSON, compatjson.NewChecker())

	files, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	return New(memory.New(), files, providers, compat, DefaultOptions(), nil, nil)
}

func userMetadata(name string, policy compatibility.Policy) SchemaMetadata {
	return SchemaMetadata{
		Name:          name,
		Type:          schema.TypeAvro,
		SchemaGroup:   "test",
		Compatibility: policy,
	}
}

func TestAddSchemaMetadata(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	info, err := r.AddSchemaMetadata(ctx, userMetadata("user", compatibility.PolicyBackward))
	if err != nil {
		t.Fatalf("AddSchemaMetadata failed: %v", err)
	}
	if info.ID == 0 {
		t.Error("expected a non-zero metadata id")
	}

	// registering the same name again returns the stored row unchanged
	again, err := r.AddSchemaMetadata(ctx, userMetadata("user", compatibility.PolicyNone))
	if err != nil {
		t.Fatalf("second AddSchemaMetadata failed: %v", err)
	}
	if again.ID != info.ID {
		t.Errorf("expected id %d, got %d", info.ID, again.ID)
	}
	if again.Compatibility != compatibility.PolicyBackward {
		t.Errorf("expected stored policy BACKWARD, got %s", again.Compatibility)
	}
}

func TestAddSchemaMetadataValidation(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.AddSchemaMetadata(ctx, SchemaMetadata{Name: "x", Type: "thrift", Compatibility: "NONE"})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown dialect: expected ErrConfiguration, got %v", err)
	}

	_, err = r.AddSchemaMetadata(ctx, SchemaMetadata{Name: "x", Type: schema.TypeAvro, Compatibility: "SIDEWAYS"})
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown policy: expected ErrConfiguration, got %v", err)
	}

	_, err = r.GetSchemaMetadata(ctx, "missing")
	if !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("expected ErrSchemaNotFound, got %v", err)
	}
}

func TestAddSchemaVersionAssignsSequentialVersions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	v1, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV1})
	if err != nil {
		t.Fatalf("register v1: %v", err)
	}
	v2, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV2})
	if err != nil {
		t.Fatalf("register v2: %v", err)
	}

	if v1.Version != 1 || v2.Version != 2 {
		t.Errorf("expected versions 1 and 2, got %d and %d", v1.Version, v2.Version)
	}
	if v1.SchemaMetadataID != v2.SchemaMetadataID {
		t.Error("versions should share a metadata id")
	}
}

func TestAddSchemaVersionDeduplicatesByFingerprint(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	v1, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// same schema with different whitespace and an extra doc attribute
	// canonicalizes to the same fingerprint
	reformatted := strings.Replace(userV1, `"name":"User"`, `"doc":"a user","name":"User"`, 1)
	dup, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: reformatted})
	if err != nil {
		t.Fatalf("register duplicate: %v", err)
	}
	if dup.ID != v1.ID || dup.Version != v1.Version {
		t.Errorf("expected existing version %d (id %d), got %d (id %d)",
			v1.Version, v1.ID, dup.Version, dup.ID)
	}

	versions, err := r.GetAllVersions(ctx, "user")
	if err != nil {
		t.Fatalf("GetAllVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("expected 1 stored version, got %d", len(versions))
	}
}

func TestAddSchemaVersionRejectsIncompatible(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	if _, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV1}); err != nil {
		t.Fatalf("register v1: %v", err)
	}
	_, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userNoDefault})
	if !errors.Is(err, ErrIncompatibleSchema) {
		t.Fatalf("expected ErrIncompatibleSchema, got %v", err)
	}

	// the failed attempt must not burn a version number
	v2, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV2})
	if err != nil {
		t.Fatalf("register v2 after rejection: %v", err)
	}
	if v2.Version != 2 {
		t.Errorf("expected version 2 after a rejected attempt, got %d", v2.Version)
	}
}

func TestAddSchemaVersionInvalidText(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	_, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: `{"type":"recor`})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("expected ErrInvalidSchema, got %v", err)
	}

	versions, err := r.FindSchemaMetadata(ctx, map[string]string{"name": "user"})
	if err != nil {
		t.Fatalf("FindSchemaMetadata: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("metadata should exist even after an invalid version, got %d rows", len(versions))
	}
}

func TestAddSchemaVersionByNameRequiresMetadata(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.AddSchemaVersionByName(ctx, "ghost", SchemaVersion{SchemaText: userV1})
	if !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("expected ErrSchemaNotFound, got %v", err)
	}
}

func TestGetSchemaVersionInfo(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	v1, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV1})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.GetSchemaVersionInfo(ctx, SchemaVersionKey{Name: "user", Version: 1})
	if err != nil {
		t.Fatalf("GetSchemaVersionInfo: %v", err)
	}
	if got.ID != v1.ID || got.SchemaText != userV1 {
		t.Error("stored version does not round-trip")
	}

	byID, err := r.GetSchemaVersionInfoByID(ctx, v1.ID)
	if err != nil {
		t.Fatalf("GetSchemaVersionInfoByID: %v", err)
	}
	if byID.Version != 1 {
		t.Errorf("expected version 1, got %d", byID.Version)
	}

	if _, err := r.GetSchemaVersionInfo(ctx, SchemaVersionKey{Name: "user", Version: 99}); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("expected ErrSchemaNotFound for missing version, got %v", err)
	}
}

func TestLookupErrorsAreNotCached(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	key := SchemaVersionKey{Name: "user", Version: 1}
	if _, err := r.GetSchemaVersionInfo(ctx, key); !errors.Is(err, ErrSchemaNotFound) {
		t.Fatalf("expected ErrSchemaNotFound before registration, got %v", err)
	}

	if _, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.GetSchemaVersionInfo(ctx, key); err != nil {
		t.Errorf("lookup after registration should succeed, got %v", err)
	}
}

func TestGetLatestAndAllVersions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	for _, text := range []string{userV1, userV2} {
		if _, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: text}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	latest, err := r.GetLatestSchemaVersionInfo(ctx, "user")
	if err != nil {
		t.Fatalf("GetLatestSchemaVersionInfo: %v", err)
	}
	if latest.Version != 2 {
		t.Errorf("expected latest version 2, got %d", latest.Version)
	}

	all, err := r.GetAllVersions(ctx, "user")
	if err != nil {
		t.Fatalf("GetAllVersions: %v", err)
	}
	for i, v := range all {
		if v.Version != i+1 {
			t.Errorf("expected ascending versions, got %d at index %d", v.Version, i)
		}
	}
}

func TestCheckCompatibilityAgainstAllVersions(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	for _, text := range []string{userV1, userV2} {
		if _, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: text}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	// userNoDefault can read v2 data (email always present) but not v1
	// data, so the single-version check passes while the full check fails.
	single, err := r.CheckCompatibilityWithVersion(ctx, SchemaVersionKey{Name: "user", Version: 2}, userNoDefault)
	if err != nil {
		t.Fatalf("CheckCompatibilityWithVersion: %v", err)
	}
	if !single.IsCompatible {
		t.Errorf("expected candidate to be compatible with v2: %v", single.Messages)
	}

	full, err := r.CheckCompatibility(ctx, "user", userNoDefault)
	if err != nil {
		t.Fatalf("CheckCompatibility: %v", err)
	}
	if full.IsCompatible {
		t.Error("expected candidate to be incompatible with the full history")
	}
}

func TestCheckCompatibilityValidatesCandidate(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	if _, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV1}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.CheckCompatibility(ctx, "user", "not a schema"); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestSearchFields(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	for _, text := range []string{userV1, userV2} {
		if _, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: text}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	keys, err := r.SearchFields(ctx, SchemaFieldQuery{Name: "email"})
	if err != nil {
		t.Fatalf("SearchFields: %v", err)
	}
	if len(keys) != 1 || keys[0].Version != 2 {
		t.Fatalf("expected only version 2 to index 'email', got %v", keys)
	}

	keys, err = r.SearchFields(ctx, SchemaFieldQuery{Name: "id", Namespace: "example.User"})
	if err != nil {
		t.Fatalf("SearchFields: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected both versions to index 'id', got %v", keys)
	}

	keys, err = r.SearchFields(ctx, SchemaFieldQuery{Name: "nothing"})
	if err != nil {
		t.Fatalf("SearchFields: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no matches, got %v", keys)
	}
}

func TestConcurrentRegistrations(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyNone)

	const writers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			text := fmt.Sprintf(
				`{"type":"record","name":"User","namespace":"example","fields":[{"name":"f%d","type":"int"}]}`, n)
			if _, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: text}); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent registration failed: %v", err)
	}

	versions, err := r.GetAllVersions(ctx, "user")
	if err != nil {
		t.Fatalf("GetAllVersions: %v", err)
	}
	if len(versions) != writers {
		t.Fatalf("expected %d versions, got %d", writers, len(versions))
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Errorf("version sequence has a gap: got %d at index %d", v.Version, i)
		}
	}
}

func TestGetSchemaVersionByText(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("user", compatibility.PolicyBackward)

	v1, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV1})
	if err != nil {
		t.Fatalf("AddSchemaVersion v1: %v", err)
	}
	v2, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: userV2})
	if err != nil {
		t.Fatalf("AddSchemaVersion v2: %v", err)
	}

	got, err := r.GetSchemaVersionByText(ctx, "user", userV1)
	if err != nil {
		t.Fatalf("GetSchemaVersionByText: %v", err)
	}
	if got.ID != v1.ID || got.Version != 1 {
		t.Errorf("expected version 1 (id %d), got %+v", v1.ID, got)
	}

	// texts with the same canonical form resolve to the same version
	variant := `{"doc":"ignored","type":"record","name":"User","namespace":"example","fields":[
		{"name":"id","type":"int","doc":"pk"},
		{"name":"email","type":"string","default":""}]}`
	got, err = r.GetSchemaVersionByText(ctx, "user", variant)
	if err != nil {
		t.Fatalf("GetSchemaVersionByText variant: %v", err)
	}
	if got.ID != v2.ID {
		t.Errorf("expected the canonical match to resolve to id %d, got %+v", v2.ID, got)
	}
}

func TestGetSchemaVersionByTextErrors(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.AddSchemaVersion(ctx, userMetadata("user", compatibility.PolicyNone),
		SchemaVersion{SchemaText: userV1}); err != nil {
		t.Fatalf("AddSchemaVersion: %v", err)
	}

	if _, err := r.GetSchemaVersionByText(ctx, "user", userNoDefault); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("unregistered text: expected ErrSchemaNotFound, got %v", err)
	}
	if _, err := r.GetSchemaVersionByText(ctx, "ghost", userV1); !errors.Is(err, ErrSchemaNotFound) {
		t.Errorf("unknown name: expected ErrSchemaNotFound, got %v", err)
	}
	if _, err := r.GetSchemaVersionByText(ctx, "user", "not avro"); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("invalid text: expected ErrInvalidSchema, got %v", err)
	}
}

func TestAddSchemaVersionDistinguishesNamespaces(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	md := userMetadata("x", compatibility.PolicyNone)

	alpha := `{"type":"record","name":"X","namespace":"alpha","fields":[{"name":"v","type":"int"}]}`
	beta := `{"type":"record","name":"X","namespace":"beta","fields":[{"name":"v","type":"int"}]}`

	v1, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: alpha})
	if err != nil {
		t.Fatalf("AddSchemaVersion alpha: %v", err)
	}
	v2, err := r.AddSchemaVersion(ctx, md, SchemaVersion{SchemaText: beta})
	if err != nil {
		t.Fatalf("AddSchemaVersion beta: %v", err)
	}
	if v2.Version != v1.Version+1 {
		t.Fatalf("namespace change must register a new version, got %d after %d", v2.Version, v1.Version)
	}
	if v2.SchemaText != beta {
		t.Errorf("stored text is not the registered schema: %s", v2.SchemaText)
	}
}

// cancelAwareStore fails reads once the caller's context is done, the way a
// SQL backend would.
type cancelAwareStore struct {
	storage.Store
}

func (s cancelAwareStore) Find(ctx context.Context, ns string, filters []storage.Filter) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.Find(ctx, ns, filters)
}

func (s cancelAwareStore) Get(ctx context.Context, key storage.Key) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, key)
}

func TestCachedLookupsDetachFromCallerContext(t *testing.T) {
	providers := schema.NewRegistry()
	providers.Register(avro.NewProvider())
	compat := compatibility.NewChecker()
	compat.Register(schema.TypeAvro, compatavro.NewChecker())
	files, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	r := New(cancelAwareStore{memory.New()}, files, providers, compat, DefaultOptions(), nil, nil)

	ctx := context.Background()
	v, err := r.AddSchemaVersion(ctx, userMetadata("user", compatibility.PolicyNone),
		SchemaVersion{SchemaText: userV1})
	if err != nil {
		t.Fatalf("AddSchemaVersion: %v", err)
	}

	// a caller whose context is already canceled must not poison the
	// shared load
	canceled, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := r.GetSchemaVersionInfo(canceled, SchemaVersionKey{Name: "user", Version: 1}); err != nil {
		t.Errorf("lookup by version: %v", err)
	}
	if _, err := r.GetSchemaVersionInfoByID(canceled, v.ID); err != nil {
		t.Errorf("lookup by id: %v", err)
	}
}
