package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-docauth"
)

// MockUserStore implements auth.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByUsernameOrEmail(ctx context.Context, identifier string) (*auth.UserRecord, error) {
	args := m.Called(ctx, identifier)
	record, _ := args.Get(0).(*auth.UserRecord)
	return record, args.Error(1)
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (*auth.UserRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*auth.UserRecord)
	return record, args.Error(1)
}

func (m *MockUserStore) UpdatePasswordHash(ctx context.Context, id string, passwordRecord string) error {
	args := m.Called(ctx, id, passwordRecord)
	return args.Error(0)
}

// testLogger routes component logs through the test output.
type testLogger struct {
	t *testing.T
}

func (l testLogger) Debug(format string, args ...any) { l.t.Logf("[DBG] "+format, args...) }
func (l testLogger) Info(format string, args ...any)  { l.t.Logf("[INF] "+format, args...) }
func (l testLogger) Warn(format string, args ...any)  { l.t.Logf("[WRN] "+format, args...) }
func (l testLogger) Error(format string, args ...any) { l.t.Logf("[ERR] "+format, args...) }

func testConfig() *auth.Config {
	cfg := &auth.Config{
		SecretKey:        "0123456789abcdef0123456789abcdef",
		Issuer:           "docs-test",
		PBKDF2Iterations: 1000,
	}
	cfg.SetDefaults()
	return cfg
}

// testStack wires a full credential service against the in-memory store.
func testStack(t *testing.T, users auth.UserStore) (*auth.Credentials, *auth.Ledger, *auth.MemoryRefreshTokenStore) {
	t.Helper()

	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	store := auth.NewMemoryRefreshTokenStore()
	codec := auth.NewTokenCodec(cfg).WithLogger(testLogger{t})
	ledger := auth.NewLedger(cfg, store, codec).WithLogger(testLogger{t})
	hasher := auth.NewHasher(cfg).WithLogger(testLogger{t})

	credentials := auth.NewCredentials(users, hasher, codec, ledger).WithLogger(testLogger{t})
	return credentials, ledger, store
}

func hashedRecord(t *testing.T, password string) string {
	t.Helper()
	record, err := auth.NewHasher(testConfig()).HashPassword(password)
	require.NoError(t, err)
	return record
}

func activeUser(t *testing.T, password string) *auth.UserRecord {
	t.Helper()
	return &auth.UserRecord{
		ID:           "usr-1",
		Username:     "pepe",
		Email:        "pepe@example.com",
		Roles:        []string{auth.RoleUser},
		PasswordHash: hashedRecord(t, password),
	}
}
