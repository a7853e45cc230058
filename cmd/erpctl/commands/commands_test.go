package commands

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/buildgraph"
	"github.com/chiro/erp/internal/contexts/biingestion"
	bidomain "github.com/chiro/erp/internal/contexts/biingestion/domain"
	biinfra "github.com/chiro/erp/internal/contexts/biingestion/infrastructure"
	"github.com/chiro/erp/internal/platform/config"
	"github.com/chiro/erp/internal/platform/persistence"
	"github.com/chiro/erp/internal/platform/security"
	"github.com/chiro/erp/internal/platform/sharedkernel"
	"github.com/chiro/erp/internal/platform/testkit"
)

const testSecret = "erpctl-test-secret-0123456789abcdef"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testTokens() *security.TokenService {
	return security.NewTokenService(config.JWTConfig{
		Secret:                 testSecret,
		Issuer:                 "chiro-erp",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
	})
}

func TestModulesList(t *testing.T) {
	out, err := run(t, "modules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "chiro.erp.platform:shared-kernel:1.0.0-SNAPSHOT")
	assert.Contains(t, out, "chiro.erp.contexts:bi-ingestion-service:1.0.0-SNAPSHOT")
	// Header plus one line per module.
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 11)
}

func TestModulesGraph(t *testing.T) {
	out, err := run(t, "modules", "graph")
	require.NoError(t, err)
	assert.Contains(t, out, buildgraph.Inventory+" -> "+buildgraph.Security+"\n")
	assert.NotContains(t, out, buildgraph.BIIngestion+" -> "+buildgraph.Security)

	out, err = run(t, "modules", "graph", "--dot")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph modules {"))
	assert.Contains(t, out, `"`+buildgraph.Commerce+`" -> "`+buildgraph.Messaging+`";`)
}

func TestModulesValidate(t *testing.T) {
	out, err := run(t, "modules", "validate", "--root", filepath.Join("..", "..", ".."))
	require.NoError(t, err)
	assert.Contains(t, out, "10 modules OK")

	_, err = run(t, "modules", "validate", "--root", t.TempDir())
	require.Error(t, err)

	out, err = run(t, "modules", "validate", "--skip-imports", "--root", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "10 modules OK")
}

func TestTasksList(t *testing.T) {
	out, err := run(t, "tasks", "list")
	require.NoError(t, err)
	for _, name := range []string{
		buildgraph.TaskBuildAllServices, buildgraph.TaskCleanAllServices,
		buildgraph.TaskLintCheckAll, buildgraph.TaskLintFormatAll,
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "alias lintCheckAll = "+buildgraph.TaskLintCheckAll)
	assert.NotContains(t, out, buildgraph.TaskName(buildgraph.Commerce, buildgraph.ActionBuild))

	out, err = run(t, "tasks", "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, buildgraph.TaskName(buildgraph.Commerce, buildgraph.ActionBuild))
}

func stubExecutor(t *testing.T, fn buildgraph.ExecutorFunc) {
	t.Helper()
	prev := newExecutor
	newExecutor = func(string) buildgraph.Executor { return fn }
	t.Cleanup(func() { newExecutor = prev })
}

func TestTasksRun(t *testing.T) {
	var executed []string
	stubExecutor(t, func(_ context.Context, m buildgraph.Module, action buildgraph.Action) error {
		executed = append(executed, buildgraph.TaskName(m.Path, action))
		return nil
	})

	out, err := run(t, "tasks", "run", buildgraph.TaskName(buildgraph.Inventory, buildgraph.ActionBuild))
	require.NoError(t, err)
	assert.Len(t, executed, 4)
	assert.Contains(t, out, "OK     "+buildgraph.TaskName(buildgraph.Inventory, buildgraph.ActionBuild))
}

func TestTasksRunDryRun(t *testing.T) {
	stubExecutor(t, func(context.Context, buildgraph.Module, buildgraph.Action) error {
		return errors.New("must not run")
	})
	out, err := run(t, "tasks", "run", "--dry-run", buildgraph.TaskBuildAllServices)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, buildgraph.TaskName(buildgraph.SharedKernel, buildgraph.ActionBuild), lines[0])
	assert.Equal(t, buildgraph.TaskBuildAllServices, lines[len(lines)-1])
}

func TestTasksRunLintFailures(t *testing.T) {
	stubExecutor(t, func(_ context.Context, m buildgraph.Module, action buildgraph.Action) error {
		if m.Path == buildgraph.Contracts {
			return buildgraph.ErrUnformatted
		}
		return nil
	})

	out, err := run(t, "tasks", "run", "lintCheckAll")
	require.NoError(t, err)
	assert.Contains(t, out, "WARN   "+buildgraph.TaskName(buildgraph.Contracts, buildgraph.ActionLintCheck))

	out, err = run(t, "tasks", "run", "--strict", "lintCheckAll")
	require.ErrorIs(t, err, buildgraph.ErrUnformatted)
	assert.Contains(t, out, "FAIL   "+buildgraph.TaskName(buildgraph.Contracts, buildgraph.ActionLintCheck))
	assert.Contains(t, out, "SKIP   ")
}

func TestTokenIssuePair(t *testing.T) {
	tenant := uuid.New()
	user := uuid.New()
	out, err := run(t, "token", "issue", "--secret", testSecret,
		"--tenant", tenant.String(), "--user", user.String(), "--username", "ops",
		"--perm", "orders:read", "--perm", "customers:*")
	require.NoError(t, err)

	var pair security.TokenPair
	require.NoError(t, sharedkernel.Unmarshal([]byte(out), &pair))
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := testTokens().ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, tenant.String(), claims.TenantID)
	assert.Equal(t, user.String(), claims.UserID)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, []string{"orders:read", "customers:*"}, claims.Permissions)
	assert.False(t, claims.Service)

	_, err = testTokens().ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
}

func TestTokenIssueMachine(t *testing.T) {
	out, err := run(t, "token", "issue", "--secret", testSecret, "--machine", "--ttl", "2m",
		"--tenant", uuid.NewString(), "--perm", "bi:read")
	require.NoError(t, err)

	claims, err := testTokens().ValidateAccessToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.True(t, claims.Service)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestTokenIssueRejectsBadInput(t *testing.T) {
	_, err := run(t, "token", "issue", "--secret", testSecret)
	require.Error(t, err)

	_, err = run(t, "token", "issue", "--secret", testSecret, "--tenant", "not-a-uuid")
	require.ErrorContains(t, err, "invalid --tenant")

	t.Setenv("ERP_JWT_SECRET", "")
	_, err = run(t, "token", "issue", "--tenant", uuid.NewString())
	require.ErrorContains(t, err, "jwt.secret is not configured")
}

func TestTokenSecret(t *testing.T) {
	out, err := run(t, "token", "secret")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	secret := strings.TrimPrefix(lines[0], "secret: ")
	hash := strings.TrimSpace(strings.TrimPrefix(lines[1], "hash:"))
	require.NoError(t, security.CompareSecret(hash, secret))
	assert.ErrorIs(t, security.CompareSecret(hash, secret+"x"), security.ErrSecretMismatch)
}

func TestMigrateArguments(t *testing.T) {
	_, err := run(t, "migrate", "version")
	require.Error(t, err)

	_, err = run(t, "migrate", "--service", "payroll-service", "up")
	require.ErrorContains(t, err, `unknown service "payroll-service"`)

	_, err = run(t, "migrate", "-s", "commerce-service", "steps", "1", "missing_table")
	require.ErrorContains(t, err, `commerce-service has no schema "missing_table"`)

	_, err = run(t, "migrate", "-s", "commerce-service", "force", "x", "commerce_schema_migrations")
	require.ErrorContains(t, err, `invalid version "x"`)
}

func TestServiceMigrationsCoverEveryService(t *testing.T) {
	for _, m := range buildgraph.DefaultGraph().Services() {
		sources, err := migrationSources(m.Name)
		require.NoError(t, err, m.Name)
		require.NotEmpty(t, sources, m.Name)
		tables := make(map[string]bool)
		for _, src := range sources {
			assert.False(t, tables[src.Table], "%s: duplicate table %s", m.Name, src.Table)
			tables[src.Table] = true
		}
	}
}

func stubFactsDB(t *testing.T, seed func(ctx context.Context, repo *biinfra.GormFactRepository)) {
	t.Helper()
	prev := openDatabase
	openDatabase = func(service string) (*persistence.Database, error) {
		assert.Equal(t, biingestion.ServiceName, service)
		db := testkit.NewSQLiteDB(t, &bidomain.IngestedEvent{}, &bidomain.DailySales{}, &bidomain.DailyCustomers{})
		seed(context.Background(), biinfra.NewGormFactRepository(db))
		return persistence.Wrap(db), nil
	}
	t.Cleanup(func() { openDatabase = prev })
}

func TestFactsSales(t *testing.T) {
	tenant := uuid.New()
	stubFactsDB(t, func(ctx context.Context, repo *biinfra.GormFactRepository) {
		total := decimal.RequireFromString("12.5")
		require.NoError(t, repo.AddSales(ctx, bidomain.PlacedSales(tenant, testkit.FixedTime, "EUR", total)))
		require.NoError(t, repo.AddSales(ctx, bidomain.PlacedSales(tenant, testkit.FixedTime, "EUR", total)))
		require.NoError(t, repo.AddSales(ctx, bidomain.PlacedSales(uuid.New(), testkit.FixedTime, "USD", total)))
	})

	out, err := run(t, "facts", "sales", "--tenant", tenant.String(), "--from", "2024-03-15", "--to", "2024-03-15")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "2024-03-15")
	assert.Contains(t, lines[1], "EUR")
	assert.Contains(t, lines[1], "25.00")
	assert.NotContains(t, out, "USD")
}

func TestFactsCustomers(t *testing.T) {
	tenant := uuid.New()
	stubFactsDB(t, func(ctx context.Context, repo *biinfra.GormFactRepository) {
		require.NoError(t, repo.AddCustomers(ctx, bidomain.Registration(tenant, testkit.FixedTime)))
	})

	out, err := run(t, "facts", "customers", "--tenant", tenant.String(), "--to", "2024-03-16")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "2024-03-15")
}

func TestFactsRejectsBadRange(t *testing.T) {
	stubFactsDB(t, func(context.Context, *biinfra.GormFactRepository) {
		t.Fatal("database must not be opened")
	})
	tenant := uuid.NewString()

	_, err := run(t, "facts", "sales")
	assert.ErrorContains(t, err, "tenant")

	_, err = run(t, "facts", "sales", "--tenant", "nope")
	assert.ErrorContains(t, err, "invalid --tenant")

	_, err = run(t, "facts", "sales", "--tenant", tenant, "--to", "15/03/2024")
	assert.ErrorContains(t, err, "invalid --to")

	_, err = run(t, "facts", "customers", "--tenant", tenant, "--from", "2024-03-16", "--to", "2024-03-15")
	assert.ErrorContains(t, err, "is after")
}
