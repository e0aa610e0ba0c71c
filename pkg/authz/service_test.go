package authz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, mode Mode) *Service {
	t.Helper()
	svc, err := NewService(Config{FlagProvider: StaticFlagProvider(mode)})
	require.NoError(t, err)
	return svc
}

func TestServiceAuthorize_AdminMayImport(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	req := NewRequest(SubjectForRole("admin"), "construction", ObjectName("construction", "imports"), "import")
	require.NoError(t, svc.Authorize(context.Background(), req))
}

func TestServiceAuthorize_ManagerMayNotImport(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	req := NewRequest(SubjectForRole("manager"), "construction", ObjectName("construction", "imports"), "import")

	err := svc.Authorize(context.Background(), req)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrForbidden))

	var fe *ForbiddenError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, "construction.imports", fe.Request.Object)
}

func TestServiceAuthorize_WorkerTasks(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	ctx := context.Background()
	worker := SubjectForRole("Worker")

	require.NoError(t, svc.Authorize(ctx, NewRequest(worker, "construction", "construction.tasks", "update")))
	require.Error(t, svc.Authorize(ctx, NewRequest(worker, "construction", "construction.tasks", "delete")))
	require.Error(t, svc.Authorize(ctx, NewRequest(worker, "construction", "construction.budgets", "read")))
}

func TestServiceAuthorize_ShadowModeOnlyLogs(t *testing.T) {
	svc := newTestService(t, ModeShadow)
	req := NewRequest(SubjectForRole("worker"), "construction", "construction.imports", "import")
	require.NoError(t, svc.Authorize(context.Background(), req))
}

func TestServiceAuthorize_Disabled(t *testing.T) {
	svc := newTestService(t, ModeDisabled)
	require.Equal(t, ModeDisabled, svc.Mode())
	req := NewRequest(SubjectForRole(""), "construction", "construction.imports", "import")
	require.NoError(t, svc.Authorize(context.Background(), req))
}

func TestNewService_RequiresPolicyWithModel(t *testing.T) {
	_, err := NewService(Config{ModelPath: "model.conf"})
	require.Error(t, err)
}

func TestFileFlagProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flags.yaml")

	provider := NewFileFlagProvider(path, ModeShadow)
	require.Equal(t, ModeShadow, provider.Mode())

	require.NoError(t, os.WriteFile(path, []byte("mode: disabled\n"), 0o644))
	require.Equal(t, ModeDisabled, provider.Mode())

	require.NoError(t, os.WriteFile(path, []byte("mode: bogus\n"), 0o644))
	require.Equal(t, ModeEnforce, provider.Mode())
}

func TestSubjectForRole(t *testing.T) {
	require.Equal(t, "role:admin", SubjectForRole(" Admin "))
	require.Equal(t, "role:manager", SubjectForRole("role:manager"))
	require.Equal(t, "role:anonymous", SubjectForRole(""))
}
