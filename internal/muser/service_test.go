package muser

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/models"
	"kyri56xcaesar/taskhub/internal/store"
)

var testArgon = ArgonParams{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}

// fakeExternal records admin calls. With no nextSubject set, CreateUser fails the
// way a realm without admin rights does.
type fakeExternal struct {
	claims  *auth.KCClaims
	roles   []string
	err     error
	enabled map[string]bool

	nextSubject string
	created     []string
	groups      map[string]string
	deleted     []string
}

func (f *fakeExternal) CreateUser(_ context.Context, username, _, _, _ string) (string, error) {
	if f.nextSubject == "" {
		return "", errors.New("403 Forbidden: unknown_error")
	}
	f.created = append(f.created, username)
	return f.nextSubject, nil
}

func (f *fakeExternal) AddUserToGroup(_ context.Context, subject, group string) error {
	if f.groups == nil {
		f.groups = map[string]string{}
	}
	f.groups[subject] = group
	return nil
}

func (f *fakeExternal) DeleteUser(_ context.Context, subject string) error {
	f.deleted = append(f.deleted, subject)
	return nil
}

func (f *fakeExternal) Login(_ context.Context, _, _ string) (*auth.KCClaims, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.claims, f.roles, nil
}

func (f *fakeExternal) SetUserEnabled(_ context.Context, subject string, enabled bool) error {
	if f.enabled == nil {
		f.enabled = map[string]bool{}
	}
	f.enabled[subject] = enabled
	return nil
}

type fixture struct {
	store  *store.Memory
	tokens *auth.Tokens
	svc    *Service
}

func newFixture(t *testing.T, ext ExternalAuth) *fixture {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{store: store.NewMemory(), tokens: tokens}
	f.svc = NewService(f.store, tokens, ext)
	f.svc.argon = testArgon
	return f
}

func (f *fixture) register(t *testing.T, name, role string) models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterRequest{
		Name: name, Email: strings.ToLower(name) + "@example.com", Password: "secret1", Role: role,
	})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestPasswordHash(t *testing.T) {
	h1, err := HashPassword("hunter22", testArgon)
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := HashPassword("hunter22", testArgon)
	if h1 == h2 {
		t.Fatal("hashes share a salt")
	}
	if !strings.HasPrefix(h1, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("hash = %q", h1)
	}
	if !VerifyPassword("hunter22", h1) || VerifyPassword("hunter23", h1) {
		t.Fatal("verify mismatch")
	}
	if _, err := HashPassword("   ", testArgon); err == nil {
		t.Fatal("blank password hashed")
	}

	for _, bad := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=0,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
	} {
		if VerifyPassword("hunter22", bad) {
			t.Errorf("VerifyPassword accepted %q", bad)
		}
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  RegisterRequest
		want string
	}{
		{"missing name", RegisterRequest{Email: "a@example.com", Password: "secret1"}, "required fields"},
		{"bad email", RegisterRequest{Name: "A", Email: "not-an-email", Password: "secret1"}, "valid email"},
		{"short password", RegisterRequest{Name: "A", Email: "a@example.com", Password: "12345"}, "at least 6"},
		{"admin role", RegisterRequest{Name: "A", Email: "a@example.com", Password: "secret1", Role: "admin"}, "user or manager"},
		{"unknown role", RegisterRequest{Name: "A", Email: "a@example.com", Password: "secret1", Role: "boss"}, "user or manager"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.req)
			if !errors.Is(err, apperr.ErrValidation) || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want validation containing %q", err, tt.want)
			}
		})
	}

	u := f.register(t, "Mia", "manager")
	if u.Title != "Team Member" || u.Role != access.RoleManager || u.IsAdmin || !u.IsActive {
		t.Fatalf("user = %+v", u)
	}
	if u.Permissions != access.Defaults(access.RoleManager) {
		t.Fatalf("permissions = %+v", u.Permissions)
	}
	if u.PasswordHash == "" || u.PasswordHash == "secret1" {
		t.Fatal("password not hashed")
	}

	_, err := f.svc.Register(ctx, RegisterRequest{Name: "Other", Email: "MIA@example.com", Password: "secret1"})
	if !errors.Is(err, apperr.ErrValidation) || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("duplicate email: %v", err)
	}
}

func TestCreateAdmin(t *testing.T) {
	f := newFixture(t, nil)
	u, err := f.svc.CreateAdmin(context.Background(), "Root", "root@example.com", "rootpass")
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsAdmin || u.Role != access.RoleAdmin || u.Permissions != access.All() {
		t.Fatalf("admin = %+v", u)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.register(t, "Ann", "")

	if _, err := f.svc.Login(ctx, "", "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing email: %v", err)
	}
	if _, err := f.svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("unknown email: %v", err)
	}
	if _, err := f.svc.Login(ctx, "ann@example.com", "wrong!"); !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("wrong password: %v", err)
	}

	sess, err := f.svc.Login(ctx, "ANN@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if sub, err := f.tokens.Parse(sess.Token); err != nil || sub != u.ID {
		t.Fatalf("token subject = %q, %v", sub, err)
	}

	u.IsActive = false
	if err := f.store.UpdateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Login(ctx, "ann@example.com", "secret1")
	if !errors.Is(err, apperr.ErrAuthentication) || !strings.Contains(err.Error(), "deactivated") {
		t.Fatalf("inactive login: %v", err)
	}
}

func TestExternalLogin(t *testing.T) {
	ctx := context.Background()

	if _, err := newFixture(t, nil).svc.ExternalLogin(ctx, "kc", "pw"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("disabled provider: %v", err)
	}

	ext := &fakeExternal{
		claims: &auth.KCClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "kc-1"},
			Email:            "kim@example.com",
			Firstname:        "Kim",
			Lastname:         "Lee",
		},
		roles: []string{"offline_access", "manager"},
	}
	f := newFixture(t, ext)

	sess, err := f.svc.ExternalLogin(ctx, "kim", "pw")
	if err != nil {
		t.Fatal(err)
	}
	u := sess.User
	if u.Name != "Kim Lee" || u.Role != access.RoleManager || u.ExternalID != "kc-1" || u.PasswordHash != "" {
		t.Fatalf("provisioned = %+v", u)
	}

	again, err := f.svc.ExternalLogin(ctx, "kim", "pw")
	if err != nil || again.User.ID != u.ID {
		t.Fatalf("second login = %+v, %v", again.User, err)
	}
	if _, err := f.svc.Login(ctx, "kim@example.com", "anything"); !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("password login for external account: %v", err)
	}

	local := f.register(t, "Lou", "")
	ext.claims = &auth.KCClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "kc-2"}, Email: "lou@example.com"}
	linked, err := f.svc.ExternalLogin(ctx, "lou", "pw")
	if err != nil || linked.User.ID != local.ID || linked.User.ExternalID != "kc-2" {
		t.Fatalf("link = %+v, %v", linked.User, err)
	}

	ext.err = errors.New("invalid_grant")
	if _, err := f.svc.ExternalLogin(ctx, "lou", "bad"); !errors.Is(err, apperr.ErrAuthentication) {
		t.Fatalf("provider rejection: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.register(t, "Ann", "")
	root, _ := f.svc.CreateAdmin(ctx, "Root", "root@example.com", "rootpass")

	got, err := f.svc.UpdateProfile(ctx, u.Identity(), UpdateProfileRequest{
		ID:    root.ID,
		Title: ptr("Designer"),
		Role:  ptr("manager"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != u.ID || got.Title != "Designer" || got.Role != access.RoleUser {
		t.Fatalf("self update = %+v", got)
	}

	if _, err := f.svc.UpdateProfile(ctx, u.Identity(), UpdateProfileRequest{Email: ptr("nope")}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("bad email: %v", err)
	}

	got, err = f.svc.UpdateProfile(ctx, root.Identity(), UpdateProfileRequest{ID: u.ID, Role: ptr("manager")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != access.RoleManager || got.Permissions != access.Defaults(access.RoleManager) {
		t.Fatalf("admin update = %+v", got)
	}

	got, err = f.svc.UpdateProfile(ctx, root.Identity(), UpdateProfileRequest{ID: u.ID, Role: ptr("admin")})
	if err != nil || !got.IsAdmin || got.Permissions != access.All() {
		t.Fatalf("admin role via profile = %+v, %v", got, err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u := f.register(t, "Ann", "")

	err := f.svc.ChangePassword(ctx, u.Identity(), ChangePasswordRequest{CurrentPassword: "nope!!", NewPassword: "newpass"})
	if !errors.Is(err, apperr.ErrValidation) || !strings.Contains(err.Error(), "Current password is incorrect") {
		t.Fatalf("wrong current: %v", err)
	}
	if err := f.svc.ChangePassword(ctx, u.Identity(), ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "123"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("short new password: %v", err)
	}
	if err := f.svc.ChangePassword(ctx, u.Identity(), ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "newpass"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Login(ctx, "ann@example.com", "newpass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAdminUpdate(t *testing.T) {
	ext := &fakeExternal{}
	f := newFixture(t, ext)
	ctx := context.Background()
	root, _ := f.svc.CreateAdmin(ctx, "Root", "root@example.com", "rootpass")
	u := f.register(t, "Ann", "")

	if _, err := f.svc.AdminUpdate(ctx, u.Identity(), u.ID, AdminUpdateRequest{IsAdmin: ptr(true)}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("non-admin: %v", err)
	}
	if _, err := f.svc.AdminUpdate(ctx, root.Identity(), "missing", AdminUpdateRequest{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing user: %v", err)
	}

	perms := access.Permissions{CanCreateTasks: true, CanDeleteTasks: true}
	got, err := f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{Permissions: &perms})
	if err != nil || got.Permissions != perms {
		t.Fatalf("explicit permissions = %+v, %v", got.Permissions, err)
	}

	got, err = f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{Role: ptr("manager"), Permissions: &perms})
	if err != nil || got.Permissions != access.Defaults(access.RoleManager) {
		t.Fatalf("role change kept stale permissions: %+v, %v", got.Permissions, err)
	}

	got, err = f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{IsAdmin: ptr(true)})
	if err != nil || !got.IsAdmin || got.Role != access.RoleAdmin || got.Permissions != access.All() {
		t.Fatalf("promote = %+v, %v", got, err)
	}

	got, err = f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{IsAdmin: ptr(false)})
	if err != nil || got.IsAdmin || got.Role != access.RoleUser || got.Permissions != access.Defaults(access.RoleUser) {
		t.Fatalf("demote = %+v, %v", got, err)
	}

	got, err = f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{Role: ptr("admin")})
	if err != nil || !got.IsAdmin || got.Role != access.RoleAdmin || got.Permissions != access.All() {
		t.Fatalf("admin role alone = %+v, %v", got, err)
	}
	if _, err := f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{Role: ptr("admin"), IsAdmin: ptr(false)}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("admin role without the flag: %v", err)
	}
	got, err = f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{IsAdmin: ptr(false)})
	if err != nil || got.IsAdmin || got.Role != access.RoleUser {
		t.Fatalf("second demote = %+v, %v", got, err)
	}

	u, _ = f.store.GetUser(ctx, u.ID)
	u.ExternalID = "kc-ann"
	_ = f.store.UpdateUser(ctx, u)
	got, err = f.svc.AdminUpdate(ctx, root.Identity(), u.ID, AdminUpdateRequest{IsActive: ptr(false)})
	if err != nil || got.IsActive {
		t.Fatalf("deactivate = %+v, %v", got, err)
	}
	if enabled, ok := ext.enabled["kc-ann"]; !ok || enabled {
		t.Fatalf("provider not told: %v", ext.enabled)
	}

	if err := f.svc.AdminDelete(ctx, root.Identity(), root.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("self delete: %v", err)
	}
	if err := f.svc.AdminDelete(ctx, root.Identity(), u.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.GetUser(ctx, u.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("deleted user still present: %v", err)
	}
	if !slices.Equal(ext.deleted, []string{"kc-ann"}) {
		t.Fatalf("provider deletes = %v", ext.deleted)
	}
	if err := f.svc.AdminDelete(ctx, root.Identity(), u.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestRegisterMirrorsToProvider(t *testing.T) {
	ext := &fakeExternal{nextSubject: "kc-new"}
	f := newFixture(t, ext)
	ctx := context.Background()

	u := f.register(t, "Mia", "manager")
	if u.ExternalID != "kc-new" || !slices.Equal(ext.created, []string{"mia@example.com"}) || ext.groups["kc-new"] != "manager" {
		t.Fatalf("user = %+v, created = %v, groups = %v", u, ext.created, ext.groups)
	}
	stored, _ := f.store.GetUserByExternalID(ctx, "kc-new")
	if stored.ID != u.ID {
		t.Fatalf("subject not linked: %+v", stored)
	}
	if _, err := f.svc.Login(ctx, "mia@example.com", "secret1"); err != nil {
		t.Fatalf("local login after mirroring: %v", err)
	}

	ext.nextSubject = ""
	v := f.register(t, "Vic", "")
	if v.ExternalID != "" {
		t.Fatalf("failed mirror still linked: %+v", v)
	}
	if _, err := f.store.GetUser(ctx, v.ID); err != nil {
		t.Fatalf("local account lost after provider failure: %v", err)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	root, _ := f.svc.CreateAdmin(ctx, "Root", "root@example.com", "rootpass")
	a := f.register(t, "Ann", "")
	b := f.register(t, "Bob", "")

	for i, stage := range []models.Stage{models.StageTodo, models.StageCompleted, models.StageCompleted} {
		task := models.Task{
			Title: "t", StartDate: time.Now(), DueDate: time.Now(),
			Priority: models.PriorityLow, Stage: stage,
			Team: []string{a.ID}, CreatedBy: a.ID,
			IsTrashed: i == 2,
		}
		if err := f.store.InsertTask(ctx, &task, nil); err != nil {
			t.Fatal(err)
		}
	}

	mine, err := f.svc.Status(ctx, a.Identity())
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].TaskStats != (models.StageCounts{Total: 2, Todo: 1, Completed: 1}) {
		t.Fatalf("own status = %+v", mine)
	}

	all, err := f.svc.Status(ctx, root.Identity())
	if err != nil || len(all) != 3 {
		t.Fatalf("admin status = %+v, %v", all, err)
	}
	for _, s := range all {
		if s.ID == b.ID && s.TaskStats.Total != 0 {
			t.Fatalf("bob counts = %+v", s.TaskStats)
		}
	}
}

func ptr[T any](v T) *T { return &v }
