// Package muser covers accounts: registration, password and external logins,
// profiles, administration and per-user task status.
package muser

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"kyri56xcaesar/taskhub/internal/access"
	"kyri56xcaesar/taskhub/internal/apperr"
	auth "kyri56xcaesar/taskhub/internal/authmw"
	"kyri56xcaesar/taskhub/internal/models"
)

const (
	minPasswordLen = 6
	defaultTitle   = "Team Member"
)

var emailRE = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

type Store interface {
	InsertUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByExternalID(ctx context.Context, subject string) (models.User, error)
	UpdateUser(ctx context.Context, u models.User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, limit int) ([]models.User, error)
	MemberTaskCounts(ctx context.Context, userIDs []string) (map[string]models.StageCounts, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// ExternalAuth is the identity provider side, implemented by authmw.Service.
type ExternalAuth interface {
	Login(ctx context.Context, username, password string) (*auth.KCClaims, []string, error)
	CreateUser(ctx context.Context, username, email, password, name string) (string, error)
	AddUserToGroup(ctx context.Context, subject, groupName string) error
	SetUserEnabled(ctx context.Context, subject string, enabled bool) error
	DeleteUser(ctx context.Context, subject string) error
}

type Service struct {
	store  Store
	tokens TokenIssuer
	ext    ExternalAuth
	argon  ArgonParams
}

// NewService wires the account operations. ext may be nil when no identity
// provider is configured.
func NewService(s Store, tokens TokenIssuer, ext ExternalAuth) *Service {
	return &Service{store: s, tokens: tokens, ext: ext, argon: DefaultArgonParams()}
}

// Register creates a regular account. Administrators are only made through CreateAdmin.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (models.User, error) {
	role := access.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		r, ok := access.ParseRole(req.Role)
		if !ok || r == access.RoleAdmin {
			return models.User{}, apperr.Validation("role must be user or manager")
		}
		role = r
	}

	return s.create(ctx, req, role, false)
}

func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) (models.User, error) {
	return s.create(ctx, RegisterRequest{Name: name, Email: email, Password: password, Title: "Administrator"}, access.RoleAdmin, true)
}

func (s *Service) create(ctx context.Context, req RegisterRequest, role access.Role, admin bool) (models.User, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return models.User{}, apperr.Validation("Please provide all required fields: name, email, and password")
	}
	if !emailRE.MatchString(email) {
		return models.User{}, apperr.Validation("Please provide a valid email address")
	}
	if len(req.Password) < minPasswordLen {
		return models.User{}, apperr.Validation("Password must be at least 6 characters long")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return models.User{}, apperr.Validation("user with this email already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, err
	}

	hash, err := HashPassword(req.Password, s.argon)
	if err != nil {
		return models.User{}, apperr.Validation("invalid password")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}

	u := models.User{
		Name:         name,
		Email:        email,
		Title:        title,
		PasswordHash: hash,
		IsAdmin:      admin,
		IsActive:     true,
	}
	u.Role, u.Permissions = access.Derive(role, admin)

	if err := s.store.InsertUser(ctx, &u); err != nil {
		return models.User{}, err
	}

	slog.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role, "admin", u.IsAdmin)

	s.mirrorCreate(ctx, &u, req.Password)

	return u, nil
}

// Login checks the password before the account state so a wrong password never
// reveals whether an account is disabled.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, apperr.Validation("Please provide both email and password")
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, apperr.Unauthenticated("Invalid email or password")
		}
		return Session{}, err
	}
	if u.PasswordHash == "" || !VerifyPassword(password, u.PasswordHash) {
		slog.DebugContext(ctx, "login rejected", "user_id", u.ID)
		return Session{}, apperr.Unauthenticated("Invalid email or password")
	}

	return s.session(u)
}

// ExternalLogin authenticates against the identity provider and maps the subject
// onto a local account: by subject first, then by email (linking it), otherwise
// a password-less account is provisioned from the token claims.
func (s *Service) ExternalLogin(ctx context.Context, username, password string) (Session, error) {
	if s.ext == nil {
		return Session{}, apperr.NotFound("external login is not enabled")
	}
	if strings.TrimSpace(username) == "" || password == "" {
		return Session{}, apperr.Validation("Please provide both username and password")
	}

	claims, roles, err := s.ext.Login(ctx, username, password)
	if err != nil {
		slog.DebugContext(ctx, "external login rejected", "error", err)
		return Session{}, apperr.Unauthenticated("Invalid username or password")
	}

	u, err := s.store.GetUserByExternalID(ctx, claims.Subject)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNotFound):
		u, err = s.linkOrProvision(ctx, claims, roles)
		if err != nil {
			return Session{}, err
		}
	default:
		return Session{}, err
	}

	return s.session(u)
}

func (s *Service) linkOrProvision(ctx context.Context, claims *auth.KCClaims, roles []string) (models.User, error) {
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		email = strings.TrimSpace(claims.PreferredUsername)
	}
	if email == "" {
		return models.User{}, apperr.Unauthenticated("identity provider returned no email")
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		if u.ExternalID != "" {
			return models.User{}, apperr.Unauthenticated("account is linked to another identity")
		}
		u.ExternalID = claims.Subject
		if err := s.store.UpdateUser(ctx, u); err != nil {
			return models.User{}, err
		}
		slog.InfoContext(ctx, "linked external identity", "user_id", u.ID)

		return u, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, err
	}

	role := auth.RoleFor(roles)
	u = models.User{
		Name:       claims.DisplayName(),
		Email:      email,
		Title:      defaultTitle,
		ExternalID: claims.Subject,
		IsAdmin:    role == access.RoleAdmin,
		IsActive:   true,
	}
	if u.Name == "" {
		u.Name = email
	}
	u.Role, u.Permissions = access.Derive(role, u.IsAdmin)

	if err := s.store.InsertUser(ctx, &u); err != nil {
		return models.User{}, err
	}
	slog.InfoContext(ctx, "provisioned external user", "user_id", u.ID, "role", u.Role)

	return u, nil
}

func (s *Service) session(u models.User) (Session, error) {
	if !u.IsActive {
		return Session{}, apperr.Unauthenticated("User account has been deactivated, contact the administrator")
	}

	tok, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, apperr.Storage(err, "Error creating authentication token")
	}

	return Session{User: u, Token: tok, ExpiresAt: exp}, nil
}

func (s *Service) Profile(ctx context.Context, id access.Identity) (models.User, error) {
	return s.store.GetUser(ctx, id.UserID)
}

// UpdateProfile edits the caller, or for admins the user named by req.ID.
// Role and activation changes from non-admins are ignored.
func (s *Service) UpdateProfile(ctx context.Context, id access.Identity, req UpdateProfileRequest) (models.User, error) {
	target := id.UserID
	if id.IsAdmin && strings.TrimSpace(req.ID) != "" {
		target = strings.TrimSpace(req.ID)
	}

	u, err := s.store.GetUser(ctx, target)
	if err != nil {
		return models.User{}, err
	}
	wasActive := u.IsActive

	if err := applyContact(&u, req.Name, req.Title, req.Email); err != nil {
		return models.User{}, err
	}
	if id.IsAdmin {
		if req.Role != nil {
			r, ok := access.ParseRole(*req.Role)
			if !ok {
				return models.User{}, apperr.Validation("invalid role")
			}
			if r == access.RoleAdmin {
				u.IsAdmin = true
			}
			u.Role, u.Permissions = access.Derive(r, u.IsAdmin)
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return models.User{}, err
	}
	if wasActive != u.IsActive {
		s.mirrorActive(ctx, u)
	}

	return s.store.GetUser(ctx, u.ID)
}

func (s *Service) ChangePassword(ctx context.Context, id access.Identity, req ChangePasswordRequest) error {
	u, err := s.store.GetUser(ctx, id.UserID)
	if err != nil {
		return err
	}
	if u.PasswordHash == "" {
		return apperr.Validation("account has no local password")
	}
	if !VerifyPassword(req.CurrentPassword, u.PasswordHash) {
		return apperr.Validation("Current password is incorrect")
	}
	if len(req.NewPassword) < minPasswordLen {
		return apperr.Validation("Password must be at least 6 characters long")
	}

	hash, err := HashPassword(req.NewPassword, s.argon)
	if err != nil {
		return apperr.Validation("invalid password")
	}
	u.PasswordHash = hash

	return s.store.UpdateUser(ctx, u)
}

func (s *Service) TeamList(ctx context.Context) ([]TeamMember, error) {
	users, err := s.store.ListUsers(ctx, 0)
	if err != nil {
		return nil, err
	}

	out := make([]TeamMember, 0, len(users))
	for _, u := range users {
		out = append(out, TeamMember{ID: u.ID, Name: u.Name, Title: u.Title, Role: u.Role, Email: u.Email, IsActive: u.IsActive})
	}

	return out, nil
}

// AdminUpdate applies an administrator's edit. Writing role or isAdmin re-derives
// the permission set; explicit permissions are honored only when neither changed.
func (s *Service) AdminUpdate(ctx context.Context, id access.Identity, userID string, req AdminUpdateRequest) (models.User, error) {
	if !id.IsAdmin {
		return models.User{}, apperr.Forbidden("not authorized as admin, try login as admin")
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	wasActive := u.IsActive

	if err := applyContact(&u, req.Name, req.Title, req.Email); err != nil {
		return models.User{}, err
	}

	role, admin := u.Role, u.IsAdmin
	if req.Role != nil {
		r, ok := access.ParseRole(*req.Role)
		if !ok {
			return models.User{}, apperr.Validation("invalid role")
		}
		role = r
	}
	if req.IsAdmin != nil {
		admin = *req.IsAdmin
		if !admin && role == access.RoleAdmin {
			if req.Role != nil {
				return models.User{}, apperr.Validation("the admin role requires isAdmin")
			}
			role = access.RoleUser
		}
	}
	if req.Role != nil && role == access.RoleAdmin {
		admin = true
	}
	switch {
	case req.Role != nil || req.IsAdmin != nil:
		u.IsAdmin = admin
		u.Role, u.Permissions = access.Derive(role, admin)
	case req.Permissions != nil && !u.IsAdmin:
		u.Permissions = *req.Permissions
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return models.User{}, err
	}
	if wasActive != u.IsActive {
		s.mirrorActive(ctx, u)
	}

	slog.InfoContext(ctx, "user updated by admin", "user_id", u.ID, "by", id.UserID, "active", u.IsActive)

	return s.store.GetUser(ctx, u.ID)
}

func (s *Service) AdminDelete(ctx context.Context, id access.Identity, userID string) error {
	if !id.IsAdmin {
		return apperr.Forbidden("not authorized as admin, try login as admin")
	}
	if userID == id.UserID {
		return apperr.Validation("you cannot delete your own account")
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return err
	}

	if s.ext != nil && u.ExternalID != "" {
		if err := s.ext.DeleteUser(ctx, u.ExternalID); err != nil {
			slog.WarnContext(ctx, "failed to delete the provider account", "user_id", u.ID, "error", err)
		}
	}

	return nil
}

// Status reports task counts for the caller, or for every user when the caller is an admin.
func (s *Service) Status(ctx context.Context, id access.Identity) ([]UserStatus, error) {
	var users []models.User
	if id.IsAdmin {
		all, err := s.store.ListUsers(ctx, 0)
		if err != nil {
			return nil, err
		}
		users = all
	} else {
		u, err := s.store.GetUser(ctx, id.UserID)
		if err != nil {
			return nil, err
		}
		users = []models.User{u}
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	counts, err := s.store.MemberTaskCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]UserStatus, 0, len(users))
	for _, u := range users {
		out = append(out, UserStatus{
			ID:        u.ID,
			Name:      u.Name,
			Title:     u.Title,
			Role:      u.Role,
			Email:     u.Email,
			IsActive:  u.IsActive,
			IsAdmin:   u.IsAdmin,
			TaskStats: counts[u.ID],
		})
	}

	return out, nil
}

// mirrorCreate registers a fresh local account with the identity provider, adds it
// to the group named after its role and links the returned subject.
func (s *Service) mirrorCreate(ctx context.Context, u *models.User, password string) {
	if s.ext == nil {
		return
	}

	subject, err := s.ext.CreateUser(ctx, u.Email, u.Email, password, u.Name)
	if err != nil {
		slog.WarnContext(ctx, "failed to create the provider account", "user_id", u.ID, "error", err)
		return
	}
	if err := s.ext.AddUserToGroup(ctx, subject, string(u.Role)); err != nil {
		slog.WarnContext(ctx, "failed to add the provider account to its group", "user_id", u.ID, "group", u.Role, "error", err)
	}

	u.ExternalID = subject
	if err := s.store.UpdateUser(ctx, *u); err != nil {
		slog.WarnContext(ctx, "failed to link the provider account", "user_id", u.ID, "error", err)
		u.ExternalID = ""
	}
}

// mirrorActive copies an activation change to the identity provider. Failures are
// logged; the local account state stays authoritative.
func (s *Service) mirrorActive(ctx context.Context, u models.User) {
	if s.ext == nil || u.ExternalID == "" {
		return
	}
	if err := s.ext.SetUserEnabled(ctx, u.ExternalID, u.IsActive); err != nil {
		slog.WarnContext(ctx, "failed to mirror account state", "user_id", u.ID, "error", err)
	}
}

func applyContact(u *models.User, name, title, email *string) error {
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return apperr.Validation("name cannot be empty")
		}
		u.Name = n
	}
	if title != nil {
		u.Title = strings.TrimSpace(*title)
	}
	if email != nil {
		e := strings.TrimSpace(*email)
		if !emailRE.MatchString(e) {
			return apperr.Validation("Please provide a valid email address")
		}
		u.Email = e
	}

	return nil
}
