package authmw

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Nerzal/gocloak/v13"
)

// Service talks to Keycloak for password logins and for mirroring local account changes.
type Service struct {
	Client       *gocloak.GoCloak
	Realm        string
	clientID     string
	clientSecret string

	KCAuth *KeycloakAuth
}

func NewService(baseURL, realm, clientID, issuer, aud, clientSecret string) (*Service, error) {
	client := gocloak.NewClient("http://" + baseURL)

	// the token verifier
	kcAuth, err := NewKeycloakAuth(
		fmt.Sprintf(
			"http://%s/realms/%s/protocol/openid-connect/certs",
			baseURL,
			realm,
		),
		issuer,
		aud,
		clientID,
	)
	if err != nil {
		slog.Error("failed to instantiate the keycloak verifier", "error", err)

		return nil, err
	}

	s := &Service{
		Client:       client,
		Realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		KCAuth:       kcAuth,
	}

	if err := s.selfTest(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) selfTest() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jwt, err := s.LoginAdmin(ctx)
	if err != nil {
		return fmt.Errorf("keycloak auth failed: %w", err)
	}

	_, err = s.Client.GetRealm(ctx, jwt.AccessToken, s.Realm)
	if err != nil {
		return fmt.Errorf("keycloak permission check failed: %w", err)
	}

	return nil
}

func (s *Service) LoginAdmin(ctx context.Context) (*gocloak.JWT, error) {
	return s.Client.LoginClient(
		ctx,
		s.clientID,
		s.clientSecret,
		s.Realm,
	)
}

// Login runs the password grant and returns the verified access token claims
// together with the merged realm/client roles.
func (s *Service) Login(ctx context.Context, username, password string) (*KCClaims, []string, error) {
	jwt, err := s.Client.Login(
		ctx,
		s.clientID,
		s.clientSecret,
		s.Realm,
		username,
		password,
	)
	if err != nil {
		return nil, nil, err
	}

	claims, err := s.KCAuth.Verify(jwt.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("keycloak issued an unverifiable token: %w", err)
	}

	return claims, s.KCAuth.Roles(claims), nil
}

// SetUserEnabled mirrors a local activation change onto the Keycloak account.
func (s *Service) SetUserEnabled(ctx context.Context, subject string, enabled bool) error {
	token, err := s.LoginAdmin(ctx)
	if err != nil {
		return err
	}

	user, err := s.Client.GetUserByID(ctx, token.AccessToken, s.Realm, subject)
	if err != nil {
		return err
	}

	user.Enabled = gocloak.BoolP(enabled)

	return s.Client.UpdateUser(ctx, token.AccessToken, s.Realm, *user)
}

// CreateUser registers a password account in the realm and returns its subject.
func (s *Service) CreateUser(ctx context.Context, username, email, password, name string) (string, error) {
	token, err := s.LoginAdmin(ctx)
	if err != nil {
		return "", err
	}

	firstname, lastname, _ := strings.Cut(strings.TrimSpace(name), " ")
	user := gocloak.User{
		Username:  gocloak.StringP(username),
		Email:     gocloak.StringP(email),
		Enabled:   gocloak.BoolP(true),
		FirstName: gocloak.StringP(firstname),
		LastName:  gocloak.StringP(strings.TrimSpace(lastname)),
		Credentials: &[]gocloak.CredentialRepresentation{
			{
				Type:      gocloak.StringP("password"),
				Value:     gocloak.StringP(password),
				Temporary: gocloak.BoolP(false),
			},
		},
	}

	return s.Client.CreateUser(ctx, token.AccessToken, s.Realm, user)
}

// AddUserToGroup puts the subject into the realm group with the given name.
func (s *Service) AddUserToGroup(ctx context.Context, subject, groupName string) error {
	token, err := s.LoginAdmin(ctx)
	if err != nil {
		return err
	}

	groups, err := s.Client.GetGroups(ctx, token.AccessToken, s.Realm, gocloak.GetGroupsParams{
		Search: gocloak.StringP(groupName),
	})
	if err != nil {
		return err
	}

	var groupID string
	for _, g := range groups {
		if g.Name != nil && *g.Name == groupName && g.ID != nil {
			groupID = *g.ID
			break
		}
	}
	if groupID == "" {
		return fmt.Errorf("group not found: %s", groupName)
	}

	return s.Client.AddUserToGroup(ctx, token.AccessToken, s.Realm, subject, groupID)
}

func (s *Service) DeleteUser(ctx context.Context, subject string) error {
	token, err := s.LoginAdmin(ctx)
	if err != nil {
		return err
	}

	return s.Client.DeleteUser(ctx, token.AccessToken, s.Realm, subject)
}
