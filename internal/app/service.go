package app

import (
	"context"
	"io"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cardstack/api/internal/auth"
	"cardstack/api/internal/authpw"
	"cardstack/api/internal/blob"
	"cardstack/api/internal/config"
	"cardstack/api/internal/email"
	"cardstack/api/internal/rbac"
	"cardstack/api/internal/search"
	"cardstack/api/internal/store"
	"cardstack/api/internal/trigger"
	"cardstack/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	OrgID        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the slice of the Postgres store the app layer uses.
type dataStore interface {
	Ping(ctx context.Context) error
	GetOrg(ctx context.Context, orgID string) (store.Org, error)
	InsertOrg(ctx context.Context, org store.Org) error
	OrgCount(ctx context.Context) (int, error)

	CreateUser(ctx context.Context, user store.User) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	UpdateUserRole(ctx context.Context, userID, role string) error

	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	InsertTemplate(ctx context.Context, tpl store.CardTemplate) error
	GetTemplate(ctx context.Context, orgID, templateID string) (store.CardTemplate, error)
	ListTemplates(ctx context.Context, orgID string) ([]store.CardTemplate, error)
	UpdateTemplate(ctx context.Context, orgID, templateID, description, status string) error
	DeleteTemplate(ctx context.Context, orgID, templateID string) error

	InsertCard(ctx context.Context, card store.Card) error
	GetCard(ctx context.Context, orgID, cardID string) (store.Card, error)
	ListCards(ctx context.Context, orgID, status string) ([]store.Card, error)
	UpdateCardFields(ctx context.Context, orgID, cardID, title, description, heroImage, status string) error
	SoftDeleteCard(ctx context.Context, orgID, cardID string) error
	RequestCardPurge(ctx context.Context, orgID, cardID string) error

	InsertSubCard(ctx context.Context, sub store.SubCard) error
	GetSubCard(ctx context.Context, orgID, cardID, subCardID string) (store.SubCard, error)
	ListSubCards(ctx context.Context, orgID, cardID string, liveOnly bool) ([]store.SubCard, error)
	UpdateSubCard(ctx context.Context, orgID, cardID, subCardID, title, description, status string) error
	DeleteSubCard(ctx context.Context, orgID, cardID, subCardID string) error

	GetFileItem(ctx context.Context, orgID, cardID, fileID string) (store.FileItem, error)
	ListFileItems(ctx context.Context, orgID, cardID string, liveOnly bool) ([]store.FileItem, error)
	DeleteFileItem(ctx context.Context, orgID, cardID, fileID string) error

	InsertCardView(ctx context.Context, orgID, cardID, viewedBy string) error
	OrgUsageSummary(ctx context.Context, orgID string) (store.UsageSummary, error)
}

// refreshStore holds refresh sessions. The Postgres store satisfies it;
// a Redis store can be swapped in via WithRefreshStore.
type refreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// objectStore is the slice of the blob store the app layer writes through.
type objectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
}

// childWritePublisher feeds the aggregator's dispatch queue.
type childWritePublisher interface {
	Publish(event trigger.ChildWrite)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	refresh  refreshStore
	blobs    objectStore
	events   childWritePublisher
	ingestor *trigger.Ingestor
	authpw   *authpw.Service
	email    *email.Service
	search   *search.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, blobs objectStore, events childWritePublisher, ingestor *trigger.Ingestor) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		refresh:  dataStore,
		blobs:    blobs,
		events:   events,
		ingestor: ingestor,
	}
}

// WithRefreshStore swaps the refresh-session backend (e.g. Redis).
func (s *Service) WithRefreshStore(rs refreshStore) *Service {
	s.refresh = rs
	return s
}

// WithAuthPassword enables email/password authentication.
func (s *Service) WithAuthPassword(svc *authpw.Service) *Service {
	s.authpw = svc
	return s
}

// WithEmail enables outbound notification email.
func (s *Service) WithEmail(svc *email.Service) *Service {
	s.email = svc
	return s
}

// WithSearch enables full-text search and index maintenance.
func (s *Service) WithSearch(svc *search.Service) *Service {
	s.search = svc
	return s
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

func (s *Service) IngestToken() string {
	return s.cfg.IngestToken
}

// SendVerificationEmail mails a signup verification link. Best effort;
// the account exists either way.
func (s *Service) SendVerificationEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.PublicURL + "/verify-email?token=" + token
	go func() {
		if err := s.email.SendVerificationEmail(to, userName, url); err != nil {
			log.Printf("app: verification email to %s: %v", to, err)
		}
	}()
}

// SendPasswordResetEmail mails a password reset link. Best effort.
func (s *Service) SendPasswordResetEmail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	url := s.cfg.PublicURL + "/reset-password?token=" + token
	go func() {
		if err := s.email.SendPasswordResetEmail(to, userName, url); err != nil {
			log.Printf("app: password reset email to %s: %v", to, err)
		}
	}()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// DefaultOrgID is where self-service signups land when no org is given.
const DefaultOrgID = "org_default"

// Bootstrap seeds an empty database with a default org, a superadmin
// account, and a starter template so a fresh deployment is usable.
func (s *Service) Bootstrap(ctx context.Context) error {
	count, err := s.store.OrgCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := s.store.InsertOrg(ctx, store.Org{
		ID:   DefaultOrgID,
		Name: "Cardstack",
		Slug: "cardstack",
	}); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("change-me-now"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := store.User{
		ID:              util.NewID("usr"),
		OrgID:           DefaultOrgID,
		DisplayName:     "Admin",
		Email:           "admin@cardstack.local",
		PasswordHash:    string(hash),
		Role:            string(rbac.RoleSuperadmin),
		IsEmailVerified: true,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return err
	}

	return s.store.InsertTemplate(ctx, store.CardTemplate{
		ID:          util.NewID("tpl"),
		OrgID:       DefaultOrgID,
		Title:       "Getting started",
		Description: "A starter card layout for onboarding material.",
		Status:      store.StatusLive,
		CreatedBy:   admin.ID,
	})
}

// CreateSession issues a fresh token pair for an authenticated user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.refresh.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.refresh.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// Re-read the user so a role change since the last issue shows up in
	// the new token's claims.
	if fresh, err := s.store.GetUserByID(ctx, user.ID); err == nil {
		user = fresh
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Org:  user.OrgID,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.refresh.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		OrgID:        user.OrgID,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	// users.role is authoritative; the claim is only a fallback when the
	// row lookup fails on a benign race.
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		OrgID:     user.OrgID,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.refresh.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// CanActInOrg reports whether the session may touch resources of orgID.
// Superadmins cross org boundaries; everyone else stays home.
func (s *Service) CanActInOrg(session Session, orgID string) bool {
	if rbac.Normalize(session.Role) == rbac.RoleSuperadmin {
		return true
	}
	return session.OrgID == orgID
}

// Search runs a full-text query scoped to the caller's org.
func (s *Service) Search(ctx context.Context, text, filterType, orgID string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:       text,
		OrgID:      orgID,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	}), nil
}

// HandleUploadFinalized feeds one webhook-delivered finalize event to the
// ingestor.
func (s *Service) HandleUploadFinalized(ctx context.Context, key string, size int64, contentType string) error {
	if s.ingestor == nil {
		log.Printf("app: upload finalize for %s dropped, no ingestor wired", key)
		return nil
	}
	return s.ingestor.HandleFinalize(ctx, blob.FinalizedObject{Key: key, Size: size, ContentType: contentType})
}
