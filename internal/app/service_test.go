package app

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"time"

	"cardstack/api/internal/auth"
	"cardstack/api/internal/config"
	"cardstack/api/internal/rbac"
	"cardstack/api/internal/store"
	"cardstack/api/internal/trigger"
)

// fakeStore implements dataStore and refreshStore in memory. Override a
// function field to change one call; everything else has a workable
// default.
type fakeStore struct {
	mu sync.Mutex

	users     map[string]store.User
	orgs      map[string]store.Org
	templates map[string]store.CardTemplate
	cards     map[string]store.Card
	subCards  map[string]store.SubCard
	files     map[string]store.FileItem
	refresh   map[string]string // token hash -> user ID
	revoked   map[string]bool
	views     int

	roleUpdates []string

	getUserByIDFn    func(ctx context.Context, userID string) (store.User, error)
	updateUserRoleFn func(ctx context.Context, userID, role string) error
	softDeleteFn     func(ctx context.Context, orgID, cardID string) error
	requestPurgeFn   func(ctx context.Context, orgID, cardID string) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[string]store.User{},
		orgs:      map[string]store.Org{},
		templates: map[string]store.CardTemplate{},
		cards:     map[string]store.Card{},
		subCards:  map[string]store.SubCard{},
		files:     map[string]store.FileItem{},
		refresh:   map[string]string{},
		revoked:   map[string]bool{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) GetOrg(ctx context.Context, orgID string) (store.Org, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[orgID]
	if !ok {
		return store.Org{}, sql.ErrNoRows
	}
	return org, nil
}

func (f *fakeStore) InsertOrg(ctx context.Context, org store.Org) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgs[org.ID] = org
	return nil
}

func (f *fakeStore) OrgCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orgs), nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateUserRole(ctx context.Context, userID, role string) error {
	if f.updateUserRoleFn != nil {
		return f.updateUserRoleFn(ctx, userID, role)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = role
	f.users[userID] = user
	f.roleUpdates = append(f.roleUpdates, userID+"="+role)
	return nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeStore) InsertTemplate(ctx context.Context, tpl store.CardTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[tpl.ID] = tpl
	return nil
}

func (f *fakeStore) GetTemplate(ctx context.Context, orgID, templateID string) (store.CardTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[templateID]
	if !ok || tpl.OrgID != orgID {
		return store.CardTemplate{}, sql.ErrNoRows
	}
	return tpl, nil
}

func (f *fakeStore) ListTemplates(ctx context.Context, orgID string) ([]store.CardTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.CardTemplate{}
	for _, tpl := range f.templates {
		if tpl.OrgID == orgID {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateTemplate(ctx context.Context, orgID, templateID, description, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[templateID]
	if !ok || tpl.OrgID != orgID {
		return sql.ErrNoRows
	}
	if description != "" {
		tpl.Description = description
	}
	if status != "" {
		tpl.Status = status
	}
	f.templates[templateID] = tpl
	return nil
}

func (f *fakeStore) DeleteTemplate(ctx context.Context, orgID, templateID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.templates[templateID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.templates, templateID)
	return nil
}

func (f *fakeStore) InsertCard(ctx context.Context, card store.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards[card.ID] = card
	return nil
}

func (f *fakeStore) GetCard(ctx context.Context, orgID, cardID string) (store.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[cardID]
	if !ok || card.OrgID != orgID {
		return store.Card{}, sql.ErrNoRows
	}
	return card, nil
}

func (f *fakeStore) ListCards(ctx context.Context, orgID, status string) ([]store.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Card{}
	for _, card := range f.cards {
		if card.OrgID != orgID || card.Deleted {
			continue
		}
		if status != "" && card.Status != status {
			continue
		}
		out = append(out, card)
	}
	return out, nil
}

func (f *fakeStore) UpdateCardFields(ctx context.Context, orgID, cardID, title, description, heroImage, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[cardID]
	if !ok || card.OrgID != orgID {
		return sql.ErrNoRows
	}
	if title != "" {
		card.Title = title
	}
	if description != "" {
		card.Description = description
	}
	if heroImage != "" {
		card.HeroImage = heroImage
	}
	if status != "" {
		card.Status = status
	}
	f.cards[cardID] = card
	return nil
}

func (f *fakeStore) SoftDeleteCard(ctx context.Context, orgID, cardID string) error {
	if f.softDeleteFn != nil {
		return f.softDeleteFn(ctx, orgID, cardID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[cardID]
	if !ok || card.OrgID != orgID {
		return sql.ErrNoRows
	}
	card.Deleted = true
	card.Status = store.StatusDisabled
	f.cards[cardID] = card
	return nil
}

func (f *fakeStore) RequestCardPurge(ctx context.Context, orgID, cardID string) error {
	if f.requestPurgeFn != nil {
		return f.requestPurgeFn(ctx, orgID, cardID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	card, ok := f.cards[cardID]
	if !ok || card.OrgID != orgID {
		return sql.ErrNoRows
	}
	now := time.Now()
	card.PurgeRequestedAt = &now
	f.cards[cardID] = card
	return nil
}

func (f *fakeStore) InsertSubCard(ctx context.Context, sub store.SubCard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subCards[sub.ID] = sub
	return nil
}

func (f *fakeStore) GetSubCard(ctx context.Context, orgID, cardID, subCardID string) (store.SubCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subCards[subCardID]
	if !ok || sub.OrgID != orgID || sub.CardID != cardID {
		return store.SubCard{}, sql.ErrNoRows
	}
	return sub, nil
}

func (f *fakeStore) ListSubCards(ctx context.Context, orgID, cardID string, liveOnly bool) ([]store.SubCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.SubCard{}
	for _, sub := range f.subCards {
		if sub.OrgID != orgID || sub.CardID != cardID {
			continue
		}
		if liveOnly && sub.Status != store.StatusLive {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (f *fakeStore) UpdateSubCard(ctx context.Context, orgID, cardID, subCardID, title, description, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subCards[subCardID]
	if !ok || sub.OrgID != orgID || sub.CardID != cardID {
		return sql.ErrNoRows
	}
	if title != "" {
		sub.Title = title
	}
	if description != "" {
		sub.Description = description
	}
	if status != "" {
		sub.Status = status
	}
	f.subCards[subCardID] = sub
	return nil
}

func (f *fakeStore) DeleteSubCard(ctx context.Context, orgID, cardID, subCardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subCards[subCardID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.subCards, subCardID)
	return nil
}

func (f *fakeStore) GetFileItem(ctx context.Context, orgID, cardID, fileID string) (store.FileItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.files[fileID]
	if !ok || item.OrgID != orgID || item.CardID != cardID {
		return store.FileItem{}, sql.ErrNoRows
	}
	return item, nil
}

func (f *fakeStore) ListFileItems(ctx context.Context, orgID, cardID string, liveOnly bool) ([]store.FileItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.FileItem{}
	for _, item := range f.files {
		if item.OrgID != orgID || item.CardID != cardID {
			continue
		}
		if liveOnly && item.Status != store.StatusLive {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeStore) DeleteFileItem(ctx context.Context, orgID, cardID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[fileID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.files, fileID)
	return nil
}

func (f *fakeStore) InsertCardView(ctx context.Context, orgID, cardID, viewedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views++
	return nil
}

func (f *fakeStore) OrgUsageSummary(ctx context.Context, orgID string) (store.UsageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := store.UsageSummary{TotalViews: f.views}
	for _, card := range f.cards {
		if card.OrgID != orgID || card.Deleted {
			continue
		}
		summary.Cards++
		if card.Status == store.StatusLive {
			summary.LiveCards++
		}
	}
	return summary, nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = userID
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	userID, ok := f.refresh[tokenHash]
	f.mu.Unlock()
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return f.GetUserByID(ctx, userID)
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

type fakeBlobs struct {
	mu       sync.Mutex
	uploads  []string
	removals []string
	uploadFn func(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
}

func (f *fakeBlobs) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if f.uploadFn != nil {
		return f.uploadFn(ctx, key, reader, size, contentType)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeBlobs) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removals = append(f.removals, key)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []trigger.ChildWrite
}

func (f *fakePublisher) Publish(event trigger.ChildWrite) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:   "test-secret",
		IngestToken: "test-ingest-token",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
	}
}

func newTestService(fs *fakeStore) (*Service, *fakeBlobs, *fakePublisher) {
	blobs := &fakeBlobs{}
	events := &fakePublisher{}
	svc := &Service{
		cfg:     testConfig(),
		store:   fs,
		refresh: fs,
		blobs:   blobs,
		events:  events,
	}
	return svc, blobs, events
}

func seedUser(fs *fakeStore, id, orgID string, role rbac.Role) store.User {
	user := store.User{
		ID:              id,
		OrgID:           orgID,
		DisplayName:     "User " + id,
		Email:           id + "@example.com",
		Role:            string(role),
		IsEmailVerified: true,
	}
	fs.users[id] = user
	return user
}

func tokenFor(svc *Service, user store.User) string {
	token, err := auth.IssueToken([]byte(svc.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Org:  user.OrgID,
		Role: user.Role,
		JTI:  "jti_" + user.ID,
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		panic(err)
	}
	return token
}
