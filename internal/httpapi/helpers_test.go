package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/quota"
	"reelhub.org/internal/reviews"
)

const testSecret = "test-secret-0123456789abcdef0123456789"

type fakeDirectory struct {
	users map[string]*auth.User // by id
	email map[string]string     // email -> id
	roles map[string][]string   // user id -> roles
	perms map[string][]string   // role -> permissions
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[string]*auth.User{},
		email: map[string]string{},
		roles: map[string][]string{},
		perms: map[string][]string{
			auth.RoleUser:      {auth.PermReviewsCreate},
			auth.RoleModerator: {auth.PermReviewsCreate, auth.PermReviewsModerate},
		},
	}
}

func (f *fakeDirectory) addUser(t *testing.T, id, username, email, password string, roles ...string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	f.users[id] = &auth.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Status:       auth.UserStatusActive,
	}
	f.email[email] = id
	f.roles[id] = roles
}

func (f *fakeDirectory) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	id, ok := f.email[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return f.users[id], nil
}

func (f *fakeDirectory) FindUser(_ context.Context, id string) (*auth.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

func (f *fakeDirectory) UserRoles(_ context.Context, userID string) ([]string, error) {
	return f.roles[userID], nil
}

func (f *fakeDirectory) PermissionsForRoles(_ context.Context, roles []string) ([]string, error) {
	seen := map[string]bool{}
	var res []string
	for _, role := range roles {
		for _, p := range f.perms[role] {
			if !seen[p] {
				seen[p] = true
				res = append(res, p)
			}
		}
	}
	return res, nil
}

type memReviewStore struct {
	byID    map[string]reviews.Review
	deleted map[string]bool
}

func newMemReviewStore() *memReviewStore {
	return &memReviewStore{byID: map[string]reviews.Review{}, deleted: map[string]bool{}}
}

func (m *memReviewStore) Insert(_ context.Context, r reviews.Review) error {
	m.byID[r.ID] = r
	return nil
}

func (m *memReviewStore) Find(_ context.Context, id string) (reviews.Review, error) {
	r, ok := m.byID[id]
	if !ok || m.deleted[id] {
		return reviews.Review{}, reviews.ErrNotFound
	}
	return r, nil
}

func (m *memReviewStore) List(_ context.Context, titleID string, limit int) ([]reviews.Review, error) {
	var res []reviews.Review
	for id, r := range m.byID {
		if m.deleted[id] || (titleID != "" && r.TitleID != titleID) {
			continue
		}
		res = append(res, r)
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

func (m *memReviewStore) SoftDelete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok || m.deleted[id] {
		return reviews.ErrNotFound
	}
	m.deleted[id] = true
	return nil
}

func testPolicies() quota.PolicySet {
	return quota.PolicySet{
		Anonymous:      quota.Policy{Capacity: 60, RefillQuantity: 60, RefillInterval: time.Minute, FailMode: quota.FailOpen},
		Authenticated:  quota.Policy{Capacity: 300, RefillQuantity: 300, RefillInterval: time.Minute, FailMode: quota.FailOpen},
		WriteOperation: quota.Policy{Capacity: 30, RefillQuantity: 30, RefillInterval: time.Minute, FailMode: quota.FailClosed},
		ReviewCreation: quota.Policy{Capacity: 10, RefillQuantity: 10, RefillInterval: time.Hour, FailMode: quota.FailClosed},
		LoginAttempt:   quota.Policy{Capacity: 5, RefillQuantity: 5, RefillInterval: 15 * time.Minute, FailMode: quota.FailClosed},
	}
}

type testEnv struct {
	api     *API
	handler http.Handler
	dir     *fakeDirectory
	store   *memReviewStore
	codec   *auth.Codec
	issuer  *auth.Issuer
	now     time.Time
}

func newTestEnv(t *testing.T, opts ...func(*Options)) *testEnv {
	t.Helper()

	env := &testEnv{
		dir:   newFakeDirectory(),
		store: newMemReviewStore(),
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	env.dir.addUser(t, "user-1", "casey", "casey@example.com", "hunter2-hunter2", auth.RoleUser)
	env.dir.addUser(t, "user-2", "mod", "mod@example.com", "sup3r-secret-pw", auth.RoleModerator)

	codec, err := auth.NewCodec(testSecret, "reelhub-test")
	if err != nil {
		t.Fatal(err)
	}
	env.codec = codec

	issuer, err := auth.NewIssuer(codec, env.dir)
	if err != nil {
		t.Fatal(err)
	}
	env.issuer = issuer

	now := env.now
	options := Options{
		Codec:    codec,
		Issuer:   issuer,
		Reviews:  reviews.NewService(env.store),
		Selector: quota.NewSelector(testPolicies()),
		Quota:    quota.NewMemoryStore(quota.WithMemoryClock(func() time.Time { return now })),
		Version:  "test",
	}
	for _, opt := range opts {
		opt(&options)
	}

	env.api = New(options)
	env.handler = env.api.Handler()
	return env
}

func (env *testEnv) accessToken(t *testing.T, userID string) string {
	t.Helper()
	user, err := env.dir.FindUser(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	roles := env.dir.roles[userID]
	if len(roles) == 0 {
		roles = []string{auth.RoleUser}
	}
	perms, _ := env.dir.PermissionsForRoles(context.Background(), roles)
	token, _, err := env.codec.Issue(auth.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Roles:       roles,
		Permissions: perms,
	}, 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return token
}
