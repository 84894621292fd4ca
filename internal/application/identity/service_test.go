package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/learncode/internal/application"
	"github.com/bryanwahyu/learncode/internal/domain/user"
)

type fakeUsers struct {
	byEmail map[string]*user.User
	next    int
	down    bool
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byEmail: map[string]*user.User{}} }

func (f *fakeUsers) FindOrCreate(_ context.Context, fi user.FederatedIdentity) (*user.User, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	if u, ok := f.byEmail[fi.Email]; ok {
		u.Name, u.FederatedID = fi.Name, fi.Subject
		return u, nil
	}
	f.next++
	u := &user.User{ID: "local-" + string(rune('0'+f.next)), Email: fi.Email, Name: fi.Name, FederatedID: fi.Subject}
	f.byEmail[fi.Email] = u
	return u, nil
}

func (f *fakeUsers) GetByFederatedID(_ context.Context, fid string) (*user.User, error) {
	if f.down {
		return nil, errors.New("connection refused")
	}
	for _, u := range f.byEmail {
		if u.FederatedID == fid {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(users user.Repository) *Service {
	return NewService(users, "test-secret", time.Hour, application.FixedClock{T: testNow})
}

func TestSignInThenResolve(t *testing.T) {
	svc := newTestService(newFakeUsers())
	sess, err := svc.SignIn(context.Background(), user.FederatedIdentity{
		Provider: "google", Subject: "google-123", Email: " Ada@Example.com ", Name: "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, testNow.Add(time.Hour), sess.ExpiresAt)

	id, err := svc.Resolve(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id.UserID)
	assert.Equal(t, "ada@example.com", id.Email)

	owner := id.Owner()
	assert.Equal(t, []string{sess.User.ID, "ada@example.com"}, owner.IDs())
}

func TestSignInReusesLocalID(t *testing.T) {
	users := newFakeUsers()
	svc := newTestService(users)
	fi := user.FederatedIdentity{Subject: "g-1", Email: "ada@example.com"}

	first, err := svc.SignIn(context.Background(), fi)
	require.NoError(t, err)
	fi.Name = "Ada L."
	second, err := svc.SignIn(context.Background(), fi)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Ada L.", second.User.Name)
}

func TestSignInRequiresEmailAndSubject(t *testing.T) {
	svc := newTestService(newFakeUsers())
	_, err := svc.SignIn(context.Background(), user.FederatedIdentity{Subject: "s"})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
	_, err = svc.SignIn(context.Background(), user.FederatedIdentity{Email: "a@b.c"})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
}

func TestProvisionalSessionIsPromoted(t *testing.T) {
	users := newFakeUsers()
	users.down = true
	svc := newTestService(users)

	sess, err := svc.SignIn(context.Background(), user.FederatedIdentity{Subject: "g-77", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "g-77", sess.User.ID)

	// store still down: the provisional id is used as is
	id, err := svc.Resolve(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "g-77", id.UserID)

	// store recovers and the user gets a local row
	users.down = false
	local, err := users.FindOrCreate(context.Background(), user.FederatedIdentity{Subject: "g-77", Email: "bob@example.com"})
	require.NoError(t, err)

	id, err = svc.Resolve(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, local.ID, id.UserID)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	svc := newTestService(newFakeUsers())
	sess, err := svc.SignIn(context.Background(), user.FederatedIdentity{Subject: "s", Email: "a@b.c"})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Resolve(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other := NewService(newFakeUsers(), "other-secret", time.Hour, application.FixedClock{T: testNow})
	_, err = other.Resolve(context.Background(), sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "forged signature")

	later := NewService(newFakeUsers(), "test-secret", time.Hour, application.FixedClock{T: testNow.Add(2 * time.Hour)})
	_, err = later.Resolve(context.Background(), sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated, "expired")
}

func TestResolveRejectsOtherAlgorithms(t *testing.T) {
	svc := newTestService(newFakeUsers())
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), tok)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
