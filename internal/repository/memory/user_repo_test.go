package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/account-keeper/internal/errs"
	"github.com/and161185/account-keeper/internal/model"
)

func seed(t *testing.T, r *UserRepo, email string) *model.User {
	t.Helper()
	u, err := model.NewUser(email, "h1")
	require.NoError(t, err)
	got, err := r.Create(context.Background(), u)
	require.NoError(t, err)
	return got
}

func TestCreate_GetByID_GetByEmail(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	u := seed(t, r, "a@b.com")

	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u, got)

	got.Email = "mutated@b.com"
	again, err := r.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", again.Email, "returned values do not alias the store")

	_, err = r.GetByID(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = r.GetByEmail(ctx, "none@b.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	dup, err := model.NewUser("a@b.com", "h2")
	require.NoError(t, err)
	_, err = r.Create(ctx, dup)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestUpdate_RotatesVersionAndLeavesInput(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	u := seed(t, r, "a@b.com")
	v1 := u.Version

	u.Email = "c@d.com"
	got, err := r.Update(ctx, u)
	require.NoError(t, err)
	require.NotEqual(t, v1, got.Version)
	require.NotNil(t, got.UpdatedAt)
	require.Equal(t, v1, u.Version)
	require.Nil(t, u.UpdatedAt)

	stored, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, got, stored)
}

func TestUpdate_Errors(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	a := seed(t, r, "a@b.com")
	b := seed(t, r, "b@b.com")

	noID := a.Clone()
	noID.ID = uuid.Nil
	_, err := r.Update(ctx, noID)
	require.ErrorIs(t, err, errs.ErrMissingID)

	ghost, err := model.NewUser("g@b.com", "h")
	require.NoError(t, err)
	_, err = r.Update(ctx, ghost)
	require.ErrorIs(t, err, errs.ErrNotFound)

	b.Email = "a@b.com"
	_, err = r.Update(ctx, b)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.Update(cctx, a)
	require.True(t, errs.IsKind(err, errs.KindOperationTimeout))
}

func TestUpdate_SequentialStaleWriterConflicts(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	u := seed(t, r, "a@b.com")
	v1 := u.Version

	a, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	b, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)

	a.Email = "from-a@b.com"
	fromA, err := r.Update(ctx, a)
	require.NoError(t, err)

	b.Email = "from-b@b.com"
	_, err = r.Update(ctx, b)
	require.ErrorIs(t, err, errs.ErrVersionConflict)
	ae, _ := errs.As(err)
	require.Equal(t, v1.String(), ae.Details()["expected_version"])
	require.Equal(t, fromA.Version.String(), ae.Details()["found_version"])

	stored, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "from-a@b.com", stored.Email)
	require.Equal(t, fromA.Version, stored.Version)
}

func TestUpdate_ParallelWritersExactlyOneWins(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	u := seed(t, r, "a@b.com")

	const n = 32
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < n; i++ {
		w := u.Clone()
		w.IsActive = i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := r.Update(ctx, w)
			switch {
			case err == nil:
				wins.Add(1)
			case errs.IsKind(err, errs.KindVersionConflict):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, n-1, conflicts.Load())

	stored, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, u.Version, stored.Version)
}

func TestDelete_RotatesVersion(t *testing.T) {
	r := NewUserRepo()
	ctx := context.Background()
	u := seed(t, r, "a@b.com")

	ok, err := r.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Delete(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = r.Delete(ctx, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	require.False(t, ok)

	stored, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted())
	require.NotEqual(t, u.Version, stored.Version)

	_, err = r.GetByEmail(ctx, "a@b.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	// The pre-delete version is stale now.
	_, err = r.Update(ctx, u)
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	// The email is free for a new account.
	seed(t, r, "a@b.com")
}
