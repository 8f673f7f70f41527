package seed

import (
	"context"
	"fmt"
	"testing"

	"github.com/legit-games/user-registry/acl"
	"github.com/legit-games/user-registry/errors"
	"github.com/legit-games/user-registry/models"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"
)

type mapUsers map[string]*models.User

func (m mapUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m[username]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user %s: %w", username, errors.ErrNotFound)
}

func (m mapUsers) Create(ctx context.Context, u *models.User) error {
	u.ID = models.NewID()
	m[u.Username] = u
	return nil
}

func TestRun(t *testing.T) {
	Convey("Given an empty deployment", t, func() {
		ctx := context.Background()
		users := mapUsers{}
		a := acl.New(acl.NewMemoryBackend())
		opts := Options{
			Username:  "admin",
			Email:     "Admin@Example.com",
			Password:  "changeme",
			Resources: []string{"/users", "/users/:userId"},
		}

		Convey("Run creates a verified admin holding the admin role", func() {
			u, err := Run(ctx, users, a, opts)
			So(err, ShouldBeNil)
			So(u.Email, ShouldEqual, "admin@example.com")
			So(u.Verified, ShouldBeTrue)
			So(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("changeme")), ShouldBeNil)

			has, err := a.HasRole(ctx, u.ID, models.AdminRole)
			So(err, ShouldBeNil)
			So(has, ShouldBeTrue)

			allowed, err := a.IsAllowed(ctx, u.ID, "/users/:userId", "delete")
			So(err, ShouldBeNil)
			So(allowed, ShouldBeTrue)

			Convey("and running again keeps the same user and adds new resources", func() {
				opts.Resources = append(opts.Resources, "/roles")
				again, err := Run(ctx, users, a, opts)
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, u.ID)
				allowed, err := a.IsAllowed(ctx, u.ID, "/roles", "post")
				So(err, ShouldBeNil)
				So(allowed, ShouldBeTrue)
			})
		})

		Convey("Run without a password cannot create the admin", func() {
			opts.Password = ""
			_, err := Run(ctx, users, a, opts)
			So(errors.Is(err, errors.ErrValidation), ShouldBeTrue)
			So(users, ShouldBeEmpty)
		})

		Convey("Run without resources fails", func() {
			opts.Resources = nil
			_, err := Run(ctx, users, a, opts)
			So(errors.Is(err, errors.ErrValidation), ShouldBeTrue)
		})
	})
}
