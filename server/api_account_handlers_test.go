package server

import (
	"net/http"
	"strings"
	"testing"
)

func TestSignupAndVerify(t *testing.T) {
	env := newTestEnv(t)

	obj := env.e.POST("/signup").
		WithJSON(map[string]any{
			"username": "carol",
			"email":    "Carol@Example.com",
			"password": "hunter22",
			"name":     map[string]string{"first": "Carol", "last": "Danvers"},
		}).
		Expect().
		Status(http.StatusCreated).
		JSON().Object()
	obj.HasValue("username", "carol")
	obj.HasValue("email", "carol@example.com")
	obj.HasValue("fullName", "Carol Danvers")
	obj.HasValue("verified", false)
	obj.NotContainsKey("passwordHash")

	if len(env.mail.verifications) != 1 {
		t.Fatalf("expected one verification email, got %d", len(env.mail.verifications))
	}
	sent := env.mail.verifications[0]
	if !strings.HasPrefix(sent.Link, "http://users.test/verify/") {
		t.Errorf("unexpected verification link %q", sent.Link)
	}

	env.e.GET("/verify/" + sent.Token).
		Expect().
		Status(http.StatusOK)
	// tokens are one-shot
	env.e.GET("/verify/" + sent.Token).
		Expect().
		Status(http.StatusNotFound)

	u, err := env.users.GetByUsername(t.Context(), "carol")
	if err != nil {
		t.Fatal(err)
	}
	if !u.Verified {
		t.Error("user should be verified")
	}
}

func TestSignup_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.mustUser(t, "dave")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"MissingUsername", map[string]any{"email": "x@example.com", "password": "secret123"}},
		{"BadEmail", map[string]any{"username": "x", "email": "nope", "password": "secret123"}},
		{"ShortPassword", map[string]any{"username": "x", "email": "x@example.com", "password": "123"}},
		{"DuplicateUsername", map[string]any{"username": "dave", "email": "other@example.com", "password": "secret123"}},
		{"DuplicateEmail", map[string]any{"username": "dave2", "email": "dave@example.com", "password": "secret123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.e.POST("/signup").
				WithJSON(tt.body).
				Expect().
				Status(http.StatusBadRequest).
				JSON().Object().
				ContainsKey("message")
		})
	}
}

func TestSignup_AssignsAutoRoles(t *testing.T) {
	env := newTestEnv(t)
	admin := env.mustAdmin(t, "root")

	env.e.POST("/applications").
		WithHeader("Authorization", env.bearer(t, admin)).
		WithJSON(map[string]any{
			"name":      "games",
			"prefix":    "games",
			"host":      "http://games.internal",
			"autoRoles": []string{"player"},
		}).
		Expect().
		Status(http.StatusCreated)

	id := env.e.POST("/signup").
		WithJSON(map[string]any{"username": "erin", "email": "erin@example.com", "password": "secret123"}).
		Expect().
		Status(http.StatusCreated).
		JSON().Object().Value("id").String().Raw()

	env.e.GET("/users/"+id+"/roles").
		WithHeader("Authorization", env.bearer(t, admin)).
		Expect().
		Status(http.StatusOK).
		JSON().Array().
		ContainsOnly("player")
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t)
	frank := env.mustUser(t, "frank")

	t.Run("WrongPassword_Unauthorized", func(t *testing.T) {
		env.e.POST("/login").
			WithJSON(map[string]string{"username": "frank", "password": "wrong-password"}).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			HasValue("message", "invalid username or password: unauthorized")
	})

	t.Run("UnknownUser_Unauthorized", func(t *testing.T) {
		env.e.POST("/login").
			WithJSON(map[string]string{"username": "nobody", "password": "secret123"}).
			Expect().
			Status(http.StatusUnauthorized)
	})

	t.Run("NoSession_Unauthorized", func(t *testing.T) {
		env.e.GET("/session").
			Expect().
			Status(http.StatusUnauthorized)
	})

	t.Run("TokenAndSession", func(t *testing.T) {
		obj := env.e.POST("/login").
			WithJSON(map[string]string{"username": "frank@example.com", "password": "secret123"}).
			Expect().
			Status(http.StatusOK).
			JSON().Object()
		obj.HasValue("tokenType", "Bearer")
		token := obj.Value("token").String().NotEmpty().Raw()

		// bearer token authenticates
		env.e.GET("/users/"+frank.ID).
			WithHeader("Authorization", "Bearer "+token).
			Expect().
			Status(http.StatusOK)

		// the session cookie authenticates too
		env.e.GET("/session").
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			HasValue("id", frank.ID)
		env.e.GET("/users/" + frank.ID).
			Expect().
			Status(http.StatusOK)

		env.e.POST("/logout").
			Expect().
			Status(http.StatusOK)
		env.e.GET("/session").
			Expect().
			Status(http.StatusUnauthorized)
	})
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	grace := env.mustUser(t, "grace")

	t.Run("UnknownEmail_SameReply", func(t *testing.T) {
		env.e.POST("/forgot").
			WithJSON(map[string]string{"email": "ghost@example.com"}).
			Expect().
			Status(http.StatusOK)
		if len(env.mail.resets) != 0 {
			t.Fatalf("no reset email expected, got %d", len(env.mail.resets))
		}
	})

	t.Run("ResetFlow", func(t *testing.T) {
		env.e.POST("/forgot").
			WithJSON(map[string]string{"email": grace.Email}).
			Expect().
			Status(http.StatusOK)
		if len(env.mail.resets) != 1 {
			t.Fatalf("expected one reset email, got %d", len(env.mail.resets))
		}
		reset := env.mail.resets[0]
		if reset.ExpiresInMin != resetTokenMinutes {
			t.Errorf("ExpiresInMin = %d", reset.ExpiresInMin)
		}

		env.e.POST("/reset/" + reset.Token).
			WithJSON(map[string]string{"password": "brand-new-pw"}).
			Expect().
			Status(http.StatusOK)
		env.e.POST("/reset/" + reset.Token).
			WithJSON(map[string]string{"password": "another-pw"}).
			Expect().
			Status(http.StatusNotFound)

		env.e.POST("/login").
			WithJSON(map[string]string{"username": "grace", "password": "brand-new-pw"}).
			Expect().
			Status(http.StatusOK)
	})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.e.GET("/healthz").
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		HasValue("status", "ok")
	env.e.GET("/metrics").
		Expect().
		Status(http.StatusOK).
		Body().
		Contains("userreg_http_requests_total")
}
