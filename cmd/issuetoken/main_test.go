package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/peercash/internal/models"
	"github.com/nkiryanov/peercash/internal/service/auth/tokenmanager"
)

func Test_run(t *testing.T) {
	env := func(key string) string {
		if key == "SECRET_KEY" {
			return "env-secret"
		}
		return ""
	}

	t.Run("secret", func(t *testing.T) {
		out := &bytes.Buffer{}

		err := run([]string{"secret"}, env, out)

		require.NoError(t, err)
		require.Len(t, strings.TrimSpace(out.String()), SecretKeyBytesLen*2, "hex encoded secret expected")
	})

	t.Run("admin token signed with env secret", func(t *testing.T) {
		out := &bytes.Buffer{}
		id := uuid.New()

		err := run([]string{"token", "--user-id", id.String(), "--role", "admin"}, env, out)
		require.NoError(t, err)

		m, err := tokenmanager.New(tokenmanager.Config{SecretKey: "env-secret"})
		require.NoError(t, err)
		p, err := m.ParseAccess(t.Context(), strings.TrimSpace(out.String()))
		require.NoError(t, err, "token has to be valid for service with the same secret")
		require.Equal(t, models.Principal{ID: id, Role: models.RoleAdmin}, p)
	})

	t.Run("secret flag wins", func(t *testing.T) {
		out := &bytes.Buffer{}

		err := run([]string{"token", "-u", uuid.NewString(), "-s", "flag-secret"}, env, out)
		require.NoError(t, err)

		m, err := tokenmanager.New(tokenmanager.Config{SecretKey: "flag-secret"})
		require.NoError(t, err)
		_, err = m.ParseAccess(t.Context(), strings.TrimSpace(out.String()))
		require.NoError(t, err)
	})

	t.Run("fail", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"no command", nil},
			{"unknown command", []string{"refresh"}},
			{"no user id", []string{"token"}},
			{"unknown role", []string{"token", "-u", uuid.NewString(), "--role", "root"}},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				err := run(tc.args, env, &bytes.Buffer{})

				require.Error(t, err)
			})
		}
	})

	t.Run("no secret fail", func(t *testing.T) {
		err := run([]string{"token", "-u", uuid.NewString()}, func(string) string { return "" }, &bytes.Buffer{})

		require.Error(t, err)
	})
}
