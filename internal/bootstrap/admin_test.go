package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/course-market-go/internal/features/user"
	"github.com/mo-amir99/course-market-go/internal/testutil"
	"github.com/mo-amir99/course-market-go/pkg/config"
	"github.com/mo-amir99/course-market-go/pkg/types"
)

func TestEnsureDefaultAdmin(t *testing.T) {
	db := testutil.NewDB(t, &user.User{})
	cfg := config.AdminConfig{Email: "Admin@Example.com", Password: "correct-horse", FullName: "Administrator"}

	require.NoError(t, EnsureDefaultAdmin(db, cfg, testutil.Logger()))
	require.NoError(t, EnsureDefaultAdmin(db, cfg, testutil.Logger()))

	var admins []user.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, types.UserTypeAdmin, admins[0].UserType)
	assert.True(t, admins[0].Active)
}

func TestEnsureDefaultAdminPromotesExistingAccount(t *testing.T) {
	db := testutil.NewDB(t, &user.User{})
	existing, err := user.Create(db, user.CreateInput{FullName: "Ops", Email: "ops@example.com", Password: "password1", UserType: types.UserTypeStudent})
	require.NoError(t, err)
	require.NoError(t, db.Model(&existing).Update("is_active", false).Error)

	cfg := config.AdminConfig{Email: "ops@example.com", Password: "ignored-pass", FullName: "Ops"}
	require.NoError(t, EnsureDefaultAdmin(db, cfg, testutil.Logger()))

	var reloaded user.User
	require.NoError(t, db.First(&reloaded, "id = ?", existing.ID).Error)
	assert.Equal(t, types.UserTypeAdmin, reloaded.UserType)
	assert.True(t, reloaded.Active)
	assert.Equal(t, existing.Password, reloaded.Password)
}

func TestEnsureDefaultAdminSkipsWithoutCredentials(t *testing.T) {
	db := testutil.NewDB(t, &user.User{})
	require.NoError(t, EnsureDefaultAdmin(db, config.AdminConfig{}, testutil.Logger()))

	var count int64
	require.NoError(t, db.Model(&user.User{}).Count(&count).Error)
	assert.Zero(t, count)
}
