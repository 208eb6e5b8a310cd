package auth

import (
	"context"
	"net/http"
	"testing"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/modules/auth/dto"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/internal/testutil"
	"anoa.com/itdesk/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, "frank", entity.RoleUser)
	svc := NewService(userRepo.NewUserRepository(db), testutil.NewLogger())

	user, err := svc.Login(ctx, dto.LoginRequest{Username: " frank ", Password: testutil.Password}, "198.51.100.20")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	assert.Equal(t, "198.51.100.20", user.IPAddress)

	var stored entity.User
	require.NoError(t, db.First(&stored, u.ID).Error)
	assert.Equal(t, "198.51.100.20", stored.IPAddress)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "frank", Password: "wrong"}, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperror.MapErrorToStatus(err))

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "nobody", Password: testutil.Password}, "")
	require.Error(t, err)
	assert.Equal(t, "Invalid username or password.", apperror.UserMessage(err, ""))
}
