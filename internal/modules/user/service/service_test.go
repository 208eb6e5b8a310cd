package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/itdesk/internal/entity"
	ticketRepo "anoa.com/itdesk/internal/modules/ticket/repository"
	"anoa.com/itdesk/internal/modules/user/dto"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/internal/testutil"
	"anoa.com/itdesk/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewService(userRepo.NewUserRepository(db), ticketRepo.NewRepository(db), testutil.NewLogger())
	return svc, db
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	req := dto.CreateUserRequest{
		Username:   "jdoe",
		Email:      "jdoe@example.com",
		FirstName:  "Jane",
		LastName:   "Doe",
		Department: "Finance",
		Role:       entity.RoleUser,
		Password:   "hunter22",
	}
	user, err := svc.CreateUser(ctx, req)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))

	_, err = svc.CreateUser(ctx, req)
	require.Error(t, err)
	ve, ok := apperror.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "Username")

	req.Username = "other"
	req.Role = "root"
	_, err = svc.CreateUser(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestUpdateUser_PasswordOptional(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	u := testutil.CreateUser(t, db, "carol", entity.RoleUser)
	testutil.CreateUser(t, db, "dave", entity.RoleUser)

	req := dto.UpdateUserRequest{
		Username:  "carol",
		Email:     "carol@new.example.com",
		FirstName: "Carol",
		LastName:  "King",
		Role:      entity.RoleSuperAdmin,
	}
	updated, err := svc.UpdateUser(ctx, u.ID, req)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleSuperAdmin, updated.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(testutil.Password)))

	req.Password = "brandnew"
	updated, err = svc.UpdateUser(ctx, u.ID, req)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("brandnew")))

	req.Username = "dave"
	_, err = svc.UpdateUser(ctx, u.ID, req)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.UpdateUser(ctx, 9999, req)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteUser_RepairsTickets(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	admin := testutil.CreateUser(t, db, "admin", entity.RoleSuperAdmin)
	leaver := testutil.CreateUser(t, db, "leaver", entity.RoleUser)
	stayer := testutil.CreateUser(t, db, "stayer", entity.RoleUser)

	now := time.Now().UTC().Truncate(time.Second)
	authored := testutil.CreateTicket(t, db, leaver, "Leaver's printer is broken", now)
	assigned := testutil.CreateTicket(t, db, stayer, "Stayer's monitor flickers", now)
	require.NoError(t, db.Model(assigned).Updates(map[string]interface{}{
		"assigned_to": leaver.ID,
		"assigned_by": admin.ID,
		"status":      entity.StatusResolved,
		"resolved_at": now,
	}).Error)
	assignedBy := testutil.CreateTicket(t, db, stayer, "Stayer's keyboard is sticky", now)
	require.NoError(t, db.Model(assignedBy).Updates(map[string]interface{}{
		"assigned_to": admin.ID,
		"assigned_by": leaver.ID,
	}).Error)

	require.NoError(t, db.Create(&entity.TicketComment{TicketID: assigned.ID, UserID: leaver.ID, Comment: "Working on it", CreatedAt: now}).Error)
	require.NoError(t, db.Create(&entity.TicketComment{TicketID: assigned.ID, UserID: stayer.ID, Comment: "Thanks a lot", CreatedAt: now}).Error)

	deleted, err := svc.DeleteUser(ctx, admin, leaver.ID)
	require.NoError(t, err)
	assert.Equal(t, leaver.ID, deleted.ID)

	var gone int64
	require.NoError(t, db.Model(&entity.User{}).Where("id = ?", leaver.ID).Count(&gone).Error)
	assert.Zero(t, gone)

	var t1 entity.Ticket
	require.NoError(t, db.First(&t1, authored.ID).Error)
	assert.Nil(t, t1.UserID)
	assert.Equal(t, leaver.FullName()+entity.DeletedUserSuffix, t1.UserName)

	var t2 entity.Ticket
	require.NoError(t, db.First(&t2, assigned.ID).Error)
	assert.Nil(t, t2.AssignedTo)
	assert.Nil(t, t2.ResolvedAt)
	assert.Equal(t, entity.StatusOpen, t2.Status)

	var t3 entity.Ticket
	require.NoError(t, db.First(&t3, assignedBy.ID).Error)
	assert.Nil(t, t3.AssignedBy)
	require.NotNil(t, t3.AssignedTo)
	assert.Equal(t, admin.ID, *t3.AssignedTo)

	var comments []entity.TicketComment
	require.NoError(t, db.Find(&comments).Error)
	require.Len(t, comments, 1)
	assert.Equal(t, stayer.ID, comments[0].UserID)
}

func TestDeleteUser_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	admin := testutil.CreateUser(t, db, "admin", entity.RoleSuperAdmin)
	leaver := testutil.CreateUser(t, db, "leaver", entity.RoleUser)
	stayer := testutil.CreateUser(t, db, "stayer", entity.RoleUser)

	now := time.Now().UTC().Truncate(time.Second)
	authored := testutil.CreateTicket(t, db, leaver, "Leaver's printer is broken", now)
	assigned := testutil.CreateTicket(t, db, stayer, "Stayer's monitor flickers", now)
	require.NoError(t, db.Model(assigned).Updates(map[string]interface{}{
		"assigned_to": leaver.ID,
		"assigned_by": leaver.ID,
		"status":      entity.StatusResolved,
		"resolved_at": now,
	}).Error)
	require.NoError(t, db.Create(&entity.TicketComment{TicketID: assigned.ID, UserID: leaver.ID, Comment: "Working on it", CreatedAt: now}).Error)

	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:fail_user_delete", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" {
			_ = tx.AddError(errors.New("connection reset"))
		}
	}))

	_, err := svc.DeleteUser(ctx, admin, leaver.ID)
	require.Error(t, err)

	var users int64
	require.NoError(t, db.Model(&entity.User{}).Where("id = ?", leaver.ID).Count(&users).Error)
	assert.Equal(t, int64(1), users)

	var t1 entity.Ticket
	require.NoError(t, db.First(&t1, authored.ID).Error)
	require.NotNil(t, t1.UserID)
	assert.Equal(t, leaver.ID, *t1.UserID)
	assert.Equal(t, leaver.FullName(), t1.UserName)

	var t2 entity.Ticket
	require.NoError(t, db.First(&t2, assigned.ID).Error)
	assert.Equal(t, entity.StatusResolved, t2.Status)
	assert.NotNil(t, t2.ResolvedAt)
	require.NotNil(t, t2.AssignedTo)
	assert.Equal(t, leaver.ID, *t2.AssignedTo)
	require.NotNil(t, t2.AssignedBy)
	assert.Equal(t, leaver.ID, *t2.AssignedBy)

	var comments int64
	require.NoError(t, db.Model(&entity.TicketComment{}).Where("user_id = ?", leaver.ID).Count(&comments).Error)
	assert.Equal(t, int64(1), comments)
}

func TestDeleteUser_Refusals(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	admin := testutil.CreateUser(t, db, "admin", entity.RoleSuperAdmin)
	otherAdmin := testutil.CreateUser(t, db, "admin2", entity.RoleSuperAdmin)
	testutil.CreateTicket(t, db, otherAdmin, "Admin's own ticket", time.Now().UTC())

	_, err := svc.DeleteUser(ctx, admin, otherAdmin.ID)
	require.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Equal(t, "Cannot delete Super Admin users for security reasons.", apperror.UserMessage(err, ""))

	_, err = svc.DeleteUser(ctx, admin, admin.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.DeleteUser(ctx, admin, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	var tickets []entity.Ticket
	require.NoError(t, db.Find(&tickets).Error)
	require.Len(t, tickets, 1)
	require.NotNil(t, tickets[0].UserID)
	assert.Equal(t, otherAdmin.ID, *tickets[0].UserID)
}

func TestGetUser_ListsTickets(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	admin := testutil.CreateUser(t, db, "admin", entity.RoleSuperAdmin)
	u := testutil.CreateUser(t, db, "erin", entity.RoleUser)
	testutil.CreateTicket(t, db, u, "Erin's wifi", time.Now().UTC())
	other := testutil.CreateTicket(t, db, u, "Erin's mouse", time.Now().UTC())
	require.NoError(t, db.Model(other).Update("assigned_to", admin.ID).Error)

	detail, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, detail.AuthoredTickets, 2)
	assert.Empty(t, detail.AssignedTickets)

	detail, err = svc.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.AuthoredTickets)
	assert.Len(t, detail.AssignedTickets, 1)
}
