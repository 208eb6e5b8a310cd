package attachment

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"anoa.com/itdesk/internal/entity"
	attachmentRepo "anoa.com/itdesk/internal/modules/attachment/repository"
	"anoa.com/itdesk/internal/testutil"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFiles_Access(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewAttachmentService(attachmentRepo.NewAttachmentRepository(db), files)

	admin := testutil.CreateUser(t, db, "admin", entity.RoleSuperAdmin)
	owner := testutil.CreateUser(t, db, "owner", entity.RoleUser)
	stranger := testutil.CreateUser(t, db, "stranger", entity.RoleUser)

	now := time.Now().UTC()
	imageName := storage.UniqueName("shot.png", now)
	docName := storage.UniqueName("log.pdf", now)
	require.NoError(t, files.Save(ctx, strings.NewReader("png"), imageName))
	require.NoError(t, files.Save(ctx, strings.NewReader("pdf"), docName))

	ticket := testutil.CreateTicket(t, db, owner, "Owner's screen", now)
	require.NoError(t, db.Model(ticket).Update("image_filename", imageName).Error)
	require.NoError(t, db.Create(&entity.Attachment{TicketID: ticket.ID, Filename: docName, CreatedAt: now}).Error)

	f, err := svc.OpenTicketImage(ctx, owner, imageName)
	require.NoError(t, err)
	assert.Equal(t, "image/png", f.ContentType)
	body, _ := io.ReadAll(f.Body)
	f.Body.Close()
	assert.Equal(t, "png", string(body))

	_, err = svc.OpenTicketImage(ctx, stranger, imageName)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	f, err = svc.OpenAttachment(ctx, admin, docName)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType)
	f.Body.Close()

	_, err = svc.OpenAttachment(ctx, stranger, docName)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.OpenAttachment(ctx, owner, "../../etc/passwd")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.OpenAttachment(ctx, owner, imageName)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestOpenProfileImage(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := NewAttachmentService(attachmentRepo.NewAttachmentRepository(db), files)

	u := testutil.CreateUser(t, db, "hank", entity.RoleUser)
	name := storage.UniqueName("avatar.jpg", time.Now())
	require.NoError(t, files.Save(ctx, strings.NewReader("jpg"), name))

	_, err = svc.OpenProfileImage(ctx, name)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, db.Model(u).Update("profile_image", name).Error)
	f, err := svc.OpenProfileImage(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", f.ContentType)
	f.Body.Close()
}
