package ticket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"anoa.com/itdesk/internal/entity"
	"anoa.com/itdesk/internal/modules/ticket/dto"
	ticketRepo "anoa.com/itdesk/internal/modules/ticket/repository"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	"anoa.com/itdesk/internal/testutil"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/ratelimiter"
	"anoa.com/itdesk/pkg/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	calls []uint
}

func (n *recordingNotifier) TicketAssigned(ctx context.Context, ticket *entity.Ticket, assignee *entity.User) {
	n.calls = append(n.calls, assignee.ID)
}

type recordingIndexer struct {
	indexed []uint
}

func (i *recordingIndexer) IndexTicket(ticket *entity.Ticket) error {
	i.indexed = append(i.indexed, ticket.ID)
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      Service
	repo     ticketRepo.Repository
	files    storage.FileStorage
	dir      string
	notifier *recordingNotifier
	indexer  *recordingIndexer
	admin    *entity.User
	user     *entity.User
	other    *entity.User
}

func newFixture(t *testing.T, cooldown time.Duration) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	f := &fixture{
		db:       db,
		repo:     ticketRepo.NewRepository(db),
		files:    files,
		dir:      dir,
		notifier: &recordingNotifier{},
		indexer:  &recordingIndexer{},
		admin:    testutil.CreateUser(t, db, "admin", entity.RoleSuperAdmin),
		user:     testutil.CreateUser(t, db, "alice", entity.RoleUser),
		other:    testutil.CreateUser(t, db, "bob", entity.RoleUser),
	}
	f.svc = NewService(
		f.repo,
		userRepo.NewUserRepository(db),
		files,
		ratelimiter.New(rdb),
		f.notifier,
		f.indexer,
		Options{CreateCooldown: cooldown},
		testutil.NewLogger(),
	)
	return f
}

func upload(name, content string) dto.Upload {
	return dto.Upload{
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func validRequest() dto.CreateTicketRequest {
	return dto.CreateTicketRequest{
		Title:       "Laptop will not boot",
		Description: "Black screen after the BIOS logo since this morning.",
		Category:    entity.CategoryHardware,
		Priority:    entity.PriorityHigh,
	}
}

func (f *fixture) createTicket(t *testing.T, author *entity.User) *entity.Ticket {
	t.Helper()
	res, err := f.svc.CreateTicket(context.Background(), author, validRequest(), nil, dto.ClientInfo{RemoteAddr: "192.0.2.1:4000"})
	require.NoError(t, err)
	return res.Ticket
}

func TestCreateTicket_FilesAndSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	uploads := []dto.Upload{
		upload("screen.png", "png-bytes"),
		upload("event-log.pdf", "pdf-bytes"),
		upload("installer.exe", "exe-bytes"),
		upload("second.jpg", "jpg-bytes"),
	}
	client := dto.ClientInfo{
		ForwardedFor: "203.0.113.9, 10.0.0.1",
		RemoteAddr:   "10.0.0.1:1234",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	}

	res, err := f.svc.CreateTicket(ctx, f.user, validRequest(), uploads, client)
	require.NoError(t, err)

	ticket := res.Ticket
	assert.Equal(t, entity.FormatTicketNumber(ticket.ID), ticket.TicketNumber)
	assert.Equal(t, entity.StatusOpen, ticket.Status)
	assert.Equal(t, "203.0.113.9", ticket.UserIPAddress)
	assert.Equal(t, "Windows System", ticket.UserSystemName)
	assert.Equal(t, f.user.FullName(), ticket.UserName)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "installer.exe")

	require.NotNil(t, ticket.ImageFilename)
	assert.True(t, strings.HasSuffix(*ticket.ImageFilename, "_screen.png"))

	stored, err := f.repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, stored.Attachments, 2)
	assert.True(t, strings.HasSuffix(stored.Attachments[0].Filename, "_event-log.pdf"))
	assert.True(t, strings.HasSuffix(stored.Attachments[1].Filename, "_second.jpg"))

	rc, err := f.files.Open(ctx, stored.Attachments[0].Filename)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "pdf-bytes", string(data))

	var author entity.User
	require.NoError(t, f.db.First(&author, f.user.ID).Error)
	assert.Equal(t, "203.0.113.9", author.IPAddress)
	assert.Equal(t, "Windows System", author.SystemName)

	assert.Equal(t, []uint{ticket.ID}, f.indexer.indexed)
}

func TestCreateTicket_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_attachments", func(tx *gorm.DB) {
		if tx.Statement.Table == "attachments" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	uploads := []dto.Upload{
		upload("screen.png", "png-bytes"),
		upload("event-log.pdf", "pdf-bytes"),
	}
	client := dto.ClientInfo{
		ForwardedFor: "203.0.113.9",
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	}

	res, err := f.svc.CreateTicket(ctx, f.user, validRequest(), uploads, client)
	require.Error(t, err)
	assert.Nil(t, res)

	var tickets, attachments int64
	require.NoError(t, f.db.Model(&entity.Ticket{}).Count(&tickets).Error)
	require.NoError(t, f.db.Model(&entity.Attachment{}).Count(&attachments).Error)
	assert.Zero(t, tickets)
	assert.Zero(t, attachments)

	var author entity.User
	require.NoError(t, f.db.First(&author, f.user.ID).Error)
	assert.Empty(t, author.IPAddress)
	assert.Empty(t, author.SystemName)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "stored uploads must be removed")
}

func TestCreateTicket_ExplicitSystemNameWins(t *testing.T) {
	f := newFixture(t, 0)

	req := validRequest()
	req.SystemName = "HR-DESK-12"
	res, err := f.svc.CreateTicket(context.Background(), f.user, req, nil, dto.ClientInfo{
		RemoteAddr: "192.0.2.1:4000",
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64)",
	})
	require.NoError(t, err)
	assert.Equal(t, "HR-DESK-12", res.Ticket.UserSystemName)
	assert.Equal(t, "192.0.2.1", res.Ticket.UserIPAddress)
}

func TestCreateTicket_Validation(t *testing.T) {
	f := newFixture(t, 0)

	req := dto.CreateTicketRequest{
		Title:       "Hey",
		Description: "short",
		Category:    "Furniture",
		Priority:    "Whenever",
	}
	_, err := f.svc.CreateTicket(context.Background(), f.user, req, nil, dto.ClientInfo{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	ve, ok := apperror.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "Title")
	assert.Contains(t, ve.Fields, "Description")
	assert.Contains(t, ve.Fields, "Category")
	assert.Contains(t, ve.Fields, "Priority")

	var count int64
	require.NoError(t, f.db.Model(&entity.Ticket{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateTicket_Cooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute)

	_, err := f.svc.CreateTicket(ctx, f.user, validRequest(), nil, dto.ClientInfo{})
	require.NoError(t, err)

	_, err = f.svc.CreateTicket(ctx, f.user, validRequest(), nil, dto.ClientInfo{})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, apperror.MapErrorToStatus(err))

	var rle *ratelimiter.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Greater(t, rle.RetryAfter, time.Duration(0))

	// The cooldown is per user.
	_, err = f.svc.CreateTicket(ctx, f.other, validRequest(), nil, dto.ClientInfo{})
	assert.NoError(t, err)
}

func TestCreateTicket_InvalidRequestDoesNotStartCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute)

	bad := validRequest()
	bad.Title = "x"
	_, err := f.svc.CreateTicket(ctx, f.user, bad, nil, dto.ClientInfo{})
	require.Error(t, err)

	_, err = f.svc.CreateTicket(ctx, f.user, validRequest(), nil, dto.ClientInfo{})
	assert.NoError(t, err)
}

func TestGetTicket_Ownership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	ticket := f.createTicket(t, f.user)

	got, err := f.svc.GetTicket(ctx, f.user, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)

	_, err = f.svc.GetTicket(ctx, f.other, ticket.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.GetTicket(ctx, f.admin, ticket.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetTicket(ctx, f.admin, 9999)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	ticket := f.createTicket(t, f.user)

	err := f.svc.AddComment(ctx, f.user, ticket.ID, dto.CommentRequest{Comment: "  ok  "})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	err = f.svc.AddComment(ctx, f.other, ticket.ID, dto.CommentRequest{Comment: "Let me in please"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, f.svc.AddComment(ctx, f.user, ticket.ID, dto.CommentRequest{Comment: "Still broken after restart."}))
	require.NoError(t, f.svc.AddComment(ctx, f.admin, ticket.ID, dto.CommentRequest{Comment: "Looking into it now."}))

	stored, err := f.repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, stored.Comments, 2)
	assert.Equal(t, "Still broken after restart.", stored.Comments[0].Comment)
	assert.Equal(t, f.admin.ID, stored.Comments[1].User.ID)
}

func TestUpdateStatus_ResolvedAtAndComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	ticket := f.createTicket(t, f.user)

	_, err := f.svc.UpdateStatus(ctx, f.user, ticket.ID, dto.UpdateStatusRequest{Status: entity.StatusResolved})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.UpdateStatus(ctx, f.admin, ticket.ID, dto.UpdateStatusRequest{Status: "Done"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	updated, err := f.svc.UpdateStatus(ctx, f.admin, ticket.ID, dto.UpdateStatusRequest{Status: entity.StatusResolved})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)

	stored, err := f.repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResolvedAt)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "Status updated from 'Open' to 'Resolved'", stored.Comments[0].Comment)

	// Saving the same status without a note records nothing.
	_, err = f.svc.UpdateStatus(ctx, f.admin, ticket.ID, dto.UpdateStatusRequest{Status: entity.StatusResolved})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.admin, ticket.ID, dto.UpdateStatusRequest{
		Status:       entity.StatusInProgress,
		AdminComment: "Reopened, the fix did not hold.",
	})
	require.NoError(t, err)

	stored, err = f.repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResolvedAt)
	assert.Equal(t, entity.StatusInProgress, stored.Status)
	require.Len(t, stored.Comments, 2)
	assert.Equal(t, "Status updated to 'In Progress'. Reopened, the fix did not hold.", stored.Comments[1].Comment)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	ticket := f.createTicket(t, f.user)

	_, err := f.svc.Assign(ctx, f.admin, ticket.ID, dto.AssignRequest{AssignedTo: f.other.ID})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.svc.Assign(ctx, f.user, ticket.ID, dto.AssignRequest{AssignedTo: f.admin.ID})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	assigned, err := f.svc.Assign(ctx, f.admin, ticket.ID, dto.AssignRequest{AssignedTo: f.admin.ID})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, assigned.Status)
	assert.Equal(t, []uint{f.admin.ID}, f.notifier.calls)

	stored, err := f.repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, f.admin.ID, *stored.AssignedTo)
	require.NotNil(t, stored.AssignedBy)
	assert.Equal(t, f.admin.ID, *stored.AssignedBy)
	assert.NotNil(t, stored.AssignedAt)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "Status updated from 'Open' to 'In Progress'", stored.Comments[0].Comment)

	// Assigning an in-progress ticket again leaves the status and comments alone.
	_, err = f.svc.Assign(ctx, f.admin, ticket.ID, dto.AssignRequest{AssignedTo: f.admin.ID})
	require.NoError(t, err)
	stored, err = f.repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Comments, 1)
	assert.Len(t, f.notifier.calls, 2)
}

func TestUpdateAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	ticket := f.createTicket(t, f.user)

	updated, err := f.svc.UpdateAssignment(ctx, f.admin, ticket.ID, dto.EditAssignmentRequest{AssignedTo: strconv.FormatUint(uint64(f.admin.ID), 10)})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, f.admin.ID, *updated.AssignedTo)

	stored, err := f.repo.FindByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, stored.Status)
	assert.Empty(t, stored.Comments)
	assert.Empty(t, f.notifier.calls)

	updated, err = f.svc.UpdateAssignment(ctx, f.admin, ticket.ID, dto.EditAssignmentRequest{AssignedTo: "0"})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)
	assert.Nil(t, updated.Assignee)

	_, err = f.svc.UpdateAssignment(ctx, f.admin, ticket.ID, dto.EditAssignmentRequest{AssignedTo: "abc"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.svc.UpdateAssignment(ctx, f.admin, 9999, dto.EditAssignmentRequest{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)

	mine := f.createTicket(t, f.user)
	f.createTicket(t, f.other)
	_, err := f.svc.UpdateStatus(ctx, f.admin, mine.ID, dto.UpdateStatusRequest{Status: entity.StatusClosed})
	require.NoError(t, err)

	all, err := f.svc.ListForUser(ctx, f.user, dto.UserTicketFilter{Status: "all"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, mine.ID, all[0].ID)

	open, err := f.svc.ListForUser(ctx, f.user, dto.UserTicketFilter{Status: entity.StatusOpen})
	require.NoError(t, err)
	assert.Empty(t, open)

	byTitle, err := f.svc.ListForUser(ctx, f.user, dto.UserTicketFilter{Search: "LAPTOP"})
	require.NoError(t, err)
	assert.Len(t, byTitle, 1)
}
