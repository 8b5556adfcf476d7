package meetings

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/testutil"
)

type fixture struct {
	db           *gorm.DB
	entrepreneur *models.User
	investorUser *models.User
	negotiation  *models.Negotiation
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.SetupDB(t)
	area := testutil.AreaID(t, db, "SaaS")
	entrepreneur := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	investorUser := testutil.CreateUser(t, db, models.UserTypeInvestor)
	investor := testutil.CreateInvestor(t, db, investorUser, 0, 100, area)
	project := testutil.CreateProject(t, db, entrepreneur, area, 10, 100)

	n := &models.Negotiation{
		ProjectID:   project.ID,
		InvestorID:  investor.ID,
		Stage:       models.StageNegotiation,
		InitiatedBy: models.PartyInvestor,
	}
	require.NoError(t, db.Create(n).Error)
	return fixture{db: db, entrepreneur: entrepreneur, investorUser: investorUser, negotiation: n}
}

func schedule(t *testing.T, f fixture, user *models.User, start, end time.Time) (int, models.Meeting) {
	t.Helper()
	w := testutil.Call(t, CreateMeeting, http.MethodPost, "/negotiations/x/meetings",
		CreateMeetingRequest{StartDate: start, EndDate: end}, user, testutil.Param("id", f.negotiation.ID))
	var resp struct {
		Meeting models.Meeting `json:"meeting"`
	}
	if w.Code == http.StatusCreated {
		testutil.Decode(t, w, &resp)
	}
	return w.Code, resp.Meeting
}

func TestCreateMeeting(t *testing.T) {
	f := setup(t)
	daily := testutil.InstallMeetings(t)
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	end := start.Add(time.Hour)

	code, meeting := schedule(t, f, f.investorUser, start, end)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "https://imvestor.daily.co/"+meeting.RoomName, meeting.URL)

	room, ok := daily.Rooms[meeting.RoomName]
	require.True(t, ok)
	assert.True(t, room.ExpiresAt.Equal(end.Add(time.Hour)))
	assert.True(t, room.NotBefore.Before(start))

	var notified int64
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", f.entrepreneur.ID, models.NotificationMeetingScheduled).
		Count(&notified).Error)
	assert.Equal(t, int64(1), notified)
}

func TestCreateMeeting_Validation(t *testing.T) {
	f := setup(t)
	testutil.InstallMeetings(t)
	future := time.Now().UTC().Add(time.Hour)

	tests := []struct {
		name       string
		user       *models.User
		start, end time.Time
		expected   int
	}{
		{"end before start", f.investorUser, future, future.Add(-time.Minute), http.StatusBadRequest},
		{"in the past", f.investorUser, future.Add(-48 * time.Hour), future.Add(-47 * time.Hour), http.StatusBadRequest},
		{"too long", f.investorUser, future, future.Add(9 * time.Hour), http.StatusBadRequest},
		{"stranger", &models.User{Base: models.Base{ID: "nobody"}}, future, future.Add(time.Hour), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := schedule(t, f, tt.user, tt.start, tt.end)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestCreateMeeting_ProviderFailure(t *testing.T) {
	f := setup(t)
	daily := testutil.InstallMeetings(t)
	daily.Err = errors.New("daily unavailable")

	start := time.Now().UTC().Add(time.Hour)
	code, _ := schedule(t, f, f.entrepreneur, start, start.Add(time.Hour))
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestListTokenAndDeleteMeeting(t *testing.T) {
	f := setup(t)
	daily := testutil.InstallMeetings(t)
	start := time.Now().UTC().Add(2 * time.Hour)

	_, later := schedule(t, f, f.entrepreneur, start.Add(24*time.Hour), start.Add(25*time.Hour))
	_, sooner := schedule(t, f, f.entrepreneur, start, start.Add(time.Hour))

	w := testutil.Call(t, ListMeetings, http.MethodGet, "/meetings", nil, f.investorUser)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list struct {
		Meetings []models.Meeting `json:"meetings"`
	}
	testutil.Decode(t, w, &list)
	require.Len(t, list.Meetings, 2)
	assert.Equal(t, sooner.ID, list.Meetings[0].ID)
	assert.Equal(t, later.ID, list.Meetings[1].ID)

	w = testutil.Call(t, MeetingToken, http.MethodPost, "/meetings/x/token", nil, f.investorUser, testutil.Param("id", sooner.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var tok map[string]string
	testutil.Decode(t, w, &tok)
	assert.Equal(t, "token-"+sooner.RoomName+"-"+f.investorUser.FullName(), tok["token"])
	assert.Equal(t, sooner.URL, tok["url"])

	stranger := testutil.CreateUser(t, f.db, models.UserTypeInvestor)
	w = testutil.Call(t, DeleteMeeting, http.MethodDelete, "/meetings/x", nil, stranger, testutil.Param("id", sooner.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.Call(t, DeleteMeeting, http.MethodDelete, "/meetings/x", nil, f.investorUser, testutil.Param("id", sooner.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{sooner.RoomName}, daily.Deleted)

	w = testutil.Call(t, ListMeetings, http.MethodGet, "/meetings", nil, f.entrepreneur)
	testutil.Decode(t, w, &list)
	require.Len(t, list.Meetings, 1)
	assert.Equal(t, later.ID, list.Meetings[0].ID)
}
