package projects

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/testutil"
)

func ptr[T any](v T) *T { return &v }

type projectResponse struct {
	Project models.Project `json:"project"`
}

type listResponse struct {
	Projects []models.Project `json:"projects"`
	Total    int64            `json:"total"`
	PerPage  int              `json:"per_page"`
}

func TestCreateProject(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	area := testutil.AreaID(t, db, "Fintech")

	req := ProjectRequest{
		Name:            ptr("PayFlow"),
		AreaID:          ptr(area),
		Stage:           ptr(models.ProjectStageSeed),
		StartInvestment: ptr(int64(50_000)),
		InvestmentGoal:  ptr(int64(250_000)),
		Equity:          ptr(12.5),
	}
	w := testutil.Call(t, CreateProject, http.MethodPost, "/projects", req, owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp projectResponse
	testutil.Decode(t, w, &resp)
	assert.Equal(t, owner.ID, resp.Project.EntrepreneurID)
	assert.Equal(t, models.VisibilityPublic, resp.Project.Visibility)

	w = testutil.Call(t, GetMyProjects, http.MethodGet, "/projects/mine", nil, owner)
	var mine listResponse
	testutil.Decode(t, w, &mine)
	require.Len(t, mine.Projects, 1)
	require.NotNil(t, mine.Projects[0].Area)
	assert.Equal(t, "Fintech", mine.Projects[0].Area.Name)
}

func TestCreateProject_Validation(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	area := testutil.AreaID(t, db, "SaaS")

	valid := func() ProjectRequest {
		return ProjectRequest{
			Name:            ptr("Valid"),
			AreaID:          ptr(area),
			Stage:           ptr(models.ProjectStagePreSeed),
			StartInvestment: ptr(int64(10)),
			InvestmentGoal:  ptr(int64(100)),
		}
	}

	tests := []struct {
		name   string
		mutate func(r *ProjectRequest)
	}{
		{"missing name", func(r *ProjectRequest) { r.Name = ptr("  ") }},
		{"missing area", func(r *ProjectRequest) { r.AreaID = nil }},
		{"unknown area", func(r *ProjectRequest) { r.AreaID = ptr(uint(9999)) }},
		{"bad stage", func(r *ProjectRequest) { r.Stage = ptr(models.ProjectStage("SERIES_Z")) }},
		{"bad visibility", func(r *ProjectRequest) { r.Visibility = ptr(models.Visibility("HIDDEN")) }},
		{"goal below start", func(r *ProjectRequest) { r.InvestmentGoal = ptr(int64(5)) }},
		{"equity above 100", func(r *ProjectRequest) { r.Equity = ptr(120.0) }},
		{"negative start", func(r *ProjectRequest) { r.StartInvestment = ptr(int64(-1)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			w := testutil.Call(t, CreateProject, http.MethodPost, "/projects", req, owner)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetProject_PrivateVisibility(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	investor := testutil.CreateUser(t, db, models.UserTypeInvestor)
	project := testutil.CreateProject(t, db, owner, testutil.AreaID(t, db, "SaaS"), 10, 100)
	require.NoError(t, db.Model(project).Update("visibility", models.VisibilityPrivate).Error)

	w := testutil.Call(t, GetProject, http.MethodGet, "/projects/x", nil, investor, testutil.Param("id", project.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.Call(t, GetProject, http.MethodGet, "/projects/x", nil, owner, testutil.Param("id", project.ID))
	require.Equal(t, http.StatusOK, w.Code)
	var resp projectResponse
	testutil.Decode(t, w, &resp)
	require.NotNil(t, resp.Project.Entrepreneur)
	assert.Equal(t, owner.LastName, resp.Project.Entrepreneur.LastName)
	assert.Empty(t, resp.Project.Entrepreneur.Email)
}

func TestUpdateAndDeleteProject_OwnerOnly(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	other := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	project := testutil.CreateProject(t, db, owner, testutil.AreaID(t, db, "SaaS"), 10, 100)
	id := testutil.Param("id", project.ID)

	w := testutil.Call(t, UpdateProject, http.MethodPatch, "/projects/x", ProjectRequest{Name: ptr("Hijack")}, other, id)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = testutil.Call(t, UpdateProject, http.MethodPatch, "/projects/x", ProjectRequest{Name: ptr("Renamed")}, owner, id)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stored models.Project
	require.NoError(t, db.First(&stored, "id = ?", project.ID).Error)
	assert.Equal(t, "Renamed", stored.Name)
	assert.Equal(t, int64(100), stored.InvestmentGoal)

	w = testutil.Call(t, DeleteProject, http.MethodDelete, "/projects/x", nil, other, id)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = testutil.Call(t, DeleteProject, http.MethodDelete, "/projects/x", nil, owner, id)
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.Project{}).Where("id = ?", project.ID).Count(&count)
	assert.Zero(t, count)
}

func TestListProjects_FiltersAndBoostOrder(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	viewer := testutil.CreateUser(t, db, models.UserTypeInvestor)
	fintech := testutil.AreaID(t, db, "Fintech")
	saas := testutil.AreaID(t, db, "SaaS")

	old := testutil.CreateProject(t, db, owner, fintech, 1_000, 10_000)
	require.NoError(t, db.Model(old).Update("name", "Ledger Labs").Error)
	boosted := testutil.CreateProject(t, db, owner, fintech, 50_000, 80_000)
	until := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.Model(boosted).Update("boosted_until", &until).Error)
	newest := testutil.CreateProject(t, db, owner, saas, 500, 2_000)
	hidden := testutil.CreateProject(t, db, owner, saas, 500, 2_000)
	require.NoError(t, db.Model(hidden).Update("visibility", models.VisibilityPrivate).Error)

	var resp listResponse
	w := testutil.Call(t, ListProjects, http.MethodGet, "/projects", nil, viewer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.Decode(t, w, &resp)
	require.Len(t, resp.Projects, 3)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, boosted.ID, resp.Projects[0].ID)

	tests := []struct {
		query    string
		expected []string
	}{
		{"?area=" + strconv.FormatUint(uint64(saas), 10), []string{newest.ID}},
		{"?q=ledger", []string{old.ID}},
		{"?minInvestment=20000", []string{boosted.ID}},
		{"?maxInvestment=900", []string{newest.ID}},
		{"?stage=seed&perPage=1", []string{boosted.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var resp listResponse
			w := testutil.Call(t, ListProjects, http.MethodGet, "/projects"+tt.query, nil, viewer)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			testutil.Decode(t, w, &resp)
			ids := make([]string, 0, len(resp.Projects))
			for _, p := range resp.Projects {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}

	w = testutil.Call(t, ListProjects, http.MethodGet, "/projects?stage=late", nil, viewer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBoostProject(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	project := testutil.CreateProject(t, db, owner, testutil.AreaID(t, db, "SaaS"), 10, 100)
	id := testutil.Param("id", project.ID)

	w := testutil.Call(t, BoostProject, http.MethodPost, "/projects/x/boost", nil, owner, id)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	require.NoError(t, db.Model(owner).Update("available_boosts", 2).Error)

	w = testutil.Call(t, BoostProject, http.MethodPost, "/projects/x/boost", nil, owner, id)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = testutil.Call(t, BoostProject, http.MethodPost, "/projects/x/boost", nil, owner, id)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.Project
	require.NoError(t, db.First(&stored, "id = ?", project.ID).Error)
	require.NotNil(t, stored.BoostedUntil)
	assert.WithinDuration(t, time.Now().UTC().Add(2*BoostDuration), *stored.BoostedUntil, time.Minute)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", owner.ID).Error)
	assert.Zero(t, user.AvailableBoosts)

	w = testutil.Call(t, BoostProject, http.MethodPost, "/projects/x/boost", nil, owner, id)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestBoostProject_StacksOnConcurrentBoost(t *testing.T) {
	db := testutil.SetupDB(t)
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	project := testutil.CreateProject(t, db, owner, testutil.AreaID(t, db, "SaaS"), 10, 100)
	require.NoError(t, db.Model(owner).Update("available_boosts", 1).Error)

	// another boost lands after this request read the project
	testutil.AfterQuery(t, db, "projects", testutil.Locked, func(tx *gorm.DB) {
		until := time.Now().UTC().Add(BoostDuration)
		require.NoError(t, tx.Exec("UPDATE projects SET boosted_until = ? WHERE id = ?", until, project.ID).Error)
	})

	w := testutil.Call(t, BoostProject, http.MethodPost, "/projects/x/boost", nil, owner, testutil.Param("id", project.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.Project
	require.NoError(t, db.First(&stored, "id = ?", project.ID).Error)
	require.NotNil(t, stored.BoostedUntil)
	assert.WithinDuration(t, time.Now().UTC().Add(2*BoostDuration), *stored.BoostedUntil, time.Minute)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", owner.ID).Error)
	assert.Zero(t, user.AvailableBoosts)
}

func TestDeleteProject_ClosesNegotiationsAndMeetings(t *testing.T) {
	db := testutil.SetupDB(t)
	rooms := testutil.InstallMeetings(t)
	area := testutil.AreaID(t, db, "SaaS")
	owner := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	project := testutil.CreateProject(t, db, owner, area, 10, 100)
	investor := testutil.CreateInvestor(t, db, testutil.CreateUser(t, db, models.UserTypeInvestor), 0, 100, area)
	n := testutil.CreateNegotiation(t, db, project, investor)
	meeting := testutil.CreateMeeting(t, db, n.ID, owner.ID)

	w := testutil.Call(t, DeleteProject, http.MethodDelete, "/projects/x", nil, owner, testutil.Param("id", project.ID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var negotiations, meetings int64
	require.NoError(t, db.Model(&models.Negotiation{}).Where("project_id = ?", project.ID).Count(&negotiations).Error)
	require.NoError(t, db.Model(&models.Meeting{}).Where("id = ?", meeting.ID).Count(&meetings).Error)
	assert.Zero(t, negotiations)
	assert.Zero(t, meetings)
	assert.Equal(t, []string{meeting.RoomName}, rooms.Deleted)
}
