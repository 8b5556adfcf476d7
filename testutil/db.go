package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
	"github.com/Im-Vestor/im-vestor-full-sub002/migrations"
	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/seed"
	"github.com/Im-Vestor/im-vestor-full-sub002/utils"
)

const TokenSecret = "test-secret-0123456789abcdef012345"

var seq atomic.Int64

// SetupDB installs a migrated, seeded in-memory SQLite database as
// utils.DB for the duration of the test.
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := utils.OpenDatabase(config.DatabaseSettings{Type: config.SqliteDbType, DSN: ":memory:"})
	require.NoError(t, err, "Failed to create database connection")
	require.NoError(t, migrations.Migrate(db))
	require.NoError(t, seed.SeedAreas(db))

	prevDB, prevSecret := utils.DB, utils.TokenSecret
	utils.DB = db
	utils.TokenSecret = []byte(TokenSecret)
	t.Cleanup(func() {
		utils.DB = prevDB
		utils.TokenSecret = prevSecret
		_ = utils.CloseDatabase(db)
	})
	return db
}

// AreaID returns the id of a seeded area by name.
func AreaID(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	var area models.Area
	require.NoError(t, db.Where("name = ?", name).First(&area).Error)
	return area.ID
}

func CreateUser(t *testing.T, db *gorm.DB, userType models.UserType) *models.User {
	t.Helper()
	n := seq.Add(1)
	user := &models.User{
		ClerkID:      fmt.Sprintf("user_clerk_%d", n),
		Email:        fmt.Sprintf("user%d@example.com", n),
		FirstName:    "Test",
		LastName:     fmt.Sprintf("User%d", n),
		UserType:     userType,
		ReferralCode: fmt.Sprintf("REF%05d", n),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateInvestor(t *testing.T, db *gorm.DB, user *models.User, min, max int64, areaIDs ...uint) *models.Investor {
	t.Helper()
	investor := &models.Investor{
		UserID:             user.ID,
		InvestmentMinValue: min,
		InvestmentMaxValue: max,
		Country:            "Portugal",
	}
	for _, id := range areaIDs {
		investor.Areas = append(investor.Areas, models.Area{ID: id})
	}
	require.NoError(t, db.Omit("Areas.*").Create(investor).Error)
	return investor
}

func CreateProject(t *testing.T, db *gorm.DB, owner *models.User, areaID uint, start, goal int64) *models.Project {
	t.Helper()
	project := &models.Project{
		EntrepreneurID:  owner.ID,
		Name:            fmt.Sprintf("Project %d", seq.Add(1)),
		AreaID:          areaID,
		Stage:           models.ProjectStageSeed,
		StartInvestment: start,
		InvestmentGoal:  goal,
		Visibility:      models.VisibilityPublic,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

func CreateMeeting(t *testing.T, db *gorm.DB, negotiationID, createdByID string) *models.Meeting {
	t.Helper()
	start := time.Now().UTC().Add(time.Hour)
	meeting := &models.Meeting{
		NegotiationID: negotiationID,
		RoomName:      fmt.Sprintf("imv-test-%d", seq.Add(1)),
		StartDate:     start,
		EndDate:       start.Add(30 * time.Minute),
		CreatedByID:   createdByID,
	}
	meeting.URL = "https://imvestor.daily.co/" + meeting.RoomName
	require.NoError(t, db.Create(meeting).Error)
	return meeting
}

func CreateNegotiation(t *testing.T, db *gorm.DB, project *models.Project, investor *models.Investor) *models.Negotiation {
	t.Helper()
	n := &models.Negotiation{
		ProjectID:   project.ID,
		InvestorID:  investor.ID,
		Stage:       models.StagePitch,
		InitiatedBy: models.PartyInvestor,
	}
	require.NoError(t, db.Create(n).Error)
	return n
}
