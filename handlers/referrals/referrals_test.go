package referrals

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Im-Vestor/im-vestor-full-sub002/models"
	"github.com/Im-Vestor/im-vestor-full-sub002/testutil"
)

func TestRecord(t *testing.T) {
	db := testutil.SetupDB(t)
	referrer := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	referred := testutil.CreateUser(t, db, models.UserTypeInvestor)

	require.NoError(t, Record(db, " "+referrer.ReferralCode+" ", referred))

	var referral models.Referral
	require.NoError(t, db.Where("referred_id = ?", referred.ID).First(&referral).Error)
	assert.Equal(t, referrer.ID, referral.ReferrerID)
	assert.Equal(t, referrer.ReferralCode, referral.Code)

	var notification models.Notification
	require.NoError(t, db.Where("user_id = ?", referrer.ID).First(&notification).Error)
	assert.Equal(t, models.NotificationNewReferral, notification.Type)

	assert.ErrorIs(t, Record(db, referrer.ReferralCode, referred), ErrAlreadyReferred)
	assert.ErrorIs(t, Record(db, referrer.ReferralCode, referrer), ErrSelfReferral)
	assert.ErrorIs(t, Record(db, "NOPE", referred), ErrUnknownCode)
}

func TestGetUserReferrals(t *testing.T) {
	db := testutil.SetupDB(t)
	referrer := testutil.CreateUser(t, db, models.UserTypeEntrepreneur)
	referred := testutil.CreateUser(t, db, models.UserTypeInvestor)
	require.NoError(t, Record(db, referrer.ReferralCode, referred))

	w := testutil.Call(t, GetUserReferrals, http.MethodGet, "/referrals", nil, referrer)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Referrals []models.Referral `json:"referrals"`
	}
	testutil.Decode(t, w, &body)
	require.Len(t, body.Referrals, 1)
	require.NotNil(t, body.Referrals[0].Referred)
	assert.Equal(t, referred.LastName, body.Referrals[0].Referred.LastName)
	assert.Empty(t, body.Referrals[0].Referred.Email)
}

func TestGetReferralCode(t *testing.T) {
	db := testutil.SetupDB(t)
	user := testutil.CreateUser(t, db, models.UserTypePartner)

	w := testutil.Call(t, GetReferralCode("https://im-vestor.com/"), http.MethodGet, "/referrals/code", nil, user)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	testutil.Decode(t, w, &body)
	assert.Equal(t, user.ReferralCode, body["code"])
	assert.Equal(t, "https://im-vestor.com/sign-up?referral="+user.ReferralCode, body["link"])
}
