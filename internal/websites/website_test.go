package websites_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sitepulse/internal/pkg/validation"
	"sitepulse/internal/testsupport"
	"sitepulse/internal/websites"
)

func TestGetWebsiteByTrackingCode(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	user := testsupport.CreateTestUser(t, db, "owner", "password")
	testWebsite := testsupport.CreateTestWebsite(t, db, user.ID, "abc123")

	t.Run("known code", func(t *testing.T) {
		website, err := websites.GetWebsiteByTrackingCode(db, "abc123")
		require.NoError(t, err)
		assert.Equal(t, testWebsite.ID, website.ID)
	})

	t.Run("unknown code", func(t *testing.T) {
		website, err := websites.GetWebsiteByTrackingCode(db, "zzz")
		assert.Nil(t, website)

		var notFound *websites.WebsiteNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "zzz", notFound.TrackingCode)
	})
}

func TestCreateWebsite(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	user := testsupport.CreateTestUser(t, db, "owner", "password")

	t.Run("stores website with generated tracking code", func(t *testing.T) {
		website, err := websites.CreateWebsite(db, logger, websites.CreateWebsiteInput{
			URL:    "  https://blog.example.com/ ",
			Name:   " Blog ",
			UserID: user.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, "https://blog.example.com", website.URL)
		assert.Equal(t, "Blog", website.Name)
		assert.Len(t, website.TrackingCode, 32)

		stored, err := websites.GetWebsiteByTrackingCode(db, website.TrackingCode)
		require.NoError(t, err)
		assert.Equal(t, website.ID, stored.ID)
	})

	t.Run("tracking codes are unique", func(t *testing.T) {
		a, err := websites.CreateWebsite(db, logger, websites.CreateWebsiteInput{URL: "https://a.example.com", Name: "A", UserID: user.ID})
		require.NoError(t, err)
		b, err := websites.CreateWebsite(db, logger, websites.CreateWebsiteInput{URL: "https://b.example.com", Name: "B", UserID: user.ID})
		require.NoError(t, err)
		assert.NotEqual(t, a.TrackingCode, b.TrackingCode)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		cases := map[string]websites.CreateWebsiteInput{
			"missing url":  {Name: "X", UserID: user.ID},
			"bad url":      {URL: "not a url", Name: "X", UserID: user.ID},
			"missing name": {URL: "https://x.example.com", UserID: user.ID},
		}
		for name, input := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := websites.CreateWebsite(db, logger, input)
				var fe *validation.FieldError
				assert.ErrorAs(t, err, &fe)
			})
		}
	})

	t.Run("requires an owner", func(t *testing.T) {
		_, err := websites.CreateWebsite(db, logger, websites.CreateWebsiteInput{URL: "https://x.example.com", Name: "X"})
		assert.Error(t, err)
	})
}

func TestOwnerScoping(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	alice := testsupport.CreateTestUser(t, db, "alice", "password")
	bob := testsupport.CreateTestUser(t, db, "bob", "password")
	aliceSite := testsupport.CreateTestWebsite(t, db, alice.ID, "alice-site")
	testsupport.CreateTestWebsite(t, db, bob.ID, "bob-site")

	owned, err := websites.GetWebsitesForOwner(db, alice.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, aliceSite.ID, owned[0].ID)

	_, err = websites.GetWebsiteForOwner(db, aliceSite.ID, alice.ID)
	assert.NoError(t, err)

	_, err = websites.GetWebsiteForOwner(db, aliceSite.ID, bob.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	all, err := websites.GetAllWebsites(db)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSnippet(t *testing.T) {
	w := websites.Website{TrackingCode: "abc"}
	assert.Equal(t,
		`<script src="https://stats.example.com/tracker.js?code=abc" async></script>`,
		w.Snippet("https://stats.example.com/"))
}
