package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotregistry/internal/model"
	"robotregistry/internal/sites"
)

const listingHTML = `<html><body>
<table>
  <thead><tr><th>#</th><th>Type</th><th>Name</th><th>MAC</th><th>Description</th><th>Registered</th></tr></thead>
  <tbody>
    <tr><td>1</td><td>AMR</td><td> robot-01 </td><td>aa:bb:cc:dd:ee:ff</td><td>dock A</td><td>2024-03-01</td></tr>
    <tr><td colspan="6"></td></tr>
    <tr><td>2</td><td>AMR</td><td></td><td>00:11:22:33:44:55</td><td>no name</td><td></td></tr>
    <tr><td>3</td><td>AGV</td><td>robot-03</td><td>12-34-56-78-9A</td><td>short mac</td><td>2024-03-02</td></tr>
    <tr><td>4</td><td>robot-04</td></tr>
    <tr><td>5</td><td>AGV</td><td>robot-05
      </td><td>0011.2233.4466</td><td>  line
      two </td></tr>
  </tbody>
</table>
</body></html>`

func testSite() sites.SiteConfig {
	return sites.SiteConfig{
		ID:         "a.example",
		LoginURL:   "http://a.example/login",
		ListingURL: "http://a.example/robot",
		Locators: sites.Locators{
			UsernameInput:  "#user",
			PasswordInput:  "#pass",
			LoginButton:    "#login",
			WaitForElement: "table tbody tr",
		},
		ColumnMapping: sites.ColumnMapping{
			sites.FieldType:           1,
			sites.FieldName:           2,
			sites.FieldMAC:            3,
			sites.FieldDescription:    4,
			sites.FieldRegisteredDate: 5,
		},
	}
}

func TestParseListing(t *testing.T) {
	records, err := ParseListing(listingHTML, testSite())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, model.RawRecord{
		Type:           "AMR",
		Name:           "robot-01",
		MAC:            "aa:bb:cc:dd:ee:ff",
		Description:    "dock A",
		RegisteredDate: "2024-03-01",
	}, records[0])

	// Normalization happens at merge time, the raw text is kept here.
	assert.Equal(t, "12-34-56-78-9A", records[1].MAC)

	// Five cells: the registered date column is absent.
	assert.Equal(t, "robot-05", records[2].Name)
	assert.Empty(t, records[2].RegisteredDate)
}

func TestParseListingSkipsNamelessRows(t *testing.T) {
	records, err := ParseListing(listingHTML, testSite())
	require.NoError(t, err)
	for _, r := range records {
		assert.NotEmpty(t, r.Name)
	}
}

func TestParseListingCustomRows(t *testing.T) {
	site := testSite()
	site.Locators.RowSelector = "#grid tr"
	site.MinCells = 2
	site.ColumnMapping = sites.ColumnMapping{sites.FieldName: 0, sites.FieldMAC: 1}

	html := `<div id="grid"><table>
<tr><td>r1</td><td>aabbccddeeff</td></tr>
<tr><td>r2</td></tr>
</table></div>
<table><tbody><tr><td>ignored</td><td>001122334455</td></tr></tbody></table>`

	records, err := ParseListing(html, site)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].Name)
	assert.Empty(t, records[0].Type)
}

func TestParseListingEmptyPage(t *testing.T) {
	records, err := ParseListing("<html></html>", testSite())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
