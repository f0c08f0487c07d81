package surveyapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSurveyAPI answers survey setup and record import calls the way the
// production API does, recording each request body for assertions.
func fakeSurveyAPI(t *testing.T) (*httptest.Server, *[]url.Values) {
	t.Helper()
	var seen []url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = append(seen, r.PostForm)

		if r.PostForm.Get("token") != "sekret" {
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "You do not have permissions to use the API"})
			return
		}
		switch {
		case r.PostForm.Get("content") == "survey" && r.PostForm.Get("action") == "setup":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"PROJECT_ID": 123, "add": 0, "survey_id": 11,
				"hash": "8074", "email": "BOGUS@example.edu"})
		case r.PostForm.Get("content") == "record" && r.PostForm.Get("action") == "import":
			_ = json.NewEncoder(w).Encode(map[string]any{"count": 1})
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad request"})
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestClient(t *testing.T, apiURL, token string) *Client {
	t.Helper()
	return NewClient(&Config{APIURL: apiURL, Token: token}, nil)
}

func TestAcceptJSON(t *testing.T) {
	srv, seen := fakeSurveyAPI(t)
	c := newTestClient(t, srv.URL, "sekret")

	ans, err := c.AcceptJSON(context.Background(), "survey", "setup",
		map[string]string{"email": "john.smith@example.edu"})
	require.NoError(t, err)
	assert.Equal(t, "8074", ans["hash"])

	require.Len(t, *seen, 1)
	body := (*seen)[0]
	assert.Equal(t, "sekret", body.Get("token"))
	assert.Equal(t, "json", body.Get("format"))
	assert.Equal(t, "survey", body.Get("content"))
	assert.Equal(t, "john.smith@example.edu", body.Get("email"))
}

func TestAcceptJSONUpstreamError(t *testing.T) {
	srv, _ := fakeSurveyAPI(t)
	c := newTestClient(t, srv.URL, "wrong-token")

	_, err := c.AcceptJSON(context.Background(), "survey", "setup", nil)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "permissions")
}

func TestAcceptJSONNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
	}))
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL, "sekret")

	_, err := c.AcceptJSON(context.Background(), "survey", "setup", nil)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestImportRecords(t *testing.T) {
	srv, seen := fakeSurveyAPI(t)
	c := newTestClient(t, srv.URL, "sekret")

	records := []map[string]string{{"study_id": "1", "agree": "1"}}
	_, err := c.ImportRecords(context.Background(), records, nil)
	require.NoError(t, err)

	require.Len(t, *seen, 1)
	body := (*seen)[0]
	assert.Equal(t, "record", body.Get("content"))
	assert.Equal(t, "import", body.Get("action"))

	var posted []map[string]string
	require.NoError(t, json.Unmarshal([]byte(body.Get("data")), &posted))
	assert.Equal(t, records, posted)
}

func TestSurveyLink(t *testing.T) {
	srv, seen := fakeSurveyAPI(t)
	c := newTestClient(t, srv.URL, "sekret")
	setup := NewSurveySetup(c, "http://bmidev1/redcap-host/surveys/?s=43", "example.edu")

	link, err := setup.Link(context.Background(), "john.smith",
		map[string]string{"user_id": "john.smith", "full_name": "Smith, John"}, false)
	require.NoError(t, err)
	assert.Equal(t,
		"http://bmidev1/redcap-host/surveys/?s=8074&full_name=Smith%2C+John&user_id=john.smith",
		link)

	require.Len(t, *seen, 1)
	assert.Equal(t, "no", (*seen)[0].Get("multi"))
	assert.Equal(t, "john.smith@example.edu", (*seen)[0].Get("email"))
}

func TestSurveyLinkMulti(t *testing.T) {
	srv, seen := fakeSurveyAPI(t)
	c := newTestClient(t, srv.URL, "sekret")
	setup := NewSurveySetup(c, "http://bmidev1/redcap-host/surveys/", "example.edu")

	link, err := setup.Link(context.Background(), "john.smith", nil, true)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(link, "?s=8074"), link)
	assert.Equal(t, "yes", (*seen)[0].Get("multi"))
}
