package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/seta/core"
)

func TestGetContextSession(t *testing.T) {
	conf := core.NewTestConfig()
	token, err := GenerateToken(conf, NewClaims(conf, " admin-1 ", "thandi", "thandi@seta.test", time.Hour))
	require.NoError(t, err)

	var got core.Session
	e := echo.New()
	e.GET("/", func(ctx echo.Context) error {
		if got, err = getContextSession(ctx); err != nil {
			return err
		}
		return ctx.NoContent(http.StatusNoContent)
	}, echoJWT(conf))

	req, rec := newAuthRequest(http.MethodGet, "/", token)
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, core.Session{ActorID: "admin-1", Username: "thandi", Email: "thandi@seta.test", Credentials: token}, got)

	ctx := e.NewContext(req, rec)
	_, err = getContextSession(ctx)
	assert.Equal(t, errUnauthorized, err)
}

func TestServer_auth(t *testing.T) {
	st := setup(t)

	expired, err := GenerateToken(st.conf, NewClaims(st.conf, "admin-1", "", "", -time.Minute))
	require.NoError(t, err)

	otherConf := core.NewTestConfig()
	otherConf.SecretKey = "not the secret"
	forged, err := GenerateToken(otherConf, NewClaims(otherConf, "admin-1", "", "", time.Hour))
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, NewClaims(st.conf, "admin-1", "", "", time.Hour))
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := GenerateToken(st.conf, NewClaims(st.conf, " ", "", "", time.Hour))
	require.NoError(t, err)

	invalid := httpErr{Error: "invalid or expired jwt"}
	runHTTPTests(t, st, []httpTest{
		{name: "home", method: http.MethodGet, path: "/", wantCode: http.StatusOK},
		{name: "expired", method: http.MethodGet, path: "/v1/students", token: expired, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, invalid)},
		{name: "forged", method: http.MethodGet, path: "/v1/students", token: forged, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, invalid)},
		{name: "unsigned", method: http.MethodGet, path: "/v1/students", token: unsigned, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, invalid)},
		{
			name:     "no subject",
			method:   http.MethodGet,
			path:     "/v1/students",
			token:    noSubject,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: core.ErrSessionExpired.Error()}),
		},
	})
}
