package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-tracker-api/internal/cache"
	"github.com/yukikurage/task-tracker-api/internal/config"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	"github.com/yukikurage/task-tracker-api/internal/database"
	"github.com/yukikurage/task-tracker-api/internal/dto"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AppTestSuite drives the whole router over HTTP against SQLite and an in-process Redis.
type AppTestSuite struct {
	suite.Suite
	app    *App
	server *httptest.Server
	redis  *miniredis.Miniredis
}

func (suite *AppTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	suite.Require().NoError(err)
	sqlDB, err := db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	log := logging.Discard()
	suite.Require().NoError(database.Migrate(db, log))

	suite.redis = miniredis.RunT(suite.T())
	rdb, err := cache.NewClient(context.Background(), suite.redis.Addr(), "", 0)
	suite.Require().NoError(err)

	cfg := &config.Config{
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		JWTIssuer:          "TaskManagementSystem",
		JWTAudience:        "TaskManagementSystem",
		AccessTokenMinutes: 60,
		RefreshTokenDays:   7,
		BcryptCost:         bcrypt.MinCost,
		TaskCacheTTL:       time.Minute,
		CORSAllowedOrigins: []string{"*"},
	}

	suite.app, err = NewWithResources(cfg, log, db, rdb)
	suite.Require().NoError(err)

	suite.server = httptest.NewServer(suite.app.Router())
}

func (suite *AppTestSuite) TearDownTest() {
	suite.server.Close()
	suite.Require().NoError(suite.app.Close())
}

func (suite *AppTestSuite) request(method, path, token string, body interface{}) *http.Response {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, suite.server.URL+path, reader)
	suite.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	suite.T().Cleanup(func() { resp.Body.Close() })
	return resp
}

func (suite *AppTestSuite) decode(resp *http.Response, v interface{}) {
	suite.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (suite *AppTestSuite) register(username string) (dto.AuthResponse, dto.CurrentUserDTO) {
	resp := suite.request(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "supersecret",
	})
	suite.Require().Equal(http.StatusOK, resp.StatusCode)

	var tokens dto.AuthResponse
	suite.decode(resp, &tokens)

	resp = suite.request(http.MethodGet, "/api/auth/me", tokens.AccessToken, nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	var me dto.CurrentUserDTO
	suite.decode(resp, &me)

	return tokens, me
}

func (suite *AppTestSuite) TestHealth() {
	resp := suite.request(http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.NotEmpty(resp.Header.Get(constants.HeaderRequestID))
}

func (suite *AppTestSuite) TestCORSPreflight() {
	req, err := http.NewRequest(http.MethodOptions, suite.server.URL+"/api/tasks", nil)
	suite.Require().NoError(err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	suite.Equal(http.StatusNoContent, resp.StatusCode)
	suite.Equal("*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func (suite *AppTestSuite) TestProtectedRoutesRequireToken() {
	for _, path := range []string{"/api/tasks", "/api/notifications", "/api/users", "/api/auth/me"} {
		resp := suite.request(http.MethodGet, path, "", nil)
		suite.Equal(http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func (suite *AppTestSuite) TestAssignmentFlowWithLivePush() {
	alice, aliceMe := suite.register("alice")
	bob, bobMe := suite.register("bob")
	suite.True(aliceMe.IsAdmin)
	suite.False(bobMe.IsAdmin)

	wsURL := "ws" + strings.TrimPrefix(suite.server.URL, "http") + constants.NotificationHubPath + "?access_token=" + bob.AccessToken
	conn, err := websocket.Dial(wsURL, "", suite.server.URL)
	suite.Require().NoError(err)
	defer conn.Close()
	suite.Require().Eventually(func() bool { return suite.app.Hub().Connections(bobMe.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp := suite.request(http.MethodPost, "/api/tasks", alice.AccessToken, map[string]interface{}{
		"title":            "Prepare demo",
		"description":      "slides",
		"assignedToUserId": bobMe.ID,
	})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode)
	var task dto.TaskDTO
	suite.decode(resp, &task)
	suite.Equal("alice", task.CreatedByUsername)
	suite.Require().NotNil(task.AssignedToUsername)
	suite.Equal("bob", *task.AssignedToUsername)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type    string              `json:"type"`
		Payload dto.NotificationDTO `json:"payload"`
	}
	suite.Require().NoError(websocket.JSON.Receive(conn, &frame))
	suite.Equal(constants.EventReceiveNotification, frame.Type)
	suite.Equal(task.ID, frame.Payload.TaskID)
	suite.Equal("You have been assigned a new task: Prepare demo", frame.Payload.Message)

	taskPath := "/api/tasks/" + strconv.FormatUint(task.ID, 10)
	resp = suite.request(http.MethodPatch, taskPath, alice.AccessToken, map[string]interface{}{"status": "InProgress"})
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	suite.Require().NoError(websocket.JSON.Receive(conn, &frame))
	suite.Equal("Status of task 'Prepare demo' changed to: InProgress", frame.Payload.Message)

	resp = suite.request(http.MethodGet, "/api/notifications", bob.AccessToken, nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	var inbox []dto.NotificationDTO
	suite.decode(resp, &inbox)
	suite.Require().Len(inbox, 2)
	suite.Equal(frame.Payload.ID, inbox[0].ID)

	readPath := "/api/notifications/" + strconv.FormatUint(inbox[0].ID, 10) + "/read"
	resp = suite.request(http.MethodPatch, readPath, alice.AccessToken, nil)
	suite.Equal(http.StatusNoContent, resp.StatusCode)
	resp = suite.request(http.MethodPatch, readPath, bob.AccessToken, nil)
	suite.Equal(http.StatusNoContent, resp.StatusCode)

	resp = suite.request(http.MethodGet, "/api/notifications", bob.AccessToken, nil)
	suite.decode(resp, &inbox)
	suite.True(inbox[0].IsRead)
	suite.False(inbox[1].IsRead)

	resp = suite.request(http.MethodDelete, taskPath, bob.AccessToken, nil)
	suite.Equal(http.StatusNoContent, resp.StatusCode)
	resp = suite.request(http.MethodGet, "/api/notifications", bob.AccessToken, nil)
	suite.decode(resp, &inbox)
	suite.Empty(inbox)
}

func (suite *AppTestSuite) cachedLists() []string {
	var keys []string
	for _, key := range suite.redis.Keys() {
		if strings.HasPrefix(key, "tasks:list:") {
			keys = append(keys, key)
		}
	}
	return keys
}

func (suite *AppTestSuite) TestTaskListIsCachedAndInvalidated() {
	alice, _ := suite.register("alice")

	resp := suite.request(http.MethodPost, "/api/tasks", alice.AccessToken, map[string]string{"title": "first"})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode)

	var list []dto.TaskDTO
	resp = suite.request(http.MethodGet, "/api/tasks", alice.AccessToken, nil)
	suite.decode(resp, &list)
	suite.Len(list, 1)
	suite.NotEmpty(suite.cachedLists())

	resp = suite.request(http.MethodPost, "/api/tasks", alice.AccessToken, map[string]string{"title": "second"})
	suite.Require().Equal(http.StatusCreated, resp.StatusCode)
	suite.Empty(suite.cachedLists())

	resp = suite.request(http.MethodGet, "/api/tasks", alice.AccessToken, nil)
	suite.decode(resp, &list)
	suite.Require().Len(list, 2)
	suite.Equal("second", list[0].Title)
}

func (suite *AppTestSuite) TestRefreshAndUserAdministration() {
	alice, _ := suite.register("alice")
	bob, bobMe := suite.register("bob")

	resp := suite.request(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": bob.RefreshToken})
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	resp = suite.request(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": bob.RefreshToken})
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = suite.request(http.MethodGet, "/api/users", bob.AccessToken, nil)
	suite.Require().Equal(http.StatusOK, resp.StatusCode)
	var users []dto.UserDTO
	suite.decode(resp, &users)
	suite.Len(users, 2)

	userPath := "/api/users/" + strconv.FormatUint(bobMe.ID, 10)
	resp = suite.request(http.MethodDelete, "/api/users/1", bob.AccessToken, nil)
	suite.Equal(http.StatusForbidden, resp.StatusCode)
	resp = suite.request(http.MethodDelete, userPath, alice.AccessToken, nil)
	suite.Equal(http.StatusNoContent, resp.StatusCode)

	resp = suite.request(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "bob", "password": "supersecret"})
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}
