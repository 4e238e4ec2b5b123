package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-tracker-api/internal/dto"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"github.com/yukikurage/task-tracker-api/internal/middleware"
	"github.com/yukikurage/task-tracker-api/internal/models"
	"github.com/yukikurage/task-tracker-api/internal/repository"
	"github.com/yukikurage/task-tracker-api/internal/services"
)

type staticAdmin uint64

func (a staticAdmin) IsAdmin(userID uint64) bool {
	return uint64(a) == userID
}

func TestUserHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)

	var users []*models.User
	for _, name := range []string{"carol", "alice", "bob"} {
		u := &models.User{Username: name, UsernameKey: name, PasswordHash: "x"}
		require.NoError(t, db.Create(u).Error)
		users = append(users, u)
	}
	admin, alice, bob := users[0], users[1], users[2]
	require.NoError(t, db.Create(&models.Task{Title: "busy", Status: models.TaskStatusNew, CreatorID: bob.ID}).Error)

	checker := staticAdmin(admin.ID)
	handler := NewUserHandler(services.NewUserService(repository.NewUserRepository(db), checker, logging.Discard()))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		var id uint64
		switch c.GetHeader("X-Test-User") {
		case "admin":
			id = admin.ID
		case "alice":
			id = alice.ID
		}
		c.Set("user_id", id)
		c.Next()
	})
	r.GET("/api/users", handler.ListUsers)
	r.DELETE("/api/users/:id", middleware.RequireAdmin(checker), handler.DeleteUser)

	do := func(method, path, as string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Test-User", as)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("list ordered by username", func(t *testing.T) {
		w := do(http.MethodGet, "/api/users", "alice")
		require.Equal(t, http.StatusOK, w.Code)

		var response []dto.UserDTO
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response, 3)
		assert.Equal(t, []string{"alice", "bob", "carol"}, []string{response[0].Username, response[1].Username, response[2].Username})
	})

	t.Run("non admin forbidden", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(http.MethodDelete, "/api/users/3", "alice").Code)
	})

	t.Run("admin rules", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(http.MethodDelete, "/api/users/abc", "admin").Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/api/users/999", "admin").Code)
		assert.Equal(t, http.StatusConflict, do(http.MethodDelete, pathFor(bob.ID), "admin").Code)
		assert.Equal(t, http.StatusBadRequest, do(http.MethodDelete, pathFor(admin.ID), "admin").Code)
		assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, pathFor(alice.ID), "admin").Code)
	})
}

func pathFor(id uint64) string {
	return "/api/users/" + strconv.FormatUint(id, 10)
}
