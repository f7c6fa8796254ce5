package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"studygroups-service/internal/broker"
	"studygroups-service/internal/models"
	"studygroups-service/internal/registry"
	"studygroups-service/internal/store"
)

func setupGroupRouter(t *testing.T, userID string) (*gin.Engine, *registry.Registry, store.Store, *broker.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	reg := registry.New(st, time.Second)
	hub := broker.NewHub(st, reg, time.Second)
	reg.SetNotifier(hub)
	handler := NewGroupHandler(reg, st, hub, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	r.GET("/api/groups", handler.ListGroups)
	r.POST("/api/groups", handler.CreateGroup)
	r.POST("/api/groups/join", handler.JoinGroup)
	r.POST("/api/groups/:group_id/leave", handler.LeaveGroup)
	r.DELETE("/api/groups/:group_id", handler.DeleteGroup)
	r.GET("/api/groups/:group_id/messages", handler.GetGroupMessages)
	r.POST("/api/groups/:group_id/messages/:message_id/pin", handler.TogglePin)
	return r, reg, st, hub
}

func TestCreateGroupSuccess(t *testing.T) {
	router, _, _, _ := setupGroupRouter(t, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/groups", bytes.NewBufferString(`{"name":"Algo Study","type":"CLASS"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var group models.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	require.Equal(t, "Algo Study", group.Name)
	require.Equal(t, []string{"u1"}, group.Members)
	require.Len(t, group.InviteCode, 6)
}

func TestCreateGroupInvalidBody(t *testing.T) {
	router, _, _, _ := setupGroupRouter(t, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/groups", bytes.NewBufferString(`{"name":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinGroupByCode(t *testing.T) {
	router, reg, _, _ := setupGroupRouter(t, "u2")

	created, err := reg.CreateGroup(context.Background(), "group", models.GroupTypeClass, "u1")
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"code":"` + created.InviteCode + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/groups/join", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var group models.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	require.ElementsMatch(t, []string{"u1", "u2"}, group.Members)
}

func TestJoinGroupInvalidCode(t *testing.T) {
	router, _, _, _ := setupGroupRouter(t, "u2")

	req := httptest.NewRequest(http.MethodPost, "/api/groups/join", bytes.NewBufferString(`{"code":"ZZZZZZ"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteGroupForbiddenForNonOwner(t *testing.T) {
	router, reg, _, _ := setupGroupRouter(t, "u2")

	created, err := reg.CreateGroup(context.Background(), "group", models.GroupTypeClass, "u1")
	require.NoError(t, err)
	_, err = reg.JoinByInviteCode(context.Background(), created.InviteCode, "u2")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/groups/"+created.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetGroupMessagesRequiresMembership(t *testing.T) {
	router, reg, _, _ := setupGroupRouter(t, "stranger")

	created, err := reg.CreateGroup(context.Background(), "group", models.GroupTypeClass, "u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/groups/"+created.ID+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetGroupMessages(t *testing.T) {
	router, reg, st, _ := setupGroupRouter(t, "u1")
	ctx := context.Background()

	created, err := reg.CreateGroup(ctx, "group", models.GroupTypeClass, "u1")
	require.NoError(t, err)
	require.NoError(t, st.SaveMessage(ctx, created.ID, models.Message{ID: "m1", CreatedAt: 1, Text: "hey"}))

	req := httptest.NewRequest(http.MethodGet, "/api/groups/"+created.ID+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	require.Equal(t, "hey", resp.Messages[0].Text)
}

func TestTogglePin(t *testing.T) {
	router, reg, st, _ := setupGroupRouter(t, "u1")
	ctx := context.Background()

	created, err := reg.CreateGroup(ctx, "group", models.GroupTypeClass, "u1")
	require.NoError(t, err)
	require.NoError(t, st.SaveMessage(ctx, created.ID, models.Message{ID: "m1", CreatedAt: 1, Text: "pin me"}))

	req := httptest.NewRequest(http.MethodPost, "/api/groups/"+created.ID+"/messages/m1/pin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	msg, err := st.GetMessage(ctx, created.ID, "m1")
	require.NoError(t, err)
	require.True(t, msg.IsPinned)
}

func TestTogglePinUnknownMessage(t *testing.T) {
	router, reg, _, _ := setupGroupRouter(t, "u1")

	created, err := reg.CreateGroup(context.Background(), "group", models.GroupTypeClass, "u1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/groups/"+created.ID+"/messages/missing/pin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
